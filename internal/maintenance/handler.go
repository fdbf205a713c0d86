package maintenance

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"wallet-api/internal/auth"
	"wallet-api/internal/observability"
)

// CleanupHandler prunes stale auth rows (expired or long-revoked refresh
// sessions, idle lockout counters) in batches. Meant to be hit by a cron
// job carrying the shared secret; disabled entirely when no secret is
// configured.
type CleanupHandler struct {
	store            auth.Store
	logger           *observability.Logger
	cronSecret       string
	refreshRetention time.Duration
	attemptRetention time.Duration
	batchSize        int
}

func NewCleanupHandler(
	store auth.Store,
	logger *observability.Logger,
	cronSecret string,
	refreshRetention time.Duration,
	attemptRetention time.Duration,
	batchSize int,
) *CleanupHandler {
	return &CleanupHandler{
		store:            store,
		logger:           logger,
		cronSecret:       strings.TrimSpace(cronSecret),
		refreshRetention: refreshRetention,
		attemptRetention: attemptRetention,
		batchSize:        batchSize,
	}
}

func (h *CleanupHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) != h.cronSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	result, err := h.store.CleanupStale(r.Context(), h.refreshRetention, h.attemptRetention, h.batchSize)
	if err != nil {
		h.logger.Error("auth_cleanup_failed", map[string]any{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cleanup failed"})
		return
	}

	h.logger.Info("auth_cleanup_completed", map[string]any{
		"deleted_refresh_sessions": result.DeletedRefreshSessions,
		"deleted_login_attempts":   result.DeletedLoginAttempts,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"result": result,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
