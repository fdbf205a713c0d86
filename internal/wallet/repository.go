package wallet

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Wallet struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type WalletInput struct {
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ListByOwner(ctx context.Context, ownerID string) ([]Wallet, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, name, currency, created_at, updated_at
		FROM wallets
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query wallets: %w", err)
	}
	defer rows.Close()

	wallets := make([]Wallet, 0)
	for rows.Next() {
		var w Wallet
		if err := rows.Scan(&w.ID, &w.OwnerID, &w.Name, &w.Currency, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan wallet: %w", err)
		}
		wallets = append(wallets, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallets: %w", err)
	}

	return wallets, nil
}

func (r *Repository) Create(ctx context.Context, ownerID string, input WalletInput) (Wallet, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Wallet{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	now := time.Now().UTC()
	w := Wallet{
		ID:        id.String(),
		OwnerID:   ownerID,
		Name:      input.Name,
		Currency:  input.Currency,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO wallets (id, owner_id, name, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, w.ID, w.OwnerID, w.Name, w.Currency, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return Wallet{}, fmt.Errorf("insert wallet: %w", err)
	}

	return w, nil
}
