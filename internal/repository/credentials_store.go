package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/foie0222/baken-autobet/internal/domain"
	"github.com/jmoiron/sqlx"
)

// CredentialsStore fetches a target user's IPAT gateway credentials from
// PostgreSQL. Credential values are returned exactly as stored; neither this
// store nor the gateway client encrypts or decrypts them.
type CredentialsStore struct {
	db *sqlx.DB
}

// NewCredentialsStore creates a new CredentialsStore.
func NewCredentialsStore(db *sqlx.DB) *CredentialsStore {
	return &CredentialsStore{db: db}
}

// credentialsRow mirrors the gateway_credentials table layout.
type credentialsRow struct {
	UserID       string `db:"user_id"`
	TncID        string `db:"tnc_id"`
	TncPw        string `db:"tnc_pw"`
	SubscriberNo string `db:"subscriber_no"`
	Pin          string `db:"pin"`
}

// GetByUserID fetches the gateway credentials for a target user.
func (r *CredentialsStore) GetByUserID(ctx context.Context, userID string) (domain.GatewayCredentials, error) {
	var row credentialsRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM gateway_credentials WHERE user_id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.GatewayCredentials{}, domain.ErrCredentialsNotFound
		}
		return domain.GatewayCredentials{}, fmt.Errorf("credentials_store.GetByUserID: %w", err)
	}
	return domain.GatewayCredentials{
		TncID:        row.TncID,
		TncPw:        row.TncPw,
		SubscriberNo: row.SubscriberNo,
		Pin:          row.Pin,
	}, nil
}
