package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/foie0222/baken-autobet/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// OrderStore persists PurchaseOrders and their IpatBetLines in PostgreSQL.
type OrderStore struct {
	db *sqlx.DB
}

// NewOrderStore creates a new OrderStore.
func NewOrderStore(db *sqlx.DB) *OrderStore {
	return &OrderStore{db: db}
}

// Create inserts a new purchase order and its bet lines inside one transaction.
func (r *OrderStore) Create(ctx context.Context, o *domain.PurchaseOrder) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("order_store.Create begin: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO purchase_orders
			(id, user_id, race_id, total_amount, status, error_message, created_at, updated_at)
		VALUES
			(:id, :user_id, :race_id, :total_amount, :status, :error_message, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, o); err != nil {
		return fmt.Errorf("order_store.Create order: %w", err)
	}

	for _, l := range o.BetLines {
		lineQuery := `
			INSERT INTO order_bet_lines
				(order_id, opdt, venue_code, race_number, bet_type, number, amount)
			VALUES
				($1, $2, $3, $4, $5, $6, $7)`
		if _, err := tx.ExecContext(ctx, lineQuery,
			o.OrderID, l.Opdt, string(l.VenueCode), l.RaceNumber, string(l.BetType), l.Number, l.Amount); err != nil {
			return fmt.Errorf("order_store.Create line: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("order_store.Create commit: %w", err)
	}
	return nil
}

// GetByID fetches a purchase order by its primary key. Bet lines are not
// populated; this store has no method that reads them back.
func (r *OrderStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.PurchaseOrder, error) {
	var o domain.PurchaseOrder
	err := r.db.GetContext(ctx, &o, `SELECT * FROM purchase_orders WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("order_store.GetByID: %w", err)
	}
	return &o, nil
}

// UpdateStatus transitions an order's status, optionally recording a failure
// reason. Enforces the one-way state machine by only updating rows that are
// not already terminal.
func (r *OrderStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus, errMsg *string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE purchase_orders
		SET status = $1, error_message = $2, updated_at = now()
		WHERE id = $3 AND status NOT IN ('COMPLETED', 'FAILED')`,
		string(status), errMsg, id)
	if err != nil {
		return fmt.Errorf("order_store.UpdateStatus: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("order_store.UpdateStatus rows: %w", err)
	}
	if n == 0 {
		return domain.ErrOrderAlreadyFinalized
	}
	return nil
}

// GetByRaceAndUser returns the orders placed for a given race by a user,
// oldest first. Used by the operator CLI's order listing; the executor does
// not call it and does not check for earlier orders before submitting.
func (r *OrderStore) GetByRaceAndUser(ctx context.Context, raceID, userID string) ([]*domain.PurchaseOrder, error) {
	var orders []*domain.PurchaseOrder
	err := r.db.SelectContext(ctx, &orders,
		`SELECT * FROM purchase_orders WHERE race_id = $1 AND user_id = $2 ORDER BY created_at ASC`,
		raceID, userID)
	if err != nil {
		return nil, fmt.Errorf("order_store.GetByRaceAndUser: %w", err)
	}
	return orders, nil
}
