package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OrderStatus is a PurchaseOrder's position in its one-way state machine:
// PENDING -> SUBMITTED -> {COMPLETED, FAILED}.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusSubmitted OrderStatus = "SUBMITTED"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusFailed    OrderStatus = "FAILED"
)

// PurchaseOrder is the aggregate root persisted by OrderStore. A record is
// written on every state transition so it outlives an executor crash.
type PurchaseOrder struct {
	OrderID      uuid.UUID     `db:"id"`
	UserID       string        `db:"user_id"`
	RaceID       string        `db:"race_id"`
	BetLines     []IpatBetLine `db:"-"`
	TotalAmount  int           `db:"total_amount"`
	Status       OrderStatus   `db:"status"`
	ErrorMessage *string       `db:"error_message"`
	CreatedAt    time.Time     `db:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at"`
}

// NewPurchaseOrder constructs a PENDING order for the given race/user and
// bet lines. The order is not yet persisted.
func NewPurchaseOrder(userID, raceID string, lines []IpatBetLine, now time.Time) *PurchaseOrder {
	total := 0
	for _, l := range lines {
		total += l.Amount
	}
	return &PurchaseOrder{
		OrderID:     uuid.New(),
		UserID:      userID,
		RaceID:      raceID,
		BetLines:    lines,
		TotalAmount: total,
		Status:      OrderStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// MarkSubmitted transitions PENDING -> SUBMITTED.
func (o *PurchaseOrder) MarkSubmitted(now time.Time) error {
	if o.Status != OrderStatusPending {
		return fmt.Errorf("%w: cannot submit order in status %s", ErrInvalidStateTransition, o.Status)
	}
	o.Status = OrderStatusSubmitted
	o.UpdatedAt = now
	return nil
}

// MarkCompleted transitions SUBMITTED -> COMPLETED.
func (o *PurchaseOrder) MarkCompleted(now time.Time) error {
	if o.Status != OrderStatusSubmitted {
		return fmt.Errorf("%w: cannot complete order in status %s", ErrInvalidStateTransition, o.Status)
	}
	o.Status = OrderStatusCompleted
	o.UpdatedAt = now
	return nil
}

// MarkFailed transitions SUBMITTED -> FAILED, recording the failure reason.
func (o *PurchaseOrder) MarkFailed(reason string, now time.Time) error {
	if o.Status != OrderStatusSubmitted {
		return fmt.Errorf("%w: cannot fail order in status %s", ErrInvalidStateTransition, o.Status)
	}
	o.Status = OrderStatusFailed
	o.ErrorMessage = &reason
	o.UpdatedAt = now
	return nil
}

// IsTerminal reports whether the order has reached COMPLETED or FAILED.
func (o *PurchaseOrder) IsTerminal() bool {
	return o.Status == OrderStatusCompleted || o.Status == OrderStatusFailed
}
