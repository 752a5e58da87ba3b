package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/luxestay/hotel-booking-backend/internal/models"
	"github.com/shopspring/decimal"
)

// LedgerEntry is the input for PointLedger.Append
type LedgerEntry struct {
	UserID        uuid.UUID
	Points        decimal.Decimal
	Type          models.PointTransactionType
	TransactionID *uuid.UUID
	Note          *string
}

// PointLedger is the append-only record of points per user. It never touches
// tiers; re-evaluation is the membership service's job.
type PointLedger struct {
	store LedgerStore
	now   func() time.Time
}

// NewPointLedger binds a ledger to a store or to an atomic unit
func NewPointLedger(store LedgerStore, now func() time.Time) *PointLedger {
	if now == nil {
		now = time.Now
	}
	return &PointLedger{store: store, now: now}
}

// Append inserts an immutable entry. Points must be positive; the direction
// is carried by the entry type.
func (l *PointLedger) Append(ctx context.Context, entry LedgerEntry) (*models.PointTransaction, error) {
	if !entry.Points.IsPositive() {
		return nil, models.NewValidationError("points", "points must be greater than zero")
	}
	if !entry.Type.IsValid() {
		return nil, models.NewValidationError("type", fmt.Sprintf("unrecognised point transaction type %q", entry.Type))
	}

	pt := &models.PointTransaction{
		ID:            uuid.New(),
		UserID:        entry.UserID,
		Points:        entry.Points,
		Type:          entry.Type,
		TransactionID: entry.TransactionID,
		Note:          entry.Note,
		CreatedAt:     l.now(),
	}
	if err := l.store.InsertPointTransaction(ctx, pt); err != nil {
		return nil, fmt.Errorf("failed to append point transaction: %w", err)
	}
	return pt, nil
}

// Balance returns all-time Earn minus Redeem for the user
func (l *PointLedger) Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	balance, err := l.store.PointsBalance(ctx, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to compute balance: %w", err)
	}
	return balance, nil
}

// EarnedInWindow sums the user's Earn entries inside the window, both ends
// inclusive
func (l *PointLedger) EarnedInWindow(ctx context.Context, userID uuid.UUID, window Window) (decimal.Decimal, error) {
	earned, err := l.store.SumPointsBetween(ctx, userID, models.PointTransactionEarn, window.From, window.To)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum earned points: %w", err)
	}
	return earned, nil
}

// EarnedInWindowByUser computes EarnedInWindow for every user that earned
// anything in the window
func (l *PointLedger) EarnedInWindowByUser(ctx context.Context, window Window) (map[uuid.UUID]decimal.Decimal, error) {
	earned, err := l.store.SumEarnedByUser(ctx, window.From, window.To)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate earned points: %w", err)
	}
	return earned, nil
}

// History returns the user's entries newest first
func (l *PointLedger) History(ctx context.Context, userID uuid.UUID) ([]models.PointTransaction, error) {
	entries, err := l.store.ListPointTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list point transactions: %w", err)
	}
	return entries, nil
}

// EarnedPoints applies the base rate (1 point per 10 currency units) and the
// tier multiplier. No rounding is applied.
func EarnedPoints(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Div(baseEarnDivisor).Mul(rate)
}

var baseEarnDivisor = decimal.NewFromInt(10)
