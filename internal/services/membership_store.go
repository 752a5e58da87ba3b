package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/luxestay/hotel-booking-backend/internal/models"
	"github.com/shopspring/decimal"
)

// LedgerStore is the storage PointLedger needs. Implementations must treat
// point transactions as append-only.
type LedgerStore interface {
	InsertPointTransaction(ctx context.Context, entry *models.PointTransaction) error
	// PointsBalance returns sum(Earn) - sum(Redeem) for the user, zero when empty
	PointsBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	// SumPointsBetween sums entries of one type with from <= created_at <= to
	SumPointsBetween(ctx context.Context, userID uuid.UUID, entryType models.PointTransactionType, from, to time.Time) (decimal.Decimal, error)
	// SumEarnedByUser returns Earn sums per user for from <= created_at <= to
	SumEarnedByUser(ctx context.Context, from, to time.Time) (map[uuid.UUID]decimal.Decimal, error)
	// ListPointTransactions returns a user's entries newest first
	ListPointTransactions(ctx context.Context, userID uuid.UUID) ([]models.PointTransaction, error)
}

// MembershipUnit is one atomic unit of work. Everything done through a unit
// commits or rolls back together.
type MembershipUnit interface {
	LedgerStore
	// LockUser reads the user and holds a write lock on the row until the
	// unit ends. Returns *models.NotFoundError when the user is missing.
	LockUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
	// InsertTransaction returns *models.DuplicateTransactionError when the
	// external reference is already recorded.
	InsertTransaction(ctx context.Context, txn *models.Transaction) error
	SetUserTier(ctx context.Context, userID uuid.UUID, tierID *uuid.UUID) error
}

// MembershipStore is the persistence port of the loyalty engine
type MembershipStore interface {
	LedgerStore
	TierSource

	GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	ListUsersByTier(ctx context.Context, tierID uuid.UUID) ([]models.User, error)
	CountUsersByTier(ctx context.Context, tierID uuid.UUID) (int, error)

	// GetTransactionByExternalRef returns *models.NotFoundError when absent
	GetTransactionByExternalRef(ctx context.Context, externalRef string) (*models.Transaction, error)
	// GetPointTransactionByTransactionID returns *models.NotFoundError when absent
	GetPointTransactionByTransactionID(ctx context.Context, transactionID uuid.UUID) (*models.PointTransaction, error)

	// WithinUnit runs fn inside one atomic unit, committing when fn returns
	// nil and rolling back otherwise.
	WithinUnit(ctx context.Context, fn func(unit MembershipUnit) error) error
}

// LeaderboardCache stores computed leaderboards for a short time
type LeaderboardCache interface {
	Get(ctx context.Context, key string) (*models.Leaderboard, bool, error)
	Set(ctx context.Context, key string, board *models.Leaderboard) error
}
