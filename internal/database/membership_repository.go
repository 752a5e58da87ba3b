package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/luxestay/hotel-booking-backend/internal/models"
	"github.com/luxestay/hotel-booking-backend/internal/services"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

const userColumns = `id, name, email, tier_id, created_at, updated_at`

const pointColumns = `id, user_id, points, type, transaction_id, note, created_at`

// MembershipRepository is the Postgres implementation of services.MembershipStore
type MembershipRepository struct {
	db DB
	ledgerQueries
}

// NewMembershipRepository creates a new membership repository
func NewMembershipRepository(db DB) *MembershipRepository {
	return &MembershipRepository{
		db:            db,
		ledgerQueries: ledgerQueries{q: db},
	}
}

var _ services.MembershipStore = (*MembershipRepository)(nil)

// ListTiers returns every membership tier row
func (r *MembershipRepository) ListTiers(ctx context.Context) ([]models.MembershipTier, error) {
	var tiers []models.MembershipTier
	query := `
		SELECT id, name, points_threshold, earn_rate_bonus
		FROM membership_tiers
		ORDER BY points_threshold ASC`

	if err := r.db.SelectContext(ctx, &tiers, query); err != nil {
		return nil, fmt.Errorf("failed to list membership tiers: %w", err)
	}
	return tiers, nil
}

// GetUser retrieves a user by ID
func (r *MembershipRepository) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	err := r.db.GetContext(ctx, &user, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Entity: "user", ID: userID.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// ListUsers returns all users in creation order
func (r *MembershipRepository) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at ASC, id ASC`

	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// ListUsersByTier returns the users currently holding a tier
func (r *MembershipRepository) ListUsersByTier(ctx context.Context, tierID uuid.UUID) ([]models.User, error) {
	var users []models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE tier_id = $1 ORDER BY created_at ASC, id ASC`

	if err := r.db.SelectContext(ctx, &users, query, tierID); err != nil {
		return nil, fmt.Errorf("failed to list users by tier: %w", err)
	}
	return users, nil
}

// CountUsersByTier counts the users currently holding a tier
func (r *MembershipRepository) CountUsersByTier(ctx context.Context, tierID uuid.UUID) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users WHERE tier_id = $1`, tierID); err != nil {
		return 0, fmt.Errorf("failed to count users by tier: %w", err)
	}
	return count, nil
}

// GetTransactionByExternalRef retrieves a payment by its provider reference
func (r *MembershipRepository) GetTransactionByExternalRef(ctx context.Context, externalRef string) (*models.Transaction, error) {
	var txn models.Transaction
	query := `
		SELECT id, user_id, external_ref, amount, created_at
		FROM transactions
		WHERE external_ref = $1`

	err := r.db.GetContext(ctx, &txn, query, externalRef)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Entity: "transaction", ID: externalRef}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &txn, nil
}

// GetPointTransactionByTransactionID retrieves the ledger entry created for a payment
func (r *MembershipRepository) GetPointTransactionByTransactionID(ctx context.Context, transactionID uuid.UUID) (*models.PointTransaction, error) {
	var entry models.PointTransaction
	query := `SELECT ` + pointColumns + ` FROM point_transactions WHERE transaction_id = $1`

	err := r.db.GetContext(ctx, &entry, query, transactionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Entity: "point transaction", ID: transactionID.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get point transaction: %w", err)
	}
	return &entry, nil
}

// WithinUnit runs fn inside a read-committed database transaction
func (r *MembershipRepository) WithinUnit(ctx context.Context, fn func(unit services.MembershipUnit) error) error {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&membershipUnit{tx: tx, ledgerQueries: ledgerQueries{q: tx}}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// membershipUnit is a MembershipUnit bound to one database transaction
type membershipUnit struct {
	tx *sqlx.Tx
	ledgerQueries
}

func (u *membershipUnit) LockUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`

	err := sqlx.GetContext(ctx, u.tx, &user, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Entity: "user", ID: userID.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock user: %w", err)
	}
	return &user, nil
}

func (u *membershipUnit) InsertTransaction(ctx context.Context, txn *models.Transaction) error {
	query := `
		INSERT INTO transactions (id, user_id, external_ref, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := u.tx.ExecContext(ctx, query, txn.ID, txn.UserID, txn.ExternalRef, txn.Amount, txn.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return &models.DuplicateTransactionError{ExternalRef: txn.ExternalRef}
		}
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func (u *membershipUnit) SetUserTier(ctx context.Context, userID uuid.UUID, tierID *uuid.UUID) error {
	query := `UPDATE users SET tier_id = $1, updated_at = NOW() WHERE id = $2`

	if _, err := u.tx.ExecContext(ctx, query, tierID, userID); err != nil {
		return fmt.Errorf("failed to update user tier: %w", err)
	}
	return nil
}

// ledgerQueries implements services.LedgerStore over a pool or a transaction
type ledgerQueries struct {
	q sqlx.ExtContext
}

func (l ledgerQueries) InsertPointTransaction(ctx context.Context, entry *models.PointTransaction) error {
	query := `
		INSERT INTO point_transactions (id, user_id, points, type, transaction_id, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := l.q.ExecContext(ctx, query,
		entry.ID, entry.UserID, entry.Points, entry.Type, entry.TransactionID, entry.Note, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert point transaction: %w", err)
	}
	return nil
}

func (l ledgerQueries) PointsBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var balance decimal.Decimal
	query := `
		SELECT COALESCE(SUM(CASE WHEN type = 'Earn' THEN points ELSE -points END), 0)
		FROM point_transactions
		WHERE user_id = $1`

	if err := sqlx.GetContext(ctx, l.q, &balance, query, userID); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum balance: %w", err)
	}
	return balance, nil
}

func (l ledgerQueries) SumPointsBetween(ctx context.Context, userID uuid.UUID, entryType models.PointTransactionType, from, to time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	query := `
		SELECT COALESCE(SUM(points), 0)
		FROM point_transactions
		WHERE user_id = $1 AND type = $2 AND created_at BETWEEN $3 AND $4`

	if err := sqlx.GetContext(ctx, l.q, &total, query, userID, entryType, from, to); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum points: %w", err)
	}
	return total, nil
}

func (l ledgerQueries) SumEarnedByUser(ctx context.Context, from, to time.Time) (map[uuid.UUID]decimal.Decimal, error) {
	var rows []struct {
		UserID uuid.UUID       `db:"user_id"`
		Points decimal.Decimal `db:"points"`
	}
	query := `
		SELECT user_id, SUM(points) AS points
		FROM point_transactions
		WHERE type = 'Earn' AND created_at BETWEEN $1 AND $2
		GROUP BY user_id`

	if err := sqlx.SelectContext(ctx, l.q, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("failed to aggregate earned points: %w", err)
	}

	earned := make(map[uuid.UUID]decimal.Decimal, len(rows))
	for _, row := range rows {
		earned[row.UserID] = row.Points
	}
	return earned, nil
}

func (l ledgerQueries) ListPointTransactions(ctx context.Context, userID uuid.UUID) ([]models.PointTransaction, error) {
	entries := []models.PointTransaction{}
	query := `SELECT ` + pointColumns + ` FROM point_transactions WHERE user_id = $1 ORDER BY created_at DESC, id DESC`

	if err := sqlx.SelectContext(ctx, l.q, &entries, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list point transactions: %w", err)
	}
	return entries, nil
}
