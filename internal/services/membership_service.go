package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/luxestay/hotel-booking-backend/internal/metrics"
	"github.com/luxestay/hotel-booking-backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Defaults applied when MembershipOptions leaves a field zero
const (
	DefaultOperationTimeout     = 5 * time.Second
	DefaultLeaderboardSize      = 3
	DefaultReconcileConcurrency = 4
)

// MembershipOptions configures a MembershipService
type MembershipOptions struct {
	// Timeout bounds each operation whose context carries no deadline
	Timeout              time.Duration
	LeaderboardSize      int
	ReconcileConcurrency int
	Metrics              *metrics.Loyalty // optional
	Cache                LeaderboardCache // optional
	Clock                func() time.Time
}

// MembershipService records payments as points, keeps the cached tier in
// step with the ledger, and serves leaderboards and membership views. It
// holds no mutable state; all state lives behind the store.
type MembershipService struct {
	store   MembershipStore
	catalog *TierCatalog
	logger  *logrus.Logger
	metrics *metrics.Loyalty
	cache   LeaderboardCache

	timeout              time.Duration
	leaderboardSize      int
	reconcileConcurrency int
	now                  func() time.Time
}

// NewMembershipService creates a new membership service
func NewMembershipService(store MembershipStore, catalog *TierCatalog, logger *logrus.Logger, opts MembershipOptions) *MembershipService {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOperationTimeout
	}
	if opts.LeaderboardSize <= 0 {
		opts.LeaderboardSize = DefaultLeaderboardSize
	}
	if opts.ReconcileConcurrency <= 0 {
		opts.ReconcileConcurrency = DefaultReconcileConcurrency
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &MembershipService{
		store:                store,
		catalog:              catalog,
		logger:               logger,
		metrics:              opts.Metrics,
		cache:                opts.Cache,
		timeout:              opts.Timeout,
		leaderboardSize:      opts.LeaderboardSize,
		reconcileConcurrency: opts.ReconcileConcurrency,
		now:                  opts.Clock,
	}
}

// Catalog returns the tier catalog the service was built with
func (s *MembershipService) Catalog() *TierCatalog {
	return s.catalog
}

// RecordPayment persists a completed payment, credits the earned points at
// the user's current tier rate and re-evaluates the tier, all in one unit.
// Re-delivery of an already recorded external reference for the same user
// returns the stored records with Duplicate set; no new points are credited.
func (s *MembershipService) RecordPayment(ctx context.Context, userID uuid.UUID, externalRef string, amount decimal.Decimal) (*models.PaymentResult, error) {
	if userID == uuid.Nil {
		s.metrics.PaymentRecorded(metrics.OutcomeRejected)
		return nil, models.NewValidationError("user_id", "user id is required")
	}
	externalRef = strings.TrimSpace(externalRef)
	if externalRef == "" {
		s.metrics.PaymentRecorded(metrics.OutcomeRejected)
		return nil, models.NewValidationError("external_ref", "external reference is required")
	}
	if !amount.IsPositive() {
		s.metrics.PaymentRecorded(metrics.OutcomeRejected)
		return nil, models.NewValidationError("amount", "amount must be greater than zero")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	log := s.logger.WithFields(logrus.Fields{
		"user_id":      userID,
		"external_ref": externalRef,
	})

	// Fast path for webhook re-delivery
	replay, err := s.replayPayment(ctx, userID, externalRef)
	if err == nil {
		log.Info("Payment already recorded, returning stored result")
		s.metrics.PaymentRecorded(metrics.OutcomeDuplicate)
		return replay, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		s.metrics.PaymentRecorded(outcomeFor(err))
		return nil, s.classify("record payment", err)
	}

	var result *models.PaymentResult
	var previous, current models.TierName
	err = s.store.WithinUnit(ctx, func(unit MembershipUnit) error {
		user, err := unit.LockUser(ctx, userID)
		if err != nil {
			return err
		}

		txn := &models.Transaction{
			ID:          uuid.New(),
			UserID:      userID,
			ExternalRef: externalRef,
			Amount:      amount,
			CreatedAt:   s.now(),
		}
		if err := unit.InsertTransaction(ctx, txn); err != nil {
			return err
		}

		// The rate is taken from the tier held before this payment
		tierName, hasTier := s.tierOf(user)
		rate := decimal.NewFromInt(1).Add(s.catalog.EarnRateBonus(tierName, hasTier))
		points := EarnedPoints(amount, rate)

		entry, err := NewPointLedger(unit, s.now).Append(ctx, LedgerEntry{
			UserID:        userID,
			Points:        points,
			Type:          models.PointTransactionEarn,
			TransactionID: &txn.ID,
		})
		if err != nil {
			return err
		}

		tier, err := s.reevaluateTier(ctx, unit, user)
		if err != nil {
			return err
		}

		previous = tierName
		result = &models.PaymentResult{
			Transaction:      txn,
			PointTransaction: entry,
			Tier:             tierNamePtr(tier),
		}
		if tier != nil {
			current = tier.Name
		}
		return nil
	})

	if errors.Is(err, models.ErrDuplicateTransaction) {
		// A concurrent delivery of the same reference committed first
		replay, replayErr := s.replayPayment(ctx, userID, externalRef)
		if replayErr == nil {
			log.Info("Payment recorded concurrently, returning stored result")
			s.metrics.PaymentRecorded(metrics.OutcomeDuplicate)
			return replay, nil
		}
		err = replayErr
	}
	if err != nil {
		s.metrics.PaymentRecorded(outcomeFor(err))
		log.WithError(err).Warn("Failed to record payment")
		return nil, s.classify("record payment", err)
	}

	s.metrics.PaymentRecorded(metrics.OutcomeRecorded)
	s.metrics.PointsEarned(result.PointTransaction.Points)
	s.noteTierChange(userID, previous, current)

	log.WithFields(logrus.Fields{
		"amount": amount.String(),
		"points": result.PointTransaction.Points.String(),
		"tier":   string(current),
	}).Info("Payment recorded")

	return result, nil
}

// UpdateUserTier recomputes the user's tier from the ledger balance and
// stores it. Demotion is applied when the balance falls below the held tier.
func (s *MembershipService) UpdateUserTier(ctx context.Context, userID uuid.UUID) (*models.MembershipTier, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var tier *models.MembershipTier
	var previous models.TierName
	err := s.store.WithinUnit(ctx, func(unit MembershipUnit) error {
		user, err := unit.LockUser(ctx, userID)
		if err != nil {
			return err
		}
		previous, _ = s.tierOf(user)
		tier, err = s.reevaluateTier(ctx, unit, user)
		return err
	})
	if err != nil {
		return nil, s.classify("update user tier", err)
	}

	var current models.TierName
	if tier != nil {
		current = tier.Name
	}
	s.noteTierChange(userID, previous, current)
	return tier, nil
}

// RedeemPoints appends a Redeem entry and re-evaluates the tier. The
// redemption is rejected when it would take the balance below zero.
func (s *MembershipService) RedeemPoints(ctx context.Context, userID uuid.UUID, points decimal.Decimal, note string) (*models.RedemptionResult, error) {
	if !points.IsPositive() {
		return nil, models.NewValidationError("points", "points must be greater than zero")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var result *models.RedemptionResult
	var previous, current models.TierName
	err := s.store.WithinUnit(ctx, func(unit MembershipUnit) error {
		user, err := unit.LockUser(ctx, userID)
		if err != nil {
			return err
		}

		ledger := NewPointLedger(unit, s.now)
		balance, err := ledger.Balance(ctx, userID)
		if err != nil {
			return err
		}
		if points.GreaterThan(balance) {
			return models.NewValidationError("points",
				fmt.Sprintf("insufficient points: balance is %s", balance.String()))
		}

		var notePtr *string
		if note = strings.TrimSpace(note); note != "" {
			notePtr = &note
		}
		entry, err := ledger.Append(ctx, LedgerEntry{
			UserID: userID,
			Points: points,
			Type:   models.PointTransactionRedeem,
			Note:   notePtr,
		})
		if err != nil {
			return err
		}

		previous, _ = s.tierOf(user)
		tier, err := s.reevaluateTier(ctx, unit, user)
		if err != nil {
			return err
		}
		if tier != nil {
			current = tier.Name
		}

		result = &models.RedemptionResult{
			PointTransaction: entry,
			Balance:          balance.Sub(points),
			Tier:             tierNamePtr(tier),
		}
		return nil
	})
	if err != nil {
		return nil, s.classify("redeem points", err)
	}

	s.metrics.PointsRedeemed(points)
	s.noteTierChange(userID, previous, current)

	s.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"points":  points.String(),
		"balance": result.Balance.String(),
	}).Info("Points redeemed")

	return result, nil
}

// GetLeaderboard ranks users by points earned in the current weekly or
// monthly window. Ties are broken by ascending user id. A size of zero
// selects the configured default. With earnersOnly, users who earned nothing
// in the window are left out.
func (s *MembershipService) GetLeaderboard(ctx context.Context, period models.LeaderboardPeriod, size int, earnersOnly bool) (*models.Leaderboard, error) {
	if size < 0 {
		return nil, models.NewValidationError("size", "size must not be negative")
	}
	if size == 0 {
		size = s.leaderboardSize
	}

	window, err := WindowFor(period, s.now())
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cacheKey := fmt.Sprintf("leaderboard:%s:%d:%d:%t", period, window.From.Unix(), size, earnersOnly)
	if s.cache != nil {
		board, ok, err := s.cache.Get(ctx, cacheKey)
		if err != nil {
			s.logger.WithError(err).Warn("Leaderboard cache read failed")
		} else if ok {
			s.metrics.LeaderboardServed(string(period), true)
			return board, nil
		}
	}

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, s.classify("get leaderboard", err)
	}
	earned, err := NewPointLedger(s.store, s.now).EarnedInWindowByUser(ctx, window)
	if err != nil {
		return nil, s.classify("get leaderboard", err)
	}

	entries := make([]models.LeaderboardEntry, 0, len(users))
	for _, u := range users {
		points, ok := earned[u.ID]
		if !ok {
			points = decimal.Zero
		}
		if earnersOnly && !points.IsPositive() {
			continue
		}
		entries = append(entries, models.LeaderboardEntry{
			UserID: u.ID,
			Name:   u.Name,
			Email:  u.Email,
			Points: points,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if c := entries[i].Points.Cmp(entries[j].Points); c != 0 {
			return c > 0
		}
		// Byte order of a UUID matches the order of its canonical string
		return bytes.Compare(entries[i].UserID[:], entries[j].UserID[:]) < 0
	})

	if len(entries) > size {
		entries = entries[:size]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}

	board := &models.Leaderboard{
		Period:  period,
		From:    window.From,
		To:      window.To,
		Entries: entries,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, board); err != nil {
			s.logger.WithError(err).Warn("Leaderboard cache write failed")
		}
	}
	s.metrics.LeaderboardServed(string(period), false)

	return board, nil
}

// GetUserPoints returns the user's balance, tier, progress towards the next
// tier and full history, split into earned and redeemed views
func (s *MembershipService) GetUserPoints(ctx context.Context, userID uuid.UUID) (*models.UserPoints, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, s.classify("get user points", err)
	}

	history, err := NewPointLedger(s.store, s.now).History(ctx, userID)
	if err != nil {
		return nil, s.classify("get user points", err)
	}

	view := &models.UserPoints{
		UserID:   user.ID,
		Name:     user.Name,
		Email:    user.Email,
		Balance:  decimal.Zero,
		History:  history,
		Earned:   []models.PointTransaction{},
		Redeemed: []models.PointTransaction{},
	}
	if view.History == nil {
		view.History = []models.PointTransaction{}
	}

	// Balance is derived from the same history that is returned
	for i := range history {
		view.Balance = view.Balance.Add(history[i].Signed())
		switch history[i].Type {
		case models.PointTransactionEarn:
			view.Earned = append(view.Earned, history[i])
		case models.PointTransactionRedeem:
			view.Redeemed = append(view.Redeemed, history[i])
		}
	}

	if name, ok := s.tierOf(user); ok {
		view.Tier = &name
	}
	if progress, ok := s.catalog.NextTier(view.Balance); ok {
		view.Progress = &progress
	}

	return view, nil
}

// GetMembership returns one tier with its member count and, when
// withMembers is set, the members themselves
func (s *MembershipService) GetMembership(ctx context.Context, name models.TierName, withMembers bool) (*models.MembershipDetails, error) {
	tier, ok := s.catalog.Tier(name)
	if !ok {
		return nil, &models.NotFoundError{Entity: "membership tier", ID: string(name)}
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	count, err := s.store.CountUsersByTier(ctx, tier.ID)
	if err != nil {
		return nil, s.classify("get membership", err)
	}

	details := &models.MembershipDetails{Tier: tier, MemberCount: count}
	if withMembers {
		members, err := s.store.ListUsersByTier(ctx, tier.ID)
		if err != nil {
			return nil, s.classify("get membership", err)
		}
		details.Members = members
	}
	return details, nil
}

// ReconcileTiers re-evaluates every user's tier. Per-user failures are
// logged and counted; the run continues with the remaining users.
func (s *MembershipService) ReconcileTiers(ctx context.Context) (int, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return 0, s.classify("reconcile tiers", err)
	}

	var changed, failed atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(s.reconcileConcurrency)

	for _, u := range users {
		user := u
		g.Go(func() error {
			if ctx.Err() != nil {
				failed.Add(1)
				return nil
			}
			before, _ := s.tierOf(&user)
			tier, err := s.UpdateUserTier(ctx, user.ID)
			if err != nil {
				failed.Add(1)
				s.logger.WithError(err).WithField("user_id", user.ID).Warn("Tier reconciliation failed for user")
				return nil
			}
			var after models.TierName
			if tier != nil {
				after = tier.Name
			}
			if before != after {
				changed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	s.metrics.ReconcileCompleted()
	s.logger.WithFields(logrus.Fields{
		"users":   len(users),
		"changed": changed.Load(),
		"failed":  failed.Load(),
	}).Info("Tier reconciliation finished")

	if n := failed.Load(); n > 0 {
		return int(changed.Load()), fmt.Errorf("tier reconciliation failed for %d of %d users", n, len(users))
	}
	return int(changed.Load()), nil
}

// reevaluateTier derives the tier from the ledger balance and writes it when
// it differs from the cached one. user.TierID is updated in place.
func (s *MembershipService) reevaluateTier(ctx context.Context, unit MembershipUnit, user *models.User) (*models.MembershipTier, error) {
	balance, err := NewPointLedger(unit, s.now).Balance(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	var tier *models.MembershipTier
	var tierID *uuid.UUID
	if name, ok := s.catalog.TierForPoints(balance); ok {
		t, _ := s.catalog.Tier(name)
		tier = &t
		id := t.ID
		tierID = &id
	}

	if !sameTier(user.TierID, tierID) {
		if err := unit.SetUserTier(ctx, user.ID, tierID); err != nil {
			return nil, err
		}
		user.TierID = tierID
	}
	return tier, nil
}

// replayPayment returns the stored result for an already recorded reference.
// It returns *models.NotFoundError when the reference is new.
func (s *MembershipService) replayPayment(ctx context.Context, userID uuid.UUID, externalRef string) (*models.PaymentResult, error) {
	txn, err := s.store.GetTransactionByExternalRef(ctx, externalRef)
	if err != nil {
		return nil, err
	}
	if txn.UserID != userID {
		return nil, &models.DuplicateTransactionError{ExternalRef: externalRef}
	}

	entry, err := s.store.GetPointTransactionByTransactionID(ctx, txn.ID)
	if err != nil {
		// Not wrapped with %w: a missing entry here is corruption, not a new reference
		return nil, fmt.Errorf("stored payment %s has no ledger entry: %v", txn.ID, err)
	}

	result := &models.PaymentResult{
		Transaction:      txn,
		PointTransaction: entry,
		Duplicate:        true,
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if name, ok := s.tierOf(user); ok {
		result.Tier = &name
	}
	return result, nil
}

func (s *MembershipService) tierOf(user *models.User) (models.TierName, bool) {
	if !user.HasTier() {
		return "", false
	}
	t, ok := s.catalog.TierByID(*user.TierID)
	if !ok {
		s.logger.WithFields(logrus.Fields{
			"user_id": user.ID,
			"tier_id": *user.TierID,
		}).Warn("User references an unknown tier, treating as no tier")
		return "", false
	}
	return t.Name, true
}

func (s *MembershipService) noteTierChange(userID uuid.UUID, from, to models.TierName) {
	if from == to {
		return
	}
	s.metrics.TierChanged(string(from), string(to))
	s.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"from":    string(from),
		"to":      string(to),
	}).Info("Membership tier changed")
}

func (s *MembershipService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// classify passes domain errors through and wraps everything else as a
// persistence failure
func (s *MembershipService) classify(op string, err error) error {
	switch {
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrNotFound),
		errors.Is(err, models.ErrDuplicateTransaction),
		errors.Is(err, models.ErrPersistence):
		return err
	}
	return models.NewPersistenceError(op, err)
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrNotFound),
		errors.Is(err, models.ErrDuplicateTransaction):
		return metrics.OutcomeRejected
	}
	return metrics.OutcomeFailed
}

func sameTier(a, b *uuid.UUID) bool {
	if a == nil || *a == uuid.Nil {
		return b == nil || *b == uuid.Nil
	}
	return b != nil && *a == *b
}

func tierNamePtr(t *models.MembershipTier) *models.TierName {
	if t == nil {
		return nil
	}
	name := t.Name
	return &name
}
