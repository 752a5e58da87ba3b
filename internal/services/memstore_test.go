package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/luxestay/hotel-booking-backend/internal/models"
	"github.com/shopspring/decimal"
)

// memState is the data behind memStore. Units work on a clone and swap it in
// on commit.
type memState struct {
	users  map[uuid.UUID]models.User
	txns   []models.Transaction
	points []models.PointTransaction
}

func (s *memState) clone() *memState {
	c := &memState{
		users:  make(map[uuid.UUID]models.User, len(s.users)),
		txns:   append([]models.Transaction(nil), s.txns...),
		points: append([]models.PointTransaction(nil), s.points...),
	}
	for id, u := range s.users {
		c.users[id] = u
	}
	return c
}

func (s *memState) balance(userID uuid.UUID) decimal.Decimal {
	total := decimal.Zero
	for i := range s.points {
		if s.points[i].UserID == userID {
			total = total.Add(s.points[i].Signed())
		}
	}
	return total
}

func (s *memState) sumBetween(userID uuid.UUID, typ models.PointTransactionType, from, to time.Time) decimal.Decimal {
	w := Window{From: from, To: to}
	total := decimal.Zero
	for _, p := range s.points {
		if p.UserID == userID && p.Type == typ && w.Contains(p.CreatedAt) {
			total = total.Add(p.Points)
		}
	}
	return total
}

func (s *memState) earnedByUser(from, to time.Time) map[uuid.UUID]decimal.Decimal {
	w := Window{From: from, To: to}
	out := make(map[uuid.UUID]decimal.Decimal)
	for _, p := range s.points {
		if p.Type == models.PointTransactionEarn && w.Contains(p.CreatedAt) {
			out[p.UserID] = out[p.UserID].Add(p.Points)
		}
	}
	return out
}

func (s *memState) listPoints(userID uuid.UUID) []models.PointTransaction {
	var out []models.PointTransaction
	for i := len(s.points) - 1; i >= 0; i-- {
		if s.points[i].UserID == userID {
			out = append(out, s.points[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *memState) txnByRef(ref string) (*models.Transaction, error) {
	for i := range s.txns {
		if s.txns[i].ExternalRef == ref {
			t := s.txns[i]
			return &t, nil
		}
	}
	return nil, &models.NotFoundError{Entity: "transaction", ID: ref}
}

func (s *memState) pointByTxn(id uuid.UUID) (*models.PointTransaction, error) {
	for i := range s.points {
		if s.points[i].TransactionID != nil && *s.points[i].TransactionID == id {
			p := s.points[i]
			return &p, nil
		}
	}
	return nil, &models.NotFoundError{Entity: "point transaction", ID: id.String()}
}

func (s *memState) usersSorted() []models.User {
	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// memStore is an in-memory MembershipStore. Units are fully serialised.
type memStore struct {
	mu     sync.RWMutex
	unitMu sync.Mutex
	state  *memState
	tiers  []models.MembershipTier

	// fail maps an operation name to the error it returns
	fail map[string]error
	// listUsersCalls counts ListUsers reads
	listUsersCalls int
}

func newMemStore(tiers []models.MembershipTier) *memStore {
	return &memStore{
		state: &memState{users: make(map[uuid.UUID]models.User)},
		tiers: tiers,
		fail:  make(map[string]error),
	}
}

func (m *memStore) addUser(name string, created time.Time) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := models.User{
		ID:        uuid.New(),
		Name:      name,
		Email:     name + "@example.com",
		CreatedAt: created,
		UpdatedAt: created,
	}
	m.state.users[u.ID] = u
	return u
}

func (m *memStore) setTier(userID uuid.UUID, tierID *uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.state.users[userID]
	u.TierID = tierID
	m.state.users[userID] = u
}

func (m *memStore) seedPoints(userID uuid.UUID, points int64, typ models.PointTransactionType, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.points = append(m.state.points, models.PointTransaction{
		ID:        uuid.New(),
		UserID:    userID,
		Points:    decimal.NewFromInt(points),
		Type:      typ,
		CreatedAt: at,
	})
}

func (m *memStore) user(id uuid.UUID) models.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.users[id]
}

func (m *memStore) pointCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.state.points)
}

func (m *memStore) txnCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.state.txns)
}

func (m *memStore) ListTiers(ctx context.Context) ([]models.MembershipTier, error) {
	if err := m.fail["ListTiers"]; err != nil {
		return nil, err
	}
	return append([]models.MembershipTier(nil), m.tiers...), nil
}

func (m *memStore) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.fail["GetUser"]; err != nil {
		return nil, err
	}
	u, ok := m.state.users[userID]
	if !ok {
		return nil, &models.NotFoundError{Entity: "user", ID: userID.String()}
	}
	return &u, nil
}

func (m *memStore) ListUsers(ctx context.Context) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listUsersCalls++
	if err := m.fail["ListUsers"]; err != nil {
		return nil, err
	}
	return m.state.usersSorted(), nil
}

func (m *memStore) ListUsersByTier(ctx context.Context, tierID uuid.UUID) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.User
	for _, u := range m.state.usersSorted() {
		if u.TierID != nil && *u.TierID == tierID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memStore) CountUsersByTier(ctx context.Context, tierID uuid.UUID) (int, error) {
	users, err := m.ListUsersByTier(ctx, tierID)
	return len(users), err
}

func (m *memStore) GetTransactionByExternalRef(ctx context.Context, ref string) (*models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.fail["GetTransactionByExternalRef"]; err != nil {
		return nil, err
	}
	return m.state.txnByRef(ref)
}

func (m *memStore) GetPointTransactionByTransactionID(ctx context.Context, id uuid.UUID) (*models.PointTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.pointByTxn(id)
}

func (m *memStore) InsertPointTransaction(ctx context.Context, entry *models.PointTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail["InsertPointTransaction"]; err != nil {
		return err
	}
	m.state.points = append(m.state.points, *entry)
	return nil
}

func (m *memStore) PointsBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.balance(userID), nil
}

func (m *memStore) SumPointsBetween(ctx context.Context, userID uuid.UUID, typ models.PointTransactionType, from, to time.Time) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.sumBetween(userID, typ, from, to), nil
}

func (m *memStore) SumEarnedByUser(ctx context.Context, from, to time.Time) (map[uuid.UUID]decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.fail["SumEarnedByUser"]; err != nil {
		return nil, err
	}
	return m.state.earnedByUser(from, to), nil
}

func (m *memStore) ListPointTransactions(ctx context.Context, userID uuid.UUID) ([]models.PointTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listPoints(userID), nil
}

func (m *memStore) WithinUnit(ctx context.Context, fn func(unit MembershipUnit) error) error {
	m.unitMu.Lock()
	defer m.unitMu.Unlock()

	m.mu.RLock()
	unit := &memUnit{store: m, state: m.state.clone()}
	m.mu.RUnlock()

	if err := fn(unit); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.state = unit.state
	m.mu.Unlock()
	return nil
}

// memUnit works on a private clone of the store state
type memUnit struct {
	store *memStore
	state *memState
}

func (u *memUnit) LockUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	if err := u.store.fail["LockUser"]; err != nil {
		return nil, err
	}
	user, ok := u.state.users[userID]
	if !ok {
		return nil, &models.NotFoundError{Entity: "user", ID: userID.String()}
	}
	return &user, nil
}

func (u *memUnit) InsertTransaction(ctx context.Context, txn *models.Transaction) error {
	if err := u.store.fail["InsertTransaction"]; err != nil {
		return err
	}
	if _, err := u.state.txnByRef(txn.ExternalRef); err == nil {
		return &models.DuplicateTransactionError{ExternalRef: txn.ExternalRef}
	}
	u.state.txns = append(u.state.txns, *txn)
	return nil
}

func (u *memUnit) SetUserTier(ctx context.Context, userID uuid.UUID, tierID *uuid.UUID) error {
	if err := u.store.fail["SetUserTier"]; err != nil {
		return err
	}
	user := u.state.users[userID]
	user.TierID = tierID
	u.state.users[userID] = user
	return nil
}

func (u *memUnit) InsertPointTransaction(ctx context.Context, entry *models.PointTransaction) error {
	if err := u.store.fail["InsertPointTransaction"]; err != nil {
		return err
	}
	u.state.points = append(u.state.points, *entry)
	return nil
}

func (u *memUnit) PointsBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	if err := u.store.fail["PointsBalance"]; err != nil {
		return decimal.Zero, err
	}
	return u.state.balance(userID), nil
}

func (u *memUnit) SumPointsBetween(ctx context.Context, userID uuid.UUID, typ models.PointTransactionType, from, to time.Time) (decimal.Decimal, error) {
	return u.state.sumBetween(userID, typ, from, to), nil
}

func (u *memUnit) SumEarnedByUser(ctx context.Context, from, to time.Time) (map[uuid.UUID]decimal.Decimal, error) {
	return u.state.earnedByUser(from, to), nil
}

func (u *memUnit) ListPointTransactions(ctx context.Context, userID uuid.UUID) ([]models.PointTransaction, error) {
	return u.state.listPoints(userID), nil
}

// memCache is an in-memory LeaderboardCache
type memCache struct {
	mu     sync.Mutex
	boards map[string]*models.Leaderboard
	gets   int
}

func newMemCache() *memCache {
	return &memCache{boards: make(map[string]*models.Leaderboard)}
}

func (c *memCache) Get(ctx context.Context, key string) (*models.Leaderboard, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	b, ok := c.boards[key]
	return b, ok, nil
}

func (c *memCache) Set(ctx context.Context, key string, board *models.Leaderboard) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.boards[key] = board
	return nil
}

// testTiers returns the reference tiers with fresh IDs
func testTiers() []models.MembershipTier {
	tiers := make([]models.MembershipTier, 0, len(models.TierNames))
	for _, name := range models.TierNames {
		tiers = append(tiers, models.MembershipTier{
			ID:              uuid.New(),
			Name:            name,
			PointsThreshold: DefaultTierThresholds[name],
			EarnRateBonus:   DefaultTierBonuses[name],
		})
	}
	return tiers
}
