package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TierName is the closed set of loyalty levels, ordered by ascending threshold
type TierName string

const (
	TierSilver   TierName = "Silver"
	TierGold     TierName = "Gold"
	TierPlatinum TierName = "Platinum"
)

// TierNames lists every tier in ascending order
var TierNames = []TierName{TierSilver, TierGold, TierPlatinum}

// Rank returns the position of the tier in TierNames, or -1 for unknown names
func (t TierName) Rank() int {
	for i, name := range TierNames {
		if name == t {
			return i
		}
	}
	return -1
}

// IsValid reports whether t is one of the known tiers
func (t TierName) IsValid() bool {
	return t.Rank() >= 0
}

// ParseTierName accepts a tier name case-insensitively
func ParseTierName(s string) (TierName, error) {
	for _, name := range TierNames {
		if strings.EqualFold(string(name), s) {
			return name, nil
		}
	}
	return "", NewValidationError("tier", "unknown tier: "+s)
}

// MembershipTier is a persisted tier row (static reference data)
type MembershipTier struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	Name            TierName        `json:"name" db:"name"`
	PointsThreshold decimal.Decimal `json:"points_threshold" db:"points_threshold"`
	EarnRateBonus   decimal.Decimal `json:"earn_rate_bonus" db:"earn_rate_bonus"`
}

// Transaction is a completed monetary payment. Immutable once written.
type Transaction struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	UserID      uuid.UUID       `json:"user_id" db:"user_id"`
	ExternalRef string          `json:"external_ref" db:"external_ref"` // payment provider reference, globally unique
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// PointTransactionType is the direction of a ledger entry
type PointTransactionType string

const (
	PointTransactionEarn   PointTransactionType = "Earn"
	PointTransactionRedeem PointTransactionType = "Redeem"
)

// IsValid reports whether the type is a recognised ledger entry kind
func (t PointTransactionType) IsValid() bool {
	return t == PointTransactionEarn || t == PointTransactionRedeem
}

// PointTransaction is a single append-only ledger entry. Points are always
// positive; the sign is carried by Type.
type PointTransaction struct {
	ID            uuid.UUID            `json:"id" db:"id"`
	UserID        uuid.UUID            `json:"user_id" db:"user_id"`
	Points        decimal.Decimal      `json:"points" db:"points"`
	Type          PointTransactionType `json:"type" db:"type"`
	TransactionID *uuid.UUID           `json:"transaction_id,omitempty" db:"transaction_id"`
	Note          *string              `json:"note,omitempty" db:"note"`
	CreatedAt     time.Time            `json:"created_at" db:"created_at"`
}

// Signed returns the entry's contribution to a balance
func (p *PointTransaction) Signed() decimal.Decimal {
	if p.Type == PointTransactionRedeem {
		return p.Points.Neg()
	}
	return p.Points
}

// PaymentResult is returned by RecordPayment. Duplicate is set when the
// external reference had already been recorded and the stored records are
// returned unchanged. Tier is always the user's tier at the time of the
// call, so on a duplicate it can differ from the first response once later
// payments or redemptions have moved the user.
type PaymentResult struct {
	Transaction      *Transaction      `json:"transaction"`
	PointTransaction *PointTransaction `json:"point_transaction"`
	Tier             *TierName         `json:"tier,omitempty"`
	Duplicate        bool              `json:"duplicate"`
}

// RedemptionResult is returned by RedeemPoints
type RedemptionResult struct {
	PointTransaction *PointTransaction `json:"point_transaction"`
	Balance          decimal.Decimal   `json:"balance"`
	Tier             *TierName         `json:"tier,omitempty"`
}

// LeaderboardPeriod selects the leaderboard window
type LeaderboardPeriod string

const (
	LeaderboardWeekly  LeaderboardPeriod = "weekly"
	LeaderboardMonthly LeaderboardPeriod = "monthly"
)

// LeaderboardEntry is one ranked row
type LeaderboardEntry struct {
	Rank   int             `json:"rank"`
	UserID uuid.UUID       `json:"id"`
	Name   string          `json:"name"`
	Email  string          `json:"email"`
	Points decimal.Decimal `json:"points"`
}

// Leaderboard is a ranked list for one window
type Leaderboard struct {
	Period  LeaderboardPeriod  `json:"period"`
	From    time.Time          `json:"from"`
	To      time.Time          `json:"to"`
	Entries []LeaderboardEntry `json:"leaders"`
}

// TierProgress describes the distance to the next tier
type TierProgress struct {
	NextTier     TierName        `json:"next_tier"`
	PointsNeeded decimal.Decimal `json:"points_needed"`
}

// UserPoints is the read-only loyalty projection for one user
type UserPoints struct {
	UserID   uuid.UUID          `json:"user_id"`
	Name     string             `json:"name"`
	Email    string             `json:"email"`
	Tier     *TierName          `json:"tier,omitempty"`
	Balance  decimal.Decimal    `json:"current_points"`
	Progress *TierProgress      `json:"progress,omitempty"`
	History  []PointTransaction `json:"point_transactions"`
	Earned   []PointTransaction `json:"earned_point_transactions"`
	Redeemed []PointTransaction `json:"redeemed_point_transactions"`
}

// MembershipDetails describes one tier and its members
type MembershipDetails struct {
	Tier        MembershipTier `json:"tier"`
	MemberCount int            `json:"member_count"`
	Members     []User         `json:"members,omitempty"`
}
