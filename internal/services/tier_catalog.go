package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/luxestay/hotel-booking-backend/internal/models"
	"github.com/shopspring/decimal"
)

// DefaultTierThresholds is the reference points threshold per tier
var DefaultTierThresholds = map[models.TierName]decimal.Decimal{
	models.TierPlatinum: decimal.NewFromInt(10000),
	models.TierGold:     decimal.NewFromInt(5000),
	models.TierSilver:   decimal.NewFromInt(2000),
}

// DefaultTierBonuses is the reference earn-rate bonus per tier
var DefaultTierBonuses = map[models.TierName]decimal.Decimal{
	models.TierPlatinum: decimal.RequireFromString("0.20"),
	models.TierGold:     decimal.RequireFromString("0.15"),
	models.TierSilver:   decimal.RequireFromString("0.10"),
}

// TierCatalog maps tier names to thresholds and earn-rate bonuses. It is
// immutable after construction and safe for concurrent use.
type TierCatalog struct {
	tiers []models.MembershipTier // ascending by threshold
}

// NewTierCatalogFromTables joins a thresholds table and a bonuses table into
// a catalog. Both tables must name exactly the same tiers.
func NewTierCatalogFromTables(thresholds, bonuses map[models.TierName]decimal.Decimal) (*TierCatalog, error) {
	for name := range bonuses {
		if _, ok := thresholds[name]; !ok {
			return nil, fmt.Errorf("tier %s has a bonus but no threshold", name)
		}
	}

	tiers := make([]models.MembershipTier, 0, len(thresholds))
	for name, threshold := range thresholds {
		bonus, ok := bonuses[name]
		if !ok {
			return nil, fmt.Errorf("tier %s has a threshold but no bonus", name)
		}
		tiers = append(tiers, models.MembershipTier{
			Name:            name,
			PointsThreshold: threshold,
			EarnRateBonus:   bonus,
		})
	}

	return NewTierCatalog(tiers)
}

// NewTierCatalog builds a catalog from tier rows and checks that the rows
// cover the whole enumeration once each, and that thresholds and bonuses
// both strictly increase in enumeration order.
func NewTierCatalog(tiers []models.MembershipTier) (*TierCatalog, error) {
	seen := make(map[models.TierName]bool, len(tiers))
	for _, t := range tiers {
		if !t.Name.IsValid() {
			return nil, fmt.Errorf("unknown tier name %q", t.Name)
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("tier %s defined more than once", t.Name)
		}
		seen[t.Name] = true
		if t.PointsThreshold.IsNegative() {
			return nil, fmt.Errorf("tier %s has a negative threshold", t.Name)
		}
		if t.EarnRateBonus.IsNegative() {
			return nil, fmt.Errorf("tier %s has a negative bonus", t.Name)
		}
	}
	for _, name := range models.TierNames {
		if !seen[name] {
			return nil, fmt.Errorf("tier %s is missing from the catalog", name)
		}
	}

	sorted := make([]models.MembershipTier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name.Rank() < sorted[j].Name.Rank()
	})

	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if !cur.PointsThreshold.GreaterThan(prev.PointsThreshold) {
			return nil, fmt.Errorf("threshold of %s (%s) must exceed %s (%s)",
				cur.Name, cur.PointsThreshold, prev.Name, prev.PointsThreshold)
		}
		if !cur.EarnRateBonus.GreaterThan(prev.EarnRateBonus) {
			return nil, fmt.Errorf("bonus of %s (%s) must exceed %s (%s)",
				cur.Name, cur.EarnRateBonus, prev.Name, prev.EarnRateBonus)
		}
	}

	return &TierCatalog{tiers: sorted}, nil
}

// DefaultTierCatalog returns the catalog built from the reference tables
func DefaultTierCatalog() *TierCatalog {
	catalog, err := NewTierCatalogFromTables(DefaultTierThresholds, DefaultTierBonuses)
	if err != nil {
		panic(fmt.Sprintf("reference tier tables are inconsistent: %v", err))
	}
	return catalog
}

// TierSource reads the persisted tier rows
type TierSource interface {
	ListTiers(ctx context.Context) ([]models.MembershipTier, error)
}

// LoadTierCatalog reads the persisted tiers and validates them. This is the
// startup consistency check; callers abort initialisation on error.
func LoadTierCatalog(ctx context.Context, source TierSource) (*TierCatalog, error) {
	tiers, err := source.ListTiers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load membership tiers: %w", err)
	}
	catalog, err := NewTierCatalog(tiers)
	if err != nil {
		return nil, fmt.Errorf("membership tiers are inconsistent: %w", err)
	}
	return catalog, nil
}

// Tiers returns the tiers in ascending threshold order
func (c *TierCatalog) Tiers() []models.MembershipTier {
	out := make([]models.MembershipTier, len(c.tiers))
	copy(out, c.tiers)
	return out
}

// Tier returns the tier row for a name
func (c *TierCatalog) Tier(name models.TierName) (models.MembershipTier, bool) {
	for _, t := range c.tiers {
		if t.Name == name {
			return t, true
		}
	}
	return models.MembershipTier{}, false
}

// TierByID returns the tier row with the given persisted ID
func (c *TierCatalog) TierByID(id uuid.UUID) (models.MembershipTier, bool) {
	for _, t := range c.tiers {
		if t.ID == id {
			return t, true
		}
	}
	return models.MembershipTier{}, false
}

// TierForPoints returns the highest tier whose threshold is <= points.
// ok is false when points are below the lowest threshold.
func (c *TierCatalog) TierForPoints(points decimal.Decimal) (name models.TierName, ok bool) {
	for i := len(c.tiers) - 1; i >= 0; i-- {
		if points.GreaterThanOrEqual(c.tiers[i].PointsThreshold) {
			return c.tiers[i].Name, true
		}
	}
	return "", false
}

// EarnRateBonus returns the bonus fraction for a tier, or zero when the user
// holds no tier
func (c *TierCatalog) EarnRateBonus(name models.TierName, ok bool) decimal.Decimal {
	if !ok {
		return decimal.Zero
	}
	if t, found := c.Tier(name); found {
		return t.EarnRateBonus
	}
	return decimal.Zero
}

// NextTier returns the next tier above points and how many points remain.
// ok is false once the top tier is reached.
func (c *TierCatalog) NextTier(points decimal.Decimal) (progress models.TierProgress, ok bool) {
	for _, t := range c.tiers {
		if points.LessThan(t.PointsThreshold) {
			return models.TierProgress{
				NextTier:     t.Name,
				PointsNeeded: t.PointsThreshold.Sub(points),
			}, true
		}
	}
	return models.TierProgress{}, false
}
