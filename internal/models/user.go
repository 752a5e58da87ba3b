package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a guest account. Users are created by the identity provider; this
// service only reads them and maintains the cached loyalty tier.
type User struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	Email     string     `json:"email" db:"email"`
	TierID    *uuid.UUID `json:"tier_id,omitempty" db:"tier_id"` // written only by tier re-evaluation
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// HasTier reports whether the user currently holds a loyalty tier
func (u *User) HasTier() bool {
	return u.TierID != nil && *u.TierID != uuid.Nil
}
