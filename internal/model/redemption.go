package model

import (
	"time"
)

// RedemptionCode represents a finite-supply promotional code
type RedemptionCode struct {
	ID             string        `bson:"_id" json:"id" gorm:"primaryKey;type:varchar(36)"`
	Code           string        `bson:"code" json:"code" gorm:"type:varchar(64);not null;uniqueIndex"`
	Capacity       int           `bson:"capacity" json:"capacity" gorm:"not null"`
	ConsumedCount  int           `bson:"consumed_count" json:"consumed_count" gorm:"not null;default:0"`
	Season         *int          `bson:"season,omitempty" json:"season,omitempty"`
	CooldownPeriod time.Duration `bson:"cooldown_period,omitempty" json:"cooldown_period,omitempty"` // reserved for per-identity re-attempt throttling
	CreatedAt      time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `bson:"updated_at" json:"updated_at"`
}

// TableName pins the gorm table name.
func (RedemptionCode) TableName() string { return "redemption_codes" }

// Remaining returns the number of unconsumed slots.
func (c *RedemptionCode) Remaining() int {
	if c.ConsumedCount >= c.Capacity {
		return 0
	}
	return c.Capacity - c.ConsumedCount
}

// Redemption records one successful consumption of a code by a wallet
type Redemption struct {
	ID            string    `bson:"_id" json:"id" gorm:"primaryKey;type:varchar(36)"`
	CodeID        string    `bson:"code_id" json:"code_id" gorm:"type:varchar(36);not null;uniqueIndex:code_wallet_unique,priority:1"` // Used for unique index
	Code          string    `bson:"code" json:"code" gorm:"type:varchar(64);not null;index"`                                          // Denormalized for querying
	WalletAddress string    `bson:"wallet_address" json:"wallet_address" gorm:"type:varchar(64);not null;uniqueIndex:code_wallet_unique,priority:2"`
	Season        *int      `bson:"season,omitempty" json:"season,omitempty"`
	RedeemedAt    time.Time `bson:"redeemed_at" json:"redeemed_at"`
}

// TableName pins the gorm table name.
func (Redemption) TableName() string { return "code_redemptions" }

// CreateCodeRequest represents the administrative request to create a code
type CreateCodeRequest struct {
	Code           string `json:"code" yaml:"code" binding:"required"`
	Capacity       int    `json:"capacity" yaml:"capacity" binding:"required,gt=0"`
	Season         *int   `json:"season,omitempty" yaml:"season,omitempty"`
	CooldownPeriod string `json:"cooldown_period,omitempty" yaml:"cooldown_period,omitempty"`
}

// CodeDetailsResponse represents the response for code details
type CodeDetailsResponse struct {
	Code          string   `json:"code"`
	Capacity      int      `json:"capacity"`
	ConsumedCount int      `json:"consumed_count"`
	Remaining     int      `json:"remaining"`
	Season        *int     `json:"season,omitempty"`
	RedeemedBy    []string `json:"redeemed_by"`
}

// RemainingResponse is the public counter payload
type RemainingResponse struct {
	Code      string `json:"code"`
	Capacity  int    `json:"capacity"`
	Remaining int    `json:"remaining"`
}
