package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SubscriptionPlan is immutable reference data created by administrators.
// The payment flow only ever reads it.
type SubscriptionPlan struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	PlanName       string          `json:"plan_name" db:"plan_name"`
	Price          decimal.Decimal `json:"price" db:"price"`
	DurationMonths int             `json:"duration_months" db:"duration_months"`
	Features       string          `json:"features" db:"features"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}
