package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SubscriptionStatus is the lifecycle state of a user subscription
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// UserSubscription is created only by successful payment activation.
// At most one row per user is active at any instant: activating a new
// subscription supersedes the previous active one by marking it expired.
// Neither cancellation nor the expiry sweep transitions out of a terminal
// state.
type UserSubscription struct {
	ID                 uuid.UUID          `json:"id" db:"id"`
	UserID             uuid.UUID          `json:"user_id" db:"user_id"`
	SubscriptionPlanID uuid.UUID          `json:"subscription_plan_id" db:"subscription_plan_id"`
	PaymentID          uuid.UUID          `json:"payment_id" db:"payment_id"`
	Status             SubscriptionStatus `json:"status" db:"status"`
	StartDate          time.Time          `json:"start_date" db:"start_date"`
	EndDate            time.Time          `json:"end_date" db:"end_date"`
	CreatedAt          time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" db:"updated_at"`
}

// SubscriptionStatusResult is the status projection for user-facing display.
// IsActive false means all plan fields are unset.
type SubscriptionStatusResult struct {
	IsActive           bool               `json:"is_active"`
	SubscriptionPlanID *uuid.UUID         `json:"subscription_plan_id,omitempty" db:"subscription_plan_id"`
	PlanName           *string            `json:"plan_name,omitempty" db:"plan_name"`
	Status             SubscriptionStatus `json:"status,omitempty" db:"status"`
	StartDate          *time.Time         `json:"start_date,omitempty" db:"start_date"`
	EndDate            *time.Time         `json:"end_date,omitempty" db:"end_date"`
}

// SubscriptionHistoryEntry is one row of the history projection joined
// with plan name, price and duration
type SubscriptionHistoryEntry struct {
	ID             uuid.UUID          `json:"id" db:"id"`
	Status         SubscriptionStatus `json:"status" db:"status"`
	StartDate      time.Time          `json:"start_date" db:"start_date"`
	EndDate        time.Time          `json:"end_date" db:"end_date"`
	CreatedAt      time.Time          `json:"created_at" db:"created_at"`
	PlanName       *string            `json:"plan_name,omitempty" db:"plan_name"`
	Price          *decimal.Decimal   `json:"price,omitempty" db:"price"`
	DurationMonths *int               `json:"duration_months,omitempty" db:"duration_months"`
}
