package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus is the internal state of a payment attempt
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusSuccess PaymentStatus = "success"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// IsTerminal reports whether no further transition is permitted
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailed
}

// Payment is one payment attempt for a subscription plan. The order ID is
// unique and immutable once assigned; the amount is snapshotted from the
// plan price at creation and never follows later plan changes.
type Payment struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	UserID             uuid.UUID       `json:"user_id" db:"user_id"`
	SubscriptionPlanID *uuid.UUID      `json:"subscription_plan_id,omitempty" db:"subscription_plan_id"`
	OrderID            string          `json:"order_id" db:"order_id"`
	Amount             decimal.Decimal `json:"amount" db:"amount"`
	PaymentMethod      *string         `json:"payment_method,omitempty" db:"payment_method"`
	PaymentStatus      PaymentStatus   `json:"payment_status" db:"payment_status"`
	GatewayID          *uuid.UUID      `json:"gateway_id,omitempty" db:"gateway_id"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at" db:"updated_at"`
}

// GatewayTransactionRecord stores the gateway side of a payment attempt,
// including the raw response payload for audit. Created once, never mutated.
type GatewayTransactionRecord struct {
	ID              uuid.UUID `json:"id" db:"id"`
	GatewayName     string    `json:"gateway_name" db:"gateway_name"`
	TransactionID   string    `json:"transaction_id" db:"transaction_id"`
	SnapToken       string    `json:"snap_token" db:"snap_token"`
	GatewayResponse string    `json:"gateway_response" db:"gateway_response"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// CreatePaymentRequest is the request to start a payment for a plan
type CreatePaymentRequest struct {
	UserID             string `json:"user_id" binding:"required,uuid4"`
	SubscriptionPlanID string `json:"subscription_plan_id" binding:"required,uuid4"`
}

// PaymentResponse is returned to the client after payment creation. The
// snap token is what the client hands to the gateway widget to pay.
type PaymentResponse struct {
	OrderID            string          `json:"order_id"`
	SnapToken          string          `json:"snap_token"`
	RedirectURL        string          `json:"redirect_url"`
	Amount             decimal.Decimal `json:"amount"`
	SubscriptionPlanID uuid.UUID       `json:"subscription_plan_id"`
}

// UserPayment is the payment-history projection joined with the plan name
type UserPayment struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	OrderID            string          `json:"order_id" db:"order_id"`
	Amount             decimal.Decimal `json:"amount" db:"amount"`
	PaymentStatus      PaymentStatus   `json:"payment_status" db:"payment_status"`
	PaymentMethod      *string         `json:"payment_method,omitempty" db:"payment_method"`
	SubscriptionPlanID *uuid.UUID      `json:"subscription_plan_id,omitempty" db:"subscription_plan_id"`
	PlanName           *string         `json:"plan_name,omitempty" db:"plan_name"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
}
