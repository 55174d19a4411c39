package domain

// PaymentNotification is the asynchronous notification the gateway delivers
// after the client completes (or abandons) a payment. Delivery is
// at-least-once, so processing has to be idempotent. The string fields
// below are exactly the ones the signature is computed over and must be
// used verbatim.
type PaymentNotification struct {
	OrderID           string `json:"order_id" binding:"required"`
	StatusCode        string `json:"status_code" binding:"required"`
	GrossAmount       string `json:"gross_amount" binding:"required"`
	SignatureKey      string `json:"signature_key" binding:"required"`
	TransactionStatus string `json:"transaction_status" binding:"required"`
	FraudStatus       string `json:"fraud_status"`
	PaymentType       string `json:"payment_type"`
	TransactionID     string `json:"transaction_id"`
}
