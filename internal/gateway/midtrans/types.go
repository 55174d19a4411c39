package midtrans

// TransactionDetails carries the order correlation and amount. Midtrans
// wants gross_amount as a number in IDR (no minor units).
type TransactionDetails struct {
	OrderID     string `json:"order_id"`
	GrossAmount int64  `json:"gross_amount"`
}

// ItemDetail describes one line item shown in the Snap payment page
type ItemDetail struct {
	ID       string `json:"id"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
	Name     string `json:"name"`
}

// CustomerDetails identifies the paying customer to the gateway
type CustomerDetails struct {
	FirstName string `json:"first_name,omitempty"`
	Email     string `json:"email,omitempty"`
}

// Callbacks are the URLs Snap redirects the client to after payment
type Callbacks struct {
	Finish  string `json:"finish,omitempty"`
	Error   string `json:"error,omitempty"`
	Pending string `json:"pending,omitempty"`
}

// SnapRequest is the Snap create-transaction request body
type SnapRequest struct {
	TransactionDetails TransactionDetails `json:"transaction_details"`
	ItemDetails        []ItemDetail       `json:"item_details,omitempty"`
	CustomerDetails    *CustomerDetails   `json:"customer_details,omitempty"`
	Callbacks          *Callbacks         `json:"callbacks,omitempty"`
}

// SnapResponse is the Snap create-transaction response. The token is the
// session the client uses to complete payment; error_messages is set on
// a non-2xx response.
type SnapResponse struct {
	Token         string   `json:"token"`
	RedirectURL   string   `json:"redirect_url"`
	TransactionID string   `json:"transaction_id,omitempty"`
	ErrorMessages []string `json:"error_messages,omitempty"`
}

// StatusResponse is the Core API transaction status payload
type StatusResponse struct {
	TransactionID     string `json:"transaction_id"`
	OrderID           string `json:"order_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	StatusCode        string `json:"status_code"`
	StatusMessage     string `json:"status_message"`
	GrossAmount       string `json:"gross_amount"`
	PaymentType       string `json:"payment_type"`
	TransactionTime   string `json:"transaction_time"`
	SignatureKey      string `json:"signature_key"`
}
