package domain

import "time"

// PaymentRequest is the result of asking the backend for a new payment.
type PaymentRequest struct {
	PaymentID  string `json:"paymentId"`
	PaymentURL string `json:"paymentUrl"`
	Message    string `json:"message,omitempty"`
}

// PaymentStatus is the backend's view of a single payment.
type PaymentStatus struct {
	PaymentID       string  `json:"paymentId"`
	Status          string  `json:"status"`
	Amount          *string `json:"amount"`
	AmountUSD       *string `json:"amountUsd"`
	TokenSymbol     *string `json:"tokenSymbol"`
	TransactionHash *string `json:"transactionHash"`
	CreatedAt       string  `json:"createdAt"`
	UpdatedAt       string  `json:"updatedAt"`
}

// UserBalance is the USD balance of the authenticated user.
type UserBalance struct {
	UserID   string  `json:"userId"`
	UserName string  `json:"userName"`
	Balance  float64 `json:"balance"`
	Message  string  `json:"message,omitempty"`
}

// UserInfo identifies the owner of a bearer token.
type UserInfo struct {
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	UserEmail string `json:"userEmail"`
}

// HistoryQuery filters the payment history listing. Zero values are omitted
// from the upstream query.
type HistoryQuery struct {
	Page   int
	Limit  int
	Status string
}

// PaymentHistory is one page of the user's payments.
type PaymentHistory struct {
	Data       []PaymentStatus `json:"data"`
	Count      int             `json:"count"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"totalPages"`
}

// PlatformPayment is a payment created directly on the operator platform.
type PlatformPayment struct {
	PaymentID  string `json:"paymentId"`
	PaymentURL string `json:"paymentUrl"`
}

// PlatformBalance is the operator platform's balance record for a user. Extra
// upstream fields are preserved in Raw.
type PlatformBalance struct {
	UserID  string         `json:"userId"`
	Balance float64        `json:"balance"`
	Raw     map[string]any `json:"-"`
}

// HealthStatus reports upstream reachability together with the failure
// reason when unhealthy.
type HealthStatus struct {
	Healthy   bool      `json:"healthy"`
	Reason    string    `json:"reason,omitempty"`
	CheckedAt time.Time `json:"checkedAt"`
}
