// internal/domain/transaction/dto.go
package transaction

import "time"

// PurchaseTokensInput is the request body for a one-off token purchase.
type PurchaseTokensInput struct {
	TargetID   string         `json:"target_id" binding:"required"`
	Amount     float64        `json:"amount" binding:"required"`
	Tokens     int            `json:"tokens" binding:"required"`
	CouponCode string         `json:"coupon_code"`
	CardID     string         `json:"card_id"`
	Gateway    PaymentGateway `json:"gateway"`
}

// SubscribeInput is the request body for subscribing to a performer tier.
type SubscribeInput struct {
	PerformerID string          `json:"performer_id" binding:"required"`
	Type        TransactionType `json:"type" binding:"required"`
	CardID      string          `json:"card_id"`
}

// PurchaseResult is what the orchestrator returns to the caller. For the
// recurring-billing gateway it carries redirect params; for the card
// processor it carries the client secret the frontend confirms with.
type PurchaseResult struct {
	Transaction    *Transaction      `json:"transaction"`
	RedirectParams map[string]string `json:"redirect_params,omitempty"`
	RedirectURL    string            `json:"redirect_url,omitempty"`
	ClientSecret   string            `json:"client_secret,omitempty"`
}

// SearchFilters selects transactions for the paginated history endpoints.
type SearchFilters struct {
	SourceID    string `form:"source_id"`
	PerformerID string `form:"performer_id"`
	Type        string `form:"type"`
	Status      string `form:"status"`
	Gateway     string `form:"payment_gateway"`
	Page        int    `form:"page"`
	Limit       int    `form:"limit"`
}

// SearchRow is a transaction joined with display data for listings.
type SearchRow struct {
	Transaction
	SourceName    string `json:"source_name,omitempty"`
	PerformerName string `json:"performer_name,omitempty"`
}

// SearchResult is a page of transactions.
type SearchResult struct {
	Data  []SearchRow `json:"data"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

// Query is the raw-condition escape hatch used by other modules.
type Query struct {
	SourceID   string
	TargetID   string
	Type       TransactionType
	Status     TransactionStatus
	CouponCode string
	Since      time.Time
	Limit      int
}
