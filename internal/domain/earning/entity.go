// internal/domain/earning/entity.go
package earning

import "time"

// Earning is one performer payout share computed from a successful
// transaction. Payout scheduling and settlement happen elsewhere.
type Earning struct {
	ID            string    `json:"id" db:"id"`
	TransactionID string    `json:"transaction_id" db:"transaction_id"`
	PerformerID   string    `json:"performer_id" db:"performer_id"`
	UserID        string    `json:"user_id" db:"user_id"`
	GrossPrice    float64   `json:"gross_price" db:"gross_price"`
	Commission    float64   `json:"commission" db:"commission"`
	NetPrice      float64   `json:"net_price" db:"net_price"`
	Type          string    `json:"type" db:"type"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
