// internal/domain/user/entity.go
package user

import "time"

// User is the thin collaborator row this service reads and credits. Identity
// and profile management live in another service.
type User struct {
	ID                string    `json:"id" db:"id"`
	Username          string    `json:"username" db:"username"`
	Name              string    `json:"name" db:"name"`
	Email             string    `json:"email" db:"email"`
	Balance           float64   `json:"balance" db:"balance"`
	SubscriptionCount int       `json:"subscription_count" db:"subscription_count"`
	IsAdmin           bool      `json:"is_admin" db:"is_admin"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// Performer is the thin collaborator row carrying tier pricing and stats.
type Performer struct {
	ID                   string    `json:"id" db:"id"`
	Username             string    `json:"username" db:"username"`
	Name                 string    `json:"name" db:"name"`
	Email                string    `json:"email" db:"email"`
	MonthlyPrice         float64   `json:"monthly_price" db:"monthly_price"`
	YearlyPrice          float64   `json:"yearly_price" db:"yearly_price"`
	SubscriberCount      int       `json:"subscriber_count" db:"subscriber_count"`
	CommissionPercentage float64   `json:"commission_percentage" db:"commission_percentage"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time `json:"updated_at" db:"updated_at"`
}
