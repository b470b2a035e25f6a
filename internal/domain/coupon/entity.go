// internal/domain/coupon/entity.go
package coupon

import (
	"database/sql"
	"time"
)

type CouponStatus string

const (
	StatusActive   CouponStatus = "active"
	StatusInactive CouponStatus = "inactive"
)

// Coupon is a discount code. Value is a fractional discount in [0,1] and is
// snapshotted into a transaction at redemption time, so editing a coupon
// never changes committed transactions.
type Coupon struct {
	ID          string         `json:"id" db:"id"`
	Code        string         `json:"code" db:"code"`
	Name        string         `json:"name" db:"name"`
	Description sql.NullString `json:"description,omitempty" db:"description"`

	Value float64 `json:"value" db:"value"`

	Status       CouponStatus `json:"status" db:"status"`
	ExpiredDate  time.Time    `json:"expired_date" db:"expired_date"`
	NumberOfUses int          `json:"number_of_uses" db:"number_of_uses"` // 0 = unlimited
	UsedCount    int          `json:"used_count" db:"used_count"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Usable reports whether the coupon can still be redeemed at the given time.
func (c *Coupon) Usable(now time.Time) bool {
	if c.Status != StatusActive {
		return false
	}
	if now.After(c.ExpiredDate) {
		return false
	}
	if c.NumberOfUses > 0 && c.UsedCount >= c.NumberOfUses {
		return false
	}
	return true
}
