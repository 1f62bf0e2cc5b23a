package models

import (
	"time"

	"github.com/google/uuid"
)

// DiscountType описывает тип скидки купона.
type DiscountType string

const (
	DiscountTypePercent DiscountType = "percent"
	DiscountTypeFixed   DiscountType = "fixed"
)

// Coupon представляет купон магазина.
type Coupon struct {
	ID               uuid.UUID    `json:"id" db:"id"`
	ShopID           uuid.UUID    `json:"shop_id" db:"shop_id"`
	Title            string       `json:"title" db:"title"`
	Description      string       `json:"description,omitempty" db:"description"`
	DiscountType     DiscountType `json:"discount_type" db:"discount_type"`
	DiscountValue    float64      `json:"discount_value" db:"discount_value"`
	UsesLeft         int          `json:"uses_left" db:"uses_left"`
	ExpiresAt        *time.Time   `json:"expires_at,omitempty" db:"expires_at"`
	ValidityDays     *int         `json:"validity_days,omitempty" db:"validity_days"`
	CommissionAmount float64      `json:"commission_amount" db:"commission_amount"`
	RewardPoints     int64        `json:"reward_points" db:"reward_points"`
	Active           bool         `json:"active" db:"active"`
	Approved         bool         `json:"approved" db:"approved"`
	Clicks           int64        `json:"clicks" db:"clicks"`
	Version          int64        `json:"-" db:"version"`
	CreatedAt        time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at" db:"updated_at"`
}

// ExpiryTime возвращает момент истечения: абсолютная дата или CreatedAt + ValidityDays.
// nil означает бессрочный купон.
func (c *Coupon) ExpiryTime() *time.Time {
	if c.ExpiresAt != nil {
		t := *c.ExpiresAt
		return &t
	}
	if c.ValidityDays != nil {
		t := c.CreatedAt.AddDate(0, 0, *c.ValidityDays)
		return &t
	}
	return nil
}

// IsExpired сообщает, истёк ли купон к моменту now.
func (c *Coupon) IsExpired(now time.Time) bool {
	expiry := c.ExpiryTime()
	return expiry != nil && expiry.Before(now)
}

// CreateCouponRequest описывает запрос на создание купона.
type CreateCouponRequest struct {
	Title            string       `json:"title" validate:"required,max=200"`
	Description      string       `json:"description,omitempty" validate:"max=2000"`
	DiscountType     DiscountType `json:"discount_type" validate:"required,oneof=percent fixed"`
	DiscountValue    float64      `json:"discount_value" validate:"gt=0"`
	Uses             int          `json:"uses" validate:"required,gte=1,lte=1000000"`
	ExpiresAt        *time.Time   `json:"expires_at,omitempty"`
	ValidityDays     *int         `json:"validity_days,omitempty" validate:"omitempty,gte=1,lte=3650"`
	CommissionAmount float64      `json:"commission_amount" validate:"gte=0"`
	RewardPoints     int64        `json:"reward_points" validate:"gte=0"`
	Active           bool         `json:"active"`
}

// CouponStats сводка по купону для магазина.
type CouponStats struct {
	CouponID    uuid.UUID `json:"coupon_id"`
	UsesLeft    int       `json:"uses_left"`
	Clicks      int64     `json:"clicks"`
	Redemptions int       `json:"redemptions"`
}
