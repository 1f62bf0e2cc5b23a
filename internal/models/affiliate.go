package models

import (
	"time"

	"github.com/google/uuid"
)

// AffiliateLink ссылка аффилиата на конкретный купон. Одна на пару (аффилиат, купон).
type AffiliateLink struct {
	ID           uuid.UUID `json:"id" db:"id"`
	AffiliateID  uuid.UUID `json:"affiliate_id" db:"affiliate_id"`
	CouponID     uuid.UUID `json:"coupon_id" db:"coupon_id"`
	TrackingCode string    `json:"tracking_code" db:"tracking_code"`
	Clicks       int64     `json:"clicks" db:"clicks"`
	Conversions  int64     `json:"conversions" db:"conversions"`
	Active       bool      `json:"active" db:"active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// CreateAffiliateLinkRequest запрос на создание ссылки.
type CreateAffiliateLinkRequest struct {
	CouponID string `json:"coupon_id" validate:"required,uuid"`
}

// EarningStatus статус начисления комиссии.
type EarningStatus string

const (
	EarningStatusPending   EarningStatus = "pending"
	EarningStatusAvailable EarningStatus = "available"
	EarningStatusPaid      EarningStatus = "paid"
)

// Earning комиссия аффилиата за одно погашение.
type Earning struct {
	ID           uuid.UUID     `json:"id" db:"id"`
	AffiliateID  uuid.UUID     `json:"affiliate_id" db:"affiliate_id"`
	CouponID     uuid.UUID     `json:"coupon_id" db:"coupon_id"`
	RedemptionID uuid.UUID     `json:"redemption_id" db:"redemption_id"`
	Amount       float64       `json:"amount" db:"amount"`
	Status       EarningStatus `json:"status" db:"status"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	ReleasedAt   *time.Time    `json:"released_at,omitempty" db:"released_at"`
}

// SweepResult итог одного прогона перевода комиссий.
type SweepResult struct {
	Scanned    int       `json:"scanned"`
	Released   int       `json:"released"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
