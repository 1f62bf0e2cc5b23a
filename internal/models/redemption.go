package models

import (
	"time"

	"github.com/google/uuid"
)

// Redemption факт погашения купона. Суммы зафиксированы на момент погашения.
type Redemption struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	CouponID         uuid.UUID  `json:"coupon_id" db:"coupon_id"`
	AccountID        *uuid.UUID `json:"account_id,omitempty" db:"account_id"`
	AffiliateLinkID  *uuid.UUID `json:"affiliate_link_id,omitempty" db:"affiliate_link_id"`
	AffiliateID      *uuid.UUID `json:"affiliate_id,omitempty" db:"affiliate_id"`
	CommissionAmount float64    `json:"commission_amount" db:"commission_amount"`
	RewardPoints     int64      `json:"reward_points" db:"reward_points"`
	ReferralBonus    int64      `json:"referral_bonus" db:"referral_bonus"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
}

// RedeemRequest входные данные оркестратора погашения.
// AffiliateID используется callable-вариантом, TrackingCode приходит из cookie.
type RedeemRequest struct {
	CouponID     uuid.UUID
	AccountID    *uuid.UUID
	AffiliateID  *uuid.UUID
	TrackingCode string
}

// RedemptionResult итог успешного погашения.
type RedemptionResult struct {
	Redemption       *Redemption `json:"redemption"`
	UsesLeft         int         `json:"uses_left"`
	RewardPoints     int64       `json:"reward_points"`
	CommissionAmount float64     `json:"commission_amount"`
	ReferralRewarded bool        `json:"referral_rewarded"`
}

// CallableRedeemData полезная нагрузка callable redeemCoupon.
type CallableRedeemData struct {
	CouponID    string `json:"couponId" validate:"required,uuid"`
	AffiliateID string `json:"affiliateId,omitempty" validate:"omitempty,uuid"`
}

// CallableTrackClickData полезная нагрузка callable trackCouponClick.
type CallableTrackClickData struct {
	CouponID string `json:"couponId" validate:"required,uuid"`
}
