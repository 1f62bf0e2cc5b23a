package models

import (
	"time"

	"github.com/google/uuid"
)

// LedgerEntryType тип движения баланса.
type LedgerEntryType string

const (
	LedgerSignupBonus         LedgerEntryType = "signup_bonus"
	LedgerReferralBonus       LedgerEntryType = "referral_bonus"
	LedgerCustomerReward      LedgerEntryType = "customer_reward"
	LedgerAffiliateCommission LedgerEntryType = "affiliate_commission"
	LedgerCommissionReleased  LedgerEntryType = "commission_released"
)

// BalanceKind баланс, к которому относится запись.
type BalanceKind string

const (
	BalanceCredits   BalanceKind = "credits"
	BalancePending   BalanceKind = "pending"
	BalanceAvailable BalanceKind = "available"
)

// LedgerEntry запись журнала. Только добавление.
type LedgerEntry struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	AccountID    uuid.UUID       `json:"account_id" db:"account_id"`
	Type         LedgerEntryType `json:"type" db:"type"`
	Balance      BalanceKind     `json:"balance" db:"balance"`
	Amount       float64         `json:"amount" db:"amount"`
	BalanceAfter float64         `json:"balance_after" db:"balance_after"`
	ReferenceID  *uuid.UUID      `json:"reference_id,omitempty" db:"reference_id"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// ReferralStatus статус реферала.
type ReferralStatus string

const (
	ReferralStatusPending  ReferralStatus = "pending"
	ReferralStatusRewarded ReferralStatus = "rewarded"
)

// Referral связь пригласившего и приглашённого аккаунтов.
type Referral struct {
	ID          uuid.UUID      `json:"id" db:"id"`
	ReferrerID  uuid.UUID      `json:"referrer_id" db:"referrer_id"`
	ReferredID  uuid.UUID      `json:"referred_id" db:"referred_id"`
	Status      ReferralStatus `json:"status" db:"status"`
	BonusAmount int64          `json:"bonus_amount" db:"bonus_amount"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	RewardedAt  *time.Time     `json:"rewarded_at,omitempty" db:"rewarded_at"`
}
