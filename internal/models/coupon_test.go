package models

import (
	"testing"
	"time"
)

func TestCoupon_IsExpired_Absolute(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	if !(&Coupon{ExpiresAt: &past}).IsExpired(now) {
		t.Fatalf("expected coupon with past expiry to be expired")
	}
	if (&Coupon{ExpiresAt: &future}).IsExpired(now) {
		t.Fatalf("expected coupon with future expiry to be valid")
	}
}

func TestCoupon_IsExpired_Relative(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	days := 7

	old := &Coupon{ValidityDays: &days, CreatedAt: now.AddDate(0, 0, -8)}
	if !old.IsExpired(now) {
		t.Fatalf("expected relative coupon older than validity to be expired")
	}
	fresh := &Coupon{ValidityDays: &days, CreatedAt: now.AddDate(0, 0, -6)}
	if fresh.IsExpired(now) {
		t.Fatalf("expected fresh relative coupon to be valid")
	}
}

func TestCoupon_AbsoluteExpiryWins(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	days := 1
	future := now.Add(time.Hour)
	c := &Coupon{ExpiresAt: &future, ValidityDays: &days, CreatedAt: now.AddDate(0, 0, -30)}
	if c.IsExpired(now) {
		t.Fatalf("absolute expiry must take precedence over validity days")
	}
}

func TestCoupon_NoExpiry(t *testing.T) {
	c := &Coupon{CreatedAt: time.Now().AddDate(-5, 0, 0)}
	if c.ExpiryTime() != nil || c.IsExpired(time.Now()) {
		t.Fatalf("coupon without expiry must never expire")
	}
}
