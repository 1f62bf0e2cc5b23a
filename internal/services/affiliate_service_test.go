package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"kobonz/internal/apperror"
	"kobonz/internal/models"

	"github.com/google/uuid"
)

func TestAffiliateService_CreateLink(t *testing.T) {
	st := newMemoryStore()
	svc := NewAffiliateService(st, newTestLogger())
	affiliate := newTestAccount(t, st, models.RoleAffiliate, nil)
	coupon := newTestCoupon(t, st, nil)

	link, err := svc.CreateLink(context.Background(), affiliate.ID, coupon.ID)
	if err != nil {
		t.Fatalf("create link: %v", err)
	}
	if len(link.TrackingCode) != trackingCodeLength || !link.Active {
		t.Fatalf("unexpected link: %+v", link)
	}
	for _, r := range link.TrackingCode {
		if !strings.ContainsRune(codeAlphabet, r) {
			t.Fatalf("tracking code has unexpected rune %q", r)
		}
	}

	if _, err := svc.CreateLink(context.Background(), affiliate.ID, coupon.ID); !apperror.Is(err, apperror.KindConflict) {
		t.Fatalf("expected conflict for second link, got %v", err)
	}

	links, err := svc.ListLinks(context.Background(), affiliate.ID)
	if err != nil || len(links) != 1 {
		t.Fatalf("expected 1 link, got %d (%v)", len(links), err)
	}
}

func TestAffiliateService_CreateLinkPreconditions(t *testing.T) {
	st := newMemoryStore()
	svc := NewAffiliateService(st, newTestLogger())
	affiliate := newTestAccount(t, st, models.RoleAffiliate, nil)
	pending := newTestCoupon(t, st, func(c *models.Coupon) { c.Approved = false })

	if _, err := svc.CreateLink(context.Background(), affiliate.ID, pending.ID); !apperror.Is(err, apperror.KindPrecondition) {
		t.Fatalf("expected precondition error, got %v", err)
	}
	if _, err := svc.CreateLink(context.Background(), affiliate.ID, uuid.New()); !errors.Is(err, ErrCouponNotFound) {
		t.Fatalf("expected ErrCouponNotFound, got %v", err)
	}
}

func TestAffiliateService_ResolveClick(t *testing.T) {
	st := newMemoryStore()
	svc := NewAffiliateService(st, newTestLogger())
	affiliate := newTestAccount(t, st, models.RoleAffiliate, nil)
	coupon := newTestCoupon(t, st, nil)
	link := newTestLink(t, st, affiliate.ID, coupon.ID)

	got, err := svc.ResolveClick(context.Background(), link.TrackingCode, nil)
	if err != nil || got.ID != link.ID {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := svc.ResolveClick(context.Background(), link.TrackingCode, &coupon.ID); err != nil {
		t.Fatalf("resolve with matching coupon: %v", err)
	}

	other := uuid.New()
	if _, err := svc.ResolveClick(context.Background(), link.TrackingCode, &other); !apperror.Is(err, apperror.KindValidation) {
		t.Fatalf("expected validation error for mismatched coupon, got %v", err)
	}
	if _, err := svc.ResolveClick(context.Background(), "missing", nil); !apperror.Is(err, apperror.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAffiliateService_ListEarnings(t *testing.T) {
	st := newMemoryStore()
	svc := NewAffiliateService(st, newTestLogger())
	redeemer := newTestRedemptionService(st, nil)
	affiliate := newTestAccount(t, st, models.RoleAffiliate, nil)
	coupon := newTestCoupon(t, st, func(c *models.Coupon) { c.CommissionAmount = 2 })
	link := newTestLink(t, st, affiliate.ID, coupon.ID)

	for i := 0; i < 3; i++ {
		if _, err := redeemer.Redeem(context.Background(), &models.RedeemRequest{CouponID: coupon.ID, TrackingCode: link.TrackingCode}); err != nil {
			t.Fatalf("redeem: %v", err)
		}
	}

	earnings, err := svc.ListEarnings(context.Background(), affiliate.ID, 2, 0)
	if err != nil {
		t.Fatalf("list earnings: %v", err)
	}
	if len(earnings) != 2 {
		t.Fatalf("expected page of 2, got %d", len(earnings))
	}
	all, _ := svc.ListEarnings(context.Background(), affiliate.ID, 0, 0)
	if len(all) != 3 {
		t.Fatalf("expected 3 earnings with default page, got %d", len(all))
	}
}

func TestRandomCode(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		code, err := randomCode(10)
		if err != nil {
			t.Fatalf("random code: %v", err)
		}
		if len(code) != 10 {
			t.Fatalf("unexpected length %d", len(code))
		}
		seen[code] = struct{}{}
	}
	if len(seen) < 99 {
		t.Fatalf("codes are not random enough: %d unique", len(seen))
	}
}
