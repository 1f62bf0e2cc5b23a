package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"kobonz/internal/auth"
	"kobonz/internal/config"
	"kobonz/internal/logger"
	"kobonz/internal/models"
	"kobonz/internal/services"

	"github.com/google/uuid"
)

var errTest = errors.New("boom")

func newTestLogger() *logger.Logger {
	return logger.New(&config.LoggerConfig{Level: "error", Format: "json"})
}

// asPrincipal возвращает запрос с аутентифицированным вызывающим.
func asPrincipal(r *http.Request, id uuid.UUID, role models.Role) *http.Request {
	return r.WithContext(auth.WithPrincipal(r.Context(), &auth.Principal{AccountID: id, Role: role}))
}

type stubRedeemer struct {
	result *models.RedemptionResult
	err    error
	got    *models.RedeemRequest
}

func (s *stubRedeemer) Redeem(_ context.Context, req *models.RedeemRequest) (*models.RedemptionResult, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &models.RedemptionResult{
		Redemption: &models.Redemption{ID: uuid.New(), CouponID: req.CouponID},
		UsesLeft:   4,
	}, nil
}

type stubTracker struct {
	mu     sync.Mutex
	events []services.ClickEvent
	reject bool
}

func (s *stubTracker) Track(ev services.ClickEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reject {
		return false
	}
	s.events = append(s.events, ev)
	return true
}

type stubCoupons struct {
	coupon         *models.Coupon
	coupons        []*models.Coupon
	stats          *models.CouponStats
	err            error
	gotShopID      *uuid.UUID
	gotRedeemable  bool
	gotAutoApprove bool
	created        *models.CreateCouponRequest
	approvedID     uuid.UUID
}

func (s *stubCoupons) CreateCoupon(_ context.Context, shopID uuid.UUID, autoApprove bool, req *models.CreateCouponRequest) (*models.Coupon, error) {
	s.gotShopID = &shopID
	s.gotAutoApprove = autoApprove
	s.created = req
	if s.err != nil {
		return nil, s.err
	}
	return &models.Coupon{ID: uuid.New(), ShopID: shopID, Title: req.Title, Approved: autoApprove}, nil
}

func (s *stubCoupons) GetCoupon(_ context.Context, id uuid.UUID) (*models.Coupon, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.coupon == nil {
		return nil, services.ErrCouponNotFound
	}
	return s.coupon, nil
}

func (s *stubCoupons) ListCoupons(_ context.Context, shopID *uuid.UUID, onlyRedeemable bool, limit, offset int) ([]*models.Coupon, error) {
	s.gotShopID = shopID
	s.gotRedeemable = onlyRedeemable
	if s.err != nil {
		return nil, s.err
	}
	return s.coupons, nil
}

func (s *stubCoupons) ApproveCoupon(_ context.Context, id uuid.UUID) (*models.Coupon, error) {
	s.approvedID = id
	if s.err != nil {
		return nil, s.err
	}
	return &models.Coupon{ID: id, Approved: true}, nil
}

func (s *stubCoupons) GetCouponStats(_ context.Context, id uuid.UUID) (*models.CouponStats, error) {
	if s.stats == nil {
		return &models.CouponStats{CouponID: id}, nil
	}
	return s.stats, nil
}

type stubAffiliates struct {
	link      *models.AffiliateLink
	links     []*models.AffiliateLink
	earnings  []*models.Earning
	err       error
	gotCode   string
	gotCoupon *uuid.UUID
	gotOwner  uuid.UUID
}

func (s *stubAffiliates) CreateLink(_ context.Context, affiliateID, couponID uuid.UUID) (*models.AffiliateLink, error) {
	s.gotOwner = affiliateID
	if s.err != nil {
		return nil, s.err
	}
	return &models.AffiliateLink{ID: uuid.New(), AffiliateID: affiliateID, CouponID: couponID, TrackingCode: "abc234", Active: true}, nil
}

func (s *stubAffiliates) ResolveClick(_ context.Context, code string, couponID *uuid.UUID) (*models.AffiliateLink, error) {
	s.gotCode = code
	s.gotCoupon = couponID
	if s.err != nil {
		return nil, s.err
	}
	return s.link, nil
}

func (s *stubAffiliates) ListLinks(_ context.Context, affiliateID uuid.UUID) ([]*models.AffiliateLink, error) {
	s.gotOwner = affiliateID
	return s.links, s.err
}

func (s *stubAffiliates) ListEarnings(_ context.Context, affiliateID uuid.UUID, limit, offset int) ([]*models.Earning, error) {
	s.gotOwner = affiliateID
	return s.earnings, s.err
}

type stubAccounts struct {
	account *models.Account
	entries []*models.LedgerEntry
	err     error
	gotID   uuid.UUID
}

func (s *stubAccounts) Register(_ context.Context, req *models.RegisterRequest) (*models.AuthResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.AuthResponse{Token: "t", ExpiresAt: time.Now().Add(time.Hour), Account: &models.Account{ID: uuid.New(), Email: req.Email}}, nil
}

func (s *stubAccounts) Login(_ context.Context, req *models.LoginRequest) (*models.AuthResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.AuthResponse{Token: "t", Account: s.account}, nil
}

func (s *stubAccounts) GetAccount(_ context.Context, id uuid.UUID) (*models.Account, error) {
	s.gotID = id
	if s.err != nil {
		return nil, s.err
	}
	if s.account == nil {
		return nil, services.ErrAccountNotFound
	}
	return s.account, nil
}

func (s *stubAccounts) ListLedger(_ context.Context, id uuid.UUID, limit, offset int) ([]*models.LedgerEntry, error) {
	s.gotID = id
	return s.entries, s.err
}

type stubTokenParser struct {
	principal *auth.Principal
	err       error
}

func (s *stubTokenParser) Parse(raw string) (*auth.Principal, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.principal, nil
}

type stubSweeper struct {
	result *models.SweepResult
	err    error
	calls  int
}

func (s *stubSweeper) Run(context.Context) (*models.SweepResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.result == nil {
		return &models.SweepResult{}, nil
	}
	return s.result, nil
}
