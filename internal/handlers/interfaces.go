package handlers

import (
	"context"

	"kobonz/internal/auth"
	"kobonz/internal/models"
	"kobonz/internal/services"

	"github.com/google/uuid"
)

// ----- Redemption -----

type Redeemer interface {
	Redeem(ctx context.Context, req *models.RedeemRequest) (*models.RedemptionResult, error)
}

// ----- Coupons -----

type CouponService interface {
	CreateCoupon(ctx context.Context, shopID uuid.UUID, autoApprove bool, req *models.CreateCouponRequest) (*models.Coupon, error)
	GetCoupon(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	ListCoupons(ctx context.Context, shopID *uuid.UUID, onlyRedeemable bool, limit, offset int) ([]*models.Coupon, error)
	ApproveCoupon(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	GetCouponStats(ctx context.Context, id uuid.UUID) (*models.CouponStats, error)
}

// ----- Affiliates -----

type AffiliateService interface {
	CreateLink(ctx context.Context, affiliateID, couponID uuid.UUID) (*models.AffiliateLink, error)
	ResolveClick(ctx context.Context, trackingCode string, couponID *uuid.UUID) (*models.AffiliateLink, error)
	ListLinks(ctx context.Context, affiliateID uuid.UUID) ([]*models.AffiliateLink, error)
	ListEarnings(ctx context.Context, affiliateID uuid.UUID, limit, offset int) ([]*models.Earning, error)
}

type ClickTracker interface {
	Track(ev services.ClickEvent) bool
}

// ----- Accounts -----

type AccountService interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResponse, error)
	GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
	ListLedger(ctx context.Context, id uuid.UUID, limit, offset int) ([]*models.LedgerEntry, error)
}

type TokenParser interface {
	Parse(raw string) (*auth.Principal, error)
}

// ----- Earnings -----

type EarningsSweeper interface {
	Run(ctx context.Context) (*models.SweepResult, error)
}

// ----- Health -----

type DBHealth interface {
	Health() error
}

type RedisHealth interface {
	Health(ctx context.Context) error
}
