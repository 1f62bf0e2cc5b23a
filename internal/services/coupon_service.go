package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"kobonz/internal/apperror"
	"kobonz/internal/config"
	"kobonz/internal/logger"
	"kobonz/internal/models"
	"kobonz/internal/redis"
	"kobonz/internal/store"

	"github.com/google/uuid"
)

const defaultCouponCacheTTL = time.Minute

// CouponService управляет купонами магазинов и кешем их карточек.
type CouponService struct {
	store    store.Store
	cache    couponCache
	log      *logger.Logger
	cacheTTL time.Duration
	now      func() time.Time
}

// NewCouponService создаёт сервис купонов. redisClient может быть nil.
func NewCouponService(st store.Store, redisClient *redis.Client, log *logger.Logger, cfg *config.CacheConfig) *CouponService {
	ttl := defaultCouponCacheTTL
	if cfg != nil && cfg.CouponTTLSeconds > 0 {
		ttl = time.Duration(cfg.CouponTTLSeconds) * time.Second
	}
	s := &CouponService{
		store:    st,
		log:      log,
		cacheTTL: ttl,
		now:      time.Now,
	}
	if redisClient != nil {
		s.cache = redisClient
	}
	return s
}

// CreateCoupon создаёт купон магазина. Купон администратора сразу одобрен,
// остальные ждут модерации.
func (s *CouponService) CreateCoupon(ctx context.Context, shopID uuid.UUID, autoApprove bool, req *models.CreateCouponRequest) (*models.Coupon, error) {
	if err := validateDiscount(req.DiscountType, req.DiscountValue); err != nil {
		return nil, apperror.Validation(err.Error(), err)
	}
	now := s.now()
	if req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
		return nil, apperror.Validation("expires_at must be in the future", nil)
	}

	coupon := &models.Coupon{
		ID:               uuid.New(),
		ShopID:           shopID,
		Title:            req.Title,
		Description:      req.Description,
		DiscountType:     req.DiscountType,
		DiscountValue:    round2(req.DiscountValue),
		UsesLeft:         req.Uses,
		ExpiresAt:        req.ExpiresAt,
		ValidityDays:     req.ValidityDays,
		CommissionAmount: round2(req.CommissionAmount),
		RewardPoints:     req.RewardPoints,
		Active:           req.Active,
		Approved:         autoApprove,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.store.CreateCoupon(ctx, coupon); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperror.Conflict("coupon already exists", err)
		}
		return nil, fmt.Errorf("failed to create coupon: %w", err)
	}

	s.invalidateLists(ctx)

	s.log.WithFields(map[string]interface{}{
		"coupon_id": coupon.ID,
		"shop_id":   shopID,
		"approved":  coupon.Approved,
	}).Info("Coupon created")
	return coupon, nil
}

// GetCoupon возвращает купон, по возможности из кеша.
func (s *CouponService) GetCoupon(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	key := redis.GenerateKey(redis.KeyPrefixCoupon, id.String())

	var cached models.Coupon
	if s.tryGetFromCache(ctx, key, &cached) {
		return &cached, nil
	}

	coupon, err := s.store.GetCoupon(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCouponNotFound
		}
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}

	s.saveToCache(ctx, key, coupon)
	return coupon, nil
}

// ListCoupons список купонов. Публичный список (только погашаемые) кешируется.
func (s *CouponService) ListCoupons(ctx context.Context, shopID *uuid.UUID, onlyRedeemable bool, limit, offset int) ([]*models.Coupon, error) {
	limit, offset = normalizePage(limit, offset, 20, 100)

	cacheable := shopID == nil && onlyRedeemable
	key := redis.GenerateKey(redis.KeyPrefixCouponList, fmt.Sprintf("public:%d:%d", limit, offset))

	if cacheable {
		var cached []*models.Coupon
		if s.tryGetFromCache(ctx, key, &cached) {
			return cached, nil
		}
	}

	coupons, err := s.store.ListCoupons(ctx, shopID, onlyRedeemable, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}

	if cacheable {
		s.saveToCache(ctx, key, coupons)
	}
	return coupons, nil
}

// ApproveCoupon одобряет купон к публикации.
func (s *CouponService) ApproveCoupon(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	if err := s.store.SetCouponApproved(ctx, id, true); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCouponNotFound
		}
		return nil, fmt.Errorf("failed to approve coupon: %w", err)
	}

	s.Invalidate(ctx, id)
	s.log.WithField("coupon_id", id).Info("Coupon approved")

	coupon, err := s.store.GetCoupon(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload coupon: %w", err)
	}
	return coupon, nil
}

// GetCouponStats сводка по купону: остаток, клики и число погашений.
func (s *CouponService) GetCouponStats(ctx context.Context, id uuid.UUID) (*models.CouponStats, error) {
	coupon, err := s.store.GetCoupon(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCouponNotFound
		}
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}

	count, err := s.store.CountRedemptions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to count redemptions: %w", err)
	}

	return &models.CouponStats{
		CouponID:    coupon.ID,
		UsesLeft:    coupon.UsesLeft,
		Clicks:      coupon.Clicks,
		Redemptions: count,
	}, nil
}

// Invalidate сбрасывает кеш карточки купона и публичных списков.
func (s *CouponService) Invalidate(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	key := redis.GenerateKey(redis.KeyPrefixCoupon, id.String())
	if err := s.cache.Delete(ctx, key); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("Failed to invalidate coupon cache")
	}
	s.invalidateLists(ctx)
}

// HandleCouponRedeemed обработчик события coupon.redeemed: остаток изменился,
// кеш устарел.
func (s *CouponService) HandleCouponRedeemed(ctx context.Context, event *models.Event) error {
	raw, ok := event.StringField("coupon_id")
	if !ok {
		return fmt.Errorf("event %s has no coupon_id", event.ID)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return fmt.Errorf("event %s has invalid coupon_id: %w", event.ID, err)
	}
	s.Invalidate(ctx, id)
	return nil
}

func (s *CouponService) invalidateLists(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPrefix(ctx, redis.KeyPrefixCouponList+":"); err != nil {
		s.log.WithError(err).Warn("Failed to invalidate coupon list cache")
	}
}

func (s *CouponService) tryGetFromCache(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	return s.cache.Get(ctx, key, dest) == nil
}

func (s *CouponService) saveToCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("Failed to cache coupon")
	}
}

func validateDiscount(discountType models.DiscountType, value float64) error {
	switch discountType {
	case models.DiscountTypeFixed:
		if value <= 0 {
			return fmt.Errorf("discount_value must be positive for fixed discount")
		}
	case models.DiscountTypePercent:
		if value <= 0 || value > 100 {
			return fmt.Errorf("percent discount_value must be between 0 and 100")
		}
	default:
		return fmt.Errorf("invalid discount_type")
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
