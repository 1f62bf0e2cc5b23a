package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"kobonz/internal/apperror"
	"kobonz/internal/logger"
	"kobonz/internal/models"
	"kobonz/internal/store"

	"github.com/google/uuid"
)

const (
	trackingCodeLength   = 10
	trackingCodeAttempts = 3
	codeAlphabet         = "abcdefghijkmnpqrstuvwxyz23456789"
)

// AffiliateService управляет партнёрскими ссылками и начислениями.
type AffiliateService struct {
	store store.Store
	log   *logger.Logger
	now   func() time.Time
}

// NewAffiliateService создаёт сервис аффилиатов.
func NewAffiliateService(st store.Store, log *logger.Logger) *AffiliateService {
	return &AffiliateService{
		store: st,
		log:   log,
		now:   time.Now,
	}
}

// CreateLink создаёт ссылку аффилиата на одобренный активный купон.
func (s *AffiliateService) CreateLink(ctx context.Context, affiliateID, couponID uuid.UUID) (*models.AffiliateLink, error) {
	coupon, err := s.store.GetCoupon(ctx, couponID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCouponNotFound
		}
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}
	if !coupon.Active || !coupon.Approved {
		return nil, apperror.Precondition("coupon is not available for affiliate links", nil)
	}

	if _, err := s.store.GetAffiliateLinkFor(ctx, affiliateID, couponID); err == nil {
		return nil, apperror.Conflict("affiliate link already exists for this coupon", nil)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to check affiliate link: %w", err)
	}

	for attempt := 0; attempt < trackingCodeAttempts; attempt++ {
		code, err := randomCode(trackingCodeLength)
		if err != nil {
			return nil, err
		}

		link := &models.AffiliateLink{
			ID:           uuid.New(),
			AffiliateID:  affiliateID,
			CouponID:     couponID,
			TrackingCode: code,
			Active:       true,
			CreatedAt:    s.now(),
		}

		err = s.store.CreateAffiliateLink(ctx, link)
		if err == nil {
			s.log.WithFields(map[string]interface{}{
				"link_id":      link.ID,
				"affiliate_id": affiliateID,
				"coupon_id":    couponID,
			}).Info("Affiliate link created")
			return link, nil
		}
		if !errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("failed to create affiliate link: %w", err)
		}

		// дубликат пары означает гонку двух запросов, дубликат кода повторяем
		if _, lookupErr := s.store.GetAffiliateLinkFor(ctx, affiliateID, couponID); lookupErr == nil {
			return nil, apperror.Conflict("affiliate link already exists for this coupon", err)
		}
	}

	return nil, fmt.Errorf("failed to generate unique tracking code")
}

// ResolveClick проверяет ссылку перед редиректом. couponID может быть nil.
func (s *AffiliateService) ResolveClick(ctx context.Context, trackingCode string, couponID *uuid.UUID) (*models.AffiliateLink, error) {
	link, err := s.store.GetAffiliateLinkByCode(ctx, trackingCode)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperror.NotFound("affiliate link not found", err)
		}
		return nil, fmt.Errorf("failed to get affiliate link: %w", err)
	}
	if !link.Active {
		return nil, apperror.Precondition("affiliate link is not active", nil)
	}
	if couponID != nil && *couponID != link.CouponID {
		return nil, apperror.Validation("tracking code does not match coupon", nil)
	}
	return link, nil
}

// ListLinks ссылки аффилиата.
func (s *AffiliateService) ListLinks(ctx context.Context, affiliateID uuid.UUID) ([]*models.AffiliateLink, error) {
	links, err := s.store.ListAffiliateLinks(ctx, affiliateID)
	if err != nil {
		return nil, fmt.Errorf("failed to list affiliate links: %w", err)
	}
	return links, nil
}

// ListEarnings начисления аффилиата, новые первыми.
func (s *AffiliateService) ListEarnings(ctx context.Context, affiliateID uuid.UUID, limit, offset int) ([]*models.Earning, error) {
	limit, offset = normalizePage(limit, offset, 50, 200)
	earnings, err := s.store.ListEarnings(ctx, affiliateID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list earnings: %w", err)
	}
	return earnings, nil
}

func randomCode(n int) (string, error) {
	buf := make([]byte, n)
	bound := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		idx, err := rand.Int(rand.Reader, bound)
		if err != nil {
			return "", fmt.Errorf("failed to generate code: %w", err)
		}
		buf[i] = codeAlphabet[idx.Int64()]
	}
	return string(buf), nil
}
