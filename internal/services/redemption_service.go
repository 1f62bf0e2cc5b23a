package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kobonz/internal/apperror"
	"kobonz/internal/config"
	"kobonz/internal/logger"
	"kobonz/internal/models"
	"kobonz/internal/store"

	"github.com/google/uuid"
)

// Ошибки погашения. Проверяются в этом порядке.
var (
	ErrCouponNotFound  = apperror.NotFound("coupon not found", nil)
	ErrCouponInactive  = apperror.Precondition("coupon is not active", nil)
	ErrCouponExhausted = apperror.Precondition("coupon has no uses left", nil)
	ErrCouponExpired   = apperror.Precondition("coupon has expired", nil)
	ErrAccountNotFound = apperror.NotFound("account not found", nil)
)

const defaultRedeemAttempts = 3

// RedemptionService атомарно погашает купон и раздаёт награды:
// баллы покупателю, комиссию аффилиату и реферальный бонус.
type RedemptionService struct {
	store         store.Store
	events        EventPublisher
	coupons       CouponInvalidator
	log           *logger.Logger
	referralBonus int64
	maxAttempts   int
	now           func() time.Time
}

// NewRedemptionService создаёт оркестратор погашения.
func NewRedemptionService(st store.Store, events EventPublisher, log *logger.Logger, cfg *config.RewardsConfig) *RedemptionService {
	attempts := cfg.RedeemMaxAttempts
	if attempts <= 0 {
		attempts = defaultRedeemAttempts
	}
	return &RedemptionService{
		store:         st,
		events:        events,
		log:           log,
		referralBonus: cfg.ReferralBonus,
		maxAttempts:   attempts,
		now:           time.Now,
	}
}

// Redeem погашает одно использование купона. При конкурентном изменении
// транзакция повторяется целиком; события публикуются после коммита.
func (s *RedemptionService) Redeem(ctx context.Context, req *models.RedeemRequest) (*models.RedemptionResult, error) {
	var (
		result   *models.RedemptionResult
		rewarded *models.Referral
		err      error
	)

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		result, rewarded, err = s.redeemOnce(ctx, req)
		if err == nil || !errors.Is(err, store.ErrConflict) {
			break
		}
		s.log.WithFields(map[string]interface{}{
			"coupon_id": req.CouponID,
			"attempt":   attempt,
		}).Warn("Redemption conflict, retrying")
	}

	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperror.Conflict("coupon is being redeemed concurrently, please retry", err)
		}
		return nil, err
	}

	s.log.WithFields(map[string]interface{}{
		"coupon_id":     req.CouponID,
		"redemption_id": result.Redemption.ID,
		"uses_left":     result.UsesLeft,
		"affiliate":     result.Redemption.AffiliateID != nil,
	}).Info("Coupon redeemed")

	if s.coupons != nil {
		s.coupons.Invalidate(ctx, req.CouponID)
	}
	s.publish(result, rewarded)
	return result, nil
}

// WithCouponInvalidator подключает сброс кеша купона после коммита. Событие
// coupon.redeemed чистит кеш остальных экземпляров, этот сбрасывается сразу.
func (s *RedemptionService) WithCouponInvalidator(inv CouponInvalidator) *RedemptionService {
	s.coupons = inv
	return s
}

func (s *RedemptionService) redeemOnce(ctx context.Context, req *models.RedeemRequest) (*models.RedemptionResult, *models.Referral, error) {
	now := s.now()

	var (
		result   *models.RedemptionResult
		rewarded *models.Referral
	)

	err := s.store.WithinTx(ctx, func(q store.Queries) error {
		coupon, err := q.GetCouponForUpdate(ctx, req.CouponID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrCouponNotFound
			}
			return fmt.Errorf("failed to load coupon: %w", err)
		}
		if err := checkRedeemable(coupon, now); err != nil {
			return err
		}

		var account *models.Account
		if req.AccountID != nil {
			account, err = q.GetAccountForUpdate(ctx, *req.AccountID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return ErrAccountNotFound
				}
				return fmt.Errorf("failed to load account: %w", err)
			}
		}

		link, err := s.resolveLink(ctx, q, coupon, req)
		if err != nil {
			return err
		}

		usesLeft := coupon.UsesLeft - 1
		if err := q.UpdateCouponUses(ctx, coupon.ID, usesLeft, coupon.Version); err != nil {
			return fmt.Errorf("failed to decrement coupon uses: %w", err)
		}

		redemption := &models.Redemption{
			ID:        uuid.New(),
			CouponID:  coupon.ID,
			AccountID: req.AccountID,
			CreatedAt: now,
		}

		if account != nil && coupon.RewardPoints > 0 {
			balance, err := q.AddCredits(ctx, account.ID, coupon.RewardPoints)
			if err != nil {
				return fmt.Errorf("failed to credit reward points: %w", err)
			}
			if err := appendLedger(ctx, q, account.ID, models.LedgerCustomerReward, models.BalanceCredits,
				float64(coupon.RewardPoints), float64(balance), &redemption.ID, now); err != nil {
				return fmt.Errorf("failed to record customer reward: %w", err)
			}
			redemption.RewardPoints = coupon.RewardPoints
		}

		if link != nil {
			if err := s.creditAffiliate(ctx, q, coupon, link, redemption, now); err != nil {
				return err
			}
		}

		if account != nil && !account.HasRedeemedFirstCoupon {
			rewarded, err = s.rewardReferral(ctx, q, account, redemption, now)
			if err != nil {
				return err
			}
		}

		if err := q.CreateRedemption(ctx, redemption); err != nil {
			return fmt.Errorf("failed to record redemption: %w", err)
		}

		result = &models.RedemptionResult{
			Redemption:       redemption,
			UsesLeft:         usesLeft,
			RewardPoints:     redemption.RewardPoints,
			CommissionAmount: redemption.CommissionAmount,
			ReferralRewarded: rewarded != nil,
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return result, rewarded, nil
}

func checkRedeemable(c *models.Coupon, now time.Time) error {
	switch {
	case !c.Active || !c.Approved:
		return ErrCouponInactive
	case c.UsesLeft <= 0:
		return ErrCouponExhausted
	case c.IsExpired(now):
		return ErrCouponExpired
	}
	return nil
}

// resolveLink находит партнёрскую ссылку. Любая неподходящая ссылка
// превращает погашение в органическое, а не в ошибку.
func (s *RedemptionService) resolveLink(ctx context.Context, q store.Queries, coupon *models.Coupon, req *models.RedeemRequest) (*models.AffiliateLink, error) {
	var (
		link *models.AffiliateLink
		err  error
	)

	switch {
	case req.TrackingCode != "":
		link, err = q.GetAffiliateLinkByCode(ctx, req.TrackingCode)
	case req.AffiliateID != nil:
		link, err = q.GetAffiliateLinkFor(ctx, *req.AffiliateID, coupon.ID)
	default:
		return nil, nil
	}

	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.log.WithField("coupon_id", coupon.ID).Debug("Affiliate link not found, organic redemption")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve affiliate link: %w", err)
	}

	if link.CouponID != coupon.ID || !link.Active {
		return nil, nil
	}
	if req.AccountID != nil && link.AffiliateID == *req.AccountID {
		s.log.WithField("link_id", link.ID).Debug("Self-attributed redemption treated as organic")
		return nil, nil
	}
	return link, nil
}

func (s *RedemptionService) creditAffiliate(ctx context.Context, q store.Queries, coupon *models.Coupon,
	link *models.AffiliateLink, redemption *models.Redemption, now time.Time) error {
	if err := q.IncrementLinkConversions(ctx, link.ID); err != nil {
		return fmt.Errorf("failed to count conversion: %w", err)
	}
	redemption.AffiliateLinkID = &link.ID
	redemption.AffiliateID = &link.AffiliateID

	if coupon.CommissionAmount <= 0 {
		return nil
	}

	pending, _, err := q.AddAffiliateBalances(ctx, link.AffiliateID, coupon.CommissionAmount, 0)
	if err != nil {
		return fmt.Errorf("failed to credit affiliate commission: %w", err)
	}
	if err := appendLedger(ctx, q, link.AffiliateID, models.LedgerAffiliateCommission, models.BalancePending,
		coupon.CommissionAmount, pending, &redemption.ID, now); err != nil {
		return fmt.Errorf("failed to record affiliate commission: %w", err)
	}

	earning := &models.Earning{
		ID:           uuid.New(),
		AffiliateID:  link.AffiliateID,
		CouponID:     coupon.ID,
		RedemptionID: redemption.ID,
		Amount:       coupon.CommissionAmount,
		Status:       models.EarningStatusPending,
		CreatedAt:    now,
	}
	if err := q.CreateEarning(ctx, earning); err != nil {
		return fmt.Errorf("failed to create earning: %w", err)
	}

	redemption.CommissionAmount = coupon.CommissionAmount
	return nil
}

// rewardReferral отмечает первое погашение и, если аккаунт приглашён,
// один раз начисляет бонус пригласившему.
func (s *RedemptionService) rewardReferral(ctx context.Context, q store.Queries, account *models.Account,
	redemption *models.Redemption, now time.Time) (*models.Referral, error) {
	flipped, err := q.MarkFirstRedemption(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark first redemption: %w", err)
	}
	if !flipped || account.ReferredBy == nil {
		return nil, nil
	}

	ref, err := q.GetPendingReferralForUpdate(ctx, account.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load referral: %w", err)
	}

	ok, err := q.MarkReferralRewarded(ctx, ref.ID, s.referralBonus, now)
	if err != nil {
		return nil, fmt.Errorf("failed to reward referral: %w", err)
	}
	if !ok {
		return nil, nil
	}

	if s.referralBonus > 0 {
		balance, err := q.AddCredits(ctx, ref.ReferrerID, s.referralBonus)
		if err != nil {
			return nil, fmt.Errorf("failed to credit referral bonus: %w", err)
		}
		if err := appendLedger(ctx, q, ref.ReferrerID, models.LedgerReferralBonus, models.BalanceCredits,
			float64(s.referralBonus), float64(balance), &ref.ID, now); err != nil {
			return nil, fmt.Errorf("failed to record referral bonus: %w", err)
		}
	}

	ref.Status = models.ReferralStatusRewarded
	ref.BonusAmount = s.referralBonus
	ref.RewardedAt = &now
	redemption.ReferralBonus = s.referralBonus
	return ref, nil
}

func (s *RedemptionService) publish(result *models.RedemptionResult, rewarded *models.Referral) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishCouponRedeemed(result.Redemption, result.UsesLeft); err != nil {
		s.log.WithError(err).WithField("redemption_id", result.Redemption.ID).Warn("Failed to publish coupon redeemed event")
	}
	if rewarded != nil {
		if err := s.events.PublishReferralRewarded(rewarded); err != nil {
			s.log.WithError(err).WithField("referral_id", rewarded.ID).Warn("Failed to publish referral rewarded event")
		}
	}
}
