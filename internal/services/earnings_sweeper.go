package services

import (
	"context"
	"fmt"
	"time"

	"kobonz/internal/apperror"
	"kobonz/internal/config"
	"kobonz/internal/logger"
	"kobonz/internal/models"
	"kobonz/internal/redis"
	"kobonz/internal/store"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	defaultHoldDays  = 30
	defaultBatchSize = 100
)

// ErrSweepInProgress другой прогон держит блокировку.
var ErrSweepInProgress = apperror.Conflict("earnings sweep already in progress", nil)

var sweepLockKey = redis.GenerateKey(redis.KeyPrefixLock, "earnings-sweep")

// EarningsSweeper переводит комиссии из pending в available по истечении
// периода удержания. Каждая комиссия переводится в своей транзакции.
type EarningsSweeper struct {
	store     store.Store
	locker    sweepLocker
	events    EventPublisher
	log       *logger.Logger
	hold      time.Duration
	batchSize int
	lockTTL   time.Duration
	limiter   *rate.Limiter
	now       func() time.Time
}

// NewEarningsSweeper создаёт сервис. redisClient может быть nil: тогда
// прогоны не блокируют друг друга, что безопасно, но дороже.
func NewEarningsSweeper(st store.Store, redisClient *redis.Client, events EventPublisher, log *logger.Logger, cfg *config.EarningsConfig) *EarningsSweeper {
	holdDays := cfg.HoldDays
	if holdDays <= 0 {
		holdDays = defaultHoldDays
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}

	s := &EarningsSweeper{
		store:     st,
		events:    events,
		log:       log,
		hold:      time.Duration(holdDays) * 24 * time.Hour,
		batchSize: batch,
		lockTTL:   time.Duration(cfg.LockTTLSeconds) * time.Second,
		now:       time.Now,
	}
	if redisClient != nil && s.lockTTL > 0 {
		s.locker = redisClient
	}
	if cfg.MaxPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.MaxPerSecond), 1)
	}
	return s
}

// Run выполняет один прогон. Ошибка отдельной комиссии не прерывает прогон.
func (s *EarningsSweeper) Run(ctx context.Context) (*models.SweepResult, error) {
	started := s.now()

	if s.locker != nil {
		token := uuid.NewString()
		acquired, err := s.locker.AcquireLock(ctx, sweepLockKey, token, s.lockTTL)
		switch {
		case err != nil:
			s.log.WithError(err).Warn("Failed to acquire sweep lock, continuing without it")
		case !acquired:
			return nil, ErrSweepInProgress
		default:
			defer func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := s.locker.ReleaseLock(releaseCtx, sweepLockKey, token); err != nil {
					s.log.WithError(err).Warn("Failed to release sweep lock")
				}
			}()
		}
	}

	cutoff := started.Add(-s.hold)
	result := &models.SweepResult{StartedAt: started}

	var cursor *store.EarningCursor
	for {
		batch, err := s.store.ListReleasableEarnings(ctx, cutoff, cursor, s.batchSize)
		if err != nil {
			return nil, fmt.Errorf("failed to list releasable earnings: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		for _, earning := range batch {
			if s.limiter != nil {
				if err := s.limiter.Wait(ctx); err != nil {
					result.FinishedAt = s.now()
					return result, fmt.Errorf("sweep interrupted: %w", err)
				}
			}

			result.Scanned++
			released, err := s.release(ctx, earning)
			switch {
			case err != nil:
				result.Failed++
				s.log.WithError(err).WithField("earning_id", earning.ID).Error("Failed to release earning")
			case released:
				result.Released++
				s.publishReleased(earning)
			default:
				result.Skipped++
			}
		}

		last := batch[len(batch)-1]
		cursor = &store.EarningCursor{CreatedAt: last.CreatedAt, ID: last.ID}
		if len(batch) < s.batchSize {
			break
		}
	}

	result.FinishedAt = s.now()
	s.log.WithFields(map[string]interface{}{
		"scanned":  result.Scanned,
		"released": result.Released,
		"skipped":  result.Skipped,
		"failed":   result.Failed,
		"cutoff":   cutoff.Format(time.RFC3339),
	}).Info("Earnings sweep finished")

	return result, nil
}

// release переводит одну комиссию. false, если её уже перевёл кто-то другой.
func (s *EarningsSweeper) release(ctx context.Context, earning *models.Earning) (bool, error) {
	at := s.now()
	released := false

	err := s.store.WithinTx(ctx, func(q store.Queries) error {
		ok, err := q.ReleaseEarning(ctx, earning.ID, at)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		pending, available, err := q.AddAffiliateBalances(ctx, earning.AffiliateID, -earning.Amount, earning.Amount)
		if err != nil {
			return fmt.Errorf("failed to move balance: %w", err)
		}
		// перевод пишется двумя записями: списание с pending и зачисление в available
		if err := appendLedger(ctx, q, earning.AffiliateID, models.LedgerCommissionReleased, models.BalancePending,
			-earning.Amount, pending, &earning.ID, at); err != nil {
			return fmt.Errorf("failed to record release: %w", err)
		}
		if err := appendLedger(ctx, q, earning.AffiliateID, models.LedgerCommissionReleased, models.BalanceAvailable,
			earning.Amount, available, &earning.ID, at); err != nil {
			return fmt.Errorf("failed to record release: %w", err)
		}

		released = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return released, nil
}

func (s *EarningsSweeper) publishReleased(earning *models.Earning) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishEarningReleased(earning); err != nil {
		s.log.WithError(err).WithField("earning_id", earning.ID).Warn("Failed to publish earning released event")
	}
}
