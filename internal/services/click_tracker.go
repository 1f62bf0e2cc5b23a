package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"kobonz/internal/config"
	"kobonz/internal/logger"
	"kobonz/internal/store"

	"github.com/google/uuid"
)

// ClickEvent клик по купону, возможно через партнёрскую ссылку.
type ClickEvent struct {
	CouponID uuid.UUID
	LinkID   *uuid.UUID
}

// ClickTracker учитывает клики в фоне. Track никогда не блокирует запрос:
// при переполненной очереди клик отбрасывается.
type ClickTracker struct {
	store   store.Queries
	events  EventPublisher
	log     *logger.Logger
	queue   chan ClickEvent
	workers int

	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	dropped atomic.Int64
}

// NewClickTracker создаёт трекер. Воркеры запускаются в Start.
func NewClickTracker(q store.Queries, events EventPublisher, log *logger.Logger, cfg *config.TrackingConfig) *ClickTracker {
	size := cfg.QueueSize
	if size <= 0 {
		size = 1024
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &ClickTracker{
		store:   q,
		events:  events,
		log:     log,
		queue:   make(chan ClickEvent, size),
		workers: workers,
	}
}

// Start запускает воркеры.
func (t *ClickTracker) Start() {
	for i := 0; i < t.workers; i++ {
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			for ev := range t.queue {
				t.record(ev)
			}
		}()
	}
	t.log.WithField("workers", t.workers).Info("Click tracker started")
}

// Track ставит клик в очередь. false, если клик отброшен.
func (t *ClickTracker) Track(ev ClickEvent) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return false
	}

	select {
	case t.queue <- ev:
		return true
	default:
		t.dropped.Add(1)
		t.log.WithField("coupon_id", ev.CouponID).Warn("Click queue is full, dropping click")
		return false
	}
}

// Dropped количество отброшенных кликов.
func (t *ClickTracker) Dropped() int64 {
	return t.dropped.Load()
}

// Stop закрывает очередь и ждёт, пока воркеры её дочитают.
func (t *ClickTracker) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.closed {
		t.closed = true
		close(t.queue)
	}
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.log.Info("Click tracker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// record ошибки только логирует: счётчики кликов не критичны.
func (t *ClickTracker) record(ev ClickEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := t.store.IncrementCouponClicks(ctx, ev.CouponID); err != nil {
		t.log.WithError(err).WithField("coupon_id", ev.CouponID).Warn("Failed to count coupon click")
	}
	if ev.LinkID != nil {
		if err := t.store.IncrementLinkClicks(ctx, *ev.LinkID); err != nil {
			t.log.WithError(err).WithField("link_id", *ev.LinkID).Warn("Failed to count link click")
		}
	}
	if t.events != nil {
		if err := t.events.PublishCouponClicked(ev.CouponID, ev.LinkID); err != nil {
			t.log.WithError(err).WithField("coupon_id", ev.CouponID).Warn("Failed to publish click event")
		}
	}
}
