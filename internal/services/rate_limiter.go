package services

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"kobonz/internal/config"
	"kobonz/internal/logger"
	"kobonz/internal/redis"
)

// Области лимитирования. Погашение ограничивается строже остальных запросов.
const (
	ScopeDefault = "default"
	ScopeRedeem  = "redeem"
)

// RateLimiter реализует простое ограничение по количеству запросов в фиксированном окне на ключ.
type RateLimiter struct {
	redis   rateRedis
	log     *logger.Logger
	enabled bool
	limits  map[string]int64
	window  time.Duration
	prefix  string
}

type rateRedis interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)
	GetInt(ctx context.Context, key string) (int64, error)
}

// NewRateLimiter создаёт rate limiter.
func NewRateLimiter(redisClient *redis.Client, log *logger.Logger, cfg *config.RateLimitConfig) *RateLimiter {
	if redisClient == nil || cfg == nil || !cfg.Enabled || cfg.Requests <= 0 || cfg.WindowSeconds <= 0 {
		return &RateLimiter{enabled: false}
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "ratelimit"
	}

	limits := map[string]int64{ScopeDefault: int64(cfg.Requests)}
	if cfg.RedeemRequests > 0 {
		limits[ScopeRedeem] = int64(cfg.RedeemRequests)
	}

	return &RateLimiter{
		redis:   redisClient,
		log:     log,
		enabled: true,
		limits:  limits,
		window:  time.Duration(cfg.WindowSeconds) * time.Second,
		prefix:  prefix,
	}
}

// Allow возвращает признак разрешения, оставшийся лимит и время сброса окна.
func (r *RateLimiter) Allow(ctx context.Context, scope, key string) (allowed bool, remaining int64, resetAt time.Time, err error) {
	limit := r.Limit(scope)
	if !r.enabled {
		return true, limit, time.Now().Add(r.window), nil
	}

	now := time.Now()
	redisKey := r.makeKey(scope, key)

	count, err := r.redis.Incr(ctx, redisKey)
	if err != nil {
		return false, 0, time.Time{}, fmt.Errorf("rate limiter incr failed: %w", err)
	}

	if count == 1 {
		if err := r.redis.Expire(ctx, redisKey, r.window); err != nil {
			r.log.WithError(err).WithField("key", redisKey).Warn("failed to set rate limit ttl")
		}
	}

	ttl, ttlErr := r.redis.TTL(ctx, redisKey)
	if ttlErr != nil {
		r.log.WithError(ttlErr).WithField("key", redisKey).Warn("failed to get rate limit ttl")
		ttl = r.window
	}

	remaining = limit - count
	if remaining < 0 {
		remaining = 0
	}
	resetAt = now.Add(ttl)

	return count <= limit, remaining, resetAt, nil
}

// Usage возвращает текущее значение окна и время сброса.
func (r *RateLimiter) Usage(ctx context.Context, scope, key string) (used int64, remaining int64, resetAt *time.Time, err error) {
	limit := r.Limit(scope)
	if !r.enabled {
		return 0, limit, nil, nil
	}

	redisKey := r.makeKey(scope, key)
	count, err := r.redis.GetInt(ctx, redisKey)
	if err != nil {
		// если ключа нет, считаем нулём
		return 0, limit, nil, nil
	}

	ttl, ttlErr := r.redis.TTL(ctx, redisKey)
	if ttlErr != nil {
		r.log.WithError(ttlErr).WithField("key", redisKey).Warn("failed to get rate limit ttl")
	} else {
		tmp := time.Now().Add(ttl)
		resetAt = &tmp
	}

	remaining = limit - count
	if remaining < 0 {
		remaining = 0
	}

	return count, remaining, resetAt, nil
}

func (r *RateLimiter) makeKey(scope, key string) string {
	safeKey := strings.ReplaceAll(key, ":", "_")
	return fmt.Sprintf("%s:%s:%s", r.prefix, scope, safeKey)
}

// Limit возвращает лимит области; неизвестные области получают общий лимит.
func (r *RateLimiter) Limit(scope string) int64 {
	if limit, ok := r.limits[scope]; ok {
		return limit
	}
	return r.limits[ScopeDefault]
}

// Enabled сообщает, включён ли rate limiting.
func (r *RateLimiter) Enabled() bool {
	return r.enabled
}

// ExtractClientIP получает IP из заголовков/RemoteAddr.
func ExtractClientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); ip != "" {
		parts := strings.Split(ip, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
