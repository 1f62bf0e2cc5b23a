package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"kobonz/internal/config"
	"kobonz/internal/logger"
	"kobonz/internal/services"
)

// RateLimitHandler отвечает за статус лимита и middleware.
type RateLimitHandler struct {
	limiter RateLimitStatusProvider
	log     *logger.Logger
	cfg     *config.RateLimitConfig
}

// NewRateLimitHandler создает новый RateLimitHandler.
func NewRateLimitHandler(limiter RateLimitStatusProvider, log *logger.Logger, cfg *config.RateLimitConfig) *RateLimitHandler {
	return &RateLimitHandler{
		limiter: limiter,
		log:     log,
		cfg:     cfg,
	}
}

// Status возвращает текущие значения лимита для клиента. Область задаётся
// параметром scope, по умолчанию общая.
func (h *RateLimitHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if h.limiter == nil || h.cfg == nil || !h.cfg.Enabled || !h.limiter.Enabled() {
		writeJSONResponse(w, http.StatusOK, map[string]interface{}{
			"enabled": false,
		})
		return
	}

	scope := r.URL.Query().Get("scope")
	if scope != services.ScopeRedeem {
		scope = services.ScopeDefault
	}

	key := services.ExtractClientIP(r)
	used, remaining, resetAt, err := h.limiter.Usage(r.Context(), scope, key)
	if err != nil {
		h.log.WithError(err).Error("Failed to fetch rate limit usage")
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to fetch rate limit usage")
		return
	}

	resp := map[string]interface{}{
		"enabled":        true,
		"scope":          scope,
		"limit":          h.limiter.Limit(scope),
		"window_seconds": h.cfg.WindowSeconds,
		"used":           used,
		"remaining":      remaining,
		"key":            key,
	}
	if resetAt != nil {
		resp["reset_at"] = resetAt.Format(time.RFC3339)
	}

	writeJSONResponse(w, http.StatusOK, resp)
}

// MiddlewareLimiter описывает контракт для rate limiter.
type MiddlewareLimiter interface {
	Allow(ctx context.Context, scope, key string) (bool, int64, time.Time, error)
	Enabled() bool
	Limit(scope string) int64
}

// RateLimitStatusProvider расширяет интерфейс для эндпоинта статуса.
type RateLimitStatusProvider interface {
	MiddlewareLimiter
	Usage(ctx context.Context, scope, key string) (int64, int64, *time.Time, error)
}

// RateLimitMiddleware применяет общий лимит к хендлеру.
func RateLimitMiddleware(limiter MiddlewareLimiter, log *logger.Logger, next http.HandlerFunc) http.HandlerFunc {
	return ScopedRateLimitMiddleware(limiter, services.ScopeDefault, log, next)
}

// ScopedRateLimitMiddleware применяет лимит указанной области.
func ScopedRateLimitMiddleware(limiter MiddlewareLimiter, scope string, log *logger.Logger, next http.HandlerFunc) http.HandlerFunc {
	return rateLimited(limiter, scope, log, writeErrorResponse, next)
}

// CallableRateLimitMiddleware применяет лимит к callable-эндпоинту: отказ
// отдаётся кодом resource-exhausted.
func CallableRateLimitMiddleware(limiter MiddlewareLimiter, scope string, log *logger.Logger, next http.HandlerFunc) http.HandlerFunc {
	return rateLimited(limiter, scope, log, func(w http.ResponseWriter, status int, message string) {
		if status == http.StatusTooManyRequests {
			writeCallableEnvelope(w, status, callableResourceExhausted, message)
			return
		}
		writeCallableEnvelope(w, status, callableInternal, callableInternalMessage)
	}, next)
}

func rateLimited(limiter MiddlewareLimiter, scope string, log *logger.Logger,
	reject func(w http.ResponseWriter, status int, message string), next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if limiter == nil || !limiter.Enabled() {
			next(w, r)
			return
		}

		key := services.ExtractClientIP(r)
		allowed, remaining, resetAt, err := limiter.Allow(r.Context(), scope, key)
		if err != nil {
			log.WithError(err).WithField("scope", scope).Error("Rate limiter failed")
			reject(w, http.StatusInternalServerError, "Rate limiter error")
			return
		}

		// Заголовки совместимые с common rate limit policy
		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(limiter.Limit(scope), 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		if !resetAt.IsZero() {
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
		}

		if !allowed {
			reject(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}

		next(w, r)
	}
}
