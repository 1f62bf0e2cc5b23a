package handlers

import (
	"net/http"
	"strings"

	"kobonz/internal/apperror"
	"kobonz/internal/auth"
	"kobonz/internal/logger"
)

var (
	errAuthRequired = apperror.Unauthenticated("authentication required", nil)
	errInvalidToken = apperror.Unauthenticated("Invalid or expired token", nil)
)

// AuthMiddleware извлекает Bearer токен и кладёт Principal в контекст запроса.
type AuthMiddleware struct {
	tokens TokenParser
	log    *logger.Logger
}

// NewAuthMiddleware создаёт middleware аутентификации.
func NewAuthMiddleware(tokens TokenParser, log *logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		tokens: tokens,
		log:    log,
	}
}

// Optional пропускает анонимные запросы, но отклоняет битый токен.
func (m *AuthMiddleware) Optional(next http.HandlerFunc) http.HandlerFunc {
	return m.optional(next, func(w http.ResponseWriter, err error) {
		writeErrorResponse(w, http.StatusUnauthorized, err.Error())
	})
}

// Callable как Optional, но отказ пишется в конверте callable-протокола.
func (m *AuthMiddleware) Callable(next http.HandlerFunc) http.HandlerFunc {
	return m.optional(next, func(w http.ResponseWriter, err error) {
		writeCallableError(w, m.log, err)
	})
}

func (m *AuthMiddleware) optional(next http.HandlerFunc, reject func(w http.ResponseWriter, err error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			next(w, r)
			return
		}

		principal, err := m.tokens.Parse(raw)
		if err != nil {
			m.log.WithError(err).Debug("Rejected bearer token")
			reject(w, errInvalidToken)
			return
		}
		next(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
	}
}

// Required требует валидный токен.
func (m *AuthMiddleware) Required(next http.HandlerFunc) http.HandlerFunc {
	return m.Optional(func(w http.ResponseWriter, r *http.Request) {
		if auth.FromContext(r.Context()) == nil {
			writeErrorResponse(w, http.StatusUnauthorized, errAuthRequired.Error())
			return
		}
		next(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
