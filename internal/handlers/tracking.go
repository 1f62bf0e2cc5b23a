package handlers

import (
	"net/http"
	"strings"
	"time"

	"kobonz/internal/config"
	"kobonz/internal/logger"
	"kobonz/internal/services"

	"github.com/google/uuid"
)

// TrackingHandler обслуживает партнёрские ссылки /go/{code}.
type TrackingHandler struct {
	affiliates   AffiliateService
	tracker      ClickTracker
	log          *logger.Logger
	cookieName   string
	cookieMaxAge time.Duration
	cookieSecure bool
	appBaseURL   string
}

// NewTrackingHandler создаёт обработчик редиректов.
func NewTrackingHandler(affiliates AffiliateService, tracker ClickTracker, log *logger.Logger, cfg *config.TrackingConfig) *TrackingHandler {
	h := &TrackingHandler{
		affiliates:   affiliates,
		tracker:      tracker,
		log:          log,
		cookieName:   defaultAttributionCookie,
		cookieMaxAge: 30 * 24 * time.Hour,
		cookieSecure: cfg.CookieSecure,
		appBaseURL:   strings.TrimRight(cfg.AppBaseURL, "/"),
	}
	if cfg.CookieName != "" {
		h.cookieName = cfg.CookieName
	}
	if cfg.CookieMaxAgeDays > 0 {
		h.cookieMaxAge = time.Duration(cfg.CookieMaxAgeDays) * 24 * time.Hour
	}
	return h
}

// Redirect проверяет ссылку, ставит клик в очередь, запоминает код
// в cookie и перенаправляет на страницу купона.
func (h *TrackingHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	code := strings.Trim(strings.TrimPrefix(r.URL.Path, "/go/"), "/")
	if code == "" || strings.Contains(code, "/") {
		writeErrorResponse(w, http.StatusBadRequest, "Tracking code is required")
		return
	}

	var couponID *uuid.UUID
	if raw := r.URL.Query().Get("coupon"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "Invalid coupon ID")
			return
		}
		couponID = &id
	}

	link, err := h.affiliates.ResolveClick(r.Context(), code, couponID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to resolve affiliate link")
		return
	}

	if !h.tracker.Track(services.ClickEvent{CouponID: link.CouponID, LinkID: &link.ID}) {
		h.log.WithField("link_id", link.ID).Debug("Click not tracked")
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    link.TrackingCode,
		Path:     "/",
		MaxAge:   int(h.cookieMaxAge.Seconds()),
		Expires:  time.Now().Add(h.cookieMaxAge),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.appBaseURL+"/coupons/"+link.CouponID.String(), http.StatusFound)
}
