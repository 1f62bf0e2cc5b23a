package handlers

import (
	"net/http"

	"kobonz/internal/auth"
	"kobonz/internal/config"
	"kobonz/internal/logger"
	"kobonz/internal/models"
	"kobonz/internal/services"

	"github.com/google/uuid"
)

const defaultAttributionCookie = "kobonz_aff"

// CouponHandler публичная витрина купонов, погашение и кабинет магазина.
type CouponHandler struct {
	coupons    CouponService
	redeemer   Redeemer
	log        *logger.Logger
	cookieName string
}

// NewCouponHandler создаёт обработчик купонов.
func NewCouponHandler(coupons CouponService, redeemer Redeemer, log *logger.Logger, cfg *config.TrackingConfig) *CouponHandler {
	cookieName := defaultAttributionCookie
	if cfg != nil && cfg.CookieName != "" {
		cookieName = cfg.CookieName
	}
	return &CouponHandler{
		coupons:    coupons,
		redeemer:   redeemer,
		log:        log,
		cookieName: cookieName,
	}
}

// ListPublic список погашаемых купонов.
func (h *CouponHandler) ListPublic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit, offset := parsePagination(r, 20, 100)
	coupons, err := h.coupons.ListCoupons(r.Context(), nil, true, limit, offset)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list coupons")
		return
	}

	writeJSONResponse(w, http.StatusOK, coupons)
}

// GetPublic карточка купона. Неодобренные и выключенные купоны скрыты.
func (h *CouponHandler) GetPublic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, err := extractUUIDFromPath(r.URL.Path, "/api/public/coupons/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid coupon ID")
		return
	}

	coupon, err := h.coupons.GetCoupon(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get coupon")
		return
	}
	if !coupon.Approved || !coupon.Active {
		writeServiceError(w, h.log, services.ErrCouponNotFound, "Failed to get coupon")
		return
	}

	writeJSONResponse(w, http.StatusOK, coupon)
}

// Redeem погашает купон. Атрибуция берётся из HTTP-only cookie,
// аккаунт из токена, если он есть.
func (h *CouponHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, err := extractUUIDFromPath(r.URL.Path, "/api/public/coupons/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid coupon ID")
		return
	}

	req := &models.RedeemRequest{CouponID: id}
	if principal := auth.FromContext(r.Context()); principal != nil {
		req.AccountID = &principal.AccountID
	}
	if cookie, err := r.Cookie(h.cookieName); err == nil {
		req.TrackingCode = cookie.Value
	}

	result, err := h.redeemer.Redeem(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to redeem coupon")
		return
	}

	writeJSONResponse(w, http.StatusOK, result)
}

// Create создаёт купон магазина. Купон администратора одобряется сразу.
func (h *CouponHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	principal := auth.FromContext(r.Context())
	if !auth.CanCreateCoupons(principal) {
		writeErrorResponse(w, http.StatusForbidden, "Only shop owners can create coupons")
		return
	}

	var req models.CreateCouponRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeServiceError(w, h.log, err, "Failed to create coupon")
		return
	}

	coupon, err := h.coupons.CreateCoupon(r.Context(), principal.AccountID, principal.IsAdmin(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create coupon")
		return
	}

	writeJSONResponse(w, http.StatusCreated, coupon)
}

// ListMine купоны магазина вызывающего, включая неодобренные.
func (h *CouponHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	principal := auth.FromContext(r.Context())
	if !auth.CanCreateCoupons(principal) {
		writeErrorResponse(w, http.StatusForbidden, "Only shop owners can list their coupons")
		return
	}

	var shopID *uuid.UUID
	if !principal.IsAdmin() {
		shopID = &principal.AccountID
	}

	limit, offset := parsePagination(r, 20, 100)
	coupons, err := h.coupons.ListCoupons(r.Context(), shopID, false, limit, offset)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list coupons")
		return
	}

	writeJSONResponse(w, http.StatusOK, coupons)
}

// Approve одобряет купон к публикации.
func (h *CouponHandler) Approve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if !auth.CanApproveCoupons(auth.FromContext(r.Context())) {
		writeErrorResponse(w, http.StatusForbidden, "Only admins can approve coupons")
		return
	}

	id, err := extractUUIDFromPath(r.URL.Path, "/api/coupons/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid coupon ID")
		return
	}

	coupon, err := h.coupons.ApproveCoupon(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to approve coupon")
		return
	}

	writeJSONResponse(w, http.StatusOK, coupon)
}

// Stats статистика купона для его магазина.
func (h *CouponHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, err := extractUUIDFromPath(r.URL.Path, "/api/coupons/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid coupon ID")
		return
	}

	coupon, err := h.coupons.GetCoupon(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get coupon")
		return
	}
	if !auth.CanManageCoupon(auth.FromContext(r.Context()), coupon.ShopID) {
		writeErrorResponse(w, http.StatusForbidden, "Not allowed to view coupon stats")
		return
	}

	stats, err := h.coupons.GetCouponStats(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get coupon stats")
		return
	}

	writeJSONResponse(w, http.StatusOK, stats)
}
