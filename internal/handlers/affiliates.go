package handlers

import (
	"net/http"

	"kobonz/internal/auth"
	"kobonz/internal/logger"
	"kobonz/internal/models"

	"github.com/google/uuid"
)

// AffiliateHandler кабинет аффилиата: ссылки и начисления.
type AffiliateHandler struct {
	affiliates AffiliateService
	log        *logger.Logger
}

// NewAffiliateHandler создаёт обработчик аффилиатов.
func NewAffiliateHandler(affiliates AffiliateService, log *logger.Logger) *AffiliateHandler {
	return &AffiliateHandler{
		affiliates: affiliates,
		log:        log,
	}
}

// CreateLink создаёт ссылку на купон.
func (h *AffiliateHandler) CreateLink(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	principal := auth.FromContext(r.Context())
	if !auth.CanCreateAffiliateLinks(principal) {
		writeErrorResponse(w, http.StatusForbidden, "Only affiliates can create links")
		return
	}

	var req models.CreateAffiliateLinkRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeServiceError(w, h.log, err, "Failed to create affiliate link")
		return
	}
	couponID, _ := uuid.Parse(req.CouponID)

	link, err := h.affiliates.CreateLink(r.Context(), principal.AccountID, couponID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create affiliate link")
		return
	}

	writeJSONResponse(w, http.StatusCreated, link)
}

// ListLinks ссылки вызывающего аффилиата.
func (h *AffiliateHandler) ListLinks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	principal := auth.FromContext(r.Context())
	if !auth.CanCreateAffiliateLinks(principal) {
		writeErrorResponse(w, http.StatusForbidden, "Only affiliates can list links")
		return
	}

	links, err := h.affiliates.ListLinks(r.Context(), principal.AccountID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list affiliate links")
		return
	}

	writeJSONResponse(w, http.StatusOK, links)
}

// ListEarnings начисления вызывающего аффилиата.
func (h *AffiliateHandler) ListEarnings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	principal := auth.FromContext(r.Context())
	if !auth.CanCreateAffiliateLinks(principal) {
		writeErrorResponse(w, http.StatusForbidden, "Only affiliates can view earnings")
		return
	}

	limit, offset := parsePagination(r, 50, 200)
	earnings, err := h.affiliates.ListEarnings(r.Context(), principal.AccountID, limit, offset)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list earnings")
		return
	}

	writeJSONResponse(w, http.StatusOK, earnings)
}
