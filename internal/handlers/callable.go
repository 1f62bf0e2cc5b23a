package handlers

import (
	"net/http"

	"kobonz/internal/auth"
	"kobonz/internal/logger"
	"kobonz/internal/models"
	"kobonz/internal/services"

	"github.com/google/uuid"
)

// callableRequest конверт запроса callable-протокола: полезная нагрузка в data.
// Валидатор проверяет вложенную структуру рекурсивно.
type callableRequest[T any] struct {
	Data *T `json:"data" validate:"required"`
}

type callableError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CallableHandler RPC-эндпоинты в формате {data} -> {result} | {error}.
type CallableHandler struct {
	redeemer Redeemer
	tracker  ClickTracker
	log      *logger.Logger
}

// NewCallableHandler создаёт обработчик callable-эндпоинтов.
func NewCallableHandler(redeemer Redeemer, tracker ClickTracker, log *logger.Logger) *CallableHandler {
	return &CallableHandler{
		redeemer: redeemer,
		tracker:  tracker,
		log:      log,
	}
}

// RedeemCoupon погашает купон от имени аутентифицированного пользователя.
func (h *CallableHandler) RedeemCoupon(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	principal := auth.FromContext(r.Context())
	if principal == nil {
		h.writeError(w, errAuthRequired)
		return
	}

	var req callableRequest[models.CallableRedeemData]
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	couponID, _ := uuid.Parse(req.Data.CouponID)
	redeem := &models.RedeemRequest{
		CouponID:  couponID,
		AccountID: &principal.AccountID,
	}
	if req.Data.AffiliateID != "" {
		affiliateID, _ := uuid.Parse(req.Data.AffiliateID)
		redeem.AffiliateID = &affiliateID
	}

	result, err := h.redeemer.Redeem(r.Context(), redeem)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"result": map[string]interface{}{
			"success":          true,
			"message":          "Coupon redeemed successfully",
			"redemptionId":     result.Redemption.ID,
			"usesLeft":         result.UsesLeft,
			"rewardPoints":     result.RewardPoints,
			"referralRewarded": result.ReferralRewarded,
		},
	})
}

// TrackCouponClick ставит клик в очередь. Ответ всегда успешный, если тело корректно.
func (h *CallableHandler) TrackCouponClick(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req callableRequest[models.CallableTrackClickData]
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	couponID, _ := uuid.Parse(req.Data.CouponID)
	if !h.tracker.Track(services.ClickEvent{CouponID: couponID}) {
		h.log.WithField("coupon_id", couponID).Debug("Click not tracked")
	}

	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"result": map[string]interface{}{"success": true},
	})
}

func (h *CallableHandler) writeError(w http.ResponseWriter, err error) {
	writeCallableError(w, h.log, err)
}

func writeCallableError(w http.ResponseWriter, log *logger.Logger, err error) {
	code, status := callableCode(err)
	message := err.Error()
	if code == callableInternal {
		if log != nil {
			log.WithError(err).Error("Callable request failed")
		}
		message = callableInternalMessage
	}
	writeCallableEnvelope(w, status, code, message)
}

func writeCallableEnvelope(w http.ResponseWriter, status int, code, message string) {
	writeJSONResponse(w, status, map[string]interface{}{
		"error": callableError{Code: code, Message: message},
	})
}
