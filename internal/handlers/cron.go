package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"kobonz/internal/logger"
	"kobonz/internal/services"
)

// CronHandler запускает периодические задачи по запросу планировщика.
type CronHandler struct {
	sweeper EarningsSweeper
	secret  string
	log     *logger.Logger
}

// NewCronHandler создаёт обработчик. Пустой secret закрывает эндпоинт.
func NewCronHandler(sweeper EarningsSweeper, secret string, log *logger.Logger) *CronHandler {
	return &CronHandler{
		sweeper: sweeper,
		secret:  secret,
		log:     log,
	}
}

// ProcessEarnings переводит созревшие комиссии в available.
func (h *CronHandler) ProcessEarnings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if !h.authorized(r) {
		h.log.WithField("remote_addr", r.RemoteAddr).Warn("Unauthorized cron request")
		writeErrorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	result, err := h.sweeper.Run(r.Context())
	if err != nil {
		if errors.Is(err, services.ErrSweepInProgress) {
			writeErrorResponse(w, http.StatusConflict, err.Error())
			return
		}
		h.log.WithError(err).Error("Earnings sweep failed")
		writeErrorResponse(w, http.StatusInternalServerError, "Earnings sweep failed")
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"result":  result,
	})
}

func (h *CronHandler) authorized(r *http.Request) bool {
	if h.secret == "" {
		return false
	}
	token, ok := bearerToken(r)
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) == 1
}
