package handler

import (
	"io"
	"net/http"

	"github.com/pillbox/pillbox-backend/internal/dispenser/service"
	"github.com/pillbox/pillbox-backend/pkg/errors"
	"github.com/pillbox/pillbox-backend/pkg/httputil"
	"github.com/pillbox/pillbox-backend/pkg/logger"
	"github.com/pillbox/pillbox-backend/pkg/metrics"
)

// maxReportBytes bounds the device request body
const maxReportBytes = 4 << 10

// deviceResponse is the fixed body shape controllers parse
type deviceResponse struct {
	Status string `json:"status"`
	Msg    string `json:"msg,omitempty"`
	BoxID  int    `json:"box_id,omitempty"`
}

// DeviceHandler handles dispense reports from dispenser controllers
type DeviceHandler struct {
	service *service.DispenserService
	apiKey  string
	logger  *logger.Logger
}

// NewDeviceHandler creates a new device handler
func NewDeviceHandler(svc *service.DispenserService, apiKey string, log *logger.Logger) *DeviceHandler {
	return &DeviceHandler{
		service: svc,
		apiKey:  apiKey,
		logger:  log,
	}
}

// Report authenticates a controller and applies its dispense report
func (h *DeviceHandler) Report(w http.ResponseWriter, r *http.Request) {
	if !service.KeyMatches(r.Header.Get("X-API-KEY"), h.apiKey) {
		metrics.DeviceReport(metrics.ResultUnauthorized)
		h.logger.Warn().Str("remote_addr", r.RemoteAddr).Msg("device report rejected: bad api key")
		httputil.WriteJSON(w, http.StatusForbidden, deviceResponse{Status: "error", Msg: "Unauthorized"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxReportBytes))
	if err != nil {
		metrics.DeviceReport(metrics.ResultBadRequest)
		httputil.WriteJSON(w, http.StatusBadRequest, deviceResponse{Status: "error", Msg: "Bad request"})
		return
	}

	report, err := service.DecodeReport(body)
	if err != nil {
		metrics.DeviceReport(metrics.ResultBadRequest)
		h.logger.Debug().Err(err).Msg("device report rejected: bad payload")
		httputil.WriteJSON(w, http.StatusBadRequest, deviceResponse{Status: "error", Msg: "Bad request"})
		return
	}

	boxID := *report.BoxID
	if _, err := h.service.RecordDispense(r.Context(), boxID, *report.Dispensed, service.SourceHTTP); err != nil {
		switch {
		case errors.Is(err, errors.ErrNotFound):
			metrics.DeviceReport(metrics.ResultNotFound)
			h.logger.Warn().Int("box_id", boxID).Msg("device report for empty box")
			httputil.WriteJSON(w, http.StatusNotFound, deviceResponse{Status: "error", Msg: "Not found"})
		case errors.Is(err, errors.ErrBadRequest):
			metrics.DeviceReport(metrics.ResultBadRequest)
			httputil.WriteJSON(w, http.StatusBadRequest, deviceResponse{Status: "error", Msg: "Bad request"})
		default:
			metrics.DeviceReport(metrics.ResultError)
			h.logger.Error().Err(err).Int("box_id", boxID).Msg("failed to apply device report")
			httputil.WriteJSON(w, http.StatusInternalServerError, deviceResponse{Status: "error"})
		}
		return
	}

	metrics.DeviceReport(metrics.ResultSuccess)
	httputil.WriteJSON(w, http.StatusOK, deviceResponse{Status: "success", BoxID: boxID})
}

// RateLimited answers a throttled controller in the device body shape
func RateLimited(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusTooManyRequests, deviceResponse{Status: "error", Msg: "Too many requests"})
}
