package httpserver

import (
	"errors"
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/harvestlink/bid-engine/pkg/types"
	"go.uber.org/zap"
)

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// StatusForKind maps a bid error kind to its HTTP status.
func StatusForKind(kind types.ErrorKind) int {
	switch kind {
	case types.KindInvalidRequest, types.KindInvalidAmount, types.KindBelowMinimumIncrement:
		return http.StatusBadRequest
	case types.KindLotNotFound:
		return http.StatusNotFound
	case types.KindFraudRejected:
		return http.StatusForbidden
	case types.KindProductUnavailable, types.KindBidNotHighEnough, types.KindConcurrencyExhausted:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		logger.Error("failed-to-encode-response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string, logger *zap.Logger) {
	writeJSON(w, status, ErrorResponse{Error: message}, logger)
}

// writeBidError writes err's bidder-safe message. Errors that are not bid
// errors never leak their text.
func writeBidError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var bidErr *types.BidError
	if !errors.As(err, &bidErr) {
		logger.Error("unexpected-handler-error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: types.ErrPersistence.Message,
			Code:  string(types.KindPersistence),
		}, logger)
		return
	}

	writeJSON(w, StatusForKind(bidErr.Kind), ErrorResponse{
		Error: bidErr.Message,
		Code:  string(bidErr.Kind),
	}, logger)
}
