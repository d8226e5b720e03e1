package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	contractx "github.com/mminh007/machine-translation/agent/contract"
	logx "github.com/mminh007/machine-translation/pkg/logger"
	speechx "github.com/mminh007/machine-translation/pkg/speech"
)

const detailUnexpected = "Unexpected error"

var errUnknownModel = errors.New("unknown model")

type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}

// writeError maps err to a status and a client-safe detail. Anything not
// classified is logged and reported generically.
func writeError(w http.ResponseWriter, r *http.Request, err error, agentKey string) {
	status, detail := classify(err, agentKey)
	if status >= http.StatusInternalServerError {
		logx.FromContext(r.Context()).Error().Err(err).Msg("request failed")
	}
	writeDetail(w, status, detail)
}

func classify(err error, agentKey string) (int, string) {
	var conflict *contractx.ConfigConflictError
	switch {
	case errors.As(err, &conflict):
		return http.StatusUnprocessableEntity, conflict.Error()
	case errors.Is(err, contractx.ErrAgentNotFound):
		return http.StatusNotFound, fmt.Sprintf("Agent '%s' not found.", agentKey)
	case errors.Is(err, contractx.ErrHistoryNotFound):
		return http.StatusNotFound, "Thread not found."
	case errors.Is(err, contractx.ErrInvalidThread):
		return http.StatusUnprocessableEntity, "thread_id is required."
	case errors.Is(err, errUnknownModel):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, speechx.ErrNotAvailable):
		return http.StatusServiceUnavailable, "Speech recognition is not configured."
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, detailUnexpected
	}
}
