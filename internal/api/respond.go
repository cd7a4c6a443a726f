package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/sells-group/microfinance-cli/internal/risk"
	"github.com/sells-group/microfinance-cli/internal/sheet"
	"github.com/sells-group/microfinance-cli/internal/store"
	"github.com/sells-group/microfinance-cli/internal/upload"
)

type errorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

// writeError maps err onto a status code. Unexpected errors are logged and
// reported with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *risk.ValidationError
		lerr *sheet.LoadError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Reason, Fields: verr.Fields})
	case errors.As(err, &lerr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "could not read spreadsheet: " + lerr.Err.Error()})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, upload.ErrEmptyName), errors.Is(err, upload.ErrUnsupported):
		badRequest(w, err.Error())
	case errors.Is(err, upload.ErrTooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: err.Error()})
	default:
		zap.L().Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(r *http.Request, key string) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
