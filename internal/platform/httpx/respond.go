package httpx

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/ridehouse/api/internal/platform/requestctx"
)

// WriteJSON encodes v as the response body with the given status code.
// Encoding failures are logged; by then the status line is already committed.
func WriteJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		requestctx.Logger(ctx).Warn("httpx: encode response", zap.Error(err))
	}
}

// DecodeJSON strictly decodes the request body into v.
func DecodeJSON(r *http.Request, v any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}
