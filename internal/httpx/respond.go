package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/ariefcatur/go-bookstore-ledger/internal/bookstore"
)

const maxBody = 1 << 20

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"message": msg})
}

func statusOf(err error) int {
	switch {
	case bookstore.IsValidation(err), bookstore.IsInsufficientFunds(err), bookstore.IsInsufficientStock(err):
		return http.StatusBadRequest
	case bookstore.IsUnauthenticated(err):
		return http.StatusUnauthorized
	case bookstore.IsForbidden(err):
		return http.StatusForbidden
	case bookstore.IsNotFound(err):
		return http.StatusNotFound
	case bookstore.IsConflict(err):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError shows business rejections verbatim and hides everything else.
func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	code := statusOf(err)
	if code == http.StatusInternalServerError {
		log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeMessage(w, code, "Internal server error")
		return
	}
	var ve *bookstore.ValidationError
	if errors.As(err, &ve) {
		body := map[string]string{"message": ve.Message}
		if ve.Field != "" {
			body["field"] = ve.Field
		}
		writeJSON(w, code, body)
		return
	}
	writeMessage(w, code, err.Error())
}

// decode reads a JSON body, rejecting unknown fields and trailing data.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return bookstore.Invalid("body", fmt.Sprintf("Invalid request body: %v", err))
	}
	if dec.More() {
		return bookstore.Invalid("body", "Invalid request body: trailing data")
	}
	return nil
}
