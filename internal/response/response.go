// Package response provides shared JSON response helpers for HTTP handlers
// and the single place where error kinds are mapped to HTTP status codes.
package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/supriyameruva/filegate/internal/apperr"
)

// Envelope is the standard API response envelope.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// JSON writes a JSON-encoded payload with the given HTTP status code.
func JSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// OK writes a 200 response with data.
func OK(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusOK, Envelope{Success: true, Data: data})
}

// Error writes an error response with the given status and message.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Envelope{Success: false, Error: message})
}

// Unauthorized writes a 401 response.
func Unauthorized(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnauthorized, message)
}

// FromError classifies err and writes the matching response. This is the only
// place error kinds turn into status codes; unclassified errors become a
// generic 500 so no backend or credential detail leaks to the client.
func FromError(w http.ResponseWriter, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		log.Error().Err(err).Msg("unclassified error")
		Error(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if ae.Err != nil {
		log.Error().Str("kind", ae.Kind.String()).Err(ae.Err).Msg(ae.Msg)
	}

	Error(w, statusOf(ae.Kind), ae.Msg)
}

func statusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNoFile, apperr.KindBadExtension, apperr.KindBadName:
		return http.StatusBadRequest
	case apperr.KindAlreadyExists:
		return http.StatusConflict
	case apperr.KindNotAuthenticated:
		return http.StatusUnauthorized
	case apperr.KindCredentialExpired:
		return http.StatusUnauthorized
	case apperr.KindStateMismatch, apperr.KindCodeExchangeFailed:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindBackendTimeout:
		return http.StatusGatewayTimeout
	case apperr.KindInvalidConfig, apperr.KindBackendUnavailable:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

// Attachment streams content to the client with an attachment disposition.
// When size is negative the Content-Length header is omitted.
func Attachment(w http.ResponseWriter, name string, size int64, content io.Reader) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if size >= 0 {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, content); err != nil {
		// Headers are out; all we can do is drop the connection.
		log.Warn().Err(err).Str("name", name).Msg("download stream interrupted")
	}
}
