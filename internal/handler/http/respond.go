package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/taskflowhq/taskflow/pkg/httputil"
)

// The handler package reuses the shared envelope so every response carries
// the same shape, request_id included.
type response = httputil.Response

type errorResponse = httputil.ErrorResponse

func writeJSON(w http.ResponseWriter, status int, v any) {
	httputil.WriteJSON(w, status, v)
}

func writeBodyError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, response{
		Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
	})
}

func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.WriteError(w, r, err, slog.Default())
}

func writeValidationError(w http.ResponseWriter, err error) {
	httputil.WriteValidationError(w, err)
}

// bearerToken extracts the raw token from the Authorization header, or ""
// when absent or malformed.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
