// Package httpx holds the JSON helpers shared by the gateway handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	pg "github.com/NordCoder/GetMoreSeo/internal/repository/postgres"
)

// ErrForbidden is returned by use cases when the caller does not own the
// resource.
var ErrForbidden = errors.New("forbidden")

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, map[string]string{"error": msg})
}

// Decode reads a JSON body of at most 1 MiB into v.
func Decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// Status maps use-case and repository errors to an HTTP status. Unknown
// errors are 500.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, pg.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pg.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, pg.ErrConstraint):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// Fail writes err with its mapped status, hiding internal error text.
func Fail(w http.ResponseWriter, err error) {
	code := Status(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = "internal error"
	}
	Error(w, code, msg)
}
