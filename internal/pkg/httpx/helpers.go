package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gamma-omg/expense-go/internal/pkg/serr"
)

// ErrorResponse is the body written for every failed request
type ErrorResponse struct {
	Message string            `json:"message"`
	Errors  []serr.FieldError `json:"errors,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, resp any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	return enc.Encode(resp)
}

// WriteMessage writes a bare {"message": msg} body
func WriteMessage(w http.ResponseWriter, status int, msg string) {
	_ = WriteJSON(w, status, ErrorResponse{Message: msg})
}

func HandleErr(w http.ResponseWriter, r *http.Request, err error) {
	var se *serr.ServiceError
	if errors.As(err, &se) {
		level := slog.LevelWarn
		if se.StatusCode >= http.StatusInternalServerError {
			level = slog.LevelError
		}

		slog.Log(r.Context(), level, "request error",
			"error", err,
			"cause", se.Err,
			"status", se.StatusCode,
			"env", se.Env,
			"method", r.Method,
			"url", r.URL.String(),
			"remote_addr", r.RemoteAddr,
		)

		_ = WriteJSON(w, se.StatusCode, ErrorResponse{
			Message: se.Msg,
			Errors:  se.Fields,
		})
		return
	}

	slog.Error("request error",
		"error", err,
		"method", r.Method,
		"url", r.URL.String(),
		"remote_addr", r.RemoteAddr,
	)

	WriteMessage(w, http.StatusInternalServerError, "Internal Server Error")
}
