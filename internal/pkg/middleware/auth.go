package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gamma-omg/expense-go/internal/pkg/httpx"
	"github.com/gamma-omg/expense-go/internal/pkg/router"
)

// ErrUnauthenticated is returned by resolvers when the request carries no usable session
var ErrUnauthenticated = errors.New("unauthenticated")

type ctxKey struct{}

var callerKey ctxKey

// Caller is the authenticated identity behind a request
type Caller struct {
	ID      string
	Name    string
	Email   string
	Picture string
}

type CallerResolver interface {
	Resolve(r *http.Request) (Caller, error)
}

// Auth rejects requests without a resolvable caller with 401 before the
// wrapped handler runs
func Auth(res CallerResolver) router.Middleware {
	return func(next http.Handler) http.Handler {
		return authMiddleware(next, res)
	}
}

func authMiddleware(next http.Handler, res CallerResolver) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, err := res.Resolve(r)
		if err != nil {
			if !errors.Is(err, ErrUnauthenticated) {
				authError("failed to resolve caller", w, r, err)
				return
			}

			httpx.WriteMessage(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		if caller.ID == "" {
			httpx.WriteMessage(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
	})
}

func authError(msg string, w http.ResponseWriter, r *http.Request, err error) {
	slog.Error(msg,
		"error", err,
		"method", r.Method,
		"url", r.URL.String(),
		"remote_addr", r.RemoteAddr,
	)
	httpx.WriteMessage(w, http.StatusUnauthorized, "Not authenticated")
}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey, c)
}

func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey).(Caller)
	return c, ok
}

func UserIDFromContext(ctx context.Context) string {
	c, _ := CallerFromContext(ctx)
	return c.ID
}
