package middleware

import (
	"context"
	"net/http"
	"time"

	"makemyoutfit/internal/session"
)

const (
	SessionHeader = "X-Session-ID"
	SessionCookie = "outfit_session"
)

// SessionOptions configures the session cookie.
type SessionOptions struct {
	TTL    time.Duration
	Secure bool
}

// Session resolves the caller's session token from the X-Session-ID header or
// the outfit_session cookie. Missing or malformed tokens are replaced with a
// fresh one. The token is always echoed in the header and refreshed in the
// cookie.
func Session(opts SessionOptions) func(http.Handler) http.Handler {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = session.DefaultTTL
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(SessionHeader)
			if !session.Valid(id) {
				id = ""
				if c, err := r.Cookie(SessionCookie); err == nil && session.Valid(c.Value) {
					id = c.Value
				}
			}
			if id == "" {
				id = session.NewID()
			}

			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   int(ttl.Seconds()),
				HttpOnly: true,
				Secure:   opts.Secure,
				SameSite: http.SameSiteLaxMode,
			})
			w.Header().Set(SessionHeader, id)

			ctx := context.WithValue(r.Context(), sessionIDKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionIDKey).(string); ok {
		return v
	}
	return ""
}
