// Package middleware provides HTTP middlewares for caller identification,
// rate limiting and request logging.
package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/atinyakov/easyvault/internal/models"
)

type ctxKey string

const callerKey ctxKey = "caller"

// UnknownAgent is used when a request carries no User-Agent header.
const UnknownAgent = "unknown"

// CallerInfo resolves the caller address and agent once per request and
// stores them in the request context.
//
// When trustProxy is set, the first X-Forwarded-For hop is taken as the
// address. Otherwise the host part of RemoteAddr is used and forwarding
// headers are ignored so clients cannot spoof an allowed address.
func CallerInfo(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := models.Caller{
				Address: clientAddress(r, trustProxy),
				Agent:   strings.TrimSpace(r.UserAgent()),
			}
			if caller.Agent == "" {
				caller.Agent = UnknownAgent
			}
			ctx := context.WithValue(r.Context(), callerKey, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetCallerFromContext returns the caller stored by CallerInfo. An empty
// Caller with UnknownAgent is returned if none was stored.
func GetCallerFromContext(ctx context.Context) models.Caller {
	if c, ok := ctx.Value(callerKey).(models.Caller); ok {
		return c
	}
	return models.Caller{Agent: UnknownAgent}
}

func clientAddress(r *http.Request, trustProxy bool) string {
	if trustProxy {
		xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
		if xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
