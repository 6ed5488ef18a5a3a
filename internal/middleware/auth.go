package middleware

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/submitlink/internal/auth"
)

// StaffResolver maps a bearer token to a staff identity.
type StaffResolver interface {
	Resolve(token string) (auth.StaffContext, error)
}

// ResolveStaff attaches the caller's staff identity when a valid bearer token
// is present. It never rejects a request; the access guard does that.
func ResolveStaff(resolver StaffResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := auth.BearerToken(r)
			if tok == "" {
				next.ServeHTTP(w, r)
				return
			}
			sc, err := resolver.Resolve(tok)
			if err != nil {
				logger.Debug("staff token rejected", "error", err, "request_id", RequestIDFrom(r.Context()))
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithStaff(r.Context(), sc)))
		})
	}
}
