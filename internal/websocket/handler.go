package websocket

import (
	"context"
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/submitlink/internal/apperr"
)

// Authorizer returns the staff person id for the request or a domain error.
type Authorizer func(ctx context.Context) (int64, error)

// HandleStaffFeed upgrades authorized staff requests and streams hub
// messages to them. originPatterns restricts cross-origin browsers; empty
// means same-origin only.
func HandleStaffFeed(hub *Hub, authorize Authorizer, originPatterns []string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		personID, err := authorize(r.Context())
		if err != nil {
			if e, ok := apperr.As(err); ok {
				apperr.Write(w, e)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{OriginPatterns: originPatterns})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}

		NewClient(hub, conn, personID).Run(r.Context())
	}
}
