package filterstate

import (
	"net/http"
	"time"

	"github.com/odyssey-erp/invoice-insights/internal/shared"
)

// Options configures Middleware.
type Options struct {
	WindowDays int
	Now        func() time.Time
}

// Middleware restores the holder from the request session and installs it in
// the request context. Requests without a session get no holder.
func Middleware(opts Options) func(http.Handler) http.Handler {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			if sess == nil {
				next.ServeHTTP(w, r)
				return
			}
			h := Load(sess, now(), opts.WindowDays)
			next.ServeHTTP(w, r.WithContext(WithHolder(r.Context(), h)))
		})
	}
}
