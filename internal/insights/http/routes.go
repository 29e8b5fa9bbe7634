package insightshttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/invoice-insights/internal/platform/httpx"
	"github.com/odyssey-erp/invoice-insights/internal/shared"
)

// MountRoutes registers the invoice insights API onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	exportLimiter := httprate.Limit(10, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests), "")
		}),
	)

	r.Get("/session", h.handleSession)

	r.Route("/filters", func(fr chi.Router) {
		fr.Get("/", h.handleGetFilters)
		fr.Put("/", h.handlePutFilters)
		fr.Delete("/", h.handleResetFilters)
		fr.Delete("/range", h.handleClearRange)
	})

	r.Route("/invoices", func(ir chi.Router) {
		ir.Get("/", h.handleTable)
		ir.Get("/stats", h.handleStats)
		ir.With(exportLimiter).Get("/stats.csv", h.handleStatsCSV)
		ir.Post("/{uuid}/approve", h.handleApprove)
		ir.Post("/{uuid}/reject", h.handleReject)
		ir.Delete("/{uuid}", h.handleDelete)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil && sess.ID != "" {
		return "session:" + sess.ID, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
