// Package insightshttp exposes invoice stats, table views and the shared
// filter state as a JSON API.
package insightshttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/odyssey-erp/invoice-insights/internal/filterstate"
	"github.com/odyssey-erp/invoice-insights/internal/insights"
	"github.com/odyssey-erp/invoice-insights/internal/invoices"
	"github.com/odyssey-erp/invoice-insights/internal/invoices/export"
	"github.com/odyssey-erp/invoice-insights/internal/invoices/source"
	"github.com/odyssey-erp/invoice-insights/internal/invoices/stats"
	"github.com/odyssey-erp/invoice-insights/internal/invoices/table"
	"github.com/odyssey-erp/invoice-insights/internal/platform/httpx"
	"github.com/odyssey-erp/invoice-insights/internal/shared"
)

// DefaultRequestTimeout bounds source calls made on behalf of one request.
const DefaultRequestTimeout = 30 * time.Second

// Service is the business contract the handler depends on.
type Service interface {
	Stats(ctx context.Context, rng *invoices.DateRange) (stats.Summary, error)
	Table(ctx context.Context, req source.ListRequest, q table.Query) (insights.TableResult, error)
	Approve(ctx context.Context, id string) error
	Reject(ctx context.Context, id, reason string) error
	Delete(ctx context.Context, id string) error
}

// Handler serves the /api endpoints.
type Handler struct {
	logger     *slog.Logger
	service    Service
	csrf       *shared.CSRFManager
	validate   *validator.Validate
	windowDays int
	timeout    time.Duration
	now        func() time.Time
}

// NewHandler constructs the handler. windowDays sizes the default date range
// restored by a filter reset.
func NewHandler(logger *slog.Logger, service Service, csrf *shared.CSRFManager, windowDays int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:     logger,
		service:    service,
		csrf:       csrf,
		validate:   validator.New(),
		windowDays: windowDays,
		timeout:    DefaultRequestTimeout,
		now:        time.Now,
	}
}

// WithRequestTimeout bounds the stats and table fetches of one request.
func (h *Handler) WithRequestTimeout(d time.Duration) *Handler {
	if d > 0 {
		h.timeout = d
	}
	return h
}

// WithClock overrides the clock used to resolve "today" on reset.
func (h *Handler) WithClock(now func() time.Time) *Handler {
	if now != nil {
		h.now = now
	}
	return h
}

type filtersResponse struct {
	DateFrom *invoices.CivilDate `json:"dateFrom"`
	DateTo   *invoices.CivilDate `json:"dateTo"`
	Status   string              `json:"status"`
}

type filtersRequest struct {
	DateFrom *string `json:"dateFrom" validate:"omitempty,datetime=2006-01-02"`
	DateTo   *string `json:"dateTo" validate:"omitempty,datetime=2006-01-02"`
	Status   *string `json:"status" validate:"omitempty,max=32"`
}

type statsResponse struct {
	stats.Summary
	Degraded bool `json:"degraded"`
}

type tableParams struct {
	Limit       int    `validate:"min=0,max=1000"`
	Page        int    `validate:"min=0"`
	SortBy      string `validate:"omitempty,oneof=issuedDate dueDate invoiceTotal invoiceId status createdAt"`
	SortOrder   string `validate:"omitempty,oneof=ASC DESC asc desc"`
	InvoiceType string `validate:"max=64"`
	Search      string `validate:"max=200"`
	View        string `validate:"omitempty,oneof=receivables payables"`
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

func (h *Handler) handleGetFilters(w http.ResponseWriter, r *http.Request) {
	holder, ok := h.holder(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, toFiltersResponse(holder.Snapshot()))
}

func (h *Handler) handlePutFilters(w http.ResponseWriter, r *http.Request) {
	holder, ok := h.holder(w, r)
	if !ok {
		return
	}
	var req filtersRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be a JSON object")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.respondValidation(w, err)
		return
	}
	rng, err := rangeFromStrings(req.DateFrom, req.DateTo)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	holder.SetDateRange(rng)
	if req.Status != nil {
		holder.SetStatusFilter(strings.TrimSpace(*req.Status))
	}
	httpx.JSON(w, http.StatusOK, toFiltersResponse(holder.Snapshot()))
}

func (h *Handler) handleClearRange(w http.ResponseWriter, r *http.Request) {
	holder, ok := h.holder(w, r)
	if !ok {
		return
	}
	holder.SetDateRange(nil)
	httpx.JSON(w, http.StatusOK, toFiltersResponse(holder.Snapshot()))
}

func (h *Handler) handleResetFilters(w http.ResponseWriter, r *http.Request) {
	holder, ok := h.holder(w, r)
	if !ok {
		return
	}
	holder.Reset(h.now(), h.windowDays)
	httpx.JSON(w, http.StatusOK, toFiltersResponse(holder.Snapshot()))
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	rng, ok := h.statsRange(w, r)
	if !ok {
		return
	}
	summary, degraded := h.computeStats(r, rng)
	httpx.JSON(w, http.StatusOK, statsResponse{Summary: summary, Degraded: degraded})
}

func (h *Handler) handleStatsCSV(w http.ResponseWriter, r *http.Request) {
	rng, ok := h.statsRange(w, r)
	if !ok {
		return
	}
	summary, degraded := h.computeStats(r, rng)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"invoice-stats-%s.csv\"", h.now().Format("20060102")))
	if degraded {
		w.Header().Set("X-Stats-Degraded", "true")
	}
	if err := export.WriteStatsCSV(w, summary); err != nil {
		h.logger.Error("write stats csv", slog.Any("error", err))
	}
}

func (h *Handler) handleTable(w http.ResponseWriter, r *http.Request) {
	holder, ok := h.holder(w, r)
	if !ok {
		return
	}
	params, err := parseTableParams(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(params); err != nil {
		h.respondValidation(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	req := source.ListRequest{
		Limit:     params.Limit,
		Page:      params.Page,
		SortBy:    params.SortBy,
		SortOrder: params.SortOrder,
	}
	q := table.QueryFromState(holder.Snapshot(), table.Query{
		InvoiceType: params.InvoiceType,
		Search:      params.Search,
		Receivables: params.View == "receivables",
	})
	result, err := h.service.Table(ctx, req, q)
	if err != nil {
		h.respondServiceError(w, "invoice table", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	id, ok := invoiceID(w, r)
	if !ok {
		return
	}
	if err := h.service.Approve(r.Context(), id); err != nil {
		h.respondServiceError(w, "approve invoice", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	id, ok := invoiceID(w, r)
	if !ok {
		return
	}
	var req rejectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be a JSON object")
		return
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if err := h.validate.Struct(req); err != nil {
		h.respondValidation(w, err)
		return
	}
	if err := h.service.Reject(r.Context(), id, req.Reason); err != nil {
		h.respondServiceError(w, "reject invoice", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := invoiceID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondServiceError(w, "delete invoice", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || h.csrf == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Session Unavailable", "")
		return
	}
	token, err := h.csrf.EnsureToken(sess)
	if err != nil {
		h.respondServiceError(w, "issue csrf token", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"csrfToken": token, "header": shared.CSRFHeader})
}

// computeStats reports degraded when the source failed; the summary is then zero.
func (h *Handler) computeStats(r *http.Request, rng *invoices.DateRange) (stats.Summary, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	summary, err := h.service.Stats(ctx, rng)
	if err != nil {
		h.logger.Warn("invoice stats degraded", slog.String("range", rng.String()), slog.Any("error", err))
		return stats.Zero(), true
	}
	return summary, false
}

// statsRange prefers explicit from/to query parameters over the session range.
func (h *Handler) statsRange(w http.ResponseWriter, r *http.Request) (*invoices.DateRange, bool) {
	query := r.URL.Query()
	if query.Has("from") || query.Has("to") {
		from, to := optionalParam(query.Get("from")), optionalParam(query.Get("to"))
		rng, err := rangeFromStrings(from, to)
		if err != nil {
			httpx.RespondError(w, err)
			return nil, false
		}
		return rng, true
	}
	holder, ok := h.holder(w, r)
	if !ok {
		return nil, false
	}
	return holder.DateRange(), true
}

func (h *Handler) holder(w http.ResponseWriter, r *http.Request) (*filterstate.Holder, bool) {
	holder, err := filterstate.FromContext(r.Context())
	if err != nil {
		h.logger.Error("filter state", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Configuration Error", err.Error())
		return nil, false
	}
	return holder, true
}

func (h *Handler) respondValidation(w http.ResponseWriter, err error) {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	details := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, fe.Field()+": "+fe.Tag())
	}
	httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, strings.Join(details, ", ")))
}

func (h *Handler) respondServiceError(w http.ResponseWriter, message string, err error) {
	var cfgErr *filterstate.ConfigurationError
	switch {
	case errors.Is(err, shared.ErrNotFound), errors.Is(err, shared.ErrInvalidTransition):
		h.logger.Info(message, slog.Any("error", err))
	case errors.As(err, &cfgErr):
		h.logger.Error(message, slog.Any("error", err))
	default:
		var upstream *source.HTTPError
		if errors.As(err, &upstream) {
			h.logger.Error(message, slog.Int("upstream_status", upstream.StatusCode), slog.Any("error", err))
			httpx.Problem(w, http.StatusBadGateway, "Upstream Error", "invoice source returned an error")
			return
		}
		h.logger.Error(message, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func toFiltersResponse(state filterstate.State) filtersResponse {
	resp := filtersResponse{Status: state.Status}
	if state.DateRange != nil {
		resp.DateFrom = state.DateRange.From
		resp.DateTo = state.DateRange.To
	}
	return resp
}

// rangeFromStrings builds a range from optional bounds. Both bounds missing
// means unconstrained; an inverted range is rejected.
func rangeFromStrings(from, to *string) (*invoices.DateRange, error) {
	if from == nil && to == nil {
		return nil, nil
	}
	rng := &invoices.DateRange{}
	if from != nil {
		d, err := invoices.ParseCivilDate(*from)
		if err != nil {
			return nil, fmt.Errorf("%w: dateFrom %q", httpx.ErrValidation, *from)
		}
		rng.From = &d
	}
	if to != nil {
		d, err := invoices.ParseCivilDate(*to)
		if err != nil {
			return nil, fmt.Errorf("%w: dateTo %q", httpx.ErrValidation, *to)
		}
		rng.To = &d
	}
	if !rng.Ordered() {
		return nil, fmt.Errorf("%w: dateFrom must not be after dateTo", httpx.ErrValidation)
	}
	return rng, nil
}

func optionalParam(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func parseTableParams(r *http.Request) (tableParams, error) {
	query := r.URL.Query()
	params := tableParams{
		SortBy:      strings.TrimSpace(query.Get("sortBy")),
		SortOrder:   strings.TrimSpace(query.Get("sortOrder")),
		InvoiceType: strings.TrimSpace(query.Get("invoiceType")),
		Search:      query.Get("search"),
		View:        strings.TrimSpace(query.Get("view")),
	}
	var err error
	if params.Limit, err = intParam(query.Get("limit")); err != nil {
		return tableParams{}, fmt.Errorf("%w: limit", httpx.ErrValidation)
	}
	if params.Page, err = intParam(query.Get("page")); err != nil {
		return tableParams{}, fmt.Errorf("%w: page", httpx.ErrValidation)
	}
	return params, nil
}

func intParam(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}

func invoiceID(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "uuid")
	id, err := uuid.Parse(raw)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invoice id must be a UUID")
		return "", false
	}
	return id.String(), true
}
