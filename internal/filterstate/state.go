// Package filterstate holds the session scoped date range and status filter
// shared by the stats widget and the invoice tables.
package filterstate

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/odyssey-erp/invoice-insights/internal/invoices"
)

// DefaultWindowDays is the length of the default range starting today.
const DefaultWindowDays = 7

const (
	keyDateRange = "filter.date_range"
	keyStatus    = "filter.status"
	clearedRange = "null"
)

// ConfigurationError reports use of the holder outside an initialized scope.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "filterstate: " + e.Reason
}

// Store persists values between requests. *shared.Session satisfies it.
type Store interface {
	Get(key string) string
	Set(key, value string)
	Delete(key string)
}

// State is a point in time copy of the holder.
type State struct {
	DateRange *invoices.DateRange `json:"dateRange"`
	Status    string              `json:"status"`
}

// Holder is the single-writer container for the active filters. Writes replace
// values wholesale; the last write wins.
type Holder struct {
	mu        sync.RWMutex
	dateRange *invoices.DateRange
	status    string
	store     Store
}

// DefaultRange returns today through today+windowDays in now's location.
func DefaultRange(now time.Time, windowDays int) *invoices.DateRange {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	today := invoices.DateOf(now)
	return invoices.NewDateRange(today, today.AddDays(windowDays))
}

// New returns a holder with the default range and the "all" status.
func New(now time.Time, windowDays int) *Holder {
	return &Holder{dateRange: DefaultRange(now, windowDays), status: invoices.StatusAll}
}

// Load restores a holder from store and binds it so later writes persist.
// Missing or unreadable entries fall back to defaults.
func Load(store Store, now time.Time, windowDays int) *Holder {
	h := New(now, windowDays)
	if store == nil {
		return h
	}
	if raw := store.Get(keyDateRange); raw != "" {
		if raw == clearedRange {
			h.dateRange = nil
		} else {
			var rng invoices.DateRange
			if err := json.Unmarshal([]byte(raw), &rng); err == nil {
				h.dateRange = &rng
			}
		}
	}
	if status := store.Get(keyStatus); status != "" {
		h.status = status
	}
	h.store = store
	return h
}

// DateRange returns a copy of the current range; nil means unconstrained.
func (h *Holder) DateRange() *invoices.DateRange {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dateRange.Clone()
}

// SetDateRange replaces the range. nil removes the constraint.
func (h *Holder) SetDateRange(rng *invoices.DateRange) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dateRange = rng.Clone()
	if h.store == nil {
		return
	}
	if h.dateRange == nil {
		h.store.Set(keyDateRange, clearedRange)
		return
	}
	raw, err := json.Marshal(h.dateRange)
	if err != nil {
		h.store.Delete(keyDateRange)
		return
	}
	h.store.Set(keyDateRange, string(raw))
}

// StatusFilter returns the current status token.
func (h *Holder) StatusFilter() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// SetStatusFilter replaces the status token. Any value is accepted.
func (h *Holder) SetStatusFilter(status string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = status
	if h.store != nil {
		h.store.Set(keyStatus, status)
	}
}

// Reset restores defaults and forgets persisted values.
func (h *Holder) Reset(now time.Time, windowDays int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dateRange = DefaultRange(now, windowDays)
	h.status = invoices.StatusAll
	if h.store != nil {
		h.store.Delete(keyDateRange)
		h.store.Delete(keyStatus)
	}
}

// Snapshot copies both values under one lock.
func (h *Holder) Snapshot() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return State{DateRange: h.dateRange.Clone(), Status: h.status}
}

type holderContextKey struct{}

// WithHolder installs h as the holder for ctx.
func WithHolder(ctx context.Context, h *Holder) context.Context {
	return context.WithValue(ctx, holderContextKey{}, h)
}

// FromContext returns the holder installed in ctx.
func FromContext(ctx context.Context) (*Holder, error) {
	h, _ := ctx.Value(holderContextKey{}).(*Holder)
	if h == nil {
		return nil, &ConfigurationError{Reason: "not initialized in this context"}
	}
	return h, nil
}
