package source

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/invoice-insights/internal/invoices"
	"github.com/odyssey-erp/invoice-insights/internal/shared"
)

// pagedSource serves a fixed invoice list in pages and counts calls.
type pagedSource struct {
	mu        sync.Mutex
	items     []invoices.Invoice
	listCalls int
	failPage  int
	mutations []string
	mutateErr error
	// totalPages overrides the reported page count when non-zero.
	totalPages int
	onList     func()
}

func newPagedSource(n int) *pagedSource {
	items := make([]invoices.Invoice, n)
	for i := range items {
		items[i] = invoices.Invoice{
			UUID:         fmt.Sprintf("inv-%03d", i+1),
			InvoiceID:    fmt.Sprintf("INV-%03d", i+1),
			Status:       invoices.StatusPaid,
			InvoiceTotal: invoices.NewAmount(float64(i + 1)),
		}
	}
	return &pagedSource{items: items}
}

func (s *pagedSource) List(_ context.Context, req ListRequest) (Page, error) {
	req = req.Normalized()
	s.mu.Lock()
	s.listCalls++
	hook := s.onList
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	if s.failPage != 0 && req.Page == s.failPage {
		return Page{}, errors.New("upstream unavailable")
	}
	meta := shared.NewPagination(req.Page, req.Limit, len(s.items))
	if s.totalPages != 0 {
		meta.TotalPages = s.totalPages
	}
	start := meta.Offset()
	if start > len(s.items) {
		start = len(s.items)
	}
	end := start + req.Limit
	if end > len(s.items) {
		end = len(s.items)
	}
	return Page{Data: append([]invoices.Invoice(nil), s.items[start:end]...), Meta: meta}, nil
}

func (s *pagedSource) record(op, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mutateErr != nil {
		return s.mutateErr
	}
	s.mutations = append(s.mutations, op+":"+id)
	return nil
}

func (s *pagedSource) Approve(_ context.Context, id string) error { return s.record("approve", id) }

func (s *pagedSource) Reject(_ context.Context, id, reason string) error {
	return s.record("reject", id+":"+reason)
}

func (s *pagedSource) Delete(_ context.Context, id string) error { return s.record("delete", id) }

func (s *pagedSource) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCalls
}

func TestListRequestNormalized(t *testing.T) {
	req := ListRequest{Limit: 5000, SortOrder: " asc "}.Normalized()
	require.Equal(t, 1, req.Page)
	require.Equal(t, maxLimit, req.Limit)
	require.Equal(t, SortAsc, req.SortOrder)

	req = ListRequest{SortOrder: "sideways"}.Normalized()
	require.Equal(t, defaultLimit, req.Limit)
	require.Equal(t, SortDesc, req.SortOrder)
}

func TestListRequestKeyIgnoresFilterOrder(t *testing.T) {
	a := ListRequest{Filters: map[string]string{"status": "PAID", "invoiceType": "SALES", "blank": " "}}
	b := ListRequest{Filters: map[string]string{"invoiceType": "SALES", "status": "PAID"}}
	require.Equal(t, a.Key(), b.Key())
	require.NotContains(t, a.Key(), "blank")
	require.Contains(t, a.Key(), "sortOrder=DESC")
}

func TestFetchAllKeepsPageOrder(t *testing.T) {
	src := newPagedSource(45)
	list, meta, err := FetchAll(context.Background(), src, ListRequest{Limit: 10}, 0)
	require.NoError(t, err)
	require.Len(t, list, 45)
	require.Equal(t, 5, meta.TotalPages)
	require.Equal(t, 5, src.calls())
	for i, inv := range list {
		require.Equal(t, fmt.Sprintf("inv-%03d", i+1), inv.UUID)
	}
}

func TestFetchAllHonoursRowCap(t *testing.T) {
	src := newPagedSource(100)
	list, meta, err := FetchAll(context.Background(), src, ListRequest{Limit: 10}, 25)
	require.NoError(t, err)
	require.Len(t, list, 25)
	require.Equal(t, 100, meta.TotalItems)
	require.Equal(t, 3, src.calls())
	require.Equal(t, "inv-025", list[24].UUID)
}

func TestFetchAllBoundsUpstreamPageCount(t *testing.T) {
	src := newPagedSource(3)
	src.totalPages = 1 << 30
	list, _, err := FetchAll(context.Background(), src, ListRequest{Limit: 10}, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, maxFetchPages, src.calls())
}

func TestFetchAllPropagatesPageError(t *testing.T) {
	src := newPagedSource(30)
	src.failPage = 3
	list, _, err := FetchAll(context.Background(), src, ListRequest{Limit: 10}, 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "page 3")
	require.Nil(t, list)
}

func TestFetchAllEmptySource(t *testing.T) {
	list, _, err := FetchAll(context.Background(), newPagedSource(0), ListRequest{}, 0)
	require.NoError(t, err)
	require.Empty(t, list)
}

type recordedCall struct {
	backend, op string
	failed      bool
}

type observerStub struct {
	calls []recordedCall
}

func (o *observerStub) ObserveSourceCall(backend, op string, _ time.Time, err error) {
	o.calls = append(o.calls, recordedCall{backend: backend, op: op, failed: err != nil})
}

func TestInstrumentedSourceObservesCalls(t *testing.T) {
	src := newPagedSource(3)
	obs := &observerStub{}
	wrapped := Instrument(src, "rest", obs)
	ctx := context.Background()

	_, err := wrapped.List(ctx, ListRequest{})
	require.NoError(t, err)
	require.NoError(t, wrapped.Approve(ctx, "inv-001"))
	src.mutateErr = shared.ErrInvalidTransition
	require.ErrorIs(t, wrapped.Delete(ctx, "inv-002"), shared.ErrInvalidTransition)

	require.Equal(t, []recordedCall{
		{backend: "rest", op: "list"},
		{backend: "rest", op: "approve"},
		{backend: "rest", op: "delete", failed: true},
	}, obs.calls)
}

func TestInstrumentedSourceWithoutObserver(t *testing.T) {
	wrapped := Instrument(newPagedSource(1), "postgres", nil)
	page, err := wrapped.List(context.Background(), ListRequest{})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
}
