// Package source talks to the system of record for invoices. Everything here
// returns raw snapshots; aggregation and table filtering happen elsewhere.
package source

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/invoice-insights/internal/invoices"
	"github.com/odyssey-erp/invoice-insights/internal/shared"
)

// Sort orders accepted by the invoice API.
const (
	SortAsc  = "ASC"
	SortDesc = "DESC"
)

const (
	defaultLimit     = 20
	maxLimit         = 1000
	fetchConcurrency = 4
	// maxFetchPages caps FetchAll regardless of the upstream page count.
	maxFetchPages = 1000
)

// Lister reads invoice pages.
type Lister interface {
	List(ctx context.Context, req ListRequest) (Page, error)
}

// Mutator forwards invoice mutations to the system of record.
type Mutator interface {
	Approve(ctx context.Context, id string) error
	Reject(ctx context.Context, id, reason string) error
	Delete(ctx context.Context, id string) error
}

// Source is the full Invoice Data Source contract.
type Source interface {
	Lister
	Mutator
}

// ListRequest is the paging, sorting and server side filtering of one fetch.
type ListRequest struct {
	Limit     int
	Page      int
	SortBy    string
	SortOrder string
	Filters   map[string]string
}

// Page is one fetched slice of invoices with upstream paging metadata.
type Page struct {
	Data []invoices.Invoice `json:"data"`
	Meta shared.Pagination  `json:"meta"`
}

// Normalized applies defaults: page 1, limit 20 (capped at 1000), order DESC.
func (r ListRequest) Normalized() ListRequest {
	if r.Page <= 0 {
		r.Page = 1
	}
	if r.Limit <= 0 {
		r.Limit = defaultLimit
	}
	if r.Limit > maxLimit {
		r.Limit = maxLimit
	}
	r.SortOrder = strings.ToUpper(strings.TrimSpace(r.SortOrder))
	if r.SortOrder != SortAsc {
		r.SortOrder = SortDesc
	}
	return r
}

// Values encodes the request as API query parameters.
func (r ListRequest) Values() url.Values {
	r = r.Normalized()
	v := url.Values{}
	for key, value := range r.Filters {
		if strings.TrimSpace(value) != "" {
			v.Set(key, value)
		}
	}
	v.Set("limit", strconv.Itoa(r.Limit))
	v.Set("page", strconv.Itoa(r.Page))
	if r.SortBy != "" {
		v.Set("sortBy", r.SortBy)
	}
	v.Set("sortOrder", r.SortOrder)
	return v
}

// Key is the logical cache key of the request. Equal requests share a key
// regardless of filter map ordering.
func (r ListRequest) Key() string {
	return r.Values().Encode()
}

// FetchAll reads every page of req, up to maxRows invoices (0 means no row
// cap, though at most maxFetchPages pages are read).
// Page one is read first to learn the page count, the rest concurrently. The
// result keeps the upstream order.
func FetchAll(ctx context.Context, src Lister, req ListRequest, maxRows int) ([]invoices.Invoice, shared.Pagination, error) {
	req = req.Normalized()
	req.Page = 1
	first, err := src.List(ctx, req)
	if err != nil {
		return nil, shared.Pagination{}, err
	}

	pages := first.Meta.TotalPages
	if pages < 1 {
		pages = 1
	}
	if maxRows > 0 {
		if capPages := (maxRows + req.Limit - 1) / req.Limit; pages > capPages {
			pages = capPages
		}
	}
	if pages > maxFetchPages {
		pages = maxFetchPages
	}

	results := make([][]invoices.Invoice, pages)
	results[0] = first.Data

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for p := 2; p <= pages; p++ {
		g.Go(func() error {
			next := req
			next.Page = p
			page, err := src.List(gctx, next)
			if err != nil {
				return fmt.Errorf("source: page %d: %w", p, err)
			}
			results[p-1] = page.Data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, shared.Pagination{}, err
	}

	total := 0
	for _, chunk := range results {
		total += len(chunk)
	}
	out := make([]invoices.Invoice, 0, total)
	for _, chunk := range results {
		out = append(out, chunk...)
	}
	if maxRows > 0 && len(out) > maxRows {
		out = out[:maxRows]
	}
	return out, first.Meta, nil
}
