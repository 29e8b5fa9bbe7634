// Package table applies the per-view, in-memory predicates a list page needs on
// top of what the data source already filtered server side.
package table

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/odyssey-erp/invoice-insights/internal/filterstate"
	"github.com/odyssey-erp/invoice-insights/internal/invoices"
)

// Query collects the predicates for one table view. Zero values disable a predicate.
type Query struct {
	InvoiceType string
	Status      string
	Range       *invoices.DateRange
	Search      string
	// Receivables also matches the search term against the customer name.
	Receivables bool
}

// QueryFromState copies the shared status and date range onto base.
func QueryFromState(state filterstate.State, base Query) Query {
	base.Status = state.Status
	base.Range = state.DateRange.Clone()
	return base
}

// Apply returns the invoices that satisfy every predicate, in input order.
func Apply(list []invoices.Invoice, q Query) []invoices.Invoice {
	m := newMatcher(q)
	out := make([]invoices.Invoice, 0, len(list))
	for _, inv := range list {
		if m.match(inv) {
			out = append(out, inv)
		}
	}
	return out
}

type matcher struct {
	q      Query
	status invoices.Status
	fold   cases.Caser
	needle string
}

func newMatcher(q Query) *matcher {
	m := &matcher{q: q, fold: cases.Fold()}
	if s := strings.TrimSpace(q.Status); s != "" && !strings.EqualFold(s, invoices.StatusAll) {
		m.status = invoices.NormalizeStatus(s)
	}
	if needle := strings.TrimSpace(q.Search); needle != "" {
		m.needle = m.fold.String(needle)
	}
	return m
}

func (m *matcher) match(inv invoices.Invoice) bool {
	if m.q.InvoiceType != "" && inv.InvoiceType != m.q.InvoiceType {
		return false
	}
	if m.status != "" && inv.Status.Normalized() != m.status {
		return false
	}
	if !m.q.Range.Contains(inv.IssuedDate) {
		return false
	}
	if m.needle == "" {
		return true
	}
	for _, field := range m.searchable(inv) {
		if field != "" && strings.Contains(m.fold.String(field), m.needle) {
			return true
		}
	}
	return false
}

func (m *matcher) searchable(inv invoices.Invoice) []string {
	fields := []string{inv.InvoiceID, deref(inv.Code), deref(inv.Notes)}
	if m.q.Receivables && inv.Customer != nil {
		fields = append(fields, inv.Customer.FirstName+" "+inv.Customer.LastName)
	}
	return fields
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
