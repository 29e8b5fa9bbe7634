package table

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/invoice-insights/internal/filterstate"
	"github.com/odyssey-erp/invoice-insights/internal/invoices"
)

func strPtr(s string) *string { return &s }

func ids(list []invoices.Invoice) []string {
	out := make([]string, 0, len(list))
	for _, inv := range list {
		out = append(out, inv.InvoiceID)
	}
	return out
}

var day = invoices.NewCivilDate(2025, time.April, 1)

func fixtures() []invoices.Invoice {
	return []invoices.Invoice{
		{InvoiceID: "INV-001", InvoiceType: "STANDARD", Status: "PAID", IssuedDate: day, Notes: strPtr("Quarterly Retainer")},
		{InvoiceID: "INV-002", InvoiceType: "PROFORMA", Status: "issued", IssuedDate: day.AddDays(3), Code: strPtr("PF-77")},
		{InvoiceID: "INV-003", InvoiceType: "STANDARD", Status: "Overdue", IssuedDate: day.AddDays(10), Notes: strPtr("retainer follow-up"),
			Customer: &invoices.Customer{FirstName: "Ada", LastName: "Lovelace"}},
		{InvoiceID: "RETAINER-9", InvoiceType: "STANDARD", Status: "DRAFT", IssuedDate: day.AddDays(-5),
			Customer: &invoices.Customer{FirstName: "Grace", LastName: "Hopper"}},
	}
}

func TestApplyNoPredicatesKeepsOrder(t *testing.T) {
	list := fixtures()
	got := Apply(list, Query{})
	require.Equal(t, ids(list), ids(got))
}

func TestApplyStatusFilter(t *testing.T) {
	got := Apply(fixtures(), Query{Status: "ISSUED"})
	require.Equal(t, []string{"INV-002"}, ids(got))

	got = Apply(fixtures(), Query{Status: "overdue"})
	require.Equal(t, []string{"INV-003"}, ids(got))

	got = Apply(fixtures(), Query{Status: "ALL"})
	require.Len(t, got, 4)

	got = Apply(fixtures(), Query{Status: "nonsense"})
	require.Empty(t, got)
}

func TestApplyInvoiceTypeExact(t *testing.T) {
	got := Apply(fixtures(), Query{InvoiceType: "PROFORMA"})
	require.Equal(t, []string{"INV-002"}, ids(got))

	got = Apply(fixtures(), Query{InvoiceType: "proforma"})
	require.Empty(t, got)
}

func TestApplyDateRange(t *testing.T) {
	got := Apply(fixtures(), Query{Range: invoices.NewDateRange(day, day.AddDays(3))})
	require.Equal(t, []string{"INV-001", "INV-002"}, ids(got))

	from := day
	got = Apply(fixtures(), Query{Range: &invoices.DateRange{From: &from}})
	require.Len(t, got, 4)
}

func TestApplySearchNotesOnly(t *testing.T) {
	list := []invoices.Invoice{
		{InvoiceID: "A-1", Notes: strPtr("Monthly HOSTING fee")},
		{InvoiceID: "hosting-2"},
		{InvoiceID: "A-3", Notes: strPtr("consulting")},
		{InvoiceID: "A-4", Notes: strPtr("web hosting renewal")},
		{InvoiceID: "A-5", Customer: &invoices.Customer{FirstName: "Hosting", LastName: "Corp"}},
	}
	got := Apply(list, Query{Search: "Hosting Fee"})
	require.Equal(t, []string{"A-1"}, ids(got))

	got = Apply(list, Query{Search: "RENEWAL"})
	require.Equal(t, []string{"A-4"}, ids(got))
}

func TestApplySearchFields(t *testing.T) {
	got := Apply(fixtures(), Query{Search: "retainer"})
	require.Equal(t, []string{"INV-001", "INV-003", "RETAINER-9"}, ids(got))

	got = Apply(fixtures(), Query{Search: "pf-7"})
	require.Equal(t, []string{"INV-002"}, ids(got))
}

func TestApplySearchCustomerOnlyForReceivables(t *testing.T) {
	got := Apply(fixtures(), Query{Search: "ada love"})
	require.Empty(t, got)

	got = Apply(fixtures(), Query{Search: "ada love", Receivables: true})
	require.Equal(t, []string{"INV-003"}, ids(got))
}

func TestApplyCombinedPredicates(t *testing.T) {
	got := Apply(fixtures(), Query{
		InvoiceType: "STANDARD",
		Status:      "overdue",
		Range:       invoices.NewDateRange(day, day.AddDays(30)),
		Search:      "retainer",
	})
	require.Equal(t, []string{"INV-003"}, ids(got))
}

func TestApplyUnicodeCaseFolding(t *testing.T) {
	list := []invoices.Invoice{{InvoiceID: "X", Notes: strPtr("Facture ÉCOLE Lyon")}}
	got := Apply(list, Query{Search: "école"})
	require.Equal(t, []string{"X"}, ids(got))
}

func TestQueryFromStateCopiesSharedFilters(t *testing.T) {
	from := invoices.NewCivilDate(2024, time.March, 1)
	to := invoices.NewCivilDate(2024, time.March, 31)
	state := filterstate.State{DateRange: invoices.NewDateRange(from, to), Status: "PAID"}

	q := QueryFromState(state, Query{InvoiceType: "SALES", Search: "acme", Status: "ISSUED"})
	require.Equal(t, "PAID", q.Status)
	require.Equal(t, "SALES", q.InvoiceType)
	require.Equal(t, "acme", q.Search)
	require.Equal(t, state.DateRange.String(), q.Range.String())

	state.DateRange.To = nil
	require.NotNil(t, q.Range.To)
}
