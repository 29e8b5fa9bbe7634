// Package stats reduces invoice snapshots into per-status buckets.
package stats

import (
	"github.com/odyssey-erp/invoice-insights/internal/invoices"
)

// Bucket summarises one tracked status group.
type Bucket struct {
	Count      int     `json:"count"`
	Amount     float64 `json:"amount"`
	Percentage float64 `json:"percentage"`
}

// Summary is the immutable result of a single aggregation.
type Summary struct {
	Paid            Bucket              `json:"paid"`
	PendingApproval Bucket              `json:"pendingApproval"`
	Accepted        Bucket              `json:"accepted"`
	Outstanding     Bucket              `json:"outstanding"`
	TotalInvoices   int                 `json:"totalInvoices"`
	TotalAmount     float64             `json:"totalAmount"`
	MalformedTotals int                 `json:"malformedTotals"`
	Range           *invoices.DateRange `json:"range"`
}

// Group names a tracked bucket and the status feeding it.
type Group struct {
	Key    string
	Status invoices.Status
}

// Groups lists the tracked buckets in display order.
var Groups = []Group{
	{Key: "paid", Status: invoices.StatusPaid},
	{Key: "pendingApproval", Status: invoices.StatusIssued},
	{Key: "accepted", Status: invoices.StatusApproved},
	{Key: "outstanding", Status: invoices.StatusOverdue},
}

// Zero is the placeholder summary shown while data is loading or failed.
func Zero() Summary {
	return Summary{}
}

// Bucket returns the bucket for a group key.
func (s Summary) Bucket(key string) (Bucket, bool) {
	switch key {
	case "paid":
		return s.Paid, true
	case "pendingApproval":
		return s.PendingApproval, true
	case "accepted":
		return s.Accepted, true
	case "outstanding":
		return s.Outstanding, true
	}
	return Bucket{}, false
}

// Classified is the number of invoices that landed in a bucket.
func (s Summary) Classified() int {
	return s.Paid.Count + s.PendingApproval.Count + s.Accepted.Count + s.Outstanding.Count
}

// Compute filters list by the issued-date range and rolls it up per status.
// Ranges missing either bound do not filter. Statuses outside the tracked
// groups count towards the totals only. Malformed totals count as zero.
func Compute(list []invoices.Invoice, rng *invoices.DateRange) Summary {
	out := Summary{Range: rng.Clone()}

	var paid, pending, accepted, outstanding Bucket
	for _, inv := range list {
		if !rng.Contains(inv.IssuedDate) {
			continue
		}
		amount := inv.InvoiceTotal.Float64()
		if !inv.InvoiceTotal.Valid() {
			out.MalformedTotals++
		}
		out.TotalInvoices++
		out.TotalAmount += amount

		var target *Bucket
		switch inv.Status.Normalized() {
		case invoices.StatusPaid:
			target = &paid
		case invoices.StatusIssued:
			target = &pending
		case invoices.StatusApproved:
			target = &accepted
		case invoices.StatusOverdue:
			target = &outstanding
		default:
			continue
		}
		target.Count++
		target.Amount += amount
	}

	out.Paid = withPercentage(paid, out.TotalInvoices)
	out.PendingApproval = withPercentage(pending, out.TotalInvoices)
	out.Accepted = withPercentage(accepted, out.TotalInvoices)
	out.Outstanding = withPercentage(outstanding, out.TotalInvoices)
	return out
}

func withPercentage(b Bucket, total int) Bucket {
	if total > 0 {
		b.Percentage = float64(b.Count) / float64(total) * 100
	}
	return b
}
