// Package export renders invoice stats for download.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/odyssey-erp/invoice-insights/internal/invoices/stats"
)

var bucketStatus = map[string]string{
	"paid":            "PAID",
	"pendingApproval": "ISSUED",
	"accepted":        "APPROVED",
	"outstanding":     "OVERDUE",
}

// WriteStatsCSV writes one row per tracked bucket followed by a total row.
func WriteStatsCSV(w io.Writer, summary stats.Summary) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Bucket", "Status", "Count", "Amount", "Percentage"}); err != nil {
		return err
	}
	for _, group := range stats.Groups {
		bucket, _ := summary.Bucket(group.Key)
		if err := writer.Write([]string{
			group.Key,
			bucketStatus[group.Key],
			strconv.Itoa(bucket.Count),
			formatAmount(bucket.Amount),
			formatPercent(bucket.Percentage),
		}); err != nil {
			return err
		}
	}
	percent := 0.0
	if summary.TotalInvoices > 0 {
		percent = 100
	}
	if err := writer.Write([]string{
		"total",
		"",
		strconv.Itoa(summary.TotalInvoices),
		formatAmount(summary.TotalAmount),
		formatPercent(percent),
	}); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
