package invoices

import "strings"

// Status enumerates invoice lifecycle states reported by the data source.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusIssued   Status = "ISSUED"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
	StatusPaid     Status = "PAID"
	StatusOverdue  Status = "OVERDUE"
	StatusArchived Status = "ARCHIVED"
)

// StatusAll is the filter token that disables status filtering.
const StatusAll = "all"

// NormalizeStatus upper-cases and trims a raw status value. Unknown values are
// returned normalized rather than rejected.
func NormalizeStatus(raw string) Status {
	return Status(strings.ToUpper(strings.TrimSpace(raw)))
}

// Normalized returns the comparable form of the status.
func (s Status) Normalized() Status {
	return NormalizeStatus(string(s))
}

// Is reports whether the status matches other ignoring case.
func (s Status) Is(other Status) bool {
	return s.Normalized() == other.Normalized()
}

// Customer carries the receivable party name used by table search.
type Customer struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// FullName joins first and last name with a single space.
func (c *Customer) FullName() string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Invoice is a read-only snapshot of an invoice record owned by the data source.
type Invoice struct {
	UUID         string    `json:"uuid"`
	InvoiceID    string    `json:"invoiceId"`
	Code         *string   `json:"code,omitempty"`
	InvoiceType  string    `json:"invoiceType,omitempty"`
	Status       Status    `json:"status"`
	IssuedDate   CivilDate `json:"issuedDate"`
	DueDate      CivilDate `json:"dueDate"`
	InvoiceTotal Amount    `json:"invoiceTotal"`
	Currency     string    `json:"currency,omitempty"`
	Notes        *string   `json:"notes,omitempty"`
	Customer     *Customer `json:"customer,omitempty"`
}
