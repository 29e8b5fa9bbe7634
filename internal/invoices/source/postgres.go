package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/invoice-insights/internal/invoices"
	"github.com/odyssey-erp/invoice-insights/internal/platform/db"
	"github.com/odyssey-erp/invoice-insights/internal/shared"
)

// sortColumns allow-lists API sort keys.
var sortColumns = map[string]string{
	"issuedDate":   "issued_date",
	"dueDate":      "due_date",
	"invoiceTotal": "invoice_total",
	"invoiceId":    "invoice_id",
	"status":       "status",
	"createdAt":    "created_at",
}

// filterColumns allow-lists server side equality filters.
var filterColumns = map[string]string{
	"status":      "upper(status)",
	"invoiceType": "invoice_type",
	"currency":    "currency",
}

const invoiceColumns = `uuid::text, invoice_id, code, invoice_type, status, issued_date, due_date,
	invoice_total::text, currency, notes, customer_first_name, customer_last_name`

// PostgresSource reads invoices straight from the invoicing database.
type PostgresSource struct {
	pool *pgxpool.Pool
}

// NewPostgresSource constructs the source.
func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

// List runs a count and a page query with the same filters.
func (s *PostgresSource) List(ctx context.Context, req ListRequest) (Page, error) {
	req = req.Normalized()
	where, args := buildWhere(req.Filters)

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM invoices"+where, args...).Scan(&total); err != nil {
		return Page{}, fmt.Errorf("source: count invoices: %w", err)
	}
	meta := shared.NewPagination(req.Page, req.Limit, total)

	order := "created_at"
	if col, ok := sortColumns[req.SortBy]; ok {
		order = col
	}
	query := fmt.Sprintf("SELECT %s FROM invoices%s ORDER BY %s %s, uuid LIMIT $%d OFFSET $%d",
		invoiceColumns, where, order, req.SortOrder, len(args)+1, len(args)+2)
	args = append(args, meta.ItemsPerPage, meta.Offset())

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return Page{}, fmt.Errorf("source: list invoices: %w", err)
	}
	defer rows.Close()

	data := make([]invoices.Invoice, 0, meta.ItemsPerPage)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return Page{}, err
		}
		data = append(data, inv)
	}
	if err := rows.Err(); err != nil {
		return Page{}, err
	}
	return Page{Data: data, Meta: meta}, nil
}

// Approve moves an ISSUED invoice to APPROVED.
func (s *PostgresSource) Approve(ctx context.Context, id string) error {
	return s.transition(ctx, id, invoices.StatusApproved, "")
}

// Reject moves an ISSUED invoice to REJECTED.
func (s *PostgresSource) Reject(ctx context.Context, id, reason string) error {
	return s.transition(ctx, id, invoices.StatusRejected, reason)
}

// Delete removes a DRAFT invoice.
func (s *PostgresSource) Delete(ctx context.Context, id string) error {
	return db.WithTx(ctx, s.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		status, err := lockStatus(ctx, tx, id)
		if err != nil {
			return err
		}
		if !status.Is(invoices.StatusDraft) {
			return fmt.Errorf("%w: cannot delete %s invoice", shared.ErrInvalidTransition, status)
		}
		_, err = tx.Exec(ctx, `DELETE FROM invoices WHERE uuid = $1`, id)
		return err
	})
}

func (s *PostgresSource) transition(ctx context.Context, id string, target invoices.Status, reason string) error {
	return db.WithTx(ctx, s.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		status, err := lockStatus(ctx, tx, id)
		if err != nil {
			return err
		}
		if !status.Is(invoices.StatusIssued) {
			return fmt.Errorf("%w: %s -> %s", shared.ErrInvalidTransition, status, target)
		}
		_, err = tx.Exec(ctx, `UPDATE invoices
SET status = $2, rejection_reason = NULLIF($3, ''), updated_at = NOW()
WHERE uuid = $1`, id, string(target), reason)
		return err
	})
}

func lockStatus(ctx context.Context, tx pgx.Tx, id string) (invoices.Status, error) {
	var status string
	err := tx.QueryRow(ctx, `SELECT status FROM invoices WHERE uuid = $1 FOR UPDATE`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", shared.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return invoices.NormalizeStatus(status), nil
}

func buildWhere(filters map[string]string) (string, []any) {
	var clauses []string
	var args []any
	// fixed order keeps placeholder numbering stable
	for _, key := range []string{"status", "invoiceType", "currency"} {
		value := strings.TrimSpace(filters[key])
		if value == "" {
			continue
		}
		if key == "status" {
			if strings.EqualFold(value, invoices.StatusAll) {
				continue
			}
			value = strings.ToUpper(value)
		}
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", filterColumns[key], len(args)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanInvoice(rows pgx.Rows) (invoices.Invoice, error) {
	var inv invoices.Invoice
	var code, invoiceType, total, currency, notes, first, last pgtype.Text
	var issued, due pgtype.Date
	var status string
	if err := rows.Scan(&inv.UUID, &inv.InvoiceID, &code, &invoiceType, &status, &issued, &due,
		&total, &currency, &notes, &first, &last); err != nil {
		return invoices.Invoice{}, fmt.Errorf("source: scan invoice: %w", err)
	}
	inv.Status = invoices.Status(status)
	inv.InvoiceType = invoiceType.String
	inv.Currency = currency.String
	if code.Valid {
		inv.Code = &code.String
	}
	if notes.Valid {
		inv.Notes = &notes.String
	}
	if issued.Valid {
		inv.IssuedDate = invoices.DateOf(issued.Time)
	}
	if due.Valid {
		inv.DueDate = invoices.DateOf(due.Time)
	}
	if total.Valid {
		inv.InvoiceTotal, _ = invoices.ParseAmount(total.String)
	}
	if first.Valid || last.Valid {
		inv.Customer = &invoices.Customer{FirstName: first.String, LastName: last.String}
	}
	return inv, nil
}
