package source

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/invoice-insights/internal/invoices"
	"github.com/odyssey-erp/invoice-insights/internal/shared"
)

func TestRESTClientListDecodesPage(t *testing.T) {
	var gotQuery, gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"data": [
				{"uuid":"a1","invoiceId":"INV-1","status":"paid","issuedDate":"2024-03-01","dueDate":"2024-03-31","invoiceTotal":"150.25","notes":"first"},
				{"uuid":"a2","invoiceId":"INV-2","status":"ISSUED","issuedDate":"2024-03-02T10:00:00Z","invoiceTotal":"n/a"}
			],
			"meta": {"totalItems":2,"currentPage":1,"totalPages":1,"itemsPerPage":50}
		}`)
	}))
	defer srv.Close()

	client, err := NewRESTClient(srv.URL+"/v1/", "secret", time.Second)
	require.NoError(t, err)

	page, err := client.List(context.Background(), ListRequest{
		Limit:   50,
		SortBy:  "issuedDate",
		Filters: map[string]string{"status": "PAID"},
	})
	require.NoError(t, err)
	require.Equal(t, "/v1/invoices", gotPath)
	require.Equal(t, "limit=50&page=1&sortBy=issuedDate&sortOrder=DESC&status=PAID", gotQuery)
	require.Equal(t, "Bearer secret", gotAuth)

	require.Len(t, page.Data, 2)
	require.Equal(t, shared.Pagination{TotalItems: 2, CurrentPage: 1, TotalPages: 1, ItemsPerPage: 50}, page.Meta)
	first := page.Data[0]
	require.True(t, first.Status.Is(invoices.StatusPaid))
	require.Equal(t, "2024-03-01", first.IssuedDate.String())
	require.Equal(t, "150.25", first.InvoiceTotal.String())
	require.NotNil(t, first.Notes)
	second := page.Data[1]
	require.Equal(t, "2024-03-02", second.IssuedDate.String())
	require.False(t, second.InvoiceTotal.Valid())
	require.True(t, second.DueDate.IsZero())
}

func TestRESTClientEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewRESTClient(srv.URL, "", time.Second)
	require.NoError(t, err)
	page, err := client.List(context.Background(), ListRequest{})
	require.NoError(t, err)
	require.Empty(t, page.Data)
}

func TestRESTClientMutations(t *testing.T) {
	type call struct {
		Method string
		Path   string
		Body   map[string]string
	}
	var calls []call
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := call{Method: r.Method, Path: r.URL.Path}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&c.Body)
		}
		calls = append(calls, c)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client, err := NewRESTClient(srv.URL, "", time.Second)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, client.Approve(ctx, "u-1"))
	require.NoError(t, client.Reject(ctx, "u-2", "wrong amount"))
	require.NoError(t, client.Delete(ctx, "u-3"))

	require.Equal(t, []call{
		{Method: http.MethodPatch, Path: "/invoices/u-1/approve"},
		{Method: http.MethodPatch, Path: "/invoices/u-2/reject", Body: map[string]string{"reason": "wrong amount"}},
		{Method: http.MethodDelete, Path: "/invoices/u-3"},
	}, calls)
}

func TestRESTClientMapsErrorStatuses(t *testing.T) {
	status := http.StatusNotFound
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", status)
	}))
	defer srv.Close()

	client, err := NewRESTClient(srv.URL, "", time.Second)
	require.NoError(t, err)
	ctx := context.Background()

	err = client.Approve(ctx, "missing")
	require.ErrorIs(t, err, shared.ErrNotFound)
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	require.Contains(t, httpErr.Body, "nope")

	status = http.StatusConflict
	require.ErrorIs(t, client.Delete(ctx, "busy"), shared.ErrInvalidTransition)

	status = http.StatusBadGateway
	_, err = client.List(ctx, ListRequest{})
	require.ErrorAs(t, err, &httpErr)
	require.NotErrorIs(t, err, shared.ErrNotFound)
}

func TestNewRESTClientRejectsRelativeURL(t *testing.T) {
	_, err := NewRESTClient("/invoices", "", 0)
	require.Error(t, err)
}
