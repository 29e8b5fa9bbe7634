package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/odyssey-erp/invoice-insights/internal/shared"
)

const maxErrorBody = 2048

// HTTPError reports a non-2xx answer from the invoice API.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("source: %s %s returned %d", e.Method, e.URL, e.StatusCode)
}

// Unwrap maps well known statuses onto shared sentinels.
func (e *HTTPError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return shared.ErrNotFound
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return shared.ErrInvalidTransition
	}
	return nil
}

// RESTClient reads and mutates invoices through the remote JSON API.
type RESTClient struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
}

// NewRESTClient constructs a client for baseURL, e.g. https://api.example.com/v1.
func NewRESTClient(baseURL, token string, timeout time.Duration) (*RESTClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("source: parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("source: base url %q must be absolute", baseURL)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RESTClient{
		baseURL:    u,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// List fetches one page. Missing data or meta decode as empty values.
func (c *RESTClient) List(ctx context.Context, req ListRequest) (Page, error) {
	endpoint := c.endpoint("invoices")
	endpoint.RawQuery = req.Values().Encode()

	var page Page
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
		return Page{}, err
	}
	return page, nil
}

// Approve moves an invoice to APPROVED.
func (c *RESTClient) Approve(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPatch, c.endpoint("invoices", id, "approve"), nil, nil)
}

// Reject moves an invoice to REJECTED with a reason.
func (c *RESTClient) Reject(ctx context.Context, id, reason string) error {
	body := map[string]string{"reason": reason}
	return c.do(ctx, http.MethodPatch, c.endpoint("invoices", id, "reject"), body, nil)
}

// Delete removes an invoice.
func (c *RESTClient) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, c.endpoint("invoices", id), nil, nil)
}

func (c *RESTClient) endpoint(segments ...string) *url.URL {
	u := *c.baseURL
	escaped := make([]string, 0, len(segments))
	for _, s := range segments {
		escaped = append(escaped, url.PathEscape(s))
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.Join(escaped, "/")
	u.RawPath = ""
	return &u
}

func (c *RESTClient) do(ctx context.Context, method string, u *url.URL, body any, dest any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("source: %s %s: %w", method, u.Path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPError{Method: method, URL: u.Path, StatusCode: resp.StatusCode, Body: string(snippet)}
	}
	if dest == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("source: decode %s: %w", u.Path, err)
	}
	return nil
}
