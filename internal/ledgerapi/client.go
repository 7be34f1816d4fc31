// Package ledgerapi fetches statement pages from ledgerd over HTTP. It is
// the concrete PageFetcher behind every dashboard statement view.
package ledgerapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"statements/internal/core"
	"statements/internal/statement"
)

type Client struct {
	baseURL string
	http    *http.Client
}

// Ensure interface conformance.
var _ statement.PageFetcher = (*Client)(nil)

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    newHTTPClientWithPooling(),
	}
}

// NewClientWithHTTP is used by tests to plug an httptest transport.
func NewClientWithHTTP(baseURL string, hc *http.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext: dialer.DialContext,

		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		DisableKeepAlives: false,
		ForceAttemptHTTP2: true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

type listResponse struct {
	Transactions []core.Transaction `json:"transactions"`
}

// FetchPage implements statement.PageFetcher against ledgerd's listing
// endpoint. The response may legitimately be shorter than pageSize on the
// last page; entries without an id are passed through for the cache to drop.
func (c *Client) FetchPage(ctx context.Context, accountID string, f statement.Filter, page, pageSize int) ([]core.Transaction, error) {
	u := fmt.Sprintf("%s/api/accounts/%s/transactions?%s",
		c.baseURL, url.PathEscape(accountID), listQuery(f, page, pageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page %d: %w", page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch page %d: unexpected status %d: %s", page, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out listResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode page %d: %w", page, err)
	}
	return out.Transactions, nil
}

func listQuery(f statement.Filter, page, pageSize int) string {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(pageSize))
	if !f.StartDate.IsZero() {
		q.Set("start", f.StartDate.UTC().Format(time.RFC3339))
	}
	if !f.EndDate.IsZero() {
		q.Set("end", f.EndDate.UTC().Format(time.RFC3339))
	}
	if f.Type != "" {
		q.Set("type", string(f.Type))
	}
	if f.Description != "" {
		q.Set("q", f.Description)
	}
	if f.Sort.Field != "" {
		q.Set("sortBy", string(f.Sort.Field))
	}
	if f.Sort.Direction != "" {
		q.Set("sortDir", string(f.Sort.Direction))
	}
	return q.Encode()
}
