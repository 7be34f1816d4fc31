package view

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"statements/internal/core"
	"statements/internal/statement"
)

type fakeFetcher struct {
	pages map[int][]core.Transaction
	err   error
}

func (f *fakeFetcher) FetchPage(_ context.Context, _ string, _ statement.Filter, page, _ int) ([]core.Transaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pages[page], nil
}

func tx(id string, typ core.TransactionType, cents int64, date string) core.Transaction {
	d, err := time.Parse(time.RFC3339, date)
	if err != nil {
		panic(err)
	}
	return core.Transaction{
		ID:          id,
		AccountID:   "acc-1",
		Type:        typ,
		Amount:      core.Money{Cents: cents},
		Date:        d,
		Description: "tx " + id,
	}
}

func newTestServer(t *testing.T, fetcher statement.PageFetcher) *Server {
	t.Helper()
	cache := statement.NewCache(fetcher, "acc-1", 10)
	now := func() time.Time {
		return time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	}
	return NewServer(":0", cache, now)
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestLoadReturnsFormattedStatement(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int][]core.Transaction{
		1: {
			tx("a", core.Exchange, 20000, "2024-03-10T00:00:00Z"),
			tx("b", core.Transfer, 5000, "2024-03-05T00:00:00Z"),
		},
	}}
	s := newTestServer(t, fetcher)

	rec := doRequest(t, s, http.MethodPost, "/api/statement/load", `{}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp statementResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(resp.Items))
	}
	// Default ordering is date descending.
	if resp.Items[0].ID != "a" || resp.Items[1].ID != "b" {
		t.Errorf("unexpected order: %s, %s", resp.Items[0].ID, resp.Items[1].ID)
	}
	if resp.Items[0].Amount != "200.00" {
		t.Errorf("expected credit amount 200.00, got %s", resp.Items[0].Amount)
	}
	if resp.Items[1].Amount != "-50.00" {
		t.Errorf("expected debit amount -50.00, got %s", resp.Items[1].Amount)
	}
	if resp.Items[1].Direction != string(core.Debit) {
		t.Errorf("expected debit direction, got %s", resp.Items[1].Direction)
	}
}

func TestLoadInvalidFilterRejected(t *testing.T) {
	s := newTestServer(t, &fakeFetcher{})

	body := `{"startDate":"2024-03-31T00:00:00Z","endDate":"2024-03-01T00:00:00Z"}`
	rec := doRequest(t, s, http.MethodPost, "/api/statement/load", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestLoadFetchFailureKeepsLastKnownGood(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int][]core.Transaction{
		1: {tx("a", core.Exchange, 1000, "2024-03-10T00:00:00Z")},
	}}
	s := newTestServer(t, fetcher)

	if rec := doRequest(t, s, http.MethodPost, "/api/statement/load", `{}`); rec.Code != http.StatusOK {
		t.Fatalf("seed load failed: %d", rec.Code)
	}

	fetcher.err = errors.New("ledger unreachable")
	rec := doRequest(t, s, http.MethodPost, "/api/statement/load", `{}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/statement", "")
	var resp statementResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].ID != "a" {
		t.Fatalf("expected last-known-good item to survive, got %+v", resp.Items)
	}
}

func TestSortToggleFlipsDirection(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int][]core.Transaction{
		1: {
			tx("small", core.Exchange, 100, "2024-03-10T00:00:00Z"),
			tx("big", core.Exchange, 900, "2024-03-11T00:00:00Z"),
		},
	}}
	s := newTestServer(t, fetcher)
	doRequest(t, s, http.MethodPost, "/api/statement/load", `{}`)

	rec := doRequest(t, s, http.MethodPost, "/api/statement/sort", `{"field":"amount"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp statementResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Items[0].ID != "small" {
		t.Fatalf("expected ascending amounts after first toggle, got %s first", resp.Items[0].ID)
	}

	rec = doRequest(t, s, http.MethodPost, "/api/statement/sort", `{"field":"amount"}`)
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Items[0].ID != "big" {
		t.Fatalf("expected descending amounts after second toggle, got %s first", resp.Items[0].ID)
	}
}

func TestSortExplicitDirection(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int][]core.Transaction{
		1: {
			tx("b", core.Exchange, 100, "2024-03-10T00:00:00Z"),
			tx("a", core.Exchange, 900, "2024-03-11T00:00:00Z"),
		},
	}}
	s := newTestServer(t, fetcher)
	doRequest(t, s, http.MethodPost, "/api/statement/load", `{}`)

	rec := doRequest(t, s, http.MethodPost, "/api/statement/sort", `{"field":"description","direction":"asc"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp statementResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Items[0].ID != "a" {
		t.Fatalf("expected description ascending, got %s first", resp.Items[0].ID)
	}

	rec = doRequest(t, s, http.MethodPost, "/api/statement/sort", `{"field":"nope"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestSummaryFormatsExitsNegative(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int][]core.Transaction{
		1: {
			tx("a", core.Exchange, 70000, "2024-03-03T00:00:00Z"),
			tx("b", core.Transfer, 30000, "2024-03-16T00:00:00Z"),
		},
	}}
	s := newTestServer(t, fetcher)
	doRequest(t, s, http.MethodPost, "/api/statement/load", `{}`)

	rec := doRequest(t, s, http.MethodGet, "/api/summary", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp summaryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.TotalEntries != "700.00" {
		t.Errorf("expected total entries 700.00, got %s", resp.TotalEntries)
	}
	if resp.TotalExits != "-300.00" {
		t.Errorf("expected total exits -300.00, got %s", resp.TotalExits)
	}
	if resp.Balance != "400.00" {
		t.Errorf("expected balance 400.00, got %s", resp.Balance)
	}
	if resp.PeriodCount != 2 {
		t.Errorf("expected 2 transactions in period, got %d", resp.PeriodCount)
	}
	if len(resp.Weekly) != 4 {
		t.Fatalf("expected 4 weekly buckets, got %d", len(resp.Weekly))
	}
	if resp.Weekly[0].Entries != "700.00" {
		t.Errorf("expected first bucket entries 700.00, got %s", resp.Weekly[0].Entries)
	}
	if resp.Weekly[2].Exits != "-300.00" {
		t.Errorf("expected third bucket exits -300.00, got %s", resp.Weekly[2].Exits)
	}
	if resp.Weekly[1].Exits != "0.00" {
		t.Errorf("expected empty bucket exits 0.00, got %s", resp.Weekly[1].Exits)
	}
}

func TestStatementBeforeAnyLoadIsEmpty(t *testing.T) {
	s := newTestServer(t, &fakeFetcher{})

	rec := doRequest(t, s, http.MethodGet, "/api/statement", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp statementResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Items) != 0 {
		t.Fatalf("expected no items, got %d", len(resp.Items))
	}
	if resp.Pagination.CurrentPage != 1 {
		t.Errorf("expected initial page 1, got %d", resp.Pagination.CurrentPage)
	}
}
