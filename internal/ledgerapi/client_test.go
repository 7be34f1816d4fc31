package ledgerapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"statements/internal/core"
	"statements/internal/statement"
)

func TestFetchPageBuildsQueryAndDecodes(t *testing.T) {
	var gotPath string
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"transactions":[
			{"id":"1","accountId":"acc-1","type":"exchange","amount":{"cents":20000},"date":"2025-01-05T00:00:00Z","description":"salary"},
			{"accountId":"acc-1","type":"loan","amount":{"cents":1},"date":"2025-01-06T00:00:00Z"}
		]}`))
	}))
	defer srv.Close()

	c := NewClientWithHTTP(srv.URL, srv.Client())
	f := statement.Filter{
		Type:        core.Exchange,
		Description: "sal",
		StartDate:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Sort:        statement.Sort{Field: statement.SortByAmount, Direction: statement.Ascending},
	}

	txs, err := c.FetchPage(context.Background(), "acc-1", f, 2, 25)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if gotPath != "/api/accounts/acc-1/transactions" {
		t.Fatalf("path = %q", gotPath)
	}
	for k, want := range map[string]string{
		"page": "2", "pageSize": "25", "type": "exchange", "q": "sal",
		"sortBy": "amount", "sortDir": "asc", "start": "2025-01-01T00:00:00Z",
	} {
		if gotQuery[k] != want {
			t.Fatalf("query %s = %q, want %q", k, gotQuery[k], want)
		}
	}

	// Malformed id-less entries pass through untouched; dropping them is the
	// cache's job.
	if len(txs) != 2 {
		t.Fatalf("expected 2 decoded records, got %d", len(txs))
	}
	if txs[0].ID != "1" || txs[0].Amount.Cents != 20000 {
		t.Fatalf("unexpected first record: %+v", txs[0])
	}
}

func TestFetchPageSurfacesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClientWithHTTP(srv.URL, srv.Client())
	if _, err := c.FetchPage(context.Background(), "acc-1", statement.Filter{}, 1, 10); err == nil {
		t.Fatalf("expected error for 500 response")
	}
}
