// Package view is the dashboard's HTTP surface. It owns the statement cache
// for the session's account, translates load/sort requests from the UI into
// cache operations, and serves the derived summary figures. Display
// formatting (sign-normalized exits included) lives here, not in the
// aggregation engine.
package view

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"statements/internal/core"
	"statements/internal/statement"
	"statements/internal/summary"
)

type Server struct {
	http.Server
	cache *statement.Cache
	now   func() time.Time
}

// NewServer wires the dashboard routes around an already-watching cache.
// The clock is injectable so the period figures are testable.
func NewServer(addr string, cache *statement.Cache, now func() time.Time) *Server {
	if now == nil {
		now = time.Now
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		cache: cache,
		now:   now,
	}

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /api/statement", s.handleStatement)
	mux.HandleFunc("POST /api/statement/load", s.handleLoad)
	mux.HandleFunc("POST /api/statement/more", s.handleLoadMore)
	mux.HandleFunc("POST /api/statement/sort", s.handleSort)
	mux.HandleFunc("GET /api/summary", s.handleSummary)

	return s
}

func (s *Server) handleStatement(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.statementResponse())
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	var f statement.Filter
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&f); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid filter body")
			return
		}
	}

	err := s.cache.Load(r.Context(), f)
	switch {
	case errors.Is(err, statement.ErrStaleResponse):
		// A newer load already owns the view; serve its state.
	case errors.Is(err, statement.ErrInvalidDateRange),
		errors.Is(err, statement.ErrInvalidSortField),
		errors.Is(err, statement.ErrInvalidSortDirection),
		errors.Is(err, core.ErrInvalidType):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		// Last-known-good statement state is preserved by the cache; the
		// caller gets the error flag and may retry.
		slog.ErrorContext(r.Context(), "Statement load failed", "error", err, "account", s.cache.AccountID())
		writeError(w, http.StatusBadGateway, "failed to load statement")
		return
	}

	writeJSON(w, http.StatusOK, s.statementResponse())
}

func (s *Server) handleLoadMore(w http.ResponseWriter, r *http.Request) {
	err := s.cache.LoadMore(r.Context())
	switch {
	case errors.Is(err, statement.ErrStaleResponse):
	case err != nil:
		slog.ErrorContext(r.Context(), "Statement load-more failed", "error", err, "account", s.cache.AccountID())
		writeError(w, http.StatusBadGateway, "failed to load more")
		return
	}

	writeJSON(w, http.StatusOK, s.statementResponse())
}

type sortRequest struct {
	Field     statement.SortField     `json:"field"`
	Direction statement.SortDirection `json:"direction,omitempty"`
}

// handleSort applies an explicit ordering when a direction is given and
// toggles the column otherwise, mirroring a header click.
func (s *Server) handleSort(w http.ResponseWriter, r *http.Request) {
	var req sortRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid sort body")
		return
	}

	var err error
	if req.Direction == "" {
		err = s.cache.ToggleSort(req.Field)
	} else {
		err = s.cache.ApplySort(req.Field, req.Direction)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, s.statementResponse())
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, buildSummaryResponse(s.cache.Summary(s.now())))
}

func (s *Server) statementResponse() statementResponse {
	return buildStatementResponse(s.cache.Items(), s.cache.Filter(), s.cache.Pagination())
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.cache.Unwatch()
	return s.Server.Shutdown(ctx)
}

type transactionView struct {
	ID          string `json:"id"`
	AccountID   string `json:"accountId"`
	Type        string `json:"type"`
	Direction   string `json:"direction"`
	Amount      string `json:"amount"`
	AmountCents int64  `json:"amountCents"`
	Date        string `json:"date"`
	Description string `json:"description"`
}

type statementResponse struct {
	Items      []transactionView    `json:"items"`
	Filter     statement.Filter     `json:"filter"`
	Pagination statement.Pagination `json:"pagination"`
}

type bucketView struct {
	Label   string `json:"label"`
	Entries string `json:"entries"`
	Exits   string `json:"exits"`
}

type summaryResponse struct {
	TotalEntries string       `json:"totalEntries"`
	TotalExits   string       `json:"totalExits"`
	Balance      string       `json:"balance"`
	Weekly       []bucketView `json:"weekly"`
	PeriodCount  int          `json:"periodCount"`
}

func buildStatementResponse(items []core.Transaction, f statement.Filter, p statement.Pagination) statementResponse {
	resp := statementResponse{
		Items:      make([]transactionView, 0, len(items)),
		Filter:     f,
		Pagination: p,
	}
	for _, tx := range items {
		amount := tx.Amount.Format()
		if core.IsDebit(tx.Type) {
			amount = "-" + amount
		}
		resp.Items = append(resp.Items, transactionView{
			ID:          tx.ID,
			AccountID:   tx.AccountID,
			Type:        string(tx.Type),
			Direction:   string(core.Classify(tx.Type)),
			Amount:      amount,
			AmountCents: tx.Amount.Cents,
			Date:        tx.Date.UTC().Format(time.RFC3339),
			Description: tx.Description,
		})
	}
	return resp
}

// buildSummaryResponse renders the engine's magnitudes for display: exits
// carry a minus sign here and only here.
func buildSummaryResponse(sum summary.Summary) summaryResponse {
	resp := summaryResponse{
		TotalEntries: sum.TotalEntries.Format(),
		TotalExits:   negated(sum.TotalExits),
		Balance:      sum.Balance.Format(),
		Weekly:       make([]bucketView, 0, len(sum.Weekly)),
		PeriodCount:  len(sum.Period),
	}
	for _, b := range sum.Weekly {
		resp.Weekly = append(resp.Weekly, bucketView{
			Label:   b.Label,
			Entries: b.Entries.Format(),
			Exits:   negated(b.Exits),
		})
	}
	return resp
}

func negated(m core.Money) string {
	if m.Cents == 0 {
		return m.Format()
	}
	return (core.Money{Cents: -m.Cents}).Format()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
