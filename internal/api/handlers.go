package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"statements/internal/core"
	"statements/internal/statement"
	"statements/internal/storage"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// transactionPayload is the write-side request body. Amount travels as a
// decimal string; direction comes from the type, so signed amounts are
// rejected at parse time.
type transactionPayload struct {
	AccountID     string    `json:"accountId"`
	Type          string    `json:"type"`
	Amount        string    `json:"amount"`
	Date          time.Time `json:"date"`
	Description   string    `json:"description"`
	From          string    `json:"from,omitempty"`
	To            string    `json:"to,omitempty"`
	AttachmentRef string    `json:"attachmentRef,omitempty"`
}

func (p transactionPayload) toTransaction() (core.Transaction, error) {
	cents, err := core.ParseDecimalToCents(p.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	tx := core.Transaction{
		AccountID:     strings.TrimSpace(p.AccountID),
		Type:          core.TransactionType(p.Type),
		Amount:        core.Money{Cents: cents},
		Date:          p.Date,
		Description:   strings.TrimSpace(p.Description),
		From:          strings.TrimSpace(p.From),
		To:            strings.TrimSpace(p.To),
		AttachmentRef: strings.TrimSpace(p.AttachmentRef),
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var payload transactionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tx, err := payload.toTransaction()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	created, err := s.store.Insert(r.Context(), tx)
	if err != nil {
		slog.ErrorContext(r.Context(), "Transaction insert failed", "error", err, "account", tx.AccountID)
		writeError(w, http.StatusInternalServerError, "failed to save transaction")
		return
	}

	// The write already succeeded; a publish failure only delays consumers
	// until their next reload.
	s.publishCreated(r, created)

	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var payload transactionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tx, err := payload.toTransaction()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	tx.ID = id

	updated, err := s.store.Update(r.Context(), tx)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Transaction update failed", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to update transaction")
		return
	}

	s.publishUpdated(r, updated)

	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	err := s.store.Delete(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Transaction delete failed", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to delete transaction")
		return
	}

	s.publishDeleted(r, id)

	w.WriteHeader(http.StatusNoContent)
}

// listResponse matches the paged fetch contract: an array of transactions,
// possibly shorter than the requested page size on the last page.
type listResponse struct {
	Transactions []core.Transaction `json:"transactions"`
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("accountID")

	f, page, pageSize, err := parseListQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	txs, err := s.store.ListPage(r.Context(), accountID, f, page, pageSize)
	if err != nil {
		slog.ErrorContext(r.Context(), "Transaction listing failed", "error", err, "account", accountID, "page", page)
		writeError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}

	writeJSON(w, http.StatusOK, listResponse{Transactions: txs})
}

func parseListQuery(r *http.Request) (statement.Filter, int, int, error) {
	q := r.URL.Query()

	page := 1
	if v := strings.TrimSpace(q.Get("page")); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p < 1 {
			return statement.Filter{}, 0, 0, errors.New("invalid page")
		}
		page = p
	}

	pageSize := defaultPageSize
	if v := strings.TrimSpace(q.Get("pageSize")); v != "" {
		ps, err := strconv.Atoi(v)
		if err != nil || ps < 1 || ps > maxPageSize {
			return statement.Filter{}, 0, 0, errors.New("invalid page size")
		}
		pageSize = ps
	}

	var f statement.Filter
	if v := strings.TrimSpace(q.Get("start")); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return statement.Filter{}, 0, 0, errors.New("invalid start date")
		}
		f.StartDate = t
	}
	if v := strings.TrimSpace(q.Get("end")); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return statement.Filter{}, 0, 0, errors.New("invalid end date")
		}
		f.EndDate = t
	}
	f.Type = core.TransactionType(strings.TrimSpace(q.Get("type")))
	f.Description = strings.TrimSpace(q.Get("q"))
	f.Sort = statement.Sort{
		Field:     statement.SortField(strings.TrimSpace(q.Get("sortBy"))),
		Direction: statement.SortDirection(strings.TrimSpace(q.Get("sortDir"))),
	}

	if err := f.Validate(); err != nil {
		return statement.Filter{}, 0, 0, err
	}
	return f.Normalize(), page, pageSize, nil
}

// parseDate accepts both date-only and RFC 3339 timestamps.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func (s *Server) publishCreated(r *http.Request, tx core.Transaction) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishCreated(r.Context(), tx); err != nil {
		slog.ErrorContext(r.Context(), "Failed to publish created event", "error", err, "id", tx.ID)
	}
}

func (s *Server) publishUpdated(r *http.Request, tx core.Transaction) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishUpdated(r.Context(), tx); err != nil {
		slog.ErrorContext(r.Context(), "Failed to publish updated event", "error", err, "id", tx.ID)
	}
}

func (s *Server) publishDeleted(r *http.Request, id string) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishDeleted(r.Context(), id); err != nil {
		slog.ErrorContext(r.Context(), "Failed to publish deleted event", "error", err, "id", id)
	}
}
