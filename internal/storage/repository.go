// Package storage is the SQLite-backed transaction ledger behind ledgerd.
// It owns the canonical records the statement caches only mirror.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"statements/internal/core"
	"statements/internal/statement"
)

var ErrNotFound = errors.New("transaction not found")

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Insert stores a draft and returns the canonical record. A missing id is
// assigned server-side; the client never originates ids.
func (r *Repository) Insert(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	tx.Date = tx.Date.UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, account_id, type, amount_cents, date, description, from_party, to_party, attachment_ref)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.AccountID, string(tx.Type), tx.Amount.Cents, tx.Date.Format(time.RFC3339),
		tx.Description, tx.From, tx.To, tx.AttachmentRef)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", tx.ID,
		"account", tx.AccountID,
		"type", tx.Type,
		"amount_cents", tx.Amount.Cents)

	return tx, nil
}

// Update replaces the full record keyed by id.
func (r *Repository) Update(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	tx.Date = tx.Date.UTC()

	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET account_id = ?, type = ?, amount_cents = ?, date = ?, description = ?,
		    from_party = ?, to_party = ?, attachment_ref = ?,
		    updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`,
		tx.AccountID, string(tx.Type), tx.Amount.Cents, tx.Date.Format(time.RFC3339),
		tx.Description, tx.From, tx.To, tx.AttachmentRef, tx.ID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %s: %w", tx.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %s: %w", tx.ID, err)
	}
	if n == 0 {
		return core.Transaction{}, ErrNotFound
	}
	return tx, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return tx, nil
}

// ListPage returns one page of an account's transactions under the given
// filter and ordering. Pages are 1-based.
func (r *Repository) ListPage(ctx context.Context, accountID string, f statement.Filter, page, pageSize int) ([]core.Transaction, error) {
	if page < 1 {
		return nil, fmt.Errorf("invalid page %d", page)
	}
	f = f.Normalize()

	where := []string{"account_id = ?"}
	args := []any{accountID}
	if !f.StartDate.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, f.StartDate.UTC().Format(time.RFC3339))
	}
	if !f.EndDate.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, f.EndDate.UTC().Format(time.RFC3339))
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(f.Type))
	}
	if f.Description != "" {
		where = append(where, "instr(lower(description), lower(?)) > 0")
		args = append(args, f.Description)
	}
	args = append(args, pageSize, (page-1)*pageSize)

	q := selectColumns +
		" WHERE " + strings.Join(where, " AND ") +
		" ORDER BY " + orderClause(f.Sort) +
		" LIMIT ? OFFSET ?"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return out, nil
}

const selectColumns = `SELECT id, account_id, type, amount_cents, date, description, from_party, to_party, attachment_ref FROM transactions`

// orderClause maps a statement sort onto columns. Values come from the
// validated Sort enums, never from raw request input. Dates are stored as
// RFC 3339 UTC, so lexicographic order is chronological; id breaks ties to
// keep pagination deterministic.
func orderClause(s statement.Sort) string {
	col := "date"
	switch s.Field {
	case statement.SortByAmount:
		col = "amount_cents"
	case statement.SortByDescription:
		col = "description"
	case statement.SortByType:
		col = "type"
	}
	dir := "ASC"
	if s.Direction == statement.Descending {
		dir = "DESC"
	}
	return col + " " + dir + ", id " + dir
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		tx      core.Transaction
		typ     string
		rawDate string
	)
	if err := row.Scan(&tx.ID, &tx.AccountID, &typ, &tx.Amount.Cents, &rawDate,
		&tx.Description, &tx.From, &tx.To, &tx.AttachmentRef); err != nil {
		return core.Transaction{}, err
	}
	tx.Type = core.TransactionType(typ)
	date, err := time.Parse(time.RFC3339, rawDate)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse stored date %q: %w", rawDate, err)
	}
	tx.Date = date
	return tx, nil
}
