package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Exchange TransactionType = "exchange"
	Loan     TransactionType = "loan"
	Transfer TransactionType = "transfer"
)

const (
	Credit Direction = "credit"
	Debit  Direction = "debit"
)

type (
	// TransactionType is the domain label of a ledger movement. Direction
	// (credit or debit) is derived from it, never stored separately.
	TransactionType string

	// Direction classifies a type as balance-increasing or balance-decreasing.
	Direction string

	// Transaction is the shared ledger record. ID is empty on a client draft
	// and assigned by the server; Amount is always a non-negative magnitude.
	Transaction struct {
		ID            string          `json:"id,omitempty"`
		AccountID     string          `json:"accountId"`
		Type          TransactionType `json:"type"`
		Amount        Money           `json:"amount"`
		Date          time.Time       `json:"date"`
		Description   string          `json:"description"`
		From          string          `json:"from,omitempty"`
		To            string          `json:"to,omitempty"`
		AttachmentRef string          `json:"attachmentRef,omitempty"`
	}
)

var (
	ErrInvalidType     = errors.New("invalid transaction type")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrEmptyAccount    = errors.New("empty account id")
	ErrZeroDate        = errors.New("date cannot be zero")
	ErrLongDescription = errors.New("description too long (max 200 characters)")
)

// Types lists every valid transaction type.
func Types() []TransactionType {
	return []TransactionType{Exchange, Loan, Transfer}
}

func (t TransactionType) Valid() bool {
	switch t {
	case Exchange, Loan, Transfer:
		return true
	}
	return false
}

// IsCredit reports whether the type increases the account balance.
func IsCredit(t TransactionType) bool {
	return t == Exchange || t == Loan
}

// IsDebit reports whether the type decreases the account balance.
func IsDebit(t TransactionType) bool {
	return t == Transfer
}

// Classify maps a type to its direction. Every valid type belongs to exactly
// one direction; calling Classify with an unknown type is a programmer error.
func Classify(t TransactionType) Direction {
	switch {
	case IsCredit(t):
		return Credit
	case IsDebit(t):
		return Debit
	}
	panic(fmt.Sprintf("core: unknown transaction type %q", t))
}

func (tx Transaction) Validate() error {
	if strings.TrimSpace(tx.AccountID) == "" {
		return ErrEmptyAccount
	}
	if !tx.Type.Valid() {
		return ErrInvalidType
	}
	if err := tx.Amount.Validate(); err != nil {
		return err
	}
	if tx.Date.IsZero() {
		return ErrZeroDate
	}
	if len(tx.Description) > 200 {
		return ErrLongDescription
	}
	return nil
}
