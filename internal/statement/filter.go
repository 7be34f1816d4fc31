package statement

import (
	"errors"
	"strings"
	"time"

	"statements/internal/core"
)

const (
	SortByDate        SortField = "date"
	SortByAmount      SortField = "amount"
	SortByDescription SortField = "description"
	SortByType        SortField = "type"
)

const (
	Ascending  SortDirection = "asc"
	Descending SortDirection = "desc"
)

type (
	SortField     string
	SortDirection string

	// Sort names the statement ordering: a field and a direction.
	Sort struct {
		Field     SortField     `json:"field"`
		Direction SortDirection `json:"direction"`
	}

	// Filter selects and orders the transactions of one statement view.
	// Zero-valued fields are "any". Together with the account id it is the
	// identity of a view.
	Filter struct {
		StartDate   time.Time            `json:"startDate,omitempty"`
		EndDate     time.Time            `json:"endDate,omitempty"`
		Type        core.TransactionType `json:"type,omitempty"`
		Description string               `json:"description,omitempty"`
		Sort        Sort                 `json:"sort"`
	}

	// Pagination is the load progress of a statement view. IsLoadingMore and
	// AllLoaded are mutually exclusive triggers: once AllLoaded is set,
	// further LoadMore calls are no-ops.
	Pagination struct {
		CurrentPage   int  `json:"currentPage"`
		ItemsPerPage  int  `json:"itemsPerPage"`
		AllLoaded     bool `json:"allLoaded"`
		IsLoadingMore bool `json:"isLoadingMore"`
	}
)

var (
	ErrInvalidDateRange     = errors.New("end date before start date")
	ErrInvalidSortField     = errors.New("invalid sort field")
	ErrInvalidSortDirection = errors.New("invalid sort direction")
)

// DefaultSort is the statement ordering before the user touches a column:
// newest first.
func DefaultSort() Sort {
	return Sort{Field: SortByDate, Direction: Descending}
}

func (f SortField) Valid() bool {
	switch f {
	case SortByDate, SortByAmount, SortByDescription, SortByType:
		return true
	}
	return false
}

func (d SortDirection) Valid() bool {
	return d == Ascending || d == Descending
}

// Normalize fills zero-valued sort fields with the defaults.
func (f Filter) Normalize() Filter {
	if f.Sort.Field == "" {
		f.Sort.Field = SortByDate
	}
	if f.Sort.Direction == "" {
		f.Sort.Direction = Descending
	}
	return f
}

func (f Filter) Validate() error {
	if f.Type != "" && !f.Type.Valid() {
		return core.ErrInvalidType
	}
	if !f.StartDate.IsZero() && !f.EndDate.IsZero() && f.EndDate.Before(f.StartDate) {
		return ErrInvalidDateRange
	}
	if f.Sort.Field != "" && !f.Sort.Field.Valid() {
		return ErrInvalidSortField
	}
	if f.Sort.Direction != "" && !f.Sort.Direction.Valid() {
		return ErrInvalidSortDirection
	}
	return nil
}

// Matches reports whether a transaction satisfies the filter's selection
// criteria (sort is not a criterion). The description match is a
// case-insensitive substring test.
func (f Filter) Matches(tx core.Transaction) bool {
	if !f.StartDate.IsZero() && tx.Date.Before(f.StartDate) {
		return false
	}
	if !f.EndDate.IsZero() && tx.Date.After(f.EndDate) {
		return false
	}
	if f.Type != "" && tx.Type != f.Type {
		return false
	}
	if f.Description != "" &&
		!strings.Contains(strings.ToLower(tx.Description), strings.ToLower(f.Description)) {
		return false
	}
	return true
}

// compare is the three-way comparator behind statement sorting.
func compare(a, b core.Transaction, field SortField) int {
	switch field {
	case SortByAmount:
		switch {
		case a.Amount.Cents < b.Amount.Cents:
			return -1
		case a.Amount.Cents > b.Amount.Cents:
			return 1
		}
		return 0
	case SortByDescription:
		return strings.Compare(a.Description, b.Description)
	case SortByType:
		return strings.Compare(string(a.Type), string(b.Type))
	default:
		return a.Date.Compare(b.Date)
	}
}
