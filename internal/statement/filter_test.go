package statement

import (
	"testing"
	"time"

	"statements/internal/core"
)

func TestFilterMatches(t *testing.T) {
	rec := core.Transaction{
		ID:          "1",
		AccountID:   "acc-1",
		Type:        core.Transfer,
		Amount:      core.Money{Cents: 100},
		Date:        time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		Description: "Rent January",
	}

	cases := []struct {
		name string
		f    Filter
		want bool
	}{
		{"empty filter", Filter{}, true},
		{"type match", Filter{Type: core.Transfer}, true},
		{"type mismatch", Filter{Type: core.Loan}, false},
		{"substring case-insensitive", Filter{Description: "rent"}, true},
		{"substring miss", Filter{Description: "groceries"}, false},
		{"inside range", Filter{StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), EndDate: time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)}, true},
		{"before range", Filter{StartDate: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)}, false},
		{"after range", Filter{EndDate: time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)}, false},
	}
	for _, tc := range cases {
		if got := tc.f.Matches(rec); got != tc.want {
			t.Fatalf("%s: Matches = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestFilterValidate(t *testing.T) {
	good := Filter{Type: core.Loan, Sort: Sort{Field: SortByAmount, Direction: Ascending}}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Filter{
		{Type: "card"},
		{StartDate: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), EndDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		{Sort: Sort{Field: "color"}},
		{Sort: Sort{Field: SortByDate, Direction: "sideways"}},
	}
	for i, f := range bads {
		if err := f.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestNormalizeFillsSortDefaults(t *testing.T) {
	f := Filter{}.Normalize()
	if f.Sort.Field != SortByDate || f.Sort.Direction != Descending {
		t.Fatalf("unexpected defaults: %+v", f.Sort)
	}

	custom := Filter{Sort: Sort{Field: SortByAmount, Direction: Ascending}}.Normalize()
	if custom.Sort.Field != SortByAmount || custom.Sort.Direction != Ascending {
		t.Fatalf("normalize clobbered explicit sort: %+v", custom.Sort)
	}
}
