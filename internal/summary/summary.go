// Package summary derives dashboard figures from a set of transactions.
// Everything here is pure: output depends only on the given transactions and
// the explicit reference time, which keeps the package independently
// testable from the statement cache.
package summary

import (
	"fmt"
	"time"

	"statements/internal/core"
)

// Bucket groups a month's movements by a fixed day-of-month range for
// charting. Entries and Exits are non-negative magnitudes.
type Bucket struct {
	Label   string
	Entries core.Money
	Exits   core.Money
}

// Summary holds the derived figures for the calendar month containing the
// reference time.
type Summary struct {
	// Period is the subset of the input whose date falls in the reference
	// month, in input order.
	Period []core.Transaction

	// TotalEntries and TotalExits are magnitudes; any negation of exits for
	// display is a formatting concern.
	TotalEntries core.Money
	TotalExits   core.Money

	// Balance is entries minus exits and may be negative.
	Balance core.Money

	// Weekly buckets cover days 1-7, 8-14, 15-21 and 22-end. The ranges are
	// contiguous and exhaustive for any valid day of month.
	Weekly [4]Bucket
}

// Compute derives the summary for the month containing ref.
func Compute(txs []core.Transaction, ref time.Time) Summary {
	s := Summary{Weekly: emptyBuckets(ref)}

	for _, tx := range txs {
		if tx.Date.Year() != ref.Year() || tx.Date.Month() != ref.Month() {
			continue
		}
		s.Period = append(s.Period, tx)

		b := &s.Weekly[bucketIndex(tx.Date.Day())]
		if core.IsCredit(tx.Type) {
			s.TotalEntries.Cents += tx.Amount.Cents
			b.Entries.Cents += tx.Amount.Cents
		} else {
			s.TotalExits.Cents += tx.Amount.Cents
			b.Exits.Cents += tx.Amount.Cents
		}
	}

	s.Balance = core.Money{Cents: s.TotalEntries.Cents - s.TotalExits.Cents}
	return s
}

// bucketIndex maps a day of month to its weekly bucket. Days beyond 21 all
// fall into the last bucket regardless of month length.
func bucketIndex(day int) int {
	switch {
	case day <= 7:
		return 0
	case day <= 14:
		return 1
	case day <= 21:
		return 2
	default:
		return 3
	}
}

func emptyBuckets(ref time.Time) [4]Bucket {
	// Day 0 of the next month is the last day of ref's month.
	end := time.Date(ref.Year(), ref.Month()+1, 0, 0, 0, 0, 0, ref.Location()).Day()
	return [4]Bucket{
		{Label: "1-7"},
		{Label: "8-14"},
		{Label: "15-21"},
		{Label: fmt.Sprintf("22-%d", end)},
	}
}
