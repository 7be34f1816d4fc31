// Package statement owns the in-memory working set of one account's
// transactions under a filter/sort configuration. The cache loads pages
// incrementally through a PageFetcher, merges live create/update/delete
// events published on the bus, and hands its snapshot to the summary
// package for the derived dashboard figures.
package statement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"statements/internal/bus"
	"statements/internal/core"
	"statements/internal/summary"
)

// ErrStaleResponse is returned when a fetch completed after a newer Load
// superseded the view; the response was discarded and the cache is
// unchanged by this call.
var ErrStaleResponse = errors.New("stale fetch response discarded")

// Cache is the authoritative in-memory statement of one account view.
// Items are deduplicated by id. Every operation runs to completion
// atomically with respect to the cache state; only the fetch itself happens
// outside the lock, tagged with a generation so stale responses are
// discarded instead of clobbering a newer view.
type Cache struct {
	fetcher   PageFetcher
	accountID string
	pageSize  int

	mu     sync.Mutex
	gen    uint64
	items  []core.Transaction
	filter Filter
	page   Pagination
	subs   []*bus.Subscription
}

func NewCache(fetcher PageFetcher, accountID string, pageSize int) *Cache {
	return &Cache{
		fetcher:   fetcher,
		accountID: accountID,
		pageSize:  pageSize,
		filter:    Filter{Sort: DefaultSort()},
		page:      Pagination{CurrentPage: 1, ItemsPerPage: pageSize},
	}
}

func (c *Cache) AccountID() string { return c.accountID }

// Items returns a copy of the current working set.
func (c *Cache) Items() []core.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.Transaction, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Cache) Filter() Filter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

func (c *Cache) Pagination() Pagination {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

// Summary recomputes the derived figures for the month containing ref from
// the current working set. Recomputation is idempotent: it reads the items
// and writes nothing.
func (c *Cache) Summary(ref time.Time) summary.Summary {
	return summary.Compute(c.Items(), ref)
}

// Load resets the view to page one of the given filter. On fetch failure the
// previous items are preserved and the error is returned to the caller; on a
// stale response (a newer Load was issued meanwhile) the result is dropped
// and ErrStaleResponse is returned.
func (c *Cache) Load(ctx context.Context, f Filter) error {
	if err := f.Validate(); err != nil {
		return fmt.Errorf("validate filter: %w", err)
	}
	f = f.Normalize()

	c.mu.Lock()
	c.gen++
	gen := c.gen
	// A Load supersedes any in-flight LoadMore of the previous view.
	c.page.IsLoadingMore = false
	c.mu.Unlock()

	fetched, err := c.fetcher.FetchPage(ctx, c.accountID, f, 1, c.pageSize)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return ErrStaleResponse
	}
	if err != nil {
		return fmt.Errorf("load statement page 1: %w", err)
	}

	items := dropMalformed(fetched)
	sortItems(items, f.Sort)
	c.items = items
	c.filter = f
	c.page = Pagination{
		CurrentPage:  1,
		ItemsPerPage: c.pageSize,
		AllLoaded:    len(fetched) < c.pageSize,
	}
	return nil
}

// LoadMore fetches the next page of the current view and appends only
// records whose id is not already cached. Pages may overlap when records
// were inserted between fetches; correctness relies on this idempotent
// merge, not on the server's pagination being gap free. A no-op while a
// LoadMore is in flight or once everything is loaded.
func (c *Cache) LoadMore(ctx context.Context) error {
	c.mu.Lock()
	if c.page.IsLoadingMore || c.page.AllLoaded {
		c.mu.Unlock()
		return nil
	}
	c.page.IsLoadingMore = true
	gen := c.gen
	next := c.page.CurrentPage + 1
	f := c.filter
	c.mu.Unlock()

	fetched, err := c.fetcher.FetchPage(ctx, c.accountID, f, next, c.pageSize)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		// A Load replaced the view while this page was in flight; the new
		// view already owns the loading flags.
		return ErrStaleResponse
	}
	c.page.IsLoadingMore = false
	if err != nil {
		return fmt.Errorf("load statement page %d: %w", next, err)
	}

	seen := make(map[string]struct{}, len(c.items))
	for _, tx := range c.items {
		seen[tx.ID] = struct{}{}
	}
	for _, tx := range dropMalformed(fetched) {
		if _, dup := seen[tx.ID]; dup {
			continue
		}
		seen[tx.ID] = struct{}{}
		c.items = append(c.items, tx)
	}
	c.page.CurrentPage = next
	if len(fetched) < c.pageSize {
		c.page.AllLoaded = true
	}
	return nil
}

// ApplySort re-sorts the working set in place. The sort is stable, so equal
// keys keep their relative order across repeated invocations.
func (c *Cache) ApplySort(field SortField, direction SortDirection) error {
	if !field.Valid() {
		return ErrInvalidSortField
	}
	if !direction.Valid() {
		return ErrInvalidSortDirection
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter.Sort = Sort{Field: field, Direction: direction}
	sortItems(c.items, c.filter.Sort)
	return nil
}

// ToggleSort flips the direction when the field is already selected and
// resets to ascending when a new field is chosen.
func (c *Cache) ToggleSort(field SortField) error {
	if !field.Valid() {
		return ErrInvalidSortField
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.filter.Sort.Field == field {
		if c.filter.Sort.Direction == Ascending {
			c.filter.Sort.Direction = Descending
		} else {
			c.filter.Sort.Direction = Ascending
		}
	} else {
		c.filter.Sort = Sort{Field: field, Direction: Ascending}
	}
	sortItems(c.items, c.filter.Sort)
	return nil
}

// Watch subscribes the cache to the bus so live writes anywhere in the
// process are reflected without a reload. Call Unwatch to detach.
func (c *Cache) Watch(b *bus.Bus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs,
		b.SubscribeCreated(c.onCreated),
		b.SubscribeUpdated(c.onUpdated),
		b.SubscribeDeleted(c.onDeleted),
	)
}

func (c *Cache) Unwatch() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()
	for _, s := range subs {
		s.Cancel()
	}
}

// onCreated merges a freshly created transaction into the working set. The
// cache patches in place rather than re-fetching: a single create cannot
// shift page boundaries enough to matter, and the dedup-by-id merge in
// LoadMore absorbs any overlap a later page brings. Events for other
// accounts or outside the active filter are ignored so filtered live views
// stay scoped.
func (c *Cache) onCreated(tx core.Transaction) {
	if tx.ID == "" {
		return
	}
	if tx.AccountID != c.accountID {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.filter.Matches(tx) {
		return
	}
	for i := range c.items {
		if c.items[i].ID == tx.ID {
			c.items[i] = tx
			return
		}
	}
	c.items = append(c.items, tx)
	sortItems(c.items, c.filter.Sort)
}

// onUpdated replaces the matching item, or removes it when the new record
// no longer satisfies the active filter. An unmatched id is ignored: the
// cache is not the source of truth and the event may belong to another view.
func (c *Cache) onUpdated(tx core.Transaction) {
	if tx.ID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].ID == tx.ID {
			if !c.filter.Matches(tx) {
				c.items = append(c.items[:i], c.items[i+1:]...)
				return
			}
			c.items[i] = tx
			sortItems(c.items, c.filter.Sort)
			return
		}
	}
	slog.Debug("Update event for uncached transaction ignored", "id", tx.ID, "account", c.accountID)
}

func (c *Cache) onDeleted(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return
		}
	}
	slog.Debug("Delete event for uncached transaction ignored", "id", id, "account", c.accountID)
}

// dropMalformed filters out records without a server-assigned id. A missing
// id is a non-fatal data-quality issue, not an error.
func dropMalformed(txs []core.Transaction) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	seen := make(map[string]struct{}, len(txs))
	for _, tx := range txs {
		if tx.ID == "" {
			continue
		}
		if _, dup := seen[tx.ID]; dup {
			continue
		}
		seen[tx.ID] = struct{}{}
		out = append(out, tx)
	}
	return out
}

func sortItems(items []core.Transaction, s Sort) {
	sort.SliceStable(items, func(i, j int) bool {
		cmp := compare(items[i], items[j], s.Field)
		if s.Direction == Descending {
			return cmp > 0
		}
		return cmp < 0
	})
}
