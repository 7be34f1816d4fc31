package statement

import (
	"context"

	"statements/internal/core"
)

// PageFetcher is the outbound port for paged transaction retrieval. The
// returned slice may contain malformed entries with a missing id; the cache
// tolerates those by dropping them.
type PageFetcher interface {
	FetchPage(ctx context.Context, accountID string, f Filter, page, pageSize int) ([]core.Transaction, error)
}
