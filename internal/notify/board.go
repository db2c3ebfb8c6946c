package notify

import (
	"context"
	"sync"
	"time"

	"alteris/gateway/internal/roster"
)

// Board holds the newest installed feed per session key. Passes run
// concurrently; Refresh only installs a result when no later-started
// pass has already landed, so a slow stale pass can never clobber a
// fresher feed.
type Board struct {
	agg *Aggregator

	mu    sync.Mutex
	feeds map[string]Feed
}

func NewBoard(agg *Aggregator) *Board {
	return &Board{agg: agg, feeds: make(map[string]Feed)}
}

// Refresh runs one aggregation pass for the session and returns the
// feed the key ends up holding, which is the pass's own result unless
// it was superseded mid-flight.
func (b *Board) Refresh(ctx context.Context, key, token, viewerID string, set *roster.Set, now time.Time) Feed {
	feed := b.agg.Feed(ctx, token, viewerID, set, now)

	b.mu.Lock()
	defer b.mu.Unlock()
	if cur, ok := b.feeds[key]; ok && cur.Generation > feed.Generation {
		return cur
	}
	b.feeds[key] = feed
	return feed
}

// Latest returns the installed feed without triggering a pass.
func (b *Board) Latest(key string) (Feed, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	feed, ok := b.feeds[key]
	return feed, ok
}

// Drop forgets the session's feed, on logout.
func (b *Board) Drop(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.feeds, key)
}
