package sync

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/fedibridge/skybridge/internal/bluesky"
	"github.com/fedibridge/skybridge/internal/models"
)

const (
	defaultPageSize    = 50
	defaultFetchWindow = 24 * time.Hour
)

// Fetcher paginates the author feed with two independent cutoffs: the
// persisted cursor and a time floor. The floor bounds worst-case fetch
// volume after an outage: no matter how stale the stored state is, the
// window never reaches back more than 24 hours.
type Fetcher struct {
	pageSize int
	window   time.Duration
	now      func() time.Time
}

func NewFetcher() *Fetcher {
	return &Fetcher{
		pageSize: defaultPageSize,
		window:   defaultFetchWindow,
		now:      time.Now,
	}
}

// FetchPosts pulls up to limit candidate posts in feed order and returns
// the cursor to persist for the next run: the cursor of the last fully
// consumed page, not necessarily the last page requested.
func (f *Fetcher) FetchPosts(ctx context.Context, client SourceClient, account *models.Account, limit int) ([]bluesky.Post, string, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}

	floor := f.now().Add(-f.window)
	if account.LastSyncAt.Valid && account.LastSyncAt.Time.After(floor) {
		floor = account.LastSyncAt.Time
	}

	cursor := ""
	if account.LastSyncCursor.Valid {
		cursor = account.LastSyncCursor.String
	}
	// A cursor older than the floor would page straight into backlog the
	// floor excludes anyway; restart from the feed head instead.
	if ts, ok := cursorTimestamp(cursor); ok && ts.Before(floor) {
		slog.Info("discarding stale feed cursor", "cursor", cursor)
		cursor = ""
	}

	actor := account.BlueskyDID
	if actor == "" {
		actor = account.BlueskyHandle
	}

	var posts []bluesky.Post
	nextCursor := cursor

	for len(posts) < limit {
		resp, err := client.FetchAuthorFeed(ctx, actor, f.pageSize, cursor)
		if err != nil {
			return nil, nextCursor, fmt.Errorf("fetch author feed: %w", err)
		}
		if len(resp.Feed) == 0 {
			break
		}

		pastWindow := false
		for _, item := range resp.Feed {
			// Reason marks reposts by the account; those are someone
			// else's content and never cross-posted.
			if item.Reason != nil {
				continue
			}
			created, err := postTimestamp(&item.Post)
			if err == nil && created.Before(floor) {
				pastWindow = true
				break
			}
			posts = append(posts, item.Post)
			if len(posts) >= limit {
				break
			}
		}

		if pastWindow || len(posts) >= limit {
			// The page was not fully consumed; keep the previous cursor.
			break
		}

		nextCursor = resp.Cursor
		if resp.Cursor == "" || len(resp.Feed) < f.pageSize {
			break
		}
		cursor = resp.Cursor
	}

	return posts, nextCursor, nil
}

func postTimestamp(post *bluesky.Post) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, post.Record.CreatedAt); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, post.IndexedAt)
}

// cursorTimestamp extracts the timestamp a feed cursor encodes, when it
// encodes one. AppView author-feed cursors are either "<rfc3339>::<cid>"
// or a bare unix-milliseconds value; anything else is opaque.
func cursorTimestamp(cursor string) (time.Time, bool) {
	if cursor == "" {
		return time.Time{}, false
	}

	head := cursor
	if idx := strings.Index(cursor, "::"); idx >= 0 {
		head = cursor[:idx]
	}

	if t, err := time.Parse(time.RFC3339, head); err == nil {
		return t, true
	}
	if ms, err := strconv.ParseInt(head, 10, 64); err == nil && ms > 1e12 {
		return time.UnixMilli(ms), true
	}

	return time.Time{}, false
}
