package sync

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedibridge/skybridge/internal/bluesky"
	"github.com/fedibridge/skybridge/internal/models"
)

func testFetcher(pageSize int, now time.Time) *Fetcher {
	return &Fetcher{
		pageSize: pageSize,
		window:   defaultFetchWindow,
		now:      func() time.Time { return now },
	}
}

func postAt(id, text string, created time.Time) bluesky.Post {
	post := plainPost(id, text)
	post.Record.CreatedAt = created.UTC().Format(time.RFC3339)
	post.IndexedAt = post.Record.CreatedAt
	return post
}

func feedPage(cursor string, posts ...bluesky.Post) *bluesky.FeedResponse {
	resp := &bluesky.FeedResponse{Cursor: cursor}
	for _, p := range posts {
		resp.Feed = append(resp.Feed, bluesky.FeedItem{Post: p})
	}
	return resp
}

func TestFetchPostsPaginatesAndPersistsCursor(t *testing.T) {
	now := time.Now()
	src := &fakeSourceClient{
		pages: []*bluesky.FeedResponse{
			feedPage("c1", postAt("3ka", "first", now.Add(-time.Minute)), postAt("3kb", "second", now.Add(-2*time.Minute))),
			feedPage("c2", postAt("3kc", "third", now.Add(-3*time.Minute))),
		},
	}
	account := &models.Account{BlueskyDID: "did:plc:alice"}

	f := testFetcher(2, now)
	posts, cursor, err := f.FetchPosts(context.Background(), src, account, 10)

	require.NoError(t, err)
	assert.Len(t, posts, 3)
	assert.Equal(t, "c2", cursor)
	assert.Equal(t, []string{"", "c1"}, src.requestedCursors)
}

func TestFetchPostsStopsAtLimitAndKeepsPreviousCursor(t *testing.T) {
	now := time.Now()
	src := &fakeSourceClient{
		pages: []*bluesky.FeedResponse{
			feedPage("c1", postAt("3ka", "first", now.Add(-time.Minute)), postAt("3kb", "second", now.Add(-2*time.Minute))),
		},
	}
	account := &models.Account{BlueskyDID: "did:plc:alice"}

	f := testFetcher(2, now)
	posts, cursor, err := f.FetchPosts(context.Background(), src, account, 1)

	require.NoError(t, err)
	assert.Len(t, posts, 1)
	// The page was cut short, so its cursor must not be persisted.
	assert.Equal(t, "", cursor)
}

func TestFetchPostsStopsAtTimeFloor(t *testing.T) {
	now := time.Now()
	src := &fakeSourceClient{
		pages: []*bluesky.FeedResponse{
			feedPage("c1",
				postAt("3ka", "recent", now.Add(-30*time.Minute)),
				postAt("3kb", "already seen", now.Add(-2*time.Hour)),
			),
		},
	}
	account := &models.Account{
		BlueskyDID: "did:plc:alice",
		LastSyncAt: sql.NullTime{Time: now.Add(-time.Hour), Valid: true},
	}

	f := testFetcher(2, now)
	posts, cursor, err := f.FetchPosts(context.Background(), src, account, 10)

	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "recent", posts[0].Record.Text)
	assert.Equal(t, "", cursor)
	assert.Len(t, src.requestedCursors, 1)
}

func TestFetchPostsNeverReachesPastTheWindow(t *testing.T) {
	now := time.Now()
	src := &fakeSourceClient{
		pages: []*bluesky.FeedResponse{
			feedPage("c1", postAt("3kold", "from last week", now.Add(-7*24*time.Hour))),
		},
	}
	// Stale sync state: last run far beyond the 24h window.
	account := &models.Account{
		BlueskyDID: "did:plc:alice",
		LastSyncAt: sql.NullTime{Time: now.Add(-10 * 24 * time.Hour), Valid: true},
	}

	f := testFetcher(2, now)
	posts, _, err := f.FetchPosts(context.Background(), src, account, 10)

	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestFetchPostsDiscardsStaleCursor(t *testing.T) {
	now := time.Now()
	src := &fakeSourceClient{}
	account := &models.Account{
		BlueskyDID:     "did:plc:alice",
		LastSyncCursor: sql.NullString{String: "2020-01-01T00:00:00Z::bafyold", Valid: true},
	}

	f := testFetcher(2, now)
	_, cursor, err := f.FetchPosts(context.Background(), src, account, 10)

	require.NoError(t, err)
	assert.Equal(t, []string{""}, src.requestedCursors)
	assert.Equal(t, "", cursor)
}

func TestFetchPostsKeepsFreshCursor(t *testing.T) {
	now := time.Now()
	fresh := now.Add(-time.Hour).UTC().Format(time.RFC3339) + "::bafyrecent"
	src := &fakeSourceClient{}
	account := &models.Account{
		BlueskyDID:     "did:plc:alice",
		LastSyncCursor: sql.NullString{String: fresh, Valid: true},
	}

	f := testFetcher(2, now)
	_, cursor, err := f.FetchPosts(context.Background(), src, account, 10)

	require.NoError(t, err)
	assert.Equal(t, []string{fresh}, src.requestedCursors)
	assert.Equal(t, fresh, cursor)
}

func TestFetchPostsSkipsReposts(t *testing.T) {
	now := time.Now()
	page := feedPage("", postAt("3kmine", "my own post", now.Add(-time.Minute)))
	page.Feed = append([]bluesky.FeedItem{{
		Post:   postAt("3ktheirs", "someone else's post", now.Add(-time.Minute)),
		Reason: json.RawMessage(`{"$type":"app.bsky.feed.defs#reasonRepost"}`),
	}}, page.Feed...)

	src := &fakeSourceClient{pages: []*bluesky.FeedResponse{page}}
	account := &models.Account{BlueskyDID: "did:plc:alice"}

	f := testFetcher(2, now)
	posts, _, err := f.FetchPosts(context.Background(), src, account, 10)

	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "my own post", posts[0].Record.Text)
}

func TestFetchPostsFallsBackToHandle(t *testing.T) {
	now := time.Now()
	src := &fakeSourceClient{}
	account := &models.Account{BlueskyHandle: "alice.example"}

	f := testFetcher(2, now)
	_, _, err := f.FetchPosts(context.Background(), src, account, 10)

	require.NoError(t, err)
}

func TestCursorTimestamp(t *testing.T) {
	tests := []struct {
		name     string
		cursor   string
		wantOK   bool
		wantTime time.Time
	}{
		{
			name:     "rfc3339 with cid suffix",
			cursor:   "2026-08-01T12:00:00Z::bafyabc",
			wantOK:   true,
			wantTime: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			name:     "bare rfc3339",
			cursor:   "2026-08-01T12:00:00Z",
			wantOK:   true,
			wantTime: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			name:     "unix milliseconds",
			cursor:   "1754049600000",
			wantOK:   true,
			wantTime: time.UnixMilli(1754049600000),
		},
		{
			name:   "opaque cursor",
			cursor: "abc123",
			wantOK: false,
		},
		{
			name:   "small integer is not a timestamp",
			cursor: "42",
			wantOK: false,
		},
		{
			name:   "empty",
			cursor: "",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, ok := cursorTimestamp(tt.cursor)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.True(t, ts.Equal(tt.wantTime))
			}
		})
	}
}
