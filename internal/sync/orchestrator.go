package sync

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/fedibridge/skybridge/internal/bluesky"
	"github.com/fedibridge/skybridge/internal/models"
	"github.com/fedibridge/skybridge/internal/repository"
)

// Result is the user-visible outcome of one sync run. Skipped posts are
// computed, not stored: processed = successful + failed + skipped.
type Result struct {
	Success         bool        `json:"success"`
	PostsProcessed  int         `json:"posts_processed"`
	PostsSuccessful int         `json:"posts_successful"`
	PostsFailed     int         `json:"posts_failed"`
	Errors          []SyncError `json:"errors,omitempty"`
}

// Orchestrator sequences a sync run: setup gate, client construction,
// fetch, filter, publish, cursor advance, run log. Runs are strictly
// sequential; there is no intra-run concurrency.
type Orchestrator struct {
	accounts  repository.AccountRepository
	settings  repository.SettingsRepository
	tracking  repository.SyncedPostRepository
	logs      repository.SyncLogRepository
	clients   ClientFactory
	publisher *Publisher

	filters    *Chain
	fetcher    *Fetcher
	fetchLimit int
	now        func() time.Time
}

func NewOrchestrator(
	accounts repository.AccountRepository,
	settings repository.SettingsRepository,
	tracking repository.SyncedPostRepository,
	logs repository.SyncLogRepository,
	clients ClientFactory,
	publisher *Publisher) *Orchestrator {
	return &Orchestrator{
		accounts:   accounts,
		settings:   settings,
		tracking:   tracking,
		logs:       logs,
		clients:    clients,
		publisher:  publisher,
		filters:    NewChain(),
		fetcher:    NewFetcher(),
		fetchLimit: 50,
		now:        time.Now,
	}
}

// Filters exposes the chain for runtime replacement.
func (o *Orchestrator) Filters() *Chain {
	return o.filters
}

// SyncUser runs one sync pass. An unconfigured or disabled deployment is a
// successful no-op, not an error. Run-level failures are recorded under the
// "general" URI, and a run that gets past the setup gate always appends
// exactly one sync log row.
func (o *Orchestrator) SyncUser(ctx context.Context, syncType string) *Result {
	start := o.now()
	result := &Result{Success: true}

	account, err := o.accounts.Get(ctx)
	if err != nil {
		return o.generalFailure(ctx, syncType, start, result, fmt.Errorf("load account: %w", err))
	}
	if account == nil {
		return o.generalFailure(ctx, syncType, start, result, fmt.Errorf("no account configured"))
	}
	if !accountReady(account) {
		slog.Info("skipping sync, setup is not complete")
		return result
	}

	settings, found, err := o.settings.Get(ctx)
	if err != nil {
		return o.generalFailure(ctx, syncType, start, result, fmt.Errorf("load settings: %w", err))
	}
	if !found {
		settings = &models.Settings{SyncEnabled: true, PostVisibility: "public"}
	}
	if !settings.SyncEnabled {
		slog.Info("skipping sync, sync is disabled")
		return result
	}

	cursorStart := account.LastSyncCursor.String

	src, err := o.clients.SourceClient(ctx, account)
	if err != nil {
		return o.generalFailure(ctx, syncType, start, result, fmt.Errorf("build source client: %w", err))
	}
	dst, err := o.clients.DestinationClient(ctx, account)
	if err != nil {
		return o.generalFailure(ctx, syncType, start, result, fmt.Errorf("build destination client: %w", err))
	}

	posts, cursorEnd, err := o.fetcher.FetchPosts(ctx, src, account, o.fetchLimit)
	if err != nil {
		return o.generalFailure(ctx, syncType, start, result, err)
	}

	survivors := make([]bluesky.Post, 0, len(posts))
	for i := range posts {
		post := &posts[i]
		if !o.filters.ShouldSync(post, settings) {
			continue
		}
		// Existence, not status, is the idempotency boundary: a pending
		// row from a crashed run still blocks a second publish.
		existing, err := o.tracking.GetByURI(ctx, post.URI)
		if err != nil {
			slog.Error("tracking lookup failed, skipping post", "uri", post.URI, "error", err.Error())
			continue
		}
		if existing != nil {
			continue
		}
		survivors = append(survivors, *post)
	}

	batch := o.publisher.SyncPosts(ctx, survivors, src, dst, settings)
	result.PostsProcessed = len(posts)
	result.PostsSuccessful = batch.Successful
	result.PostsFailed = batch.Failed
	result.Errors = append(result.Errors, batch.Errors...)

	// Advance unconditionally so a page is never refetched just because
	// some posts in it failed.
	if err := o.accounts.UpdateSyncState(ctx, o.now(), cursorEnd); err != nil {
		slog.Error("failed to persist sync state", "error", err.Error())
		result.Errors = append(result.Errors, SyncError{PostURI: "general", Message: err.Error()})
	}

	o.appendLog(ctx, syncType, start, result, len(posts), cursorStart, cursorEnd, "")
	return result
}

func (o *Orchestrator) generalFailure(ctx context.Context, syncType string, start time.Time, result *Result, err error) *Result {
	slog.Error("sync run failed", "error", err.Error())
	result.Success = false
	result.Errors = append(result.Errors, SyncError{PostURI: "general", Message: err.Error()})
	o.appendLog(ctx, syncType, start, result, result.PostsProcessed, "", "", err.Error())
	return result
}

func (o *Orchestrator) appendLog(ctx context.Context, syncType string, start time.Time, result *Result, fetched int, cursorStart, cursorEnd, errorMessage string) {
	skipped := fetched - result.PostsSuccessful - result.PostsFailed
	if skipped < 0 {
		skipped = 0
	}

	entry := &models.SyncLog{
		SyncType:     syncType,
		PostsFetched: fetched,
		PostsSynced:  result.PostsSuccessful,
		PostsFailed:  result.PostsFailed,
		PostsSkipped: skipped,
		ErrorMessage: sql.NullString{String: errorMessage, Valid: errorMessage != ""},
		DurationMs:   o.now().Sub(start).Milliseconds(),
		CursorStart:  sql.NullString{String: cursorStart, Valid: cursorStart != ""},
		CursorEnd:    sql.NullString{String: cursorEnd, Valid: cursorEnd != ""},
	}
	if _, err := o.logs.Create(ctx, entry); err != nil {
		slog.Error("failed to append sync log", "error", err.Error())
	}
}

func accountReady(account *models.Account) bool {
	return account.SetupCompleted &&
		(account.BlueskyDID != "" || account.BlueskyHandle != "") &&
		account.BlueskyAppPassword != "" &&
		account.MastodonServer != "" &&
		account.MastodonAccessToken != ""
}
