package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fedibridge/skybridge/internal/bluesky"
	"github.com/fedibridge/skybridge/internal/mastodon"
	"github.com/fedibridge/skybridge/internal/models"
	"github.com/fedibridge/skybridge/internal/repository"
)

// RetryConfig bounds the publish retry loop: attempts run 0..MaxRetries
// inclusive with delay min(BaseDelay*BackoffFactor^attempt, MaxDelay).
type RetryConfig struct {
	MaxRetries    int
	BaseDelay     time.Duration
	BackoffFactor float64
	MaxDelay      time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		BaseDelay:     time.Second,
		BackoffFactor: 2,
		MaxDelay:      30 * time.Second,
	}
}

// Archiver mirrors cross-posted blobs to long-term storage. Optional and
// best-effort.
type Archiver interface {
	Store(ctx context.Context, key string, data []byte, contentType string) error
}

// SyncError ties a failure to the post it belongs to. PostURI is "general"
// for run-level failures.
type SyncError struct {
	PostURI string `json:"post_uri"`
	Message string `json:"message"`
}

// BatchResult summarizes one publisher batch.
type BatchResult struct {
	Successful int
	Failed     int
	Errors     []SyncError
}

// Publisher cross-posts qualified posts one at a time. Each post's outcome
// is tracked individually; one failure never aborts the batch.
type Publisher struct {
	tracking    repository.SyncedPostRepository
	transformer *Transformer
	retry       RetryConfig
	archiver    Archiver

	// sleep is replaced in tests so backoff delays do not slow the suite.
	sleep func(time.Duration)
}

func NewPublisher(tracking repository.SyncedPostRepository, transformer *Transformer, retry RetryConfig, archiver Archiver) *Publisher {
	return &Publisher{
		tracking:    tracking,
		transformer: transformer,
		retry:       retry,
		archiver:    archiver,
		sleep:       time.Sleep,
	}
}

// SyncPosts publishes each post independently and accumulates the outcome.
func (p *Publisher) SyncPosts(ctx context.Context, posts []bluesky.Post, src SourceClient, dst DestinationClient, settings *models.Settings) *BatchResult {
	result := &BatchResult{}

	visibility := "public"
	if settings != nil && settings.PostVisibility != "" {
		visibility = settings.PostVisibility
	}

	for i := range posts {
		post := &posts[i]
		if err := p.syncPostToDestination(ctx, post, src, dst, visibility); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, SyncError{PostURI: post.URI, Message: err.Error()})
			slog.Error("failed to cross-post", "uri", post.URI, "error", err.Error())
			continue
		}
		result.Successful++
	}

	return result
}

// syncPostToDestination creates the pending tracking row before any network
// call: a crash mid-publish leaves a pending row, and the next run skips the
// URI via the existence check. At-least-once, reconciled by existence.
func (p *Publisher) syncPostToDestination(ctx context.Context, post *bluesky.Post, src SourceClient, dst DestinationClient, visibility string) error {
	record := &models.SyncedPost{
		AtprotoURI:       post.URI,
		AtprotoCID:       post.CID,
		AtprotoRkey:      rkeyFromURI(post.URI),
		ContentHash:      ContentHash(post),
		SyncStatus:       models.SyncStatusPending,
		MaxRetries:       p.retry.MaxRetries,
		AtprotoCreatedAt: createdAtEpoch(post),
	}
	if _, err := p.tracking.Create(ctx, record); err != nil {
		return fmt.Errorf("create tracking record: %w", err)
	}

	transformation := p.transformer.Transform(post)
	p.transformer.ResolveBlobURLs(ctx, transformation, src)

	status, err := p.crossPostWithRetry(ctx, dst, src, transformation, visibility)
	if err != nil {
		if trackErr := p.tracking.MarkFailed(ctx, post.URI, err.Error()); trackErr != nil {
			slog.Error("failed to record publish failure", "uri", post.URI, "error", trackErr.Error())
		}
		return err
	}

	if err := p.tracking.MarkSuccess(ctx, post.URI, status.ID, status.URL); err != nil {
		slog.Error("failed to record publish success", "uri", post.URI, "error", err.Error())
	}

	return nil
}

// crossPostWithRetry uploads media and creates the destination post, with
// bounded exponential backoff. Media uploads are best-effort per item: a
// failed item is omitted and the text-only post still proceeds. The last
// error thrown is always the one surfaced.
func (p *Publisher) crossPostWithRetry(ctx context.Context, dst DestinationClient, src SourceClient, tr *Transformation, visibility string) (*mastodon.Status, error) {
	for attempt := 0; ; attempt++ {
		status, err := p.crossPost(ctx, dst, src, tr, visibility)
		if err == nil {
			return status, nil
		}

		if attempt >= p.retry.MaxRetries {
			return nil, err
		}
		if !isRetryableError(err) {
			return nil, err
		}

		delay := backoffDelay(p.retry, attempt)
		slog.Info("retrying cross-post", "attempt", attempt+1, "delay", delay.String(), "error", err.Error())
		p.sleep(delay)
	}
}

func (p *Publisher) crossPost(ctx context.Context, dst DestinationClient, src SourceClient, tr *Transformation, visibility string) (*mastodon.Status, error) {
	var mediaIDs []string
	for i := range tr.Media {
		item := &tr.Media[i]

		data, mimeType, err := src.GetBlob(ctx, item.AuthorDID(), item.BlobCID())
		if err != nil {
			slog.Info("skipping media item, blob fetch failed", "cid", item.BlobCID(), "error", err.Error())
			continue
		}

		if p.archiver != nil {
			// Keyed by CID so retries overwrite rather than duplicate.
			if err := p.archiver.Store(ctx, item.BlobCID(), data, mimeType); err != nil {
				slog.Info("media archive failed", "cid", item.BlobCID(), "error", err.Error())
			}
		}

		attachment, err := dst.UploadMedia(ctx, data, mimeType, item.Description)
		if err != nil {
			slog.Info("skipping media item, upload failed", "cid", item.BlobCID(), "error", err.Error())
			continue
		}
		mediaIDs = append(mediaIDs, attachment.ID)
	}

	formatted := p.transformer.FormatForMastodon(tr)
	return dst.CreatePost(ctx, formatted.Status, mediaIDs, visibility)
}

func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	delay := cfg.BaseDelay
	for i := 0; i < attempt; i++ {
		delay = time.Duration(float64(delay) * cfg.BackoffFactor)
		if delay >= cfg.MaxDelay {
			return cfg.MaxDelay
		}
	}
	if delay > cfg.MaxDelay {
		return cfg.MaxDelay
	}
	return delay
}

// isRetryableError classifies publish failures. Rate limits, server errors
// and transient network conditions are worth retrying; everything else
// (validation, auth) fails fast.
func isRetryableError(err error) bool {
	var apiErr *mastodon.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500 || apiErr.StatusCode == 202
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"timeout", "timed out", "connection refused", "connection reset",
		"network", "fetch failed", "rate limit", "media processing",
		"temporarily unavailable",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func rkeyFromURI(uri string) string {
	if idx := strings.LastIndex(uri, "/"); idx >= 0 {
		return uri[idx+1:]
	}
	return uri
}

func createdAtEpoch(post *bluesky.Post) int64 {
	if t, err := time.Parse(time.RFC3339, post.Record.CreatedAt); err == nil {
		return t.Unix()
	}
	return time.Now().Unix()
}
