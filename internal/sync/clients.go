package sync

import (
	"context"

	"github.com/fedibridge/skybridge/internal/bluesky"
	"github.com/fedibridge/skybridge/internal/mastodon"
	"github.com/fedibridge/skybridge/internal/models"
)

// SourceClient is the feed side of the bridge. Cursor pagination is part of
// the contract; there is deliberately no capability probing at runtime.
type SourceClient interface {
	FetchAuthorFeed(ctx context.Context, actor string, limit int, cursor string) (*bluesky.FeedResponse, error)
	ResolveBlobURL(did, cid string) (string, error)
	GetBlob(ctx context.Context, did, cid string) ([]byte, string, error)
}

// DestinationClient is the publish side of the bridge.
type DestinationClient interface {
	UploadMedia(ctx context.Context, data []byte, mimeType, description string) (*mastodon.Attachment, error)
	CreatePost(ctx context.Context, status string, mediaIDs []string, visibility string) (*mastodon.Status, error)
}

// ClientFactory builds authenticated clients from the stored account. The
// orchestrator calls it once per run so sessions are scoped to the run.
type ClientFactory interface {
	SourceClient(ctx context.Context, account *models.Account) (SourceClient, error)
	DestinationClient(ctx context.Context, account *models.Account) (DestinationClient, error)
}
