package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/fedibridge/skybridge/internal/bluesky"
	"github.com/fedibridge/skybridge/internal/mastodon"
	"github.com/fedibridge/skybridge/internal/models"
)

// fakeSourceClient serves canned feed pages. With static set, every request
// returns the same page; otherwise pages are served in order and exhausted.
type fakeSourceClient struct {
	pages  []*bluesky.FeedResponse
	static *bluesky.FeedResponse

	calls            int
	requestedCursors []string

	blobData   []byte
	blobMime   string
	blobErr    error
	resolveErr error
}

func (c *fakeSourceClient) FetchAuthorFeed(_ context.Context, _ string, _ int, cursor string) (*bluesky.FeedResponse, error) {
	c.requestedCursors = append(c.requestedCursors, cursor)
	if c.static != nil {
		return c.static, nil
	}
	if c.calls >= len(c.pages) {
		return &bluesky.FeedResponse{}, nil
	}
	page := c.pages[c.calls]
	c.calls++
	return page, nil
}

func (c *fakeSourceClient) ResolveBlobURL(did, cid string) (string, error) {
	if c.resolveErr != nil {
		return "", c.resolveErr
	}
	return fmt.Sprintf("https://pds.example/blob/%s/%s", did, cid), nil
}

func (c *fakeSourceClient) GetBlob(_ context.Context, _, _ string) ([]byte, string, error) {
	if c.blobErr != nil {
		return nil, "", c.blobErr
	}
	data := c.blobData
	if data == nil {
		data = []byte("fake-image-bytes")
	}
	mime := c.blobMime
	if mime == "" {
		mime = "image/png"
	}
	return data, mime, nil
}

type createdPost struct {
	status     string
	mediaIDs   []string
	visibility string
}

type fakeDestClient struct {
	uploadErr     error
	createErr     error
	createErrOnce bool

	uploadCalls int
	createCalls int
	created     []createdPost
}

func (c *fakeDestClient) UploadMedia(_ context.Context, _ []byte, _, description string) (*mastodon.Attachment, error) {
	c.uploadCalls++
	if c.uploadErr != nil {
		return nil, c.uploadErr
	}
	return &mastodon.Attachment{ID: fmt.Sprintf("media-%d", c.uploadCalls), Description: description}, nil
}

func (c *fakeDestClient) CreatePost(_ context.Context, status string, mediaIDs []string, visibility string) (*mastodon.Status, error) {
	c.createCalls++
	if c.createErr != nil {
		err := c.createErr
		if c.createErrOnce {
			c.createErr = nil
		}
		return nil, err
	}
	c.created = append(c.created, createdPost{status: status, mediaIDs: mediaIDs, visibility: visibility})
	return &mastodon.Status{
		ID:  fmt.Sprintf("%d", 100+c.createCalls),
		URL: fmt.Sprintf("https://mastodon.example/@bridge/%d", 100+c.createCalls),
	}, nil
}

type fakeClientFactory struct {
	src SourceClient
	dst DestinationClient
}

func (f *fakeClientFactory) SourceClient(_ context.Context, _ *models.Account) (SourceClient, error) {
	return f.src, nil
}

func (f *fakeClientFactory) DestinationClient(_ context.Context, _ *models.Account) (DestinationClient, error) {
	return f.dst, nil
}

// In-memory repositories.

type memAccountRepo struct {
	account *models.Account
}

func (r *memAccountRepo) Get(_ context.Context) (*models.Account, error) {
	return r.account, nil
}

func (r *memAccountRepo) Create(_ context.Context, a *models.Account) (int64, error) {
	r.account = a
	return 1, nil
}

func (r *memAccountRepo) UpdateSyncState(_ context.Context, lastSyncAt time.Time, cursor string) error {
	r.account.LastSyncAt.Time = lastSyncAt
	r.account.LastSyncAt.Valid = true
	r.account.LastSyncCursor.String = cursor
	r.account.LastSyncCursor.Valid = cursor != ""
	return nil
}

func (r *memAccountRepo) SetSetupCompleted(_ context.Context, completed bool) error {
	r.account.SetupCompleted = completed
	return nil
}

type memSettingsRepo struct {
	settings *models.Settings
}

func (r *memSettingsRepo) Get(_ context.Context) (*models.Settings, bool, error) {
	if r.settings == nil {
		return nil, false, nil
	}
	return r.settings, true, nil
}

func (r *memSettingsRepo) Create(_ context.Context, s *models.Settings) (int64, error) {
	r.settings = s
	return 1, nil
}

func (r *memSettingsRepo) Update(_ context.Context, s *models.Settings) error {
	r.settings = s
	return nil
}

type memTrackingRepo struct {
	rows  map[string]*models.SyncedPost
	order []string
}

func newMemTrackingRepo() *memTrackingRepo {
	return &memTrackingRepo{rows: make(map[string]*models.SyncedPost)}
}

func (r *memTrackingRepo) Create(_ context.Context, sp *models.SyncedPost) (int64, error) {
	if _, exists := r.rows[sp.AtprotoURI]; exists {
		return 0, fmt.Errorf("duplicate key value violates unique constraint: %s", sp.AtprotoURI)
	}
	stored := *sp
	stored.ID = int64(len(r.order) + 1)
	stored.CreatedAt = time.Now()
	r.rows[sp.AtprotoURI] = &stored
	r.order = append(r.order, sp.AtprotoURI)
	return stored.ID, nil
}

func (r *memTrackingRepo) GetByURI(_ context.Context, uri string) (*models.SyncedPost, error) {
	sp, ok := r.rows[uri]
	if !ok {
		return nil, nil
	}
	return sp, nil
}

func (r *memTrackingRepo) MarkSuccess(_ context.Context, uri, mastodonID, mastodonURL string) error {
	sp, ok := r.rows[uri]
	if !ok {
		return fmt.Errorf("no tracking row for %s", uri)
	}
	sp.SyncStatus = models.SyncStatusSuccess
	sp.MastodonID.String = mastodonID
	sp.MastodonID.Valid = true
	sp.MastodonURL.String = mastodonURL
	sp.MastodonURL.Valid = true
	sp.SyncedAt.Int64 = time.Now().Unix()
	sp.SyncedAt.Valid = true
	return nil
}

func (r *memTrackingRepo) MarkFailed(_ context.Context, uri, errorMessage string) error {
	sp, ok := r.rows[uri]
	if !ok {
		return fmt.Errorf("no tracking row for %s", uri)
	}
	sp.SyncStatus = models.SyncStatusFailed
	sp.ErrorMessage.String = errorMessage
	sp.ErrorMessage.Valid = true
	sp.RetryCount = 0
	return nil
}

func (r *memTrackingRepo) GetRecent(_ context.Context, limit int) ([]*models.SyncedPost, error) {
	var out []*models.SyncedPost
	for i := len(r.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.rows[r.order[i]])
	}
	return out, nil
}

func (r *memTrackingRepo) GetFailed(_ context.Context) ([]*models.SyncedPost, error) {
	var out []*models.SyncedPost
	for _, uri := range r.order {
		sp := r.rows[uri]
		if sp.SyncStatus == models.SyncStatusFailed && sp.RetryCount < sp.MaxRetries {
			out = append(out, sp)
		}
	}
	return out, nil
}

func (r *memTrackingRepo) GetStats(_ context.Context) (*models.SyncStats, error) {
	stats := &models.SyncStats{}
	for _, sp := range r.rows {
		stats.Total++
		switch sp.SyncStatus {
		case models.SyncStatusSuccess:
			stats.Success++
		case models.SyncStatusFailed:
			stats.Failed++
		case models.SyncStatusPending:
			stats.Pending++
		}
	}
	return stats, nil
}

type memLogRepo struct {
	logs []*models.SyncLog
}

func (r *memLogRepo) Create(_ context.Context, l *models.SyncLog) (int64, error) {
	stored := *l
	stored.ID = int64(len(r.logs) + 1)
	stored.CreatedAt = time.Now()
	r.logs = append(r.logs, &stored)
	return stored.ID, nil
}

func (r *memLogRepo) GetRecent(_ context.Context, limit int) ([]*models.SyncLog, error) {
	var out []*models.SyncLog
	for i := len(r.logs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.logs[i])
	}
	return out, nil
}

// Post builders.

func plainPost(id, text string) bluesky.Post {
	return bluesky.Post{
		URI:    "at://did:plc:alice/app.bsky.feed.post/" + id,
		CID:    "bafy" + id,
		Author: bluesky.Author{DID: "did:plc:alice", Handle: "alice.example"},
		Record: bluesky.Record{
			Text:      text,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		},
		IndexedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

func imagePost(id, text string, altTexts ...string) bluesky.Post {
	post := plainPost(id, text)
	embed := &bluesky.Embed{Type: bluesky.EmbedImages}
	for i, alt := range altTexts {
		img := bluesky.EmbeddedImage{Alt: alt, Image: &bluesky.BlobRef{}}
		img.Image.Ref.Link = fmt.Sprintf("bafyblob%s%d", id, i)
		embed.Images = append(embed.Images, img)
	}
	post.Record.Embed = embed
	return post
}

func mentionFacet(byteStart, byteEnd int, did string) bluesky.Facet {
	return bluesky.Facet{
		Index:    bluesky.ByteSlice{ByteStart: byteStart, ByteEnd: byteEnd},
		Features: []bluesky.Feature{{Type: bluesky.FeatureMention, DID: did}},
	}
}

func linkFacet(byteStart, byteEnd int, uri string) bluesky.Facet {
	return bluesky.Facet{
		Index:    bluesky.ByteSlice{ByteStart: byteStart, ByteEnd: byteEnd},
		Features: []bluesky.Feature{{Type: bluesky.FeatureLink, URI: uri}},
	}
}

func tagFacet(byteStart, byteEnd int, tag string) bluesky.Facet {
	return bluesky.Facet{
		Index:    bluesky.ByteSlice{ByteStart: byteStart, ByteEnd: byteEnd},
		Features: []bluesky.Feature{{Type: bluesky.FeatureTag, Tag: tag}},
	}
}
