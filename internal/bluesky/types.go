package bluesky

import "encoding/json"

// Facet feature and embed $type values from the app.bsky lexicons.
const (
	FeatureMention = "app.bsky.richtext.facet#mention"
	FeatureLink    = "app.bsky.richtext.facet#link"
	FeatureTag     = "app.bsky.richtext.facet#tag"

	EmbedImages          = "app.bsky.embed.images"
	EmbedVideo           = "app.bsky.embed.video"
	EmbedExternal        = "app.bsky.embed.external"
	EmbedRecord          = "app.bsky.embed.record"
	EmbedRecordWithMedia = "app.bsky.embed.recordWithMedia"
)

// FeedResponse is the payload of app.bsky.feed.getAuthorFeed.
type FeedResponse struct {
	Feed   []FeedItem `json:"feed"`
	Cursor string     `json:"cursor,omitempty"`
}

// FeedItem wraps a post in the author feed. Reason is present when the item
// is a repost by the account rather than an original post.
type FeedItem struct {
	Post   Post            `json:"post"`
	Reason json.RawMessage `json:"reason,omitempty"`
}

// Post is a hydrated feed post as returned by the AppView.
type Post struct {
	URI       string `json:"uri"`
	CID       string `json:"cid"`
	Author    Author `json:"author"`
	Record    Record `json:"record"`
	IndexedAt string `json:"indexedAt"`
}

type Author struct {
	DID         string `json:"did"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName,omitempty"`
}

// Record is the app.bsky.feed.post record body.
type Record struct {
	Text      string    `json:"text"`
	CreatedAt string    `json:"createdAt"`
	Facets    []Facet   `json:"facets,omitempty"`
	Embed     *Embed    `json:"embed,omitempty"`
	Reply     *ReplyRef `json:"reply,omitempty"`
	Langs     []string  `json:"langs,omitempty"`
}

type ReplyRef struct {
	Root   StrongRef `json:"root"`
	Parent StrongRef `json:"parent"`
}

type StrongRef struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

// Facet annotates a byte range of the post text with one or more features.
// Index offsets are byte offsets into the UTF-8 encoding of the text, not
// rune offsets.
type Facet struct {
	Index    ByteSlice `json:"index"`
	Features []Feature `json:"features"`
}

type ByteSlice struct {
	ByteStart int `json:"byteStart"`
	ByteEnd   int `json:"byteEnd"`
}

// Feature is one entry of a facet's feature union. Exactly one of DID, URI
// or Tag is meaningful depending on Type.
type Feature struct {
	Type string `json:"$type"`
	DID  string `json:"did,omitempty"` // mention
	URI  string `json:"uri,omitempty"` // link
	Tag  string `json:"tag,omitempty"` // hashtag
}

// Embed is the post embed union, discriminated by Type. Record and Media
// are kept raw: quote embeds are filtered out before transformation and
// never need to be decoded here.
type Embed struct {
	Type     string          `json:"$type"`
	Images   []EmbeddedImage `json:"images,omitempty"`
	Video    *BlobRef        `json:"video,omitempty"`
	External *External       `json:"external,omitempty"`
	Record   json.RawMessage `json:"record,omitempty"`
	Media    json.RawMessage `json:"media,omitempty"`
}

type EmbeddedImage struct {
	Alt   string   `json:"alt"`
	Image *BlobRef `json:"image"`
}

type External struct {
	URI         string `json:"uri"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// BlobRef is an AT Protocol blob reference.
type BlobRef struct {
	Type string `json:"$type"`
	Ref  struct {
		Link string `json:"$link"`
	} `json:"ref"`
	MimeType string `json:"mimeType"`
	Size     int    `json:"size"`
}

// CID returns the content identifier of the referenced blob.
func (b *BlobRef) CID() string {
	if b == nil {
		return ""
	}
	return b.Ref.Link
}
