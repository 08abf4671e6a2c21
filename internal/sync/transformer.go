package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/fedibridge/skybridge/internal/bluesky"
)

// statusBudget is the Mastodon status ceiling in UTF-16 code units.
const statusBudget = 500

const defaultProfileBase = "https://bsky.app/profile/"

// Transformation is the platform-neutral rewrite of a source post. It is
// ephemeral: built per post, formatted, and discarded.
type Transformation struct {
	Text     string
	Media    []MediaItem
	Mentions []Mention
	Links    []Link
	Hashtags []string
}

// MediaItem starts life with a placeholder URL (blob://did/cid) and is
// rewritten by ResolveBlobURLs once a fetchable URL is known.
type MediaItem struct {
	URL         string
	Type        string // image or video
	Description string

	authorDID string
	blobCID   string
}

// BlobCID returns the content identifier of the underlying blob.
func (m *MediaItem) BlobCID() string { return m.blobCID }

// AuthorDID returns the DID that owns the underlying blob.
func (m *MediaItem) AuthorDID() string { return m.authorDID }

type Mention struct {
	Handle     string
	ProfileURL string
}

type Link struct {
	URL         string
	DisplayText string
}

// FormattedPost is a Transformation rendered for the destination platform.
type FormattedPost struct {
	Status string
	Media  []MediaItem
}

// BlobURLResolver resolves a blob reference to a fetchable URL.
type BlobURLResolver interface {
	ResolveBlobURL(did, cid string) (string, error)
}

// Transformer rewrites Bluesky rich text for Mastodon.
type Transformer struct {
	profileBase string
}

// NewTransformer builds a transformer that renders mention footnotes
// against the given profile base URL. An empty base falls back to the
// public Bluesky AppView.
func NewTransformer(profileBase string) *Transformer {
	if profileBase == "" {
		profileBase = defaultProfileBase
	}
	return &Transformer{profileBase: profileBase}
}

// Transform converts a post into a Transformation. Invalid posts are
// sanitized first rather than rejected: by the time a post reaches the
// transformer the filter chain has already decided it should sync.
func (t *Transformer) Transform(post *bluesky.Post) *Transformation {
	if result := ValidatePost(post); !result.Valid {
		slog.Info("sanitizing invalid post before transform", "uri", post.URI, "errors", strings.Join(result.Errors, "; "))
		post = SanitizePost(post)
	}

	tr := &Transformation{}

	textBytes := []byte(post.Record.Text)
	facets := orderedFacets(post.Record.Facets, len(textBytes))

	var out strings.Builder
	pos := 0
	footnote := 0

	for _, facet := range facets {
		if facet.Index.ByteStart < pos {
			// overlapping facet, skip it
			continue
		}
		out.Write(textBytes[pos:facet.Index.ByteStart])
		segment := string(textBytes[facet.Index.ByteStart:facet.Index.ByteEnd])
		pos = facet.Index.ByteEnd

		feature := primaryFeature(facet.Features)
		switch feature.Type {
		case bluesky.FeatureMention:
			footnote++
			out.WriteString(fmt.Sprintf("%s (%d)", segment, footnote))
			tr.Mentions = append(tr.Mentions, Mention{
				Handle:     strings.TrimPrefix(segment, "@"),
				ProfileURL: t.profileURL(feature.DID, segment),
			})
		case bluesky.FeatureLink:
			out.WriteString(segment)
			tr.Links = append(tr.Links, Link{URL: feature.URI, DisplayText: segment})
		case bluesky.FeatureTag:
			out.WriteString(segment)
			tr.Hashtags = append(tr.Hashtags, feature.Tag)
		default:
			out.WriteString(segment)
		}
	}
	out.Write(textBytes[pos:])

	t.applyEmbed(tr, post)

	tr.Text = strings.TrimSpace(out.String())
	return tr
}

// applyEmbed folds the post embed into the transformation: images and video
// become media placeholders, an external card becomes a plain link. Quote
// embeds are filtered upstream; if one slips through it is a no-op here.
func (t *Transformer) applyEmbed(tr *Transformation, post *bluesky.Post) {
	embed := post.Record.Embed
	if embed == nil {
		return
	}

	switch embed.Type {
	case bluesky.EmbedImages:
		for _, img := range embed.Images {
			cid := img.Image.CID()
			tr.Media = append(tr.Media, MediaItem{
				URL:         placeholderURL(post.Author.DID, cid),
				Type:        "image",
				Description: img.Alt,
				authorDID:   post.Author.DID,
				blobCID:     cid,
			})
		}
	case bluesky.EmbedVideo:
		cid := embed.Video.CID()
		tr.Media = append(tr.Media, MediaItem{
			URL:       placeholderURL(post.Author.DID, cid),
			Type:      "video",
			authorDID: post.Author.DID,
			blobCID:   cid,
		})
	case bluesky.EmbedExternal:
		if embed.External == nil {
			return
		}
		for _, l := range tr.Links {
			if l.URL == embed.External.URI {
				return
			}
		}
		display := embed.External.Title
		if display == "" {
			display = embed.External.URI
		}
		tr.Links = append(tr.Links, Link{URL: embed.External.URI, DisplayText: display})
	}
}

// ResolveBlobURLs replaces placeholder media URLs with fetchable ones. A
// resolution failure leaves that item's placeholder in place; one bad media
// reference never aborts the transformation.
func (t *Transformer) ResolveBlobURLs(ctx context.Context, tr *Transformation, resolver BlobURLResolver) {
	for i := range tr.Media {
		item := &tr.Media[i]
		if item.blobCID == "" {
			continue
		}
		resolved, err := resolver.ResolveBlobURL(item.authorDID, item.blobCID)
		if err != nil {
			slog.Info("failed to resolve blob url", "cid", item.blobCID, "error", err.Error())
			continue
		}
		item.URL = resolved
	}
}

// FormatForMastodon renders the transformation as a Mastodon status:
// displayed link text is swapped back to the full URI (Bluesky clients
// elide long URLs with a trailing ellipsis while the facet keeps the full
// URL), mention footnotes are appended, and the status budget is enforced.
// Truncation runs after footnote appension, so a long mention list can eat
// into the body; that trade-off is deliberate.
func (t *Transformer) FormatForMastodon(tr *Transformation) *FormattedPost {
	status := tr.Text

	for _, link := range tr.Links {
		if link.DisplayText == "" || link.DisplayText == link.URL {
			continue
		}
		status = strings.ReplaceAll(status, link.DisplayText, link.URL)
	}

	if len(tr.Mentions) > 0 {
		var footnotes strings.Builder
		footnotes.WriteString("\n")
		for i, m := range tr.Mentions {
			footnotes.WriteString(fmt.Sprintf("\n(%d) %s", i+1, m.ProfileURL))
		}
		status += footnotes.String()
	}

	if utf16Length(status) > statusBudget {
		status = truncateUTF16(status, statusBudget-4) + "..."
	}

	return &FormattedPost{Status: status, Media: tr.Media}
}

func (t *Transformer) profileURL(did, segment string) string {
	base := t.profileBase
	if base == "" {
		base = defaultProfileBase
	}
	// DIDs are stable, handles are not; fall back to the handle only when
	// the facet carries no DID.
	if did != "" {
		return base + did
	}
	return base + strings.TrimPrefix(segment, "@")
}

func placeholderURL(did, cid string) string {
	return "blob://" + did + "/" + cid
}

// orderedFacets returns facets sorted by byte start, dropping any with an
// out-of-range index so the segment walk never slices past the text.
func orderedFacets(facets []bluesky.Facet, textLen int) []bluesky.Facet {
	ordered := make([]bluesky.Facet, 0, len(facets))
	for _, f := range facets {
		if f.Index.ByteStart < 0 || f.Index.ByteEnd > textLen || f.Index.ByteStart >= f.Index.ByteEnd {
			continue
		}
		ordered = append(ordered, f)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Index.ByteStart < ordered[j].Index.ByteStart
	})
	return ordered
}

// primaryFeature picks the feature that decides how a facet segment is
// rendered: mention wins over link, link over tag.
func primaryFeature(features []bluesky.Feature) bluesky.Feature {
	var link, tag *bluesky.Feature
	for i := range features {
		switch features[i].Type {
		case bluesky.FeatureMention:
			return features[i]
		case bluesky.FeatureLink:
			if link == nil {
				link = &features[i]
			}
		case bluesky.FeatureTag:
			if tag == nil {
				tag = &features[i]
			}
		}
	}
	if link != nil {
		return *link
	}
	if tag != nil {
		return *tag
	}
	return bluesky.Feature{}
}

// truncateUTF16 cuts s to at most limit UTF-16 code units without splitting
// a rune.
func truncateUTF16(s string, limit int) string {
	n := 0
	for i, r := range s {
		w := 1
		if r > 0xFFFF {
			w = 2
		}
		if n+w > limit {
			return s[:i]
		}
		n += w
	}
	return s
}
