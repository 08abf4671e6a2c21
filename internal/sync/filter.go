package sync

import (
	"log/slog"
	"strings"
	"unicode"

	"github.com/fedibridge/skybridge/internal/bluesky"
	"github.com/fedibridge/skybridge/internal/models"
)

// Filter decides whether a fetched post qualifies for cross-posting.
// Filters are independent predicates without side effects.
type Filter interface {
	Name() string
	ShouldSync(post *bluesky.Post, settings *models.Settings) bool
}

// Chain evaluates filters in order; a post syncs only if every filter
// passes. The filter set is replaceable so tests can run reduced chains.
type Chain struct {
	filters []Filter
}

// NewChain returns the default chain: validation, reply, repost/quote,
// leading mention.
func NewChain() *Chain {
	return &Chain{
		filters: []Filter{
			ValidationFilter{},
			ReplyFilter{},
			RepostFilter{},
			LeadingMentionFilter{},
		},
	}
}

// Use appends a filter to the chain.
func (c *Chain) Use(f Filter) {
	c.filters = append(c.filters, f)
}

// Replace swaps the entire filter set.
func (c *Chain) Replace(filters ...Filter) {
	c.filters = filters
}

// ShouldSync is the AND of all filters.
func (c *Chain) ShouldSync(post *bluesky.Post, settings *models.Settings) bool {
	for _, f := range c.filters {
		if !f.ShouldSync(post, settings) {
			slog.Debug("post filtered out", "filter", f.Name(), "uri", post.URI)
			return false
		}
	}
	return true
}

// ValidationFilter rejects structurally invalid posts. This also covers
// empty content: a post with no trimmed text and no embed fails validation.
type ValidationFilter struct{}

func (ValidationFilter) Name() string { return "validation" }

func (ValidationFilter) ShouldSync(post *bluesky.Post, _ *models.Settings) bool {
	result := ValidatePost(post)
	if !result.Valid {
		slog.Info("post failed validation", "uri", post.URI, "errors", strings.Join(result.Errors, "; "))
	}
	return result.Valid
}

// ReplyFilter rejects replies: a reply torn out of its thread makes no
// sense as a standalone Mastodon post.
type ReplyFilter struct{}

func (ReplyFilter) Name() string { return "reply" }

func (ReplyFilter) ShouldSync(post *bluesky.Post, _ *models.Settings) bool {
	return post.Record.Reply == nil
}

// RepostFilter rejects quote posts. Both bare record embeds and
// record-with-media embeds are skipped: the quoted content does not exist
// on the destination, so the cross-post would be broken either way.
// Skipping recordWithMedia too is a product decision, not a bug fix.
type RepostFilter struct{}

func (RepostFilter) Name() string { return "repost" }

func (RepostFilter) ShouldSync(post *bluesky.Post, _ *models.Settings) bool {
	if post.Record.Embed == nil {
		return true
	}
	switch post.Record.Embed.Type {
	case bluesky.EmbedRecord, bluesky.EmbedRecordWithMedia:
		return false
	}
	return true
}

// LeadingMentionFilter rejects posts that open with a mention when
// skip_mentions is enabled. The check works in bytes because facet offsets
// are byte offsets: a leading emoji shifts the byte offset further than its
// rune count, and character math would misfire.
type LeadingMentionFilter struct{}

func (LeadingMentionFilter) Name() string { return "leading_mention" }

func (LeadingMentionFilter) ShouldSync(post *bluesky.Post, settings *models.Settings) bool {
	if settings == nil || !settings.SkipMentions {
		return true
	}

	text := post.Record.Text
	trimmed := strings.TrimLeftFunc(text, unicode.IsSpace)
	leadingBytes := len(text) - len(trimmed)

	for _, facet := range post.Record.Facets {
		if facet.Index.ByteStart != leadingBytes {
			continue
		}
		for _, f := range facet.Features {
			if f.Type == bluesky.FeatureMention {
				return false
			}
		}
	}
	return true
}
