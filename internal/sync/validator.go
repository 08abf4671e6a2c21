package sync

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/fedibridge/skybridge/internal/bluesky"
)

// maxTextLength is the Bluesky record text ceiling in UTF-16 code units.
const maxTextLength = 3000

// ValidationResult reports whether a post is structurally sound and, if not,
// every problem found.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// ValidatePost checks a raw feed post before it enters the pipeline.
func ValidatePost(post *bluesky.Post) ValidationResult {
	var errs []string

	if post == nil {
		return ValidationResult{Valid: false, Errors: []string{"post is nil"}}
	}

	if post.URI == "" {
		errs = append(errs, "post has no uri")
	}
	if post.CID == "" {
		errs = append(errs, "post has no cid")
	}
	if post.Author.DID == "" {
		errs = append(errs, "author has no did")
	}
	if post.Author.Handle == "" {
		errs = append(errs, "author has no handle")
	}

	if post.Record.CreatedAt == "" {
		errs = append(errs, "record has no createdAt")
	} else if _, err := time.Parse(time.RFC3339, post.Record.CreatedAt); err != nil {
		errs = append(errs, fmt.Sprintf("createdAt is not a valid timestamp: %s", post.Record.CreatedAt))
	}

	if utf16Length(post.Record.Text) > maxTextLength {
		errs = append(errs, fmt.Sprintf("text exceeds %d characters", maxTextLength))
	}

	if strings.TrimSpace(post.Record.Text) == "" && post.Record.Embed == nil {
		errs = append(errs, "post has neither text nor embed")
	}

	textLen := len(post.Record.Text)
	for i, facet := range post.Record.Facets {
		if facetErr := validateFacet(&facet, textLen); facetErr != "" {
			errs = append(errs, fmt.Sprintf("facet %d: %s", i, facetErr))
		}
	}

	if post.Record.Embed != nil {
		if embedErr := validateEmbed(post.Record.Embed); embedErr != "" {
			errs = append(errs, "embed: "+embedErr)
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func validateFacet(facet *bluesky.Facet, textLen int) string {
	if facet.Index.ByteStart < 0 || facet.Index.ByteEnd < 0 {
		return "negative byte offset"
	}
	if facet.Index.ByteStart >= facet.Index.ByteEnd {
		return "byteStart must be below byteEnd"
	}
	if facet.Index.ByteEnd > textLen {
		return "byte range extends past the text"
	}

	for _, f := range facet.Features {
		switch f.Type {
		case bluesky.FeatureMention:
			if f.DID != "" {
				return ""
			}
		case bluesky.FeatureLink:
			if f.URI != "" {
				return ""
			}
		case bluesky.FeatureTag:
			if f.Tag != "" {
				return ""
			}
		}
	}
	return "no recognized feature"
}

// validateEmbed checks the embed union by kind. Unknown kinds pass so that
// new lexicon embeds do not break the pipeline.
func validateEmbed(embed *bluesky.Embed) string {
	switch embed.Type {
	case bluesky.EmbedImages:
		if len(embed.Images) == 0 || len(embed.Images) > 4 {
			return fmt.Sprintf("images embed must have 1-4 images, has %d", len(embed.Images))
		}
		for i, img := range embed.Images {
			if img.Image == nil || img.Image.CID() == "" {
				return fmt.Sprintf("image %d has no blob reference", i)
			}
		}
	case bluesky.EmbedVideo:
		if embed.Video == nil || embed.Video.CID() == "" {
			return "video embed has no blob reference"
		}
	case bluesky.EmbedExternal:
		if embed.External == nil {
			return "external embed has no external object"
		}
	}
	return ""
}

// SanitizePost returns a repaired copy of the post: individually invalid
// facets are dropped (valid ones kept) and an invalid embed is removed
// entirely. The input is not modified.
func SanitizePost(post *bluesky.Post) *bluesky.Post {
	if post == nil {
		return nil
	}

	clean := *post
	clean.Record.Facets = nil

	textLen := len(post.Record.Text)
	for _, facet := range post.Record.Facets {
		if validateFacet(&facet, textLen) == "" {
			clean.Record.Facets = append(clean.Record.Facets, facet)
		}
	}

	if post.Record.Embed != nil && validateEmbed(post.Record.Embed) != "" {
		clean.Record.Embed = nil
	}

	return &clean
}

// utf16Length counts UTF-16 code units, which is how both Bluesky and
// Mastodon measure post length.
func utf16Length(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}
