package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/fedibridge/skybridge/internal/bluesky"
)

// ContentHash fingerprints the semantic content of a post: text, creation
// time, author and embed. Used for duplicate-content bookkeeping only, never
// compared across deployments.
func ContentHash(post *bluesky.Post) string {
	embedJSON := []byte("null")
	if post.Record.Embed != nil {
		if b, err := json.Marshal(post.Record.Embed); err == nil {
			embedJSON = b
		}
	}

	h := sha256.New()
	h.Write([]byte(post.Record.Text))
	h.Write([]byte{0})
	h.Write([]byte(post.Record.CreatedAt))
	h.Write([]byte{0})
	h.Write([]byte(post.Author.DID))
	h.Write([]byte{0})
	h.Write(embedJSON)

	return hex.EncodeToString(h.Sum(nil))
}
