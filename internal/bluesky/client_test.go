package bluesky

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginStoresSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/xrpc/com.atproto.server.createSession", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "alice.example", body["identifier"])
		assert.Equal(t, "app-password", body["password"])

		json.NewEncoder(w).Encode(createSessionResponse{
			AccessJwt: "jwt-token",
			DID:       "did:plc:alice",
			Handle:    "alice.example",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	err := client.Login(context.Background(), "alice.example", "app-password")

	require.NoError(t, err)
	assert.Equal(t, "did:plc:alice", client.DID())
	assert.Equal(t, "jwt-token", client.accessJwt)
}

func TestLoginFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"AuthenticationRequired"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	err := client.Login(context.Background(), "alice.example", "wrong")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestFetchAuthorFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/xrpc/app.bsky.feed.getAuthorFeed", r.URL.Path)
		assert.Equal(t, "Bearer jwt-token", r.Header.Get("Authorization"))

		q := r.URL.Query()
		assert.Equal(t, "did:plc:alice", q.Get("actor"))
		assert.Equal(t, "25", q.Get("limit"))
		assert.Equal(t, "prev-cursor", q.Get("cursor"))

		json.NewEncoder(w).Encode(FeedResponse{
			Feed: []FeedItem{
				{Post: Post{URI: "at://did:plc:alice/app.bsky.feed.post/3ka", CID: "bafya"}},
			},
			Cursor: "next-cursor",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.accessJwt = "jwt-token"

	resp, err := client.FetchAuthorFeed(context.Background(), "did:plc:alice", 25, "prev-cursor")

	require.NoError(t, err)
	require.Len(t, resp.Feed, 1)
	assert.Equal(t, "at://did:plc:alice/app.bsky.feed.post/3ka", resp.Feed[0].Post.URI)
	assert.Equal(t, "next-cursor", resp.Cursor)
}

func TestFetchAuthorFeedOmitsEmptyCursor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasCursor := r.URL.Query()["cursor"]
		assert.False(t, hasCursor)
		json.NewEncoder(w).Encode(FeedResponse{})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.FetchAuthorFeed(context.Background(), "did:plc:alice", 50, "")
	require.NoError(t, err)
}

func TestResolveBlobURL(t *testing.T) {
	client := NewClient("https://pds.example")

	blobURL, err := client.ResolveBlobURL("did:plc:alice", "bafyblob")
	require.NoError(t, err)
	assert.Equal(t, "https://pds.example/xrpc/com.atproto.sync.getBlob?cid=bafyblob&did=did%3Aplc%3Aalice", blobURL)

	_, err = client.ResolveBlobURL("", "bafyblob")
	assert.Error(t, err)

	_, err = client.ResolveBlobURL("did:plc:alice", "")
	assert.Error(t, err)
}

func TestGetBlob(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/xrpc/com.atproto.sync.getBlob", r.URL.Path)
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg-bytes"))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	data, contentType, err := client.GetBlob(context.Background(), "did:plc:alice", "bafyblob")

	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)
	assert.Equal(t, "image/jpeg", contentType)
}

func TestNewClientDefaultsPDS(t *testing.T) {
	client := NewClient("")
	assert.Equal(t, "https://bsky.social", client.pds)
}

func TestBlobRefCID(t *testing.T) {
	var nilRef *BlobRef
	assert.Equal(t, "", nilRef.CID())

	ref := &BlobRef{}
	ref.Ref.Link = "bafyblob"
	assert.Equal(t, "bafyblob", ref.CID())
}
