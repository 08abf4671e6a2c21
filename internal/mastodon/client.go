package mastodon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/h2non/filetype"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/oauth2"
)

// Client is a Mastodon REST API client scoped to what cross-posting needs:
// credential verification, media upload and status creation.
type Client struct {
	server     string
	httpClient *http.Client

	// waitFn is swapped out in tests to avoid real sleeps during the
	// media-processing poll.
	waitFn func(time.Duration)
}

// NewClient builds an authenticated client for the given server
// (e.g. https://mastodon.social) using a static OAuth2 access token.
func NewClient(server, accessToken string) *Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	httpClient := oauth2.NewClient(context.Background(), ts)
	httpClient.Timeout = 60 * time.Second

	return &Client{
		server:     strings.TrimRight(server, "/"),
		httpClient: httpClient,
		waitFn:     time.Sleep,
	}
}

// APIError is a non-2xx response from the Mastodon API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mastodon API error (status %d): %s", e.StatusCode, e.Message)
}

// AccountInfo is the subset of /api/v1/accounts/verify_credentials the
// bridge cares about.
type AccountInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	URL      string `json:"url"`
}

// Attachment is an uploaded media attachment.
type Attachment struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	URL         string `json:"url"`
	PreviewURL  string `json:"preview_url"`
	Description string `json:"description"`
}

// Status is a created Mastodon post.
type Status struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	URI       string `json:"uri"`
	CreatedAt string `json:"created_at"`
}

// VerifyCredentials confirms the access token is valid and returns the
// authenticated account.
func (c *Client) VerifyCredentials(ctx context.Context) (*AccountInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.server+"/api/v1/accounts/verify_credentials", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	var info AccountInfo
	if err := c.do(req, &info); err != nil {
		return nil, fmt.Errorf("verify credentials: %w", err)
	}
	return &info, nil
}

// UploadMedia uploads raw media bytes via /api/v2/media. A 202 means the
// server is still transcoding; the upload is polled until the attachment
// has a URL or the poll budget runs out.
func (c *Client) UploadMedia(ctx context.Context, data []byte, mimeType, description string) (*Attachment, error) {
	if mimeType == "" || mimeType == "application/octet-stream" {
		if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
			mimeType = kind.MIME.Value
		}
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(map[string][]string)
	header["Content-Disposition"] = []string{`form-data; name="file"; filename="media"`}
	if mimeType != "" {
		header["Content-Type"] = []string{mimeType}
	}
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("create multipart: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("write multipart: %w", err)
	}
	if description != "" {
		if err := writer.WriteField("description", description); err != nil {
			return nil, fmt.Errorf("write description field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.server+"/api/v2/media", body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var attachment Attachment
	if err := json.Unmarshal(respBody, &attachment); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if resp.StatusCode == http.StatusAccepted {
		return c.waitForProcessing(ctx, &attachment)
	}
	return &attachment, nil
}

// waitForProcessing polls /api/v1/media/:id until the attachment is ready.
func (c *Client) waitForProcessing(ctx context.Context, attachment *Attachment) (*Attachment, error) {
	const maxPolls = 10

	for i := 0; i < maxPolls; i++ {
		c.waitFn(time.Second)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.server+"/api/v1/media/"+attachment.ID, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("send request: %w", err)
		}
		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("read response: %w", readErr)
		}

		// 206 means the attachment is still being processed.
		if resp.StatusCode == http.StatusPartialContent {
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
		}

		var ready Attachment
		if err := json.Unmarshal(respBody, &ready); err != nil {
			return nil, fmt.Errorf("unmarshal response: %w", err)
		}
		if ready.URL != "" {
			return &ready, nil
		}
	}

	slog.Info("media processing did not finish in time", "media_id", attachment.ID)
	return nil, &APIError{StatusCode: http.StatusAccepted, Message: "media processing timed out for " + attachment.ID}
}

// CreatePost creates a status via /api/v1/statuses. A fresh Idempotency-Key
// guards against duplicate statuses when a create is retried after an
// ambiguous network failure.
func (c *Client) CreatePost(ctx context.Context, status string, mediaIDs []string, visibility string) (*Status, error) {
	if visibility == "" {
		visibility = "public"
	}

	form := url.Values{}
	form.Set("status", status)
	form.Set("visibility", visibility)
	for _, id := range mediaIDs {
		form.Add("media_ids[]", id)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.server+"/api/v1/statuses", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if key, err := gonanoid.New(); err == nil {
		req.Header.Set("Idempotency-Key", key)
	}

	var created Status
	if err := c.do(req, &created); err != nil {
		return nil, fmt.Errorf("create status: %w", err)
	}
	return &created, nil
}

func (c *Client) do(req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}
