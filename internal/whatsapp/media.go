// ABOUTME: Media client for the WhatsApp Cloud API
// ABOUTME: Resolves media IDs to short-lived download URLs and fetches the payload bytes

package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultGraphBaseURL = "https://graph.facebook.com"

// MediaClient resolves and downloads provider-hosted media
type MediaClient struct {
	http        *http.Client
	baseURL     string
	apiVersion  string
	accessToken string
}

// NewMediaClient creates a media client. A nil httpClient gets a 30s timeout
// default; an empty baseURL targets the production Graph API.
func NewMediaClient(httpClient *http.Client, baseURL, apiVersion, accessToken string) *MediaClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL = strings.TrimSpace(strings.TrimRight(baseURL, "/"))
	if baseURL == "" {
		baseURL = defaultGraphBaseURL
	}
	return &MediaClient{
		http:        httpClient,
		baseURL:     baseURL,
		apiVersion:  apiVersion,
		accessToken: accessToken,
	}
}

// GetMediaURL asks the provider for the short-lived download URL of a media id.
// Returns an error on a non-success status or when the response lacks a URL.
func (c *MediaClient) GetMediaURL(ctx context.Context, mediaID string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/%s", c.baseURL, c.apiVersion, mediaID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("media metadata status %d", resp.StatusCode)
	}

	var meta struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return "", fmt.Errorf("decoding metadata: %w", err)
	}
	if meta.URL == "" {
		return "", fmt.Errorf("metadata response missing url")
	}
	return meta.URL, nil
}

// Download fetches the raw media bytes from a previously resolved URL.
// The same bearer credential is required; the URL itself is short-lived.
func (c *MediaClient) Download(ctx context.Context, mediaURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media download status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading media body: %w", err)
	}
	return data, nil
}
