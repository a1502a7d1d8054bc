// ABOUTME: HTTP client for the hosted assistants API (threads, messages, runs)
// ABOUTME: Wraps thread creation, message append, run trigger/poll, and message listing

package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.openai.com/v1"

// betaHeader opts the client into the assistants v2 API surface.
const betaHeader = "assistants=v2"

// RunStatus is the backend-reported lifecycle state of a run
type RunStatus string

// Run lifecycle states as reported by the backend
const (
	RunQueued         RunStatus = "queued"
	RunInProgress     RunStatus = "in_progress"
	RunRequiresAction RunStatus = "requires_action"
	RunCompleted      RunStatus = "completed"
	RunFailed         RunStatus = "failed"
	RunCancelled      RunStatus = "cancelled"
	RunExpired        RunStatus = "expired"
	RunIncomplete     RunStatus = "incomplete"
)

// Terminal reports whether the run has reached a final state
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunFailed, RunCancelled, RunExpired, RunIncomplete:
		return true
	}
	return false
}

// Run represents one assistant computation within a thread
type Run struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	Status    RunStatus `json:"status"`
	LastError *RunError `json:"last_error,omitempty"`
}

// RunError carries the backend's failure detail for a terminal non-completed run
type RunError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ThreadMessage is one message in a thread listing
type ThreadMessage struct {
	ID      string           `json:"id"`
	Role    string           `json:"role"`
	Content []messageContent `json:"content"`
}

type messageContent struct {
	Type string `json:"type"`
	Text *struct {
		Value string `json:"value"`
	} `json:"text,omitempty"`
}

// NewTextMessage builds a message with a single text content block.
// Used by fakes standing in for the backend.
func NewTextMessage(role, text string) ThreadMessage {
	content := messageContent{Type: "text"}
	content.Text = &struct {
		Value string `json:"value"`
	}{Value: text}
	return ThreadMessage{Role: role, Content: []messageContent{content}}
}

// Text returns the first text content block of the message, or empty.
func (m *ThreadMessage) Text() string {
	for _, c := range m.Content {
		if c.Type == "text" && c.Text != nil {
			return c.Text.Value
		}
	}
	return ""
}

// APIError is returned when the backend responds with a non-success status
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("assistant API status %d: %s", e.StatusCode, e.Body)
}

// Client talks to the hosted assistants API
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

// New creates an assistant API client. A nil httpClient gets a 30s timeout
// default; an empty baseURL targets the production API.
func New(httpClient *http.Client, baseURL, apiKey string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL = strings.TrimSpace(strings.TrimRight(baseURL, "/"))
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		http:    httpClient,
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(apiKey),
	}
}

// CreateThread allocates a new conversation thread and returns its id
func (c *Client) CreateThread(ctx context.Context) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/threads", nil, &out); err != nil {
		return "", fmt.Errorf("creating thread: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("creating thread: response missing id")
	}
	return out.ID, nil
}

// AddMessage appends a message to a thread with the given role
func (c *Client) AddMessage(ctx context.Context, threadID, role, text string) error {
	body := map[string]string{
		"role":    role,
		"content": text,
	}
	if err := c.do(ctx, http.MethodPost, "/threads/"+threadID+"/messages", body, nil); err != nil {
		return fmt.Errorf("adding message: %w", err)
	}
	return nil
}

// CreateRun triggers an assistant computation on the thread and returns the run id
func (c *Client) CreateRun(ctx context.Context, threadID, assistantID string) (string, error) {
	body := map[string]string{
		"assistant_id": assistantID,
	}
	var out Run
	if err := c.do(ctx, http.MethodPost, "/threads/"+threadID+"/runs", body, &out); err != nil {
		return "", fmt.Errorf("creating run: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("creating run: response missing id")
	}
	return out.ID, nil
}

// GetRun retrieves the current state of a run
func (c *Client) GetRun(ctx context.Context, threadID, runID string) (*Run, error) {
	var out Run
	if err := c.do(ctx, http.MethodGet, "/threads/"+threadID+"/runs/"+runID, nil, &out); err != nil {
		return nil, fmt.Errorf("getting run: %w", err)
	}
	return &out, nil
}

// ListMessages returns up to limit messages of a thread, newest first
func (c *Client) ListMessages(ctx context.Context, threadID string, limit int) ([]ThreadMessage, error) {
	path := fmt.Sprintf("/threads/%s/messages?order=desc&limit=%d", threadID, limit)
	var out struct {
		Data []ThreadMessage `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	return out.Data, nil
}

// do executes one API call, marshaling body and unmarshaling the response into out
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("OpenAI-Beta", betaHeader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
