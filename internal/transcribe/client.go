// ABOUTME: HTTP client for the speech recognition backend (speech:recognize)
// ABOUTME: Submits base64 Opus-in-Ogg audio and extracts the top transcript alternative

package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://speech.googleapis.com/v1"

// Recognition parameters fixed for WhatsApp voice notes: they arrive as
// Opus in an Ogg container sampled at 48 kHz.
const (
	encodingOggOpus = "OGG_OPUS"
	sampleRateHertz = 48000
)

// ErrNoResults is returned when the backend recognized nothing in the audio
var ErrNoResults = errors.New("no transcription results")

// APIError is returned when the backend responds with a non-success status
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("speech API status %d: %s", e.StatusCode, e.Body)
}

// Client talks to the speech recognition backend
type Client struct {
	http     *http.Client
	baseURL  string
	apiKey   string
	language string
}

// New creates a transcription client. A nil httpClient gets a 30s timeout
// default; an empty baseURL targets the production API; an empty language
// defaults to Spanish (Spain).
func New(httpClient *http.Client, baseURL, apiKey, language string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL = strings.TrimSpace(strings.TrimRight(baseURL, "/"))
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if language == "" {
		language = "es-ES"
	}
	return &Client{
		http:     httpClient,
		baseURL:  baseURL,
		apiKey:   strings.TrimSpace(apiKey),
		language: language,
	}
}

type recognizeRequest struct {
	Config recognizeConfig `json:"config"`
	Audio  recognizeAudio  `json:"audio"`
}

type recognizeConfig struct {
	Encoding                   string `json:"encoding"`
	SampleRateHertz            int    `json:"sampleRateHertz"`
	LanguageCode               string `json:"languageCode"`
	EnableAutomaticPunctuation bool   `json:"enableAutomaticPunctuation"`
}

type recognizeAudio struct {
	Content string `json:"content"`
}

type recognizeResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"results"`
}

// Recognize submits base64-encoded audio and returns the top alternative of
// the first result. Returns ErrNoResults when the backend found no speech.
func (c *Client) Recognize(ctx context.Context, audioB64 string) (string, error) {
	payload := recognizeRequest{
		Config: recognizeConfig{
			Encoding:                   encodingOggOpus,
			SampleRateHertz:            sampleRateHertz,
			LanguageCode:               c.language,
			EnableAutomaticPunctuation: true,
		},
		Audio: recognizeAudio{Content: audioB64},
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := c.baseURL + "/speech:recognize?key=" + url.QueryEscape(c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respRaw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respRaw))}
	}

	var out recognizeResponse
	if err := json.Unmarshal(respRaw, &out); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	if len(out.Results) == 0 || len(out.Results[0].Alternatives) == 0 {
		return "", ErrNoResults
	}
	return out.Results[0].Alternatives[0].Transcript, nil
}
