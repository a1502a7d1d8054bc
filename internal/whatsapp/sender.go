// ABOUTME: Outbound message delivery for the WhatsApp Cloud API
// ABOUTME: Posts text messages with a bounded wait so delivery cannot hang a cycle

package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// sendTimeout bounds the outbound delivery call
const sendTimeout = 10 * time.Second

// Sender delivers outbound text messages to WhatsApp users
type Sender struct {
	http          *http.Client
	baseURL       string
	apiVersion    string
	accessToken   string
	phoneNumberID string
	logger        *slog.Logger
}

// NewSender creates a sender for the given business phone number
func NewSender(httpClient *http.Client, baseURL, apiVersion, accessToken, phoneNumberID string, logger *slog.Logger) *Sender {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: sendTimeout}
	}
	baseURL = strings.TrimSpace(strings.TrimRight(baseURL, "/"))
	if baseURL == "" {
		baseURL = defaultGraphBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{
		http:          httpClient,
		baseURL:       baseURL,
		apiVersion:    apiVersion,
		accessToken:   accessToken,
		phoneNumberID: phoneNumberID,
		logger:        logger.With("component", "sender"),
	}
}

type textPayload struct {
	MessagingProduct string   `json:"messaging_product"`
	RecipientType    string   `json:"recipient_type"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type textBody struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

// SendText delivers a text message to the given recipient
func (s *Sender) SendText(ctx context.Context, to, body string) error {
	payload := textPayload{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             textBody{PreviewURL: false, Body: body},
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/%s/%s/messages", s.baseURL, s.apiVersion, s.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	defer resp.Body.Close()

	respRaw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("send status %d: %s", resp.StatusCode, strings.TrimSpace(string(respRaw)))
	}

	s.logger.Debug("message sent", "to", to, "status", resp.StatusCode)
	return nil
}
