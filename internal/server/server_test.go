// ABOUTME: Tests for the webhook HTTP server
// ABOUTME: Verification handshake, signature enforcement, dedupe, and the reply cycle

package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charlabs/charla/internal/whatsapp"
)

// fakeDispatcher echoes text bodies
type fakeDispatcher struct{}

func (fakeDispatcher) Normalize(_ context.Context, msg whatsapp.Message) string {
	if msg.Type == whatsapp.KindText && msg.Text != nil {
		return msg.Text.Body
	}
	return "normalized"
}

// fakeResponder scripts the orchestrator
type fakeResponder struct {
	mu    sync.Mutex
	calls []string
	reply string
	err   error
}

func (f *fakeResponder) GenerateResponse(_ context.Context, waID, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, waID+": "+text)
	return f.reply, f.err
}

func (f *fakeResponder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeSender captures deliveries and signals each one
type fakeSender struct {
	mu   sync.Mutex
	sent []string
	ch   chan string
}

func newFakeSender() *fakeSender {
	return &fakeSender{ch: make(chan string, 8)}
}

func (f *fakeSender) SendText(_ context.Context, to, body string) error {
	f.mu.Lock()
	f.sent = append(f.sent, to+": "+body)
	f.mu.Unlock()
	f.ch <- body
	return nil
}

// waitForSend blocks until a delivery happens or the test times out
func (f *fakeSender) waitForSend(t *testing.T) string {
	t.Helper()
	select {
	case body := <-f.ch:
		return body
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for outbound send")
		return ""
	}
}

const textWebhook = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "changes": [{
      "value": {
        "contacts": [{"wa_id": "34600000001", "profile": {"name": "Marta"}}],
        "messages": [{
          "id": "wamid.1",
          "from": "34600000001",
          "type": "text",
          "text": {"body": "hola"}
        }]
      }
    }]
  }]
}`

const statusWebhook = `{
  "object": "whatsapp_business_account",
  "entry": [{"changes": [{"value": {"statuses": [{"id": "wamid.x"}]}}]}]
}`

// newTestServer builds a server with fakes and no app secret
func newTestServer(responder *fakeResponder, sender *fakeSender) *Server {
	return New("localhost:0", "verify-me", "", fakeDispatcher{}, responder, sender, nil)
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestHandleVerify_Success(t *testing.T) {
	srv := newTestServer(&fakeResponder{}, newFakeSender())

	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12345", rec.Body.String())
}

func TestHandleVerify_WrongToken(t *testing.T) {
	srv := newTestServer(&fakeResponder{}, newFakeSender())

	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandleWebhook_TextMessageCycle(t *testing.T) {
	responder := &fakeResponder{reply: "Tu cita es el **martes**."}
	sender := newFakeSender()
	srv := newTestServer(responder, sender)

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader([]byte(textWebhook)))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	// The reply is styled before delivery
	body := sender.waitForSend(t)
	assert.Equal(t, "Tu cita es el *martes*.", body)

	require.Equal(t, 1, responder.callCount())
	assert.Equal(t, "34600000001: hola", responder.calls[0])
}

func TestHandleWebhook_SignatureEnforced(t *testing.T) {
	responder := &fakeResponder{}
	sender := newFakeSender()
	srv := New("localhost:0", "verify-me", "app-secret", fakeDispatcher{}, responder, sender, nil)

	body := []byte(textWebhook)

	// Missing signature
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 0, responder.callCount())

	// Valid signature
	req = httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set(whatsapp.SignatureHeader, sign("app-secret", body))
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	sender.waitForSend(t)
}

func TestHandleWebhook_StatusEventAcked(t *testing.T) {
	responder := &fakeResponder{}
	srv := newTestServer(responder, newFakeSender())

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader([]byte(statusWebhook)))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, responder.callCount())
}

func TestHandleWebhook_DuplicateDeliveryIgnored(t *testing.T) {
	responder := &fakeResponder{reply: "hola"}
	sender := newFakeSender()
	srv := newTestServer(responder, sender)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader([]byte(textWebhook)))
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	sender.waitForSend(t)
	assert.Equal(t, 1, responder.callCount())
}

func TestHandleWebhook_ResponderErrorYieldsApology(t *testing.T) {
	responder := &fakeResponder{err: errors.New("run ended failed")}
	sender := newFakeSender()
	srv := newTestServer(responder, sender)

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader([]byte(textWebhook)))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ReplyProcessingFailure, sender.waitForSend(t))
}

func TestHandleWebhook_MalformedBody(t *testing.T) {
	srv := newTestServer(&fakeResponder{}, newFakeSender())

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader([]byte("not-json")))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(&fakeResponder{}, newFakeSender())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
