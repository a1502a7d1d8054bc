// ABOUTME: Tests for the outbound text sender
// ABOUTME: Verifies request shape, auth headers, and non-success error mapping

package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSender_SendText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v18.0/5550001/messages", r.URL.Path)
		assert.Equal(t, "Bearer wa-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload textPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "whatsapp", payload.MessagingProduct)
		assert.Equal(t, "individual", payload.RecipientType)
		assert.Equal(t, "34600000001", payload.To)
		assert.Equal(t, "text", payload.Type)
		assert.Equal(t, "hola", payload.Text.Body)
		assert.False(t, payload.Text.PreviewURL)

		json.NewEncoder(w).Encode(map[string]any{"messages": []map[string]string{{"id": "wamid.out"}}})
	}))
	defer srv.Close()

	s := NewSender(srv.Client(), srv.URL, "v18.0", "wa-token", "5550001", nil)
	require.NoError(t, s.SendText(context.Background(), "34600000001", "hola"))
}

func TestSender_SendText_NonSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad token"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := NewSender(srv.Client(), srv.URL, "v18.0", "bad", "5550001", nil)
	err := s.SendText(context.Background(), "34600000001", "hola")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}
