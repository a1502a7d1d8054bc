// ABOUTME: Tests for the voice-note pipeline
// ABOUTME: Covers stage ordering, fallback replies, and the opt-in tap

package audio

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charlabs/charla/internal/transcribe"
)

// fakeMedia is a scripted MediaFetcher
type fakeMedia struct {
	url        string
	urlErr     error
	payload    []byte
	payloadErr error

	metadataCalls int
	downloadCalls int
}

func (f *fakeMedia) GetMediaURL(_ context.Context, _ string) (string, error) {
	f.metadataCalls++
	return f.url, f.urlErr
}

func (f *fakeMedia) Download(_ context.Context, _ string) ([]byte, error) {
	f.downloadCalls++
	return f.payload, f.payloadErr
}

// fakeTranscriber is a scripted Transcriber
type fakeTranscriber struct {
	transcript string
	err        error

	calls  int
	gotB64 string
}

func (f *fakeTranscriber) Recognize(_ context.Context, audioB64 string) (string, error) {
	f.calls++
	f.gotB64 = audioB64
	return f.transcript, f.err
}

func TestProcessor_Success(t *testing.T) {
	media := &fakeMedia{url: "https://cdn.example/a", payload: []byte("ogg-bytes")}
	tr := &fakeTranscriber{transcript: "hola, quiero pedir cita"}
	p := NewProcessor(media, tr, nil)

	got := p.Process(context.Background(), "media-1")

	assert.Equal(t, "hola, quiero pedir cita", got)
	assert.Equal(t, 1, media.metadataCalls)
	assert.Equal(t, 1, media.downloadCalls)
	assert.Equal(t, 1, tr.calls)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("ogg-bytes")), tr.gotB64)
}

func TestProcessor_MetadataFailure(t *testing.T) {
	media := &fakeMedia{urlErr: errors.New("status 404")}
	tr := &fakeTranscriber{}
	p := NewProcessor(media, tr, nil)

	got := p.Process(context.Background(), "media-1")

	assert.Equal(t, ReplyRetrievalError, got)
	// Transcription backend must never be reached
	assert.Equal(t, 0, tr.calls)
	assert.Equal(t, 0, media.downloadCalls)
}

func TestProcessor_DownloadFailure(t *testing.T) {
	media := &fakeMedia{url: "https://cdn.example/a", payloadErr: errors.New("status 403")}
	tr := &fakeTranscriber{}
	p := NewProcessor(media, tr, nil)

	got := p.Process(context.Background(), "media-1")

	assert.Equal(t, ReplyRetrievalError, got)
	assert.Equal(t, 0, tr.calls)
}

func TestProcessor_EmptyResults(t *testing.T) {
	media := &fakeMedia{url: "https://cdn.example/a", payload: []byte("ogg")}
	tr := &fakeTranscriber{err: transcribe.ErrNoResults}
	p := NewProcessor(media, tr, nil)

	got := p.Process(context.Background(), "media-1")
	assert.Equal(t, ReplyNothingTranscribed, got)
}

func TestProcessor_TranscriptionFailure(t *testing.T) {
	media := &fakeMedia{url: "https://cdn.example/a", payload: []byte("ogg")}
	tr := &fakeTranscriber{err: &transcribe.APIError{StatusCode: 500, Body: "boom"}}
	p := NewProcessor(media, tr, nil)

	got := p.Process(context.Background(), "media-1")
	assert.Equal(t, ReplyProcessingError, got)
}

func TestProcessor_TapReceivesPayload(t *testing.T) {
	media := &fakeMedia{url: "https://cdn.example/a", payload: []byte("ogg-bytes")}
	tr := &fakeTranscriber{transcript: "hola"}
	p := NewProcessor(media, tr, nil)

	var tap bytes.Buffer
	p.Tap = &tap

	got := p.Process(context.Background(), "media-1")
	require.Equal(t, "hola", got)
	assert.Equal(t, []byte("ogg-bytes"), tap.Bytes())
}

func TestProcessor_NoTapByDefault(t *testing.T) {
	media := &fakeMedia{url: "https://cdn.example/a", payload: []byte("ogg")}
	tr := &fakeTranscriber{transcript: "hola"}
	p := NewProcessor(media, tr, nil)

	// Nothing to assert beyond not panicking with a nil tap
	assert.Equal(t, "hola", p.Process(context.Background(), "media-1"))
}
