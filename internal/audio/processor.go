// ABOUTME: Audio pre-processor pipeline for inbound voice notes
// ABOUTME: Fetches provider media, base64-encodes it, and transcribes it to text

package audio

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"

	"github.com/charlabs/charla/internal/transcribe"
)

// Stage errors. They never leave Process: the pipeline's output position is
// text to show the user, so each failure degrades to a fixed reply string.
var (
	ErrMetadata      = errors.New("media metadata fetch failed")
	ErrDownload      = errors.New("media download failed")
	ErrTranscription = errors.New("transcription failed")
)

// Fixed user-facing fallback replies
const (
	ReplyRetrievalError     = "Error retrieving the audio file."
	ReplyNothingTranscribed = "Could not transcribe the audio."
	ReplyProcessingError    = "Error processing audio."
)

// MediaFetcher resolves and downloads provider-hosted media
type MediaFetcher interface {
	GetMediaURL(ctx context.Context, mediaID string) (string, error)
	Download(ctx context.Context, mediaURL string) ([]byte, error)
}

// Transcriber converts base64-encoded audio into text
type Transcriber interface {
	Recognize(ctx context.Context, audioB64 string) (string, error)
}

// Processor runs the voice-note pipeline: metadata fetch, download, encode,
// transcribe. Each stage is single-shot; media URLs are short-lived, so a
// stale retry is worse than a fast user-visible failure.
type Processor struct {
	media       MediaFetcher
	transcriber Transcriber
	logger      *slog.Logger

	// Tap, when set, receives a copy of every downloaded payload.
	// Replaces the unconditional debug file write of earlier revisions.
	Tap io.Writer
}

// NewProcessor creates an audio processor
func NewProcessor(media MediaFetcher, transcriber Transcriber, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		media:       media,
		transcriber: transcriber,
		logger:      logger.With("component", "audio"),
	}
}

// Process turns a voice-note media id into transcript text. It always
// returns something presentable to the user; pipeline failures map to the
// fixed fallback replies above.
func (p *Processor) Process(ctx context.Context, mediaID string) string {
	audioB64, err := p.fetchAndEncode(ctx, mediaID)
	if err != nil {
		p.logger.Error("audio retrieval failed", "media_id", mediaID, "error", err)
		return ReplyRetrievalError
	}

	transcript, err := p.transcriber.Recognize(ctx, audioB64)
	if err != nil {
		if errors.Is(err, transcribe.ErrNoResults) {
			p.logger.Warn("no speech recognized", "media_id", mediaID)
			return ReplyNothingTranscribed
		}
		p.logger.Error("transcription failed", "media_id", mediaID, "error", err)
		return ReplyProcessingError
	}

	p.logger.Debug("voice note transcribed", "media_id", mediaID, "chars", len(transcript))
	return transcript
}

// fetchAndEncode runs the metadata, download, and encode stages
func (p *Processor) fetchAndEncode(ctx context.Context, mediaID string) (string, error) {
	mediaURL, err := p.media.GetMediaURL(ctx, mediaID)
	if err != nil {
		return "", errors.Join(ErrMetadata, err)
	}

	raw, err := p.media.Download(ctx, mediaURL)
	if err != nil {
		return "", errors.Join(ErrDownload, err)
	}

	if p.Tap != nil {
		if _, err := p.Tap.Write(raw); err != nil {
			p.logger.Warn("audio tap write failed", "error", err)
		}
	}

	return base64.StdEncoding.EncodeToString(raw), nil
}
