// ABOUTME: Message type dispatcher for inbound webhook messages
// ABOUTME: Classifies by payload kind and produces normalized text for the orchestrator

package dispatch

import (
	"context"

	"github.com/charlabs/charla/internal/whatsapp"
)

// Fixed replies for kinds the pipeline cannot understand
const (
	ReplyImageUnsupported = "User sent an image. Let it know that you can't process Images."
	ReplyUnsupportedType  = "Unsupported message type."
)

// AudioProcessor turns a voice-note media id into text
type AudioProcessor interface {
	Process(ctx context.Context, mediaID string) string
}

// Dispatcher routes an inbound message to the pre-processor for its kind
type Dispatcher struct {
	audio AudioProcessor
}

// New creates a dispatcher backed by the given audio processor
func New(audio AudioProcessor) *Dispatcher {
	return &Dispatcher{audio: audio}
}

// Normalize produces the text the orchestrator should submit for a message.
// Text passes through unchanged; audio goes through the transcription
// pipeline; images and unknown kinds yield fixed replies. Every kind maps to
// some string, so the user always gets a response.
func (d *Dispatcher) Normalize(ctx context.Context, msg whatsapp.Message) string {
	switch msg.Type {
	case whatsapp.KindText:
		if msg.Text == nil {
			return ReplyUnsupportedType
		}
		return msg.Text.Body
	case whatsapp.KindAudio:
		if msg.Audio == nil {
			return ReplyUnsupportedType
		}
		return d.audio.Process(ctx, msg.Audio.ID)
	case whatsapp.KindImage:
		return ReplyImageUnsupported
	default:
		return ReplyUnsupportedType
	}
}
