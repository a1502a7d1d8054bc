// ABOUTME: HTTP webhook server receiving WhatsApp events and driving the reply cycle
// ABOUTME: Handles verification handshake, signature checks, dedupe, and dispatch

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/charlabs/charla/internal/dedupe"
	"github.com/charlabs/charla/internal/whatsapp"
)

// ReplyProcessingFailure is sent when the reply cycle fails after the
// message was accepted. The user always gets a reply, never a raw error.
const ReplyProcessingFailure = "Lo siento, no he podido procesar tu mensaje. Inténtalo de nuevo en unos minutos."

// cycleTimeout bounds one detached message-handling cycle
const cycleTimeout = 3 * time.Minute

// dedupeTTL and dedupeSize bound the webhook redelivery cache
const (
	dedupeTTL  = 10 * time.Minute
	dedupeSize = 4096
)

// Normalizer turns an inbound message into text for the orchestrator
type Normalizer interface {
	Normalize(ctx context.Context, msg whatsapp.Message) string
}

// Responder produces the assistant's reply for normalized text
type Responder interface {
	GenerateResponse(ctx context.Context, waID, text string) (string, error)
}

// TextSender delivers outbound text to a WhatsApp user
type TextSender interface {
	SendText(ctx context.Context, to, body string) error
}

// Server is the webhook HTTP server
type Server struct {
	addr        string
	verifyToken string
	appSecret   string

	dispatcher Normalizer
	responder  Responder
	sender     TextSender

	seen   *dedupe.Cache
	logger *slog.Logger
}

// New creates a webhook server
func New(addr, verifyToken, appSecret string, dispatcher Normalizer, responder Responder, sender TextSender, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:        addr,
		verifyToken: verifyToken,
		appSecret:   appSecret,
		dispatcher:  dispatcher,
		responder:   responder,
		sender:      sender,
		seen:        dedupe.New(dedupeTTL, dedupeSize),
		logger:      logger.With("component", "server"),
	}
}

// Handler returns the HTTP handler with all routes registered
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /webhook", s.handleVerify)
	mux.HandleFunc("POST /webhook", s.handleWebhook)
	return mux
}

// Run serves until the context is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("webhook server listening", "addr", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.seen.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	s.logger.Info("webhook server stopped")
	return nil
}

// handleHealth reports liveness
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

// handleVerify answers the provider's subscription handshake
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	mode := query.Get("hub.mode")
	token := query.Get("hub.verify_token")
	challenge := query.Get("hub.challenge")

	if mode != "subscribe" || token != s.verifyToken {
		s.logger.Warn("webhook verification rejected", "mode", mode)
		http.Error(w, "verification failed", http.StatusForbidden)
		return
	}

	s.logger.Info("webhook verified")
	fmt.Fprint(w, challenge)
}

// handleWebhook accepts an event, acks it, and processes any user message
// in a detached cycle. Always returning 200 for well-formed requests keeps
// the provider from hammering us with redeliveries.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "reading body", http.StatusBadRequest)
		return
	}

	if !whatsapp.VerifySignature(s.appSecret, body, r.Header.Get(whatsapp.SignatureHeader)) {
		s.logger.Warn("webhook signature mismatch")
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	var event whatsapp.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.logger.Warn("webhook body not JSON", "error", err)
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	inbound, err := event.ParseMessage()
	if err != nil {
		// Status updates and other non-message events are acked silently
		w.WriteHeader(http.StatusOK)
		return
	}

	if inbound.Message.ID != "" && s.seen.CheckAndMark(inbound.Message.ID) {
		s.logger.Debug("duplicate webhook delivery ignored", "message_id", inbound.Message.ID)
		w.WriteHeader(http.StatusOK)
		return
	}

	go s.processMessage(inbound)

	w.WriteHeader(http.StatusOK)
}

// processMessage runs one full reply cycle for an inbound message
func (s *Server) processMessage(inbound *whatsapp.InboundMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
	defer cancel()

	logger := s.logger.With(
		"request_id", uuid.New().String(),
		"wa_id", inbound.WaID,
		"message_id", inbound.Message.ID,
		"kind", inbound.Message.Type,
	)

	text := s.dispatcher.Normalize(ctx, inbound.Message)
	logger.Debug("message normalized", "chars", len(text))

	reply, err := s.responder.GenerateResponse(ctx, inbound.WaID, text)
	if err != nil {
		logger.Error("reply cycle failed", "error", err)
		reply = ReplyProcessingFailure
	}

	styled := whatsapp.StyleReply(reply)
	if err := s.sender.SendText(ctx, inbound.WaID, styled); err != nil {
		logger.Error("reply delivery failed", "error", err)
		return
	}

	logger.Info("reply delivered", "chars", len(styled))
}
