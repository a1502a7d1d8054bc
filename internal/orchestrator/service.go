// ABOUTME: Conversation orchestrator mapping user identities to assistant threads
// ABOUTME: Serializes per-identity message submission and bounded run polling

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/charlabs/charla/internal/assistant"
	"github.com/charlabs/charla/internal/store"
)

// ErrRunTimeout is returned when a run does not reach a terminal state
// within the configured run timeout.
var ErrRunTimeout = errors.New("run did not complete in time")

// RunError reports a backend-terminal run that did not complete
type RunError struct {
	Status  assistant.RunStatus
	Code    string
	Message string
}

func (e *RunError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("run ended %s: %s (%s)", e.Status, e.Message, e.Code)
	}
	return fmt.Sprintf("run ended %s", e.Status)
}

// Backend defines what the orchestrator needs from the assistant API
type Backend interface {
	CreateThread(ctx context.Context) (string, error)
	AddMessage(ctx context.Context, threadID, role, text string) error
	CreateRun(ctx context.Context, threadID, assistantID string) (string, error)
	GetRun(ctx context.Context, threadID, runID string) (*assistant.Run, error)
	ListMessages(ctx context.Context, threadID string, limit int) ([]assistant.ThreadMessage, error)
}

// SessionStore defines what the orchestrator needs from persistence
type SessionStore interface {
	GetSession(ctx context.Context, waID string) (*store.Session, error)
	CreateSession(ctx context.Context, session *store.Session) error
}

// Service drives one message-handling cycle against the assistant backend
type Service struct {
	backend     Backend
	store       SessionStore
	assistantID string

	pollInterval time.Duration
	runTimeout   time.Duration

	logger *slog.Logger

	// Per-identity locks; one user's messages are handled one at a time.
	// Entries are never removed; the map is bounded by the user population.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates an orchestrator service. Zero pollInterval and runTimeout get
// 500ms and 2m defaults.
func New(backend Backend, sessions SessionStore, assistantID string, pollInterval, runTimeout time.Duration, logger *slog.Logger) *Service {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if runTimeout <= 0 {
		runTimeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		backend:      backend,
		store:        sessions,
		assistantID:  assistantID,
		pollInterval: pollInterval,
		runTimeout:   runTimeout,
		logger:       logger.With("component", "orchestrator"),
		locks:        make(map[string]*sync.Mutex),
	}
}

// GenerateResponse submits the user's text to their conversation thread and
// returns the assistant's reply. A session is created on first contact and
// reused for every later message from the same identity.
func (s *Service) GenerateResponse(ctx context.Context, waID, text string) (string, error) {
	lock := s.lockFor(waID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.ensureSession(ctx, waID)
	if err != nil {
		return "", fmt.Errorf("resolving session: %w", err)
	}

	if err := s.backend.AddMessage(ctx, session.ThreadID, "user", text); err != nil {
		return "", fmt.Errorf("appending message: %w", err)
	}

	runID, err := s.backend.CreateRun(ctx, session.ThreadID, s.assistantID)
	if err != nil {
		return "", fmt.Errorf("triggering run: %w", err)
	}

	s.logger.Debug("run triggered", "wa_id", waID, "thread_id", session.ThreadID, "run_id", runID)

	if err := s.waitForRun(ctx, session.ThreadID, runID); err != nil {
		return "", err
	}

	messages, err := s.backend.ListMessages(ctx, session.ThreadID, 1)
	if err != nil {
		return "", fmt.Errorf("listing messages: %w", err)
	}
	if len(messages) == 0 {
		return "", fmt.Errorf("thread %s has no messages after run %s", session.ThreadID, runID)
	}

	reply := messages[0].Text()
	s.logger.Debug("reply extracted", "wa_id", waID, "run_id", runID, "chars", len(reply))
	return reply, nil
}

// lockFor returns the mutex guarding one identity, creating it on first use
func (s *Service) lockFor(waID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[waID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[waID] = lock
	}
	return lock
}

// ensureSession resolves an existing session or creates a new one.
// Creation races (another process inserting between lookup and insert)
// resolve by re-reading the winning row.
func (s *Service) ensureSession(ctx context.Context, waID string) (*store.Session, error) {
	session, err := s.store.GetSession(ctx, waID)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	threadID, err := s.backend.CreateThread(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating thread: %w", err)
	}

	session = &store.Session{
		WaID:      waID,
		ThreadID:  threadID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		if errors.Is(err, store.ErrDuplicateSession) {
			existing, lookupErr := s.store.GetSession(ctx, waID)
			if lookupErr == nil {
				s.logger.Debug("found existing session after race", "wa_id", waID, "thread_id", existing.ThreadID)
				return existing, nil
			}
			s.logger.Error("retry lookup failed after duplicate error", "wa_id", waID, "lookup_error", lookupErr)
		}
		return nil, err
	}

	s.logger.Info("session created", "wa_id", waID, "thread_id", threadID)
	return session, nil
}

// waitForRun polls the run until it completes, fails, or the deadline lapses
func (s *Service) waitForRun(ctx context.Context, threadID, runID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		run, err := s.backend.GetRun(ctx, threadID, runID)
		if err != nil {
			return fmt.Errorf("polling run: %w", err)
		}

		if run.Status == assistant.RunCompleted {
			return nil
		}
		if run.Status.Terminal() {
			runErr := &RunError{Status: run.Status}
			if run.LastError != nil {
				runErr.Code = run.LastError.Code
				runErr.Message = run.LastError.Message
			}
			return runErr
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: run %s still %s", ErrRunTimeout, runID, run.Status)
			}
			return ctx.Err()
		}
	}
}
