// Package chat manages the server-held discussion session attached to one
// evaluation result. The manager keeps the transcript locally, appends user
// messages optimistically with rollback on failure, and guarantees the
// server session is deleted exactly once no matter how teardown happens.
package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/evalmate-go-client/internal/dto"
	"github.com/noah-isme/evalmate-go-client/internal/models"
	"github.com/noah-isme/evalmate-go-client/internal/observability"
	"github.com/noah-isme/evalmate-go-client/internal/state"
	"github.com/noah-isme/evalmate-go-client/pkg/evalmate"
)

var (
	// ErrNoResult indicates Open was called before an evaluation result
	// exists. Refused locally, no network call.
	ErrNoResult = errors.New("no evaluation result to discuss")
	// ErrNoSession indicates Send, History, or Refresh was called without
	// an open session.
	ErrNoSession = errors.New("no active chat session")
	// ErrMalformedSession indicates the backend handed back a session id
	// that does not match its documented format.
	ErrMalformedSession = errors.New("malformed chat session id")
)

// Config tunes the chat exchange. Zero values fall back to the backend's
// defaults.
type Config struct {
	Temperature  float64
	MaxTokens    int
	HistoryLimit int
	SessionTTL   time.Duration
}

func (c Config) normalized() Config {
	if c.Temperature <= 0 || c.Temperature > 1 {
		c.Temperature = 0.7
	}
	if c.MaxTokens < 100 || c.MaxTokens > 4000 {
		c.MaxTokens = 1000
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 20
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = time.Hour
	}
	return c
}

// Client is the slice of the EvalMate API the manager needs.
type Client interface {
	CreateChatSession(ctx context.Context, req dto.ChatSessionCreateRequest) (dto.ChatSessionResponse, error)
	SendChatMessage(ctx context.Context, sessionID string, req dto.ChatMessageRequest) (dto.ChatMessageResponse, error)
	GetChatHistory(ctx context.Context, sessionID string, maxMessages int) (dto.ChatHistoryResponse, error)
	DeleteChatSession(ctx context.Context, sessionID string) error
}

type session struct {
	id       string
	evalRef  string
	messages []models.ChatMessage
}

// Manager owns at most one active session at a time.
type Manager interface {
	// Open creates a new server session for the current evaluation result
	// and returns its id. An earlier session is torn down first.
	Open(ctx context.Context) (string, error)
	// Send exchanges one user message for the assistant reply.
	Send(ctx context.Context, text string) (models.ChatMessage, error)
	// History returns a copy of the local transcript.
	History() []models.ChatMessage
	// Refresh replaces the local transcript with the server's.
	Refresh(ctx context.Context) error
	// Close deletes the server session, fire-and-forget. Safe to call any
	// number of times; the delete call happens at most once per session.
	Close(ctx context.Context)
	// Active reports whether a session is open.
	Active() bool
}

type manager struct {
	client   Client
	store    state.Store
	cfg      Config
	logger   zerolog.Logger
	tracer   trace.Tracer
	sessions *cache.Cache
	now      func() time.Time

	mu      sync.Mutex
	current string
}

// NewManager constructs the session manager. Session records live in a TTL
// cache mirroring the server's own expiry, so a long-idle session surfaces
// as expired locally without a round trip.
func NewManager(client Client, store state.Store, cfg Config, logger zerolog.Logger) Manager {
	cfg = cfg.normalized()
	return &manager{
		client:   client,
		store:    store,
		cfg:      cfg,
		logger:   logger.With().Str("component", "chat").Logger(),
		tracer:   otel.Tracer("github.com/noah-isme/evalmate-go-client/internal/chat"),
		sessions: cache.New(cfg.SessionTTL, 10*time.Minute),
		now:      time.Now,
	}
}

func (m *manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != ""
}

func (m *manager) Open(ctx context.Context) (string, error) {
	ctx, span := m.tracer.Start(ctx, "chat.open")
	defer span.End()

	snap := m.store.Snapshot()
	if snap.Result == nil {
		span.SetStatus(codes.Error, "no result")
		return "", ErrNoResult
	}
	rubricID, questionID, submissionID, _ := snap.SelectionIDs()
	evalRef := snap.Result.EvalReference()

	resp, err := m.client.CreateChatSession(ctx, dto.ChatSessionCreateRequest{
		EvalID:       evalRef,
		QuestionID:   questionID,
		RubricID:     rubricID,
		SubmissionID: submissionID,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return "", fmt.Errorf("open chat session: %w", err)
	}
	// the id goes straight into request paths for every later call
	if !models.ValidSessionID(resp.SessionID) {
		err := fmt.Errorf("%w: %q", ErrMalformedSession, resp.SessionID)
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed session id")
		return "", err
	}

	m.mu.Lock()
	replaced := m.current
	m.current = resp.SessionID
	m.sessions.Set(resp.SessionID, &session{id: resp.SessionID, evalRef: evalRef}, cache.DefaultExpiration)
	if replaced != "" {
		m.sessions.Delete(replaced)
	}
	m.mu.Unlock()

	// the replaced session is dead to us; delete it on the server too
	if replaced != "" {
		m.deleteSession(ctx, replaced)
	}

	span.SetAttributes(attribute.String("chat.session_id", resp.SessionID))
	m.store.Apply(state.AppendActivity(models.NewActivityMessage(models.OriginSystem,
		"Chat session opened for "+evalRef)))
	m.logger.Info().Str("session_id", resp.SessionID).Str("eval_ref", evalRef).Msg("chat session opened")
	return resp.SessionID, nil
}

func (m *manager) Send(ctx context.Context, text string) (models.ChatMessage, error) {
	ctx, span := m.tracer.Start(ctx, "chat.send")
	defer span.End()

	userMsg := models.ChatMessage{Role: models.RoleUser, Content: text, Timestamp: m.now().UTC()}

	m.mu.Lock()
	id := m.current
	if id == "" {
		m.mu.Unlock()
		return models.ChatMessage{}, ErrNoSession
	}
	rec, found := m.record(id)
	if !found {
		m.current = ""
		m.mu.Unlock()
		return models.ChatMessage{}, fmt.Errorf("%w: session idle past its lifetime", evalmate.ErrSessionExpired)
	}
	// optimistic append; rolled back if the server never accepts it
	rec.messages = append(rec.messages, userMsg)
	m.sessions.Set(id, rec, cache.DefaultExpiration)
	m.mu.Unlock()

	resp, err := m.client.SendChatMessage(ctx, id, dto.ChatMessageRequest{
		Message:     text,
		Temperature: m.cfg.Temperature,
		MaxTokens:   m.cfg.MaxTokens,
	})
	if err != nil {
		m.rollback(id, userMsg)
		if errors.Is(err, evalmate.ErrSessionExpired) {
			m.dropDeadSession(id)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		return models.ChatMessage{}, fmt.Errorf("send chat message: %w", err)
	}

	reply := dto.NewChatMessage(resp)
	m.mu.Lock()
	if rec, found := m.record(id); found {
		rec.messages = append(rec.messages, reply)
		m.sessions.Set(id, rec, cache.DefaultExpiration)
	}
	m.mu.Unlock()

	observability.ChatMessages().WithLabelValues(string(models.RoleUser)).Inc()
	observability.ChatMessages().WithLabelValues(string(models.RoleAssistant)).Inc()
	span.SetStatus(codes.Ok, "exchanged")
	return reply, nil
}

func (m *manager) History() []models.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, found := m.record(m.current)
	if !found {
		return nil
	}
	out := make([]models.ChatMessage, len(rec.messages))
	copy(out, rec.messages)
	return out
}

func (m *manager) Refresh(ctx context.Context) error {
	ctx, span := m.tracer.Start(ctx, "chat.refresh")
	defer span.End()

	m.mu.Lock()
	id := m.current
	m.mu.Unlock()
	if id == "" {
		return ErrNoSession
	}

	resp, err := m.client.GetChatHistory(ctx, id, m.cfg.HistoryLimit)
	if err != nil {
		if errors.Is(err, evalmate.ErrSessionExpired) {
			m.dropDeadSession(id)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "refresh failed")
		return fmt.Errorf("refresh chat history: %w", err)
	}

	m.mu.Lock()
	if rec, found := m.record(id); found {
		rec.messages = dto.NewChatHistory(resp)
		m.sessions.Set(id, rec, cache.DefaultExpiration)
	}
	m.mu.Unlock()

	span.SetStatus(codes.Ok, "synced")
	return nil
}

func (m *manager) Close(ctx context.Context) {
	m.mu.Lock()
	id := m.current
	m.current = ""
	if id != "" {
		m.sessions.Delete(id)
	}
	m.mu.Unlock()

	if id == "" {
		return
	}

	m.deleteSession(ctx, id)
	m.store.Apply(state.AppendActivity(models.NewActivityMessage(models.OriginSystem, "Chat session closed")))
}

// deleteSession is fire-and-forget teardown; the ephemeral server resource
// must not outlive us, but a failed delete is not worth surfacing.
func (m *manager) deleteSession(ctx context.Context, id string) {
	if err := m.client.DeleteChatSession(ctx, id); err != nil {
		m.logger.Debug().Err(err).Str("session_id", id).Msg("chat session delete failed")
		return
	}
	m.logger.Debug().Str("session_id", id).Msg("chat session deleted")
}

// rollback removes the optimistic user message, matching from the tail so
// interleaved sends only ever remove their own entry.
func (m *manager) rollback(id string, msg models.ChatMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, found := m.record(id)
	if !found {
		return
	}
	for i := len(rec.messages) - 1; i >= 0; i-- {
		if rec.messages[i] == msg {
			rec.messages = append(rec.messages[:i], rec.messages[i+1:]...)
			break
		}
	}
	m.sessions.Set(id, rec, cache.DefaultExpiration)
}

// dropDeadSession clears a session the server no longer knows so the caller
// can offer a fresh chat instead of a retry.
func (m *manager) dropDeadSession(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == id {
		m.current = ""
	}
	m.sessions.Delete(id)
	m.logger.Warn().Str("session_id", id).Msg("chat session expired on server")
}

// record looks up a cached session. Callers must hold m.mu.
func (m *manager) record(id string) (*session, bool) {
	if id == "" {
		return nil, false
	}
	if x, found := m.sessions.Get(id); found {
		return x.(*session), true
	}
	return nil, false
}
