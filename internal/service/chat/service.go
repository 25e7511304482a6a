package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/jr-studio/backend/internal/model/chat"
	"github.com/zhouzirui/jr-studio/backend/internal/model/document"
)

var (
	ErrProfileRequired = errors.New("profile id is required")
	ErrSessionNotFound = errors.New("session not found")
	ErrBusy            = errors.New("session is busy with another request")
)

// Service owns the current state snapshot of every session. Each change
// replaces the snapshot with a new one built by the chat.State methods.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]chat.Session
	states   map[string]chat.State
}

// NewService bootstraps the in-memory chat service.
func NewService() *Service {
	return &Service{
		sessions: make(map[string]chat.Session),
		states:   make(map[string]chat.State),
	}
}

// CreateSession provisions a session bound to a profile. A non-empty
// greeting becomes the first assistant turn.
func (s *Service) CreateSession(_ context.Context, profileID, greeting string) (chat.Session, error) {
	if profileID == "" {
		return chat.Session{}, ErrProfileRequired
	}

	session := chat.Session{
		ID:        uuid.NewString(),
		ProfileID: profileID,
		CreatedAt: time.Now().UTC(),
	}

	state := chat.State{Turns: make([]chat.Message, 0, 16)}
	if greeting != "" {
		state = state.Append(newMessage(session.ID, chat.RoleAssistant, greeting))
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.states[session.ID] = state
	s.mu.Unlock()

	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// Snapshot returns a copy of the session's current state.
func (s *Service) Snapshot(_ context.Context, sessionID string) (chat.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[sessionID]
	if !ok {
		return chat.State{}, ErrSessionNotFound
	}
	return state.Clone(), nil
}

// LoadTranscript returns stored turns for the provided session.
func (s *Service) LoadTranscript(ctx context.Context, sessionID string) ([]chat.Message, error) {
	state, err := s.Snapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return state.Turns, nil
}

// AppendUser records a user turn with its attachments.
func (s *Service) AppendUser(_ context.Context, sessionID, text string, attachments []chat.Attachment) (chat.Message, error) {
	msg := newMessage(sessionID, chat.RoleUser, text)
	msg.Attachments = attachments
	return s.appendMessage(msg)
}

// AppendAssistant records an assistant turn with the narration shown
// while it was produced.
func (s *Service) AppendAssistant(_ context.Context, sessionID, text string, processingSteps []string) (chat.Message, error) {
	msg := newMessage(sessionID, chat.RoleAssistant, text)
	msg.ProcessingSteps = processingSteps
	return s.appendMessage(msg)
}

// AppendSystemError records a system notice in the transcript.
func (s *Service) AppendSystemError(_ context.Context, sessionID, message string) (chat.Message, error) {
	return s.appendMessage(newMessage(sessionID, chat.RoleSystem, message))
}

// Begin marks the session busy. It fails with ErrBusy while another
// submission is outstanding.
func (s *Service) Begin(_ context.Context, sessionID string) error {
	return s.update(sessionID, func(state chat.State) (chat.State, error) {
		if state.Busy {
			return state, ErrBusy
		}
		return state.WithBusy(true).WithProgress(nil), nil
	})
}

// End clears the busy flag and the progress trace.
func (s *Service) End(_ context.Context, sessionID string) error {
	return s.update(sessionID, func(state chat.State) (chat.State, error) {
		return state.WithBusy(false).WithProgress(nil), nil
	})
}

// SetProgress replaces the progress trace.
func (s *Service) SetProgress(_ context.Context, sessionID string, labels []string) error {
	return s.update(sessionID, func(state chat.State) (chat.State, error) {
		return state.WithProgress(labels), nil
	})
}

// SetDocument replaces the session's current generated document.
func (s *Service) SetDocument(_ context.Context, sessionID string, doc document.Generated) error {
	return s.update(sessionID, func(state chat.State) (chat.State, error) {
		return state.WithDocument(&doc), nil
	})
}

func (s *Service) appendMessage(msg chat.Message) (chat.Message, error) {
	err := s.update(msg.SessionID, func(state chat.State) (chat.State, error) {
		return state.Append(msg), nil
	})
	if err != nil {
		return chat.Message{}, err
	}
	return msg, nil
}

func (s *Service) update(sessionID string, fn func(chat.State) (chat.State, error)) error {
	if sessionID == "" {
		return ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	next, err := fn(state)
	if err != nil {
		return err
	}
	s.states[sessionID] = next
	return nil
}

func newMessage(sessionID string, role chat.Role, content string) chat.Message {
	return chat.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}
