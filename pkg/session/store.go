package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aegis/copilot/internal/observability"
	"github.com/aegis/copilot/pkg/prompt"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	// ErrSessionNotFound is returned for unknown session ids
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidHistory is returned when an initial history does not start with a system message
	ErrInvalidHistory = errors.New("initial history must start with a system message")
)

// Role is the author of a message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message represents a single conversation entry
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is a read-only snapshot of a stored session
type Session struct {
	ID        string        `json:"id"`
	Domain    prompt.Domain `json:"domain"`
	History   []Message     `json:"history"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Info is the metadata retention policies decide on
type Info struct {
	ID           string
	Domain       prompt.Domain
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
}

type record struct {
	domain    prompt.Domain
	messages  []Message
	createdAt time.Time
	updatedAt time.Time
}

func (r *record) info(id string) Info {
	return Info{
		ID:           id,
		Domain:       r.domain,
		CreatedAt:    r.createdAt,
		UpdatedAt:    r.updatedAt,
		MessageCount: len(r.messages),
	}
}

// Store owns every session record. All access is copy-out.
type Store struct {
	mu        sync.RWMutex
	sessions  map[string]*record
	retention RetentionPolicy
	now       func() time.Time
	newID     func() string
}

// NewStore creates an empty store. A nil policy means KeepForever.
func NewStore(retention RetentionPolicy) *Store {
	observability.EnsureRegistered()

	if retention == nil {
		retention = KeepForever{}
	}

	return &Store{
		sessions:  make(map[string]*record),
		retention: retention,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Retention returns the configured retention policy
func (s *Store) Retention() RetentionPolicy {
	return s.retention
}

// Create stores a new session with a copy of history and returns its id
func (s *Store) Create(history []Message, domain prompt.Domain) (string, error) {
	if len(history) == 0 || history[0].Role != RoleSystem {
		return "", ErrInvalidHistory
	}
	for i, msg := range history {
		if !msg.Role.Valid() {
			return "", fmt.Errorf("message %d: invalid role %q", i, msg.Role)
		}
	}

	now := s.now()
	messages := make([]Message, len(history))
	copy(messages, history)
	for i := range messages {
		if messages[i].Timestamp.IsZero() {
			messages[i].Timestamp = now
		}
	}

	s.mu.Lock()
	id := s.newID()
	for {
		if _, exists := s.sessions[id]; !exists {
			break
		}
		id = s.newID()
	}
	s.sessions[id] = &record{
		domain:    domain,
		messages:  messages,
		createdAt: now,
		updatedAt: now,
	}
	count := len(s.sessions)
	s.mu.Unlock()

	observability.RecordSessionCreated(domain.String())
	observability.SetActiveSessions(count)

	log.Info().
		Str("session_id", id).
		Str("domain", domain.String()).
		Int("messages", len(messages)).
		Msg("Session created")

	return id, nil
}

// Append adds one message to the end of a session's history
func (s *Store) Append(id string, role Role, content string) error {
	if !role.Valid() {
		return fmt.Errorf("invalid role %q", role)
	}

	now := s.now()

	s.mu.Lock()
	rec, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	rec.messages = append(rec.messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: now,
	})
	rec.updatedAt = now
	length := len(rec.messages)
	s.mu.Unlock()

	observability.RecordMessageAppended(string(role))

	log.Debug().
		Str("session_id", id).
		Str("role", string(role)).
		Int("messages", length).
		Msg("Message appended")

	return nil
}

// ReadAll returns a copy of a session's history
func (s *Store) ReadAll(id string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}

	messages := make([]Message, len(rec.messages))
	copy(messages, rec.messages)
	return messages, nil
}

// Get returns a snapshot of a session including its metadata
func (s *Store) Get(id string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}

	messages := make([]Message, len(rec.messages))
	copy(messages, rec.messages)

	return Session{
		ID:        id,
		Domain:    rec.domain,
		History:   messages,
		CreatedAt: rec.createdAt,
		UpdatedAt: rec.updatedAt,
	}, nil
}

// Exists reports whether a session id is known
func (s *Store) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.sessions[id]
	return ok
}

// Len returns the number of live sessions
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}

// IDs returns all live session ids in sorted order
func (s *Store) IDs() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Evict removes every session the retention policy reports as expired at now
// and returns the removed ids.
func (s *Store) Evict(now time.Time) []string {
	s.mu.Lock()
	var removed []string
	for id, rec := range s.sessions {
		if s.retention.Expired(rec.info(id), now) {
			delete(s.sessions, id)
			removed = append(removed, id)
		}
	}
	count := len(s.sessions)
	s.mu.Unlock()

	if len(removed) > 0 {
		sort.Strings(removed)
		observability.RecordSessionsEvicted(len(removed))
		observability.SetActiveSessions(count)

		log.Info().
			Int("evicted", len(removed)).
			Int("remaining", count).
			Str("policy", s.retention.Name()).
			Msg("Evicted expired sessions")
	}

	return removed
}
