package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wolfman30/reserv/pkg/logging"
)

// ErrEmptyToken is returned by Set when no token is given.
var ErrEmptyToken = errors.New("session: empty token")

const subscriberBuffer = 4

// Store is the authentication state of one browser tab. All mutation goes
// through Set and Clear; both broadcast an Event to every subscriber.
type Store struct {
	id      string
	storage Storage
	logger  *logging.Logger

	mu  sync.RWMutex
	rec Record

	subMu   sync.Mutex
	subs    map[uint64]chan Event
	nextSub uint64
}

// Open initializes a store for id from storage. A missing record yields a
// logged-out store.
func Open(ctx context.Context, storage Storage, id string, logger *logging.Logger) (*Store, error) {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Store{
		id:      id,
		storage: storage,
		logger:  logger,
		subs:    make(map[uint64]chan Event),
	}
	rec, err := storage.Load(ctx, id)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("session: open %s: %w", id, err)
	default:
		s.rec = rec
	}
	return s, nil
}

// ID returns the tab id this store is keyed by.
func (s *Store) ID() string { return s.id }

// Token returns the bearer token, or "" when logged out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.Token
}

func (s *Store) IsLoggedIn() bool {
	return s.Token() != ""
}

func (s *Store) Role() Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.Role
}

func (s *Store) Profile() Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Profile{Email: s.rec.Email, Role: s.rec.Role}
}

// Set stores token and, when non-empty, the profile's email and role. The
// in-memory state is updated even if persisting fails; the persist error
// is returned.
func (s *Store) Set(ctx context.Context, token string, p Profile) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}

	s.mu.Lock()
	next := s.rec
	next.Token = token
	if p.Email != "" {
		next.Email = p.Email
	}
	if p.Role != RoleNone {
		next.Role = p.Role
	}
	s.rec = next
	err := s.storage.Save(ctx, s.id, next)
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("session persist failed", "session_id", s.id, "error", err)
	}
	s.broadcast()
	return err
}

// Clear drops token, email and role and broadcasts the change.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.rec = Record{}
	err := s.storage.Delete(ctx, s.id)
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("session delete failed", "session_id", s.id, "error", err)
	}
	s.broadcast()
	return err
}

// Expired reports whether the token carries an exp claim that is not after
// now. Opaque or undecodable tokens are never considered expired here; the
// upstream API remains the authority and answers 401.
func (s *Store) Expired(now time.Time) bool {
	token := s.Token()
	if token == "" {
		return false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !exp.After(now)
}

// RoleFromToken reads the "role" claim of an unverified JWT. Used when the
// login response omits the role.
func RoleFromToken(token string) Role {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return RoleNone
	}
	raw, _ := claims["role"].(string)
	return ParseRole(raw)
}

// Subscribe registers a listener. A subscriber whose buffer is full loses
// its oldest event, never the newest. The returned cancel func is
// idempotent.
func (s *Store) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

func (s *Store) broadcast() {
	ev := Event{
		SessionID: s.id,
		LoggedIn:  s.IsLoggedIn(),
		Profile:   s.Profile(),
		At:        time.Now().UTC(),
	}
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
			continue
		default:
		}
		// Full: drop the oldest so the latest state is always delivered.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}
