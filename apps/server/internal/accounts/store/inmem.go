package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tilsley/stockroom/apps/server/internal/accounts"
	"github.com/tilsley/stockroom/pkg/api"
)

// Compile-time checks: *MemStore implements every accounts store.
var (
	_ accounts.UserStore    = (*MemStore)(nil)
	_ accounts.ProfileStore = (*MemStore)(nil)
	_ accounts.SessionStore = (*MemStore)(nil)
)

// MemStore holds users, profiles and sessions in memory. Used by tests.
type MemStore struct {
	mu       sync.Mutex
	users    map[string]accounts.User
	profiles map[string]api.Profile
	sessions map[string]accounts.Session
	now      func() time.Time
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		users:    make(map[string]accounts.User),
		profiles: make(map[string]api.Profile),
		sessions: make(map[string]accounts.Session),
		now:      time.Now,
	}
}

// SetClock replaces the time source used to expire sessions.
func (s *MemStore) SetClock(now func() time.Time) { s.now = now }

// CreateUser stores u and its profile unless the email is taken.
func (s *MemStore) CreateUser(_ context.Context, u accounts.User, profile api.ProfileUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return accounts.EmailTakenError{Email: u.Email}
		}
	}
	s.users[u.ID] = u
	s.mergeProfileLocked(u.ID, profile, u.CreatedAt)
	return nil
}

// GetUser returns the user, or nil when it does not exist.
func (s *MemStore) GetUser(_ context.Context, id string) (*accounts.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil //nolint:nilnil // caller checks nil value to detect "not found"
	}
	return &u, nil
}

// GetUserByEmail returns the user with email, or nil.
func (s *MemStore) GetUserByEmail(_ context.Context, email string) (*accounts.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil //nolint:nilnil // caller checks nil value to detect "not found"
}

// ListUsers returns every user ordered by email.
func (s *MemStore) ListUsers(_ context.Context) ([]accounts.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]accounts.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

// SetDisabled flips the disabled flag of a stored user.
func (s *MemStore) SetDisabled(id string, disabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.Disabled = disabled
		s.users[id] = u
	}
}

// GetProfile returns the profile, or nil when none is stored.
func (s *MemStore) GetProfile(_ context.Context, userID string) (*api.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, nil //nolint:nilnil // caller checks nil value to detect "not found"
	}
	return &p, nil
}

// MergeProfile replaces the top-level fields present in patch.
func (s *MemStore) MergeProfile(_ context.Context, userID string, patch api.ProfileUpdate, now time.Time) (*api.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.mergeProfileLocked(userID, patch, now)
	return &p, nil
}

func (s *MemStore) mergeProfileLocked(userID string, patch api.ProfileUpdate, now time.Time) api.Profile {
	p := s.profiles[userID]
	p.UserId = userID
	if patch.DisplayName != nil {
		p.DisplayName = *patch.DisplayName
	}
	if patch.Company != nil {
		c := *patch.Company
		p.Company = &c
	}
	if patch.Preferences != nil {
		pr := *patch.Preferences
		p.Preferences = &pr
	}
	p.UpdatedAt = now
	s.profiles[userID] = p
	return p
}

// SaveSession stores the session.
func (s *MemStore) SaveSession(_ context.Context, sess accounts.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

// GetSession returns the session, or nil when unknown or expired.
func (s *MemStore) GetSession(_ context.Context, id string) (*accounts.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || !s.now().Before(sess.ExpiresAt) {
		return nil, nil //nolint:nilnil // caller checks nil value to detect "not found"
	}
	return &sess, nil
}

// DeleteSession removes the session.
func (s *MemStore) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}
