package accounts

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tilsley/stockroom/pkg/api"
)

// Service handles sign-in, sessions, users and profiles.
type Service struct {
	users    UserStore
	profiles ProfileStore
	sessions SessionStore
	tokens   *Tokens
	ttl      time.Duration
	log      *slog.Logger
	now      func() time.Time
}

// NewService creates a new Service. Sessions last ttl.
func NewService(users UserStore, profiles ProfileStore, sessions SessionStore, tokens *Tokens, ttl time.Duration, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		users:    users,
		profiles: profiles,
		sessions: sessions,
		tokens:   tokens,
		ttl:      ttl,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Login checks the credentials and opens a session.
func (s *Service) Login(ctx context.Context, email, password string) (*api.LoginResponse, error) {
	u, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("look up user: %w", err)
	}
	if u == nil || u.Disabled || !CheckPassword(u.PasswordHash, password) {
		s.log.Info("login rejected", "email", normalizeEmail(email))
		return nil, InvalidCredentialsError{}
	}

	now := s.now()
	sess := Session{
		ID:        uuid.New().String(),
		UserID:    u.ID,
		Role:      u.Role,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	token, err := s.tokens.Issue(sess, now)
	if err != nil {
		return nil, err
	}

	s.log.Info("user signed in", "userId", u.ID)
	return &api.LoginResponse{Token: token, ExpiresAt: sess.ExpiresAt, User: u.API()}, nil
}

// Authenticate resolves a bearer token to its principal. The session must
// still exist and the user must still be enabled; the role is read fresh
// from the user record.
func (s *Service) Authenticate(ctx context.Context, token string) (*Principal, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.GetSession(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess == nil || sess.UserID != claims.Subject {
		return nil, UnauthenticatedError{Reason: "session ended"}
	}
	u, err := s.users.GetUser(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u == nil || u.Disabled {
		return nil, UnauthenticatedError{Reason: "account unavailable"}
	}
	return &Principal{UserID: u.ID, Email: u.Email, Role: u.Role, SessionID: sess.ID}, nil
}

// Logout ends the principal's session.
func (s *Service) Logout(ctx context.Context, p Principal) error {
	if err := s.sessions.DeleteSession(ctx, p.SessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.log.Info("user signed out", "userId", p.UserID)
	return nil
}

// CreateUser registers an account and seeds its profile.
func (s *Service) CreateUser(ctx context.Context, req api.CreateUserRequest) (*api.User, error) {
	email := normalizeEmail(req.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, InvalidInputError{Field: "email", Reason: "is not a valid address"}
	}
	if len(req.Password) < MinPasswordLength {
		return nil, InvalidInputError{Field: "password", Reason: fmt.Sprintf("must be at least %d characters", MinPasswordLength)}
	}
	if len(req.Password) > MaxPasswordLength {
		return nil, InvalidInputError{Field: "password", Reason: fmt.Sprintf("must be at most %d bytes", MaxPasswordLength)}
	}
	if !ValidRole(req.Role) {
		return nil, InvalidInputError{Field: "role", Reason: fmt.Sprintf("%q is not a role", req.Role)}
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	u := User{
		ID:           uuid.New().String(),
		Email:        email,
		Role:         req.Role,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}

	name := strings.TrimSpace(deref(req.DisplayName))
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	if err := s.users.CreateUser(ctx, u, api.ProfileUpdate{DisplayName: &name}); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Info("user created", "userId", u.ID, "role", u.Role)
	out := u.API()
	return &out, nil
}

// ListUsers returns every account ordered by email.
func (s *Service) ListUsers(ctx context.Context) ([]api.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]api.User, 0, len(users))
	for _, u := range users {
		out = append(out, u.API())
	}
	return out, nil
}

// Me returns the user and profile behind the principal.
func (s *Service) Me(ctx context.Context, userID string) (*api.MeResponse, error) {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return nil, UserNotFoundError{ID: userID}
	}
	p, err := s.profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &api.MeResponse{User: u.API(), Profile: *p}, nil
}

// UpdateProfile merges upd into the user's profile.
func (s *Service) UpdateProfile(ctx context.Context, userID string, upd api.ProfileUpdate) (*api.Profile, error) {
	if err := validateProfile(upd); err != nil {
		return nil, err
	}
	p, err := s.profiles.MergeProfile(ctx, userID, upd, s.now())
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return p, nil
}

// CompanyInfo returns the company printed on the user's purchase orders, or
// nil when the profile has none.
func (s *Service) CompanyInfo(ctx context.Context, userID string) (*api.CompanyInfo, error) {
	p, err := s.profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return p.Company, nil
}

// Preferences returns the user's UI preferences, or nil when none are set.
func (s *Service) Preferences(ctx context.Context, userID string) (*api.Preferences, error) {
	p, err := s.profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return p.Preferences, nil
}

func (s *Service) profile(ctx context.Context, userID string) (*api.Profile, error) {
	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if p == nil {
		return &api.Profile{UserId: userID}, nil
	}
	return p, nil
}

func validateProfile(upd api.ProfileUpdate) error {
	if upd.Company != nil && strings.TrimSpace(upd.Company.Name) == "" {
		return InvalidInputError{Field: "company.name", Reason: "is required"}
	}
	if pr := upd.Preferences; pr != nil {
		// Zero leaves the limit unset.
		if pr.RecentLimit != 0 && (pr.RecentLimit < 1 || pr.RecentLimit > 100) {
			return InvalidInputError{Field: "preferences.recentLimit", Reason: "must be between 1 and 100 when set"}
		}
		if pr.Currency != "" && (len(pr.Currency) != 3 || strings.ToUpper(pr.Currency) != pr.Currency) {
			return InvalidInputError{Field: "preferences.currency", Reason: "must be a three letter ISO code"}
		}
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
