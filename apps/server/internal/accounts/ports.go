package accounts

import (
	"context"
	"time"

	"github.com/tilsley/stockroom/pkg/api"
)

// User is a stored account, including its password hash.
type User struct {
	ID           string
	Email        string
	Role         api.Role
	PasswordHash string
	Disabled     bool
	CreatedAt    time.Time
}

// API returns the public view of the user.
func (u User) API() api.User {
	return api.User{Id: u.ID, Email: u.Email, Role: u.Role, Disabled: u.Disabled, CreatedAt: u.CreatedAt}
}

// Session is a signed-in user. Its ID is the token's jti.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Role      api.Role  `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// UserStore persists accounts. Lookups return nil, nil when nothing matches.
// CreateUser stores the user together with its initial profile; either both
// are written or neither is. It returns EmailTakenError when the email is
// already registered.
type UserStore interface {
	CreateUser(ctx context.Context, u User, profile api.ProfileUpdate) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
}

// ProfileStore keeps one profile document per user. MergeProfile applies
// the non-nil fields of patch over the stored document, creating it when
// missing, and returns the result. GetProfile returns nil, nil when the user
// has no profile yet.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*api.Profile, error)
	MergeProfile(ctx context.Context, userID string, patch api.ProfileUpdate, now time.Time) (*api.Profile, error)
}

// SessionStore tracks live sessions. Get returns nil, nil for an unknown or
// expired session.
type SessionStore interface {
	SaveSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	DeleteSession(ctx context.Context, id string) error
}
