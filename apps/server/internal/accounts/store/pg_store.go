package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tilsley/stockroom/apps/server/internal/accounts"
	"github.com/tilsley/stockroom/pkg/api"
)

// Compile-time checks: *PGStore implements the accounts stores.
var (
	_ accounts.UserStore    = (*PGStore)(nil)
	_ accounts.ProfileStore = (*PGStore)(nil)
)

// PGStore keeps users in a table and profiles as JSONB documents.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a new PGStore.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const userColumns = `id, email, role, password_hash, disabled, created_at`

// querier is satisfied by both the pool and a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CreateUser inserts u and its initial profile in one transaction. A
// duplicate email yields accounts.EmailTakenError.
func (s *PGStore) CreateUser(ctx context.Context, u accounts.User, profile api.ProfileUpdate) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
			u.ID, u.Email, string(u.Role), u.PasswordHash, u.Disabled, u.CreatedAt)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return accounts.EmailTakenError{Email: u.Email}
		}
		if err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		_, err = mergeProfile(ctx, tx, u.ID, profile, u.CreatedAt)
		return err
	})
}

// GetUser returns the user, or nil when it does not exist.
func (s *PGStore) GetUser(ctx context.Context, id string) (*accounts.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetUserByEmail returns the user, or nil when no account has the email.
func (s *PGStore) GetUserByEmail(ctx context.Context, email string) (*accounts.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// ListUsers returns every user ordered by email.
func (s *PGStore) ListUsers(ctx context.Context) ([]accounts.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []accounts.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan users: %w", err)
	}
	return out, nil
}

func scanUser(row pgx.Row) (*accounts.User, error) {
	var (
		u    accounts.User
		role string
	)
	err := row.Scan(&u.ID, &u.Email, &role, &u.PasswordHash, &u.Disabled, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil //nolint:nilnil // caller checks nil value to detect "not found"
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Role = api.Role(role)
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

// profileDoc is the JSONB shape of a profile.
type profileDoc struct {
	DisplayName string           `json:"displayName,omitempty"`
	Company     *api.CompanyInfo `json:"company,omitempty"`
	Preferences *api.Preferences `json:"preferences,omitempty"`
}

// GetProfile returns the user's profile, or nil when none is stored.
func (s *PGStore) GetProfile(ctx context.Context, userID string) (*api.Profile, error) {
	var (
		raw       []byte
		updatedAt time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT doc, updated_at FROM profiles WHERE user_id = $1`, userID,
	).Scan(&raw, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil //nolint:nilnil // caller checks nil value to detect "not found"
	}
	if err != nil {
		return nil, fmt.Errorf("get profile %q: %w", userID, err)
	}
	return decodeProfile(userID, raw, updatedAt)
}

// MergeProfile upserts the profile, merging top-level keys of patch into the
// stored document with JSONB concatenation. Absent keys keep their value.
func (s *PGStore) MergeProfile(ctx context.Context, userID string, patch api.ProfileUpdate, now time.Time) (*api.Profile, error) {
	return mergeProfile(ctx, s.pool, userID, patch, now)
}

func mergeProfile(ctx context.Context, q querier, userID string, patch api.ProfileUpdate, now time.Time) (*api.Profile, error) {
	body, err := json.Marshal(profileDoc{
		DisplayName: deref(patch.DisplayName),
		Company:     patch.Company,
		Preferences: patch.Preferences,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal profile patch: %w", err)
	}

	var (
		raw       []byte
		updatedAt time.Time
	)
	err = q.QueryRow(ctx,
		`INSERT INTO profiles (user_id, doc, updated_at) VALUES ($1, $2::jsonb, $3)
		 ON CONFLICT (user_id) DO UPDATE
		   SET doc = profiles.doc || EXCLUDED.doc, updated_at = EXCLUDED.updated_at
		 RETURNING doc, updated_at`,
		userID, string(body), now,
	).Scan(&raw, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("merge profile %q: %w", userID, err)
	}
	return decodeProfile(userID, raw, updatedAt)
}

func decodeProfile(userID string, raw []byte, updatedAt time.Time) (*api.Profile, error) {
	var doc profileDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode profile %q: %w", userID, err)
	}
	return &api.Profile{
		UserId:      userID,
		DisplayName: doc.DisplayName,
		Company:     doc.Company,
		Preferences: doc.Preferences,
		UpdatedAt:   updatedAt.UTC(),
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
