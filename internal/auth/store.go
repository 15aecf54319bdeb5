package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/jheath/partsbin/internal/store"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrUserNotFound is returned when no user matches the query.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when registering a username that is taken.
	ErrUserExists = errors.New("username already exists")
	// ErrBadCredentials is returned when a password does not match. The
	// message is identical for missing users to avoid username probing.
	ErrBadCredentials = errors.New("invalid username or password")
)

// Migrations for the auth component.
var Migrations = []store.Migration{
	{
		Version:     1,
		Description: "create users table",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE users (
					id            TEXT PRIMARY KEY,
					username      TEXT NOT NULL UNIQUE,
					password_hash TEXT NOT NULL,
					role          TEXT NOT NULL DEFAULT 'member',
					category      TEXT NOT NULL DEFAULT '',
					subteam       TEXT NOT NULL DEFAULT '',
					devices       TEXT NOT NULL DEFAULT '[]',
					last_login    DATETIME,
					created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
				)
			`)
			return err
		},
	},
}

// Store persists user accounts in SQLite.
type Store struct {
	db *store.Store
}

// NewStore creates a user store and runs its migrations.
func NewStore(ctx context.Context, db *store.Store) (*Store, error) {
	if err := db.Migrate(ctx, "auth", Migrations); err != nil {
		return nil, fmt.Errorf("migrate auth: %w", err)
	}
	return &Store{db: db}, nil
}

// CreateUser registers a new account with a bcrypt-hashed password.
func (s *Store) CreateUser(ctx context.Context, username, password string, role Role, category, subteam string) (*User, error) {
	if !role.Valid() {
		role = RoleMember
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{
		ID:       uuid.NewString(),
		Username: username,
		Role:     role,
		Category: category,
		Subteam:  subteam,
	}

	_, err = s.db.DB().ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, role, category, subteam)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, string(hash), string(u.Role), u.Category, u.Subteam,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// Authenticate checks a username/password pair and bumps last_login on
// success.
func (s *Store) Authenticate(ctx context.Context, username, password string) (*User, error) {
	row := s.db.DB().QueryRowContext(ctx, `
		SELECT id, username, password_hash, role, category, subteam, devices, last_login, created_at
		FROM users WHERE username = ?`, username)

	u, hash, err := scanUser(row)
	if errors.Is(err, ErrUserNotFound) {
		// Burn a bcrypt comparison anyway so response timing doesn't reveal
		// whether the username exists.
		_ = bcrypt.CompareHashAndPassword(
			[]byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"), []byte(password))
		return nil, ErrBadCredentials
	}
	if err != nil {
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, ErrBadCredentials
	}

	_, err = s.db.DB().ExecContext(ctx,
		"UPDATE users SET last_login = CURRENT_TIMESTAMP WHERE id = ?", u.ID)
	if err != nil {
		return nil, fmt.Errorf("update last_login: %w", err)
	}
	return u, nil
}

// GetByUsername returns a user account.
func (s *Store) GetByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.DB().QueryRowContext(ctx, `
		SELECT id, username, password_hash, role, category, subteam, devices, last_login, created_at
		FROM users WHERE username = ?`, username)
	u, _, err := scanUser(row)
	return u, err
}

// LinkDevice associates a device ID with a user so admins can see which
// benches an account signs in from. Linking an already-linked device is a
// no-op.
func (s *Store) LinkDevice(ctx context.Context, userID, deviceID string) error {
	return s.db.Tx(ctx, func(tx *sql.Tx) error {
		var raw string
		err := tx.QueryRowContext(ctx,
			"SELECT devices FROM users WHERE id = ?", userID,
		).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("query devices: %w", err)
		}

		var devices []string
		if err := json.Unmarshal([]byte(raw), &devices); err != nil {
			devices = nil
		}
		if slices.Contains(devices, deviceID) {
			return nil
		}
		devices = append(devices, deviceID)

		updated, err := json.Marshal(devices)
		if err != nil {
			return fmt.Errorf("marshal devices: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE users SET devices = ? WHERE id = ?", string(updated), userID)
		return err
	})
}

// CountUsers returns the total number of accounts. Used to decide whether
// first-run setup should grant the admin role.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := s.db.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func scanUser(row *sql.Row) (*User, string, error) {
	var (
		u         User
		hash      string
		role      string
		devices   string
		lastLogin sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Username, &hash, &role, &u.Category, &u.Subteam,
		&devices, &lastLogin, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrUserNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("scan user: %w", err)
	}

	u.Role = Role(role)
	if lastLogin.Valid {
		u.LastLogin = lastLogin.Time
	}
	if err := json.Unmarshal([]byte(devices), &u.Devices); err != nil {
		u.Devices = nil
	}
	return &u, hash, nil
}

// isUniqueViolation detects a UNIQUE constraint failure from the sqlite
// driver without depending on its error types.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}
