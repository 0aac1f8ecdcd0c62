// Package session implements the account and session store: registration,
// login, logout, token validity, and the failed-login rate limiter.
//
// STORAGE MODEL:
// Everything lives in memory — a username→user map and a set of currently
// valid tokens. The user map is additionally serialised to a single JSON
// document (users.json) so accounts survive a restart; tokens deliberately
// are not, so a restart invalidates every session at once.
//
// This is NOT a database on purpose. There are no migrations, no indexes and
// no queries — the whole state is one flat map that is small enough to
// rewrite atomically on every registration.
//
// CONCURRENCY:
// One mutex guards the user map, the token set and the rate limiter
// together. Login, register and logout each take the lock once and perform
// their whole read-modify-write under it, so interleaved requests can never
// observe a half-applied mutation.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sakif/mini-ide/internal/apperror"
	"github.com/sakif/mini-ide/internal/auth"
	"github.com/sakif/mini-ide/internal/model"
)

const usersFile = "users.json"

// Config holds the tunables of the store.
type Config struct {
	// DataDir is where users.json lives. Empty disables persistence —
	// accounts then only live as long as the process.
	DataDir string
	// RateMax is the number of failed logins per (client, username) pair
	// tolerated within RateWindow before further attempts are rejected.
	RateMax int
	// RateWindow is the sliding window for RateMax.
	RateWindow time.Duration
}

// DefaultConfig returns the stock login rate limits.
func DefaultConfig() Config {
	return Config{
		RateMax:    5,
		RateWindow: 60 * time.Second,
	}
}

// Store owns user records and the valid-token set.
type Store struct {
	mu      sync.Mutex
	users   map[string]model.User
	valid   map[string]string // token → username it was issued to
	limiter *rateLimiter

	cfg       Config
	issuer    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// Credentials is returned by Register and Login — the token the client must
// present on gated calls, echoed together with the username.
type Credentials struct {
	Token    string
	Username string
}

// New creates a Store and loads any previously persisted users.
func New(cfg Config, issuer *auth.TokenService, passwords *auth.PasswordService, logger *slog.Logger) (*Store, error) {
	if cfg.RateMax <= 0 {
		cfg.RateMax = 5
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = 60 * time.Second
	}

	s := &Store{
		users:     make(map[string]model.User),
		valid:     make(map[string]string),
		limiter:   newRateLimiter(cfg.RateMax, cfg.RateWindow),
		cfg:       cfg,
		issuer:    issuer,
		passwords: passwords,
		logger:    logger,
	}

	if cfg.DataDir != "" {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("session: creating data dir: %w", err)
		}
		if err := s.load(); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Register creates a new account and logs it in.
//
// The user record is persisted BEFORE the call succeeds: if writing
// users.json fails, the in-memory record is rolled back and the error is
// returned — registration must not appear to succeed while risking silent
// loss on the next restart.
func (s *Store) Register(username, password string) (*Credentials, error) {
	if username == "" || password == "" {
		return nil, apperror.ValidationFailed("username", "username and password are required")
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[username]; exists {
		return nil, apperror.Conflict("user", username)
	}

	s.users[username] = model.User{
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}

	if err := s.persistLocked(); err != nil {
		delete(s.users, username) // roll back — nothing happened
		return nil, fmt.Errorf("session: persisting user %s: %w", username, err)
	}

	s.logger.Info("user registered", slog.String("username", username))

	return s.issueLocked(username)
}

// Login checks credentials and issues a fresh token.
//
// The rate limiter runs FIRST: once a (client, username) pair is over the
// limit, the attempt is rejected without even looking at the password —
// otherwise the limiter would leak whether a guess was correct.
func (s *Store) Login(username, password, clientAddr string) (*Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := clientAddr + "|" + username

	if s.limiter.tooMany(key) {
		s.logger.Warn("login rate limited",
			slog.String("username", username),
			slog.String("client", clientAddr),
		)
		return nil, apperror.RateLimited("too many failed login attempts, try again later")
	}

	user, exists := s.users[username]
	if !exists || s.passwords.Verify(user.PasswordHash, password) != nil {
		s.limiter.record(key)
		return nil, apperror.Unauthorized("invalid username or password")
	}

	s.limiter.clear(key)
	s.logger.Info("user logged in", slog.String("username", username))

	return s.issueLocked(username)
}

// Logout removes the token from the valid set. It is idempotent: revoking a
// token that is absent, expired or plain garbage succeeds silently.
func (s *Store) Logout(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.valid, token)
}

// IsValid reports whether the token is currently a live session. Membership
// in the valid set is the sole authorization fact — the signature check in
// auth.TokenService is only a cheap pre-filter for the handlers that want it.
func (s *Store) IsValid(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.valid[token]
	return ok
}

// issueLocked generates a token, adds it to the valid set and builds the
// Credentials. Callers hold s.mu.
func (s *Store) issueLocked(username string) (*Credentials, error) {
	token, err := s.issuer.Generate(username)
	if err != nil {
		return nil, fmt.Errorf("session: issuing token for %s: %w", username, err)
	}
	s.valid[token] = username
	return &Credentials{Token: token, Username: username}, nil
}

// storedUser is the on-disk shape of one account. A separate struct from
// model.User because the hash must be serialised here (model.User hides it
// from JSON) and the wire format of the data file should not silently change
// when the model grows fields.
type storedUser struct {
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

// persistLocked rewrites users.json atomically: write to a temp file in the
// same directory, then rename over the target. A crash mid-write leaves the
// previous document intact. Callers hold s.mu.
func (s *Store) persistLocked() error {
	if s.cfg.DataDir == "" {
		return nil
	}

	doc := make(map[string]storedUser, len(s.users))
	for name, u := range s.users {
		doc[name] = storedUser{PasswordHash: u.PasswordHash, CreatedAt: u.CreatedAt}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding users: %w", err)
	}

	target := filepath.Join(s.cfg.DataDir, usersFile)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing users file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing users file: %w", err)
	}
	return nil
}

// load reads users.json into memory. A missing file is a fresh start, not an
// error.
func (s *Store) load() error {
	data, err := os.ReadFile(filepath.Join(s.cfg.DataDir, usersFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("session: reading users file: %w", err)
	}

	var doc map[string]storedUser
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("session: decoding users file: %w", err)
	}

	for name, u := range doc {
		s.users[name] = model.User{
			Username:     name,
			PasswordHash: u.PasswordHash,
			CreatedAt:    u.CreatedAt,
		}
	}

	s.logger.Info("users loaded", slog.Int("count", len(s.users)))
	return nil
}
