// Package session keeps server-side login sessions in Redis.
//
// The browser only holds an opaque session id. Everything else, including the
// sealed directory password used to mint job credentials, stays in Redis under
// portal:session:<id>. Expiry is sliding: every request that sees a live session
// pushes ExpiresAt forward by the configured timeout.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lco77/netops-portal/internal/models"
)

const (
	keyPrefix    = "portal:session:"
	DefaultTheme = "dark"

	// Records outlive ExpiresAt slightly so an expired session is still seen and
	// cleared explicitly instead of silently vanishing mid-request.
	retentionGrace = time.Minute
)

var (
	// ErrNotFound means no record exists for the id.
	ErrNotFound = errors.New("session not found")
	// ErrExpired means the record existed but was past ExpiresAt; it has been deleted.
	ErrExpired = errors.New("session expired")
)

// Session is the record stored per logged-in browser.
type Session struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	SealedPassword string    `json:"sealed_password"`
	DN             string    `json:"dn,omitempty"`
	FullName       string    `json:"full_name,omitempty"`
	Email          string    `json:"email,omitempty"`
	Roles          []string  `json:"roles"`
	Theme          string    `json:"theme"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// Profile is the caller-facing view of the session. It never carries the password.
func (s *Session) Profile() models.UserProfile {
	return models.UserProfile{
		Username:  s.Username,
		FullName:  s.FullName,
		Email:     s.Email,
		Roles:     s.Roles,
		Theme:     s.Theme,
		ExpiresAt: s.ExpiresAt.Unix(),
	}
}

// Store persists sessions in Redis.
type Store struct {
	rdb     *redis.Client
	timeout time.Duration
	now     func() time.Time
}

// NewStore creates a Store whose sessions expire after timeout of inactivity.
func NewStore(rdb *redis.Client, timeout time.Duration) *Store {
	return &Store{rdb: rdb, timeout: timeout, now: time.Now}
}

// Timeout is the inactivity window.
func (s *Store) Timeout() time.Duration {
	return s.timeout
}

// Create starts a fresh session for an authenticated user under a new id.
func (s *Store) Create(ctx context.Context, user *models.User, sealedPassword string) (*Session, error) {
	if user == nil || !user.Authenticated {
		return nil, errors.New("session: refusing to create a session for an unauthenticated user")
	}
	now := s.now().UTC()
	sess := &Session{
		ID:             uuid.NewString(),
		Username:       user.Username,
		SealedPassword: sealedPassword,
		DN:             user.DN,
		FullName:       user.FullName,
		Email:          user.Email,
		Roles:          user.Roles,
		Theme:          DefaultTheme,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.timeout),
	}
	if sess.Roles == nil {
		sess.Roles = []string{}
	}
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Regenerate replaces the session identified by oldID (if any) with a new one,
// so a pre-login id is never promoted to an authenticated session.
func (s *Store) Regenerate(ctx context.Context, oldID string, user *models.User, sealedPassword string) (*Session, error) {
	if oldID != "" {
		if err := s.Delete(ctx, oldID); err != nil {
			return nil, err
		}
	}
	return s.Create(ctx, user, sealedPassword)
}

// Get loads a session without touching its expiry.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	data, err := s.rdb.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: get: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("session: unmarshal: %w", err)
	}
	return &sess, nil
}

// Refresh loads the session and applies the sliding expiry. An expired session
// is deleted as a whole and ErrExpired is returned.
func (s *Store) Refresh(ctx context.Context, id string) (*Session, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if sess.ExpiresAt.Before(now) {
		if err := s.Delete(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrExpired
	}
	sess.ExpiresAt = now.Add(s.timeout)
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Delete removes the session. Deleting a missing session is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	return nil
}

func (s *Store) save(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session: marshal: %w", err)
	}
	if err := s.rdb.Set(ctx, keyPrefix+sess.ID, data, s.timeout+retentionGrace).Err(); err != nil {
		return fmt.Errorf("session: save: %w", err)
	}
	return nil
}
