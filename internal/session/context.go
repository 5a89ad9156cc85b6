package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"wafiPortal/internal/submission"
	"wafiPortal/internal/validation"
)

// Authenticator is the part of the backend the session context talks to.
type Authenticator interface {
	Login(ctx context.Context, creds submission.LoginCredentials) (*submission.AuthResponse, error)
	Logout(ctx context.Context) error
}

// Context is the admin session state of one browser. It is created per
// request (or once per console run) and is never shared globally.
type Context struct {
	store  Store
	auth   Authenticator
	logger *slog.Logger

	mu    sync.RWMutex
	user  *submission.AuthUser
	token string
}

// NewContext wires a session context. Call Init before reading state.
func NewContext(store Store, auth Authenticator, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{store: store, auth: auth, logger: logger}
}

// Init restores the logged-in state from storage. A token plus a decodable
// user record is enough; the token is not checked against the backend.
func (s *Context) Init(ctx context.Context) error {
	token, err := s.store.Get(ctx, KeyAuthToken)
	if err != nil {
		return fmt.Errorf("init session: %w", err)
	}
	rawUser, err := s.store.Get(ctx, KeyAuthUser)
	if err != nil {
		return fmt.Errorf("init session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.user, s.token = nil, ""
	if token == "" || rawUser == "" {
		return nil
	}
	var user submission.AuthUser
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		s.logger.Warn("stored auth user is not valid json", slog.Any("error", err))
		return nil
	}
	s.user, s.token = &user, token
	return nil
}

// Login validates creds, exchanges them for a session and persists the
// access token, the refresh token and the user record. Validation failures
// are returned as validation.FieldErrors.
func (s *Context) Login(ctx context.Context, creds submission.LoginCredentials) error {
	creds, fieldErrs := validation.ValidateLogin(creds)
	if fieldErrs != nil {
		return fieldErrs
	}

	resp, err := s.auth.Login(ctx, creds)
	if err != nil {
		return err
	}
	rawUser, err := json.Marshal(resp.User)
	if err != nil {
		return fmt.Errorf("encode auth user: %w", err)
	}
	for _, kv := range [][2]string{
		{KeyAuthToken, resp.Token},
		{KeyRefreshToken, resp.RefreshToken},
		{KeyAuthUser, string(rawUser)},
	} {
		if err := s.store.Set(ctx, kv[0], kv[1]); err != nil {
			return fmt.Errorf("persist %s: %w", kv[0], err)
		}
	}

	s.mu.Lock()
	user := resp.User
	s.user, s.token = &user, resp.Token
	s.mu.Unlock()
	return nil
}

// Logout invalidates the session on the backend, then clears memory and
// storage. Local state is cleared even when the backend call fails; that
// failure is only logged.
func (s *Context) Logout(ctx context.Context) error {
	var callErr error
	if s.auth != nil {
		callErr = s.auth.Logout(ctx)
		if callErr != nil {
			s.logger.Warn("backend logout failed", slog.Any("error", callErr))
		}
	}

	s.mu.Lock()
	s.user, s.token = nil, ""
	s.mu.Unlock()

	if err := ClearAuth(ctx, s.store); err != nil {
		return errors.Join(callErr, fmt.Errorf("clear session: %w", err))
	}
	return nil
}

// User returns the logged-in administrator, or nil.
func (s *Context) User() *submission.AuthUser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// IsLoggedIn reports whether a user is present.
func (s *Context) IsLoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}
