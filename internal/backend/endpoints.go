package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"wafiPortal/internal/submission"
)

// SubmitApplication posts a pre-built multipart body to the public submit
// endpoint.
func (c *Conn) SubmitApplication(ctx context.Context, body []byte, contentType string) (*submission.SubmitFormResponse, error) {
	req := &request{method: http.MethodPost, path: pathSubmit, body: body, contentType: contentType}
	var out submission.SubmitFormResponse
	if err := c.do(ctx, req, &out); err != nil {
		return nil, fmt.Errorf("submit application: %w", err)
	}
	return &out, nil
}

// Login exchanges credentials for a session.
func (c *Conn) Login(ctx context.Context, creds submission.LoginCredentials) (*submission.AuthResponse, error) {
	req, err := jsonRequest(http.MethodPost, pathLogin, creds)
	if err != nil {
		return nil, err
	}
	var out submission.AuthResponse
	if err := c.do(ctx, req, &out); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return &out, nil
}

// Refresh explicitly exchanges the stored refresh token for a new session.
func (c *Conn) Refresh(ctx context.Context) (*submission.AuthResponse, error) {
	if c.tokens == nil {
		return nil, errors.New("refresh: no session bound")
	}
	refreshToken, err := c.tokens.RefreshToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh: read refresh token: %w", err)
	}
	req, err := jsonRequest(http.MethodPost, pathRefresh, map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return nil, err
	}
	var out submission.AuthResponse
	if err := c.do(ctx, req, &out); err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	return &out, nil
}

// Logout invalidates the session on the backend. The bound token store is
// cleared whether or not the call succeeds.
func (c *Conn) Logout(ctx context.Context) error {
	defer func() {
		if c.tokens == nil {
			return
		}
		if err := c.tokens.ClearAuth(ctx); err != nil {
			c.client.logger.Warn("clear auth on logout", slog.Any("error", err))
		}
	}()

	req := &request{method: http.MethodPost, path: pathLogout}
	if err := c.do(ctx, req, nil); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// ListSubmissions fetches one page of submissions. query carries the already
// encoded filter; empty values must have been omitted by the caller.
func (c *Conn) ListSubmissions(ctx context.Context, query url.Values) (*submission.PaginatedResult[submission.ListItem], error) {
	req := &request{method: http.MethodGet, path: pathList, query: query}
	var out submission.PaginatedResult[submission.ListItem]
	if err := c.do(ctx, req, &out); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	if out.Items == nil {
		out.Items = []submission.ListItem{}
	}
	return &out, nil
}

// GetSubmission fetches the detail of one submission. A 404 satisfies
// errors.Is(err, ErrNotFound).
func (c *Conn) GetSubmission(ctx context.Context, id string) (*submission.Detail, error) {
	req := &request{method: http.MethodGet, path: pathList + "/" + url.PathEscape(id)}
	var out submission.Detail
	if err := c.do(ctx, req, &out); err != nil {
		return nil, fmt.Errorf("get submission %s: %w", id, err)
	}
	return &out, nil
}

// UpdateStatus changes the status (and optionally the notes) of a submission.
func (c *Conn) UpdateStatus(ctx context.Context, id string, update submission.UpdateStatusRequest) (string, error) {
	req, err := jsonRequest(http.MethodPut, pathList+"/"+url.PathEscape(id)+"/status", update)
	if err != nil {
		return "", err
	}
	var out struct {
		Message string `json:"message"`
	}
	if err := c.do(ctx, req, &out); err != nil {
		return "", fmt.Errorf("update status of %s: %w", id, err)
	}
	return out.Message, nil
}
