// Package backend is the HTTP client of the submissions REST API. It attaches
// the bearer token of the current session and transparently refreshes it once
// when the backend answers 401.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"wafiPortal/internal/config"
	"wafiPortal/internal/metrics"
)

const (
	pathSubmit  = "/submissions/submit/job-application"
	pathLogin   = "/auth/login"
	pathRefresh = "/auth/refresh"
	pathLogout  = "/auth/logout"
	pathList    = "/submissions"

	correlationHeader = "X-Correlation-ID"
)

// TokenStore is the persisted auth state of one browser session.
type TokenStore interface {
	AccessToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) (string, error)
	SetAccessToken(ctx context.Context, token string) error
	ClearAuth(ctx context.Context) error
}

// Client holds what is shared between sessions: the HTTP clients and the
// in-flight refresh guard. Use Bind to obtain a Conn for one session.
type Client struct {
	baseURL string
	http    *http.Client
	bare    *http.Client
	logger  *slog.Logger
	refresh singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for API calls. The refresh
// call keeps its own client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for refresh events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New builds a client for the backend described by cfg.
func New(cfg config.BackendConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		bare:    &http.Client{Timeout: timeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Bind returns a connection acting on behalf of the session whose tokens are
// kept in tokens. A nil store makes anonymous calls.
func (c *Client) Bind(tokens TokenStore) *Conn {
	return &Conn{client: c, tokens: tokens}
}

type correlationKey struct{}

// WithCorrelationID makes outgoing requests carry id in X-Correlation-ID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the id set by WithCorrelationID, or "".
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// Conn is a Client bound to one session's tokens.
type Conn struct {
	client *Client
	tokens TokenStore
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
	retried     bool
}

func jsonRequest(method, path string, payload any) (*request, error) {
	req := &request{method: method, path: path}
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s body: %w", method, path, err)
		}
		req.body = body
		req.contentType = "application/json"
	}
	return req, nil
}

// do sends req and decodes a 2xx JSON body into out. A 401 triggers at most
// one refresh followed by one retry of the same request.
func (c *Conn) do(ctx context.Context, req *request, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	status, body, err := c.client.send(ctx, c.client.http, req, token)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized && !req.retried && c.tokens != nil {
		req.retried = true
		refreshToken, err := c.tokens.RefreshToken(ctx)
		if err != nil {
			return fmt.Errorf("read refresh token: %w", err)
		}
		if refreshToken != "" {
			fresh, err := c.client.refreshShared(ctx, refreshToken)
			if err != nil {
				if clearErr := c.tokens.ClearAuth(ctx); clearErr != nil {
					c.client.logger.Warn("clear auth after failed refresh", slog.Any("error", clearErr))
				}
				return fmt.Errorf("%w: %v", ErrSessionExpired, err)
			}
			if err := c.tokens.SetAccessToken(ctx, fresh); err != nil {
				return fmt.Errorf("store refreshed token: %w", err)
			}
			return c.do(ctx, req, out)
		}
	}

	if status < 200 || status > 299 {
		return newAPIError(status, body)
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", req.method, req.path, err)
	}
	return nil
}

func (c *Conn) accessToken(ctx context.Context) (string, error) {
	if c.tokens == nil {
		return "", nil
	}
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return "", fmt.Errorf("read access token: %w", err)
	}
	return token, nil
}

func (c *Client) send(ctx context.Context, hc *http.Client, req *request, token string) (int, []byte, error) {
	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return 0, nil, fmt.Errorf("create %s %s request: %w", req.method, req.path, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	if id := CorrelationID(ctx); id != "" {
		httpReq.Header.Set(correlationHeader, id)
	}

	resp, err := hc.Do(httpReq)
	if err != nil {
		metrics.ObserveBackendRequest(req.method, "error")
		return 0, nil, fmt.Errorf("send %s %s: %w", req.method, req.path, err)
	}
	defer resp.Body.Close()

	metrics.ObserveBackendRequest(req.method, strconv.Itoa(resp.StatusCode))

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read %s %s response: %w", req.method, req.path, err)
	}
	return resp.StatusCode, payload, nil
}

// refreshShared exchanges refreshToken for a new access token. Concurrent
// callers holding the same refresh token share one backend call.
func (c *Client) refreshShared(ctx context.Context, refreshToken string) (string, error) {
	v, err, shared := c.refresh.Do(refreshToken, func() (any, error) {
		return c.postRefresh(context.WithoutCancel(ctx), refreshToken)
	})
	if err != nil {
		metrics.ObserveTokenRefresh("failed")
		c.logger.Info("token refresh failed", slog.Any("error", err), slog.Bool("shared", shared))
		return "", err
	}
	metrics.ObserveTokenRefresh("ok")
	return v.(string), nil
}

// postRefresh calls the refresh endpoint on the bare client, so that a 401
// from it can never recurse into another refresh.
func (c *Client) postRefresh(ctx context.Context, refreshToken string) (string, error) {
	req, err := jsonRequest(http.MethodPost, pathRefresh, map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return "", err
	}
	status, body, err := c.send(ctx, c.bare, req, "")
	if err != nil {
		return "", err
	}
	if status < 200 || status > 299 {
		return "", newAPIError(status, body)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode refresh response: %w", err)
	}
	if out.Token == "" {
		return "", errors.New("refresh response carried no token")
	}
	return out.Token, nil
}
