package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"wafiPortal/internal/config"
	"wafiPortal/internal/submission"
)

type memTokens struct {
	mu      sync.Mutex
	access  string
	refresh string
	user    string
	cleared int
}

func (m *memTokens) AccessToken(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.access, nil
}

func (m *memTokens) RefreshToken(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refresh, nil
}

func (m *memTokens) SetAccessToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access = token
	return nil
}

func (m *memTokens) ClearAuth(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access, m.refresh, m.user = "", "", ""
	m.cleared++
	return nil
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(config.BackendConfig{BaseURL: server.URL + "/api", Timeout: 5 * time.Second})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestRefreshOn401RetriesExactlyOnce(t *testing.T) {
	var listCalls, refreshCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/submissions/abc", func(w http.ResponseWriter, r *http.Request) {
		listCalls.Add(1)
		if r.Header.Get("Authorization") != "Bearer fresh" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": "abc", "referenceCode": "AWJ-1", "status": 2})
	})
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["refreshToken"] != "r1" {
			t.Errorf("refresh token = %q", body["refreshToken"])
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": "fresh"})
	})

	tokens := &memTokens{access: "stale", refresh: "r1", user: "{}"}
	conn := newTestClient(t, mux).Bind(tokens)

	detail, err := conn.GetSubmission(context.Background(), "abc")
	if err != nil {
		t.Fatalf("get submission: %v", err)
	}
	if detail.ReferenceCode != "AWJ-1" || detail.Status != submission.StatusUnderReview {
		t.Fatalf("unexpected detail %+v", detail)
	}
	if got := listCalls.Load(); got != 2 {
		t.Fatalf("expected original + one retry, got %d calls", got)
	}
	if got := refreshCalls.Load(); got != 1 {
		t.Fatalf("expected one refresh, got %d", got)
	}
	if tokens.access != "fresh" {
		t.Fatalf("access token not updated: %q", tokens.access)
	}
}

func TestSecond401IsReturnedWithoutAnotherRefresh(t *testing.T) {
	var refreshCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/submissions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "nope"})
	})
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		writeJSON(w, http.StatusOK, map[string]string{"token": "fresh"})
	})

	conn := newTestClient(t, mux).Bind(&memTokens{access: "a", refresh: "r"})
	_, err := conn.ListSubmissions(context.Background(), nil)
	if !IsUnauthorized(err) {
		t.Fatalf("expected 401 error, got %v", err)
	}
	if refreshCalls.Load() != 1 {
		t.Fatalf("expected exactly one refresh, got %d", refreshCalls.Load())
	}
}

func TestRefreshFailureClearsAuthAndExpiresSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/submissions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, nil)
	})
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "refresh revoked"})
	})

	tokens := &memTokens{access: "a", refresh: "r", user: "{}"}
	conn := newTestClient(t, mux).Bind(tokens)

	_, err := conn.ListSubmissions(context.Background(), nil)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if tokens.cleared != 1 || tokens.access != "" || tokens.refresh != "" || tokens.user != "" {
		t.Fatalf("expected all auth state cleared, got %+v", tokens)
	}
}

func TestNoRefreshTokenReturnsOriginal401(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/submissions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	})
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		t.Error("refresh must not be called without a refresh token")
	})

	conn := newTestClient(t, mux).Bind(&memTokens{access: "a"})
	_, err := conn.ListSubmissions(context.Background(), nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized || apiErr.Message != "unauthorized" {
		t.Fatalf("expected original 401, got %v", err)
	}
}

func TestConcurrentRefreshIsShared(t *testing.T) {
	var refreshCalls atomic.Int32
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/api/submissions", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			writeJSON(w, http.StatusUnauthorized, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": []any{}, "page": 1})
	})
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		<-release
		writeJSON(w, http.StatusOK, map[string]string{"token": "fresh"})
	})

	client := newTestClient(t, mux)
	tokens := &memTokens{access: "stale", refresh: "r"}

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Bind(tokens).ListSubmissions(context.Background(), nil)
			errs <- err
		}()
	}
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("list: %v", err)
		}
	}
	if refreshCalls.Load() != 1 {
		t.Fatalf("expected a single shared refresh, got %d", refreshCalls.Load())
	}
}

func TestListSubmissionsSendsQuery(t *testing.T) {
	var gotQuery url.Values
	mux := http.NewServeMux()
	mux.HandleFunc("/api/submissions", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		writeJSON(w, http.StatusOK, map[string]any{"items": nil, "totalCount": 0, "page": 2, "pageSize": 12})
	})

	conn := newTestClient(t, mux).Bind(nil)
	query := url.Values{"status": {"3"}, "page": {"2"}, "pageSize": {"12"}}
	res, err := conn.ListSubmissions(context.Background(), query)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if gotQuery.Encode() != query.Encode() {
		t.Fatalf("query = %s", gotQuery.Encode())
	}
	if res.Items == nil || len(res.Items) != 0 || res.Page != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestGetSubmissionNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/submissions/missing", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Submission not found"})
	})
	conn := newTestClient(t, mux).Bind(&memTokens{access: "a"})
	_, err := conn.GetSubmission(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateStatusSendsOnePut(t *testing.T) {
	var puts atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/submissions/s1/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s", r.Method)
		}
		puts.Add(1)
		var body submission.UpdateStatusRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Status != submission.StatusRejected || body.AdminNotes != "missing documents" {
			t.Errorf("body = %+v", body)
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "updated"})
	})
	conn := newTestClient(t, mux).Bind(&memTokens{access: "a"})
	msg, err := conn.UpdateStatus(context.Background(), "s1", submission.UpdateStatusRequest{Status: submission.StatusRejected, AdminNotes: "missing documents"})
	if err != nil || msg != "updated" {
		t.Fatalf("update: %q %v", msg, err)
	}
	if puts.Load() != 1 {
		t.Fatalf("expected one PUT, got %d", puts.Load())
	}
}

func TestLogoutClearsTokensEvenOnFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "boom"})
	})
	tokens := &memTokens{access: "a", refresh: "r", user: "{}"}
	conn := newTestClient(t, mux).Bind(tokens)
	if err := conn.Logout(context.Background()); err == nil {
		t.Fatal("expected logout error")
	}
	if tokens.access != "" || tokens.refresh != "" || tokens.user != "" {
		t.Fatalf("tokens not cleared: %+v", tokens)
	}
}

func TestSubmitApplicationForwardsMultipart(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/submissions/submit/job-application", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "multipart/form-data; boundary=xyz" {
			t.Errorf("content type = %s", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("anonymous submit must not carry a bearer token")
		}
		if r.Header.Get("X-Correlation-ID") != "corr-1" {
			t.Errorf("correlation id = %q", r.Header.Get("X-Correlation-ID"))
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "payload" {
			t.Errorf("body = %q", body)
		}
		writeJSON(w, http.StatusOK, map[string]string{"submissionId": "s1", "referenceCode": "AWJ-20250101-0001"})
	})
	conn := newTestClient(t, mux).Bind(nil)
	ctx := WithCorrelationID(context.Background(), "corr-1")
	res, err := conn.SubmitApplication(ctx, []byte("payload"), "multipart/form-data; boundary=xyz")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.ReferenceCode != "AWJ-20250101-0001" {
		t.Fatalf("reference = %q", res.ReferenceCode)
	}
}
