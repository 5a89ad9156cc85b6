package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"wafiPortal/internal/backend"
	"wafiPortal/internal/session"
)

func newSigner(t *testing.T) *session.CookieSigner {
	t.Helper()
	signer, err := session.NewCookieSigner("0123456789abcdef0123", time.Hour)
	if err != nil {
		t.Fatalf("NewCookieSigner() error = %v", err)
	}
	return signer
}

func TestCorrelationIDPropagates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CorrelationIDMiddleware())
	var fromCtx, fromGin string
	router.GET("/", func(c *gin.Context) {
		fromGin = GetCorrelationID(c)
		fromCtx = backend.CorrelationID(c.Request.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Correlation-ID", "abc-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if fromGin != "abc-123" || fromCtx != "abc-123" {
		t.Fatalf("gin=%q ctx=%q", fromGin, fromCtx)
	}
	if rec.Header().Get("X-Correlation-ID") != "abc-123" {
		t.Fatalf("response header = %q", rec.Header().Get("X-Correlation-ID"))
	}
}

func TestCorrelationIDGenerated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CorrelationIDMiddleware())
	router.GET("/", func(c *gin.Context) {})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("X-Correlation-ID") == "" {
		t.Fatal("no correlation id generated")
	}
}

func TestSessionMiddlewareIssuesAndReusesCookie(t *testing.T) {
	gin.SetMode(gin.TestMode)
	signer := newSigner(t)
	router := gin.New()
	router.Use(SessionMiddleware(signer, "wafi_session", false))
	var seen []string
	router.GET("/", func(c *gin.Context) { seen = append(seen, GetSessionID(c)) })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "wafi_session" || !cookies[0].HttpOnly {
		t.Fatalf("cookies = %+v", cookies)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if len(rec.Result().Cookies()) != 0 {
		t.Fatal("valid cookie was replaced")
	}
	if len(seen) != 2 || seen[0] == "" || seen[0] != seen[1] {
		t.Fatalf("session ids = %v", seen)
	}
}

func TestSessionMiddlewareReplacesForgedCookie(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(SessionMiddleware(newSigner(t), "wafi_session", false))
	var sid string
	router.GET("/", func(c *gin.Context) { sid = GetSessionID(c) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "wafi_session", Value: "not-a-token"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if sid == "" || len(rec.Result().Cookies()) != 1 {
		t.Fatalf("sid=%q cookies=%v", sid, rec.Result().Cookies())
	}
}

func TestSlogLoggerLevelsAndHealthSilence(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	router := gin.New()
	router.Use(CorrelationIDMiddleware(), SlogLoggerMiddleware(logger))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/boom", func(c *gin.Context) {
		if LoggerFromContext(c) == slog.Default() {
			t.Error("request logger not installed")
		}
		c.Status(http.StatusBadGateway)
	})

	for _, path := range []string{"/health", "/boom", "/missing"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	out := buf.String()
	if strings.Contains(out, "path=/health") {
		t.Errorf("health probe was logged: %s", out)
	}
	if !strings.Contains(out, "level=ERROR") || !strings.Contains(out, "path=/boom") {
		t.Errorf("5xx not logged at error: %s", out)
	}
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "path=/missing") {
		t.Errorf("404 not logged at warn: %s", out)
	}
}
