package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"wafiPortal/internal/application"
	"wafiPortal/internal/backend"
	"wafiPortal/internal/config"
	"wafiPortal/internal/database"
	"wafiPortal/internal/session"
	"wafiPortal/internal/submission"
)

const testCookieName = "wafi_session"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	return &config.Config{
		Portal: config.PortalConfig{
			UploadMaxBytes: 5 << 20,
			CacheTTL:       time.Minute,
			RateLimit:      100,
			RateWindow:     time.Minute,
			ReceiptLinkTTL: 5 * time.Minute,
		},
		Session: config.SessionConfig{
			Secret:     "0123456789abcdef0123",
			CookieName: testCookieName,
			TTL:        time.Hour,
		},
	}
}

func newTestSigner(t *testing.T) *session.CookieSigner {
	t.Helper()
	signer, err := session.NewCookieSigner("0123456789abcdef0123", time.Hour)
	if err != nil {
		t.Fatalf("NewCookieSigner() error = %v", err)
	}
	return signer
}

func sessionCookie(t *testing.T, signer *session.CookieSigner, sid string) *http.Cookie {
	t.Helper()
	token, err := signer.Issue(sid)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return &http.Cookie{Name: testCookieName, Value: token}
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func newTestReceipts(t *testing.T) *database.ReceiptStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return database.NewReceiptStore(db)
}

// testEnv is a fully routed portal over in-memory collaborators.
type testEnv struct {
	router   *gin.Engine
	signer   *session.CookieSigner
	redis    *redis.Client
	mr       *miniredis.Miniredis
	forms    *fakeForms
	receipts *database.ReceiptStore
	objects  *fakePresigner
}

func newTestEnv(t *testing.T, backendURL string) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr, client := newTestRedis(t)
	env := &testEnv{
		signer:   newTestSigner(t),
		redis:    client,
		mr:       mr,
		forms:    newFakeForms(),
		receipts: newTestReceipts(t),
		objects:  &fakePresigner{},
	}
	cfg := testConfig()
	cfg.Backend = config.BackendConfig{BaseURL: backendURL, Timeout: 5 * time.Second}

	env.router = NewRouter(discardLogger())
	RegisterRoutes(env.router, Deps{
		Config:   cfg,
		Logger:   discardLogger(),
		Redis:    client,
		Signer:   env.signer,
		Forms:    env.forms,
		Receipts: env.receipts,
		Objects:  env.objects,
		Backend:  backend.New(cfg.Backend, backend.WithLogger(discardLogger())),
	})
	return env
}

func (e *testEnv) do(t *testing.T, req *http.Request, sid string) *httptest.ResponseRecorder {
	t.Helper()
	if sid != "" {
		req.AddCookie(sessionCookie(t, e.signer, sid))
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(t *testing.T, path, sid string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, httptest.NewRequest(http.MethodGet, path, nil), sid)
}

func (e *testEnv) postForm(t *testing.T, path, sid string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(t, req, sid)
}

type fakeForms struct {
	mu        sync.Mutex
	drafts    map[string]*application.Draft
	uploads   []application.Upload
	attachErr error
	submitErr error
	submitted []*application.Draft
	response  submission.SubmitFormResponse
}

func newFakeForms() *fakeForms {
	return &fakeForms{
		drafts:   make(map[string]*application.Draft),
		response: submission.SubmitFormResponse{SubmissionID: "sub-1", ReferenceCode: "AWJ-0001"},
	}
}

func (f *fakeForms) Draft(_ context.Context, sid string) (*application.Draft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.drafts[sid]; ok {
		cp := *d
		cp.Fields.WorkExperiences = append([]submission.WorkExperience(nil), d.Fields.WorkExperiences...)
		return &cp, nil
	}
	return application.NewDraft(), nil
}

func (f *fakeForms) SaveDraft(_ context.Context, sid string, d *application.Draft) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drafts[sid] = d
	return nil
}

func (f *fakeForms) AttachCV(_ context.Context, _ string, d *application.Draft, up application.Upload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attachErr != nil {
		return f.attachErr
	}
	f.uploads = append(f.uploads, up)
	d.CV = &application.CV{FileName: up.FileName, ContentType: up.ContentType, Size: up.Size, ObjectKey: "staging/cv/x/" + up.FileName}
	return nil
}

func (f *fakeForms) RemoveCV(_ context.Context, _ string, d *application.Draft) error {
	d.CV = nil
	return nil
}

func (f *fakeForms) Submit(_ context.Context, _ string, d *application.Draft) (*submission.SubmitFormResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, d)
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	resp := f.response
	return &resp, nil
}

func (f *fakeForms) draft(sid string) *application.Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.drafts[sid]
}

type fakePresigner struct {
	mu    sync.Mutex
	calls []string
}

func (p *fakePresigner) PresignedDownloadURL(_ context.Context, objectKey, filename string, _ time.Duration) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, objectKey)
	return "https://files.example.test/" + objectKey + "?filename=" + url.QueryEscape(filename), nil
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []*asynq.Task
	err   error
}

func (q *fakeQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return nil, q.err
	}
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Type: task.Type()}, nil
}
