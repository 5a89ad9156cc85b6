package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"wafiPortal/internal/api/middleware"
	"wafiPortal/internal/backend"
	"wafiPortal/internal/querycache"
	"wafiPortal/internal/review"
	"wafiPortal/internal/session"
	"wafiPortal/internal/submission"
	"wafiPortal/internal/validation"
)

const adminSessionKey = "adminSession"

const (
	msgInvalidStatus = "يرجى اختيار حالة صالحة"
	msgStatusFailed  = "تعذر تحديث الحالة. يرجى المحاولة مرة أخرى."
)

// AdminHandler serves the administrator pages. Each request rebuilds the
// session context from the browser's redis hash.
type AdminHandler struct {
	client     *backend.Client
	redis      redis.Cmdable
	pages      pages
	sessionTTL time.Duration
	cacheTTL   time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// NewAdminHandler builds the handler.
func NewAdminHandler(client *backend.Client, redisClient redis.Cmdable, p pages, sessionTTL, cacheTTL time.Duration, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{
		client:     client,
		redis:      redisClient,
		pages:      p,
		sessionTTL: sessionTTL,
		cacheTTL:   cacheTTL,
		logger:     logger,
		now:        time.Now,
	}
}

// adminSession is everything one admin request works with.
type adminSession struct {
	state *session.Context
	conn  *backend.Conn
	cache *querycache.Cache
	log   *slog.Logger
}

func (h *AdminHandler) open(c *gin.Context) (*adminSession, error) {
	if v, ok := c.Get(adminSessionKey); ok {
		return v.(*adminSession), nil
	}
	sid := middleware.GetSessionID(c)
	log := middleware.LoggerFromContext(c)
	store := session.NewRedisStore(h.redis, sid, h.sessionTTL)
	conn := h.client.Bind(session.Tokens{Store: store})
	state := session.NewContext(store, conn, log)
	if err := state.Init(c.Request.Context()); err != nil {
		return nil, err
	}
	s := &adminSession{
		state: state,
		conn:  conn,
		cache: querycache.New(h.redis, sid, h.cacheTTL),
		log:   log,
	}
	c.Set(adminSessionKey, s)
	return s, nil
}

func (h *AdminHandler) session(c *gin.Context) *adminSession {
	s, _ := h.open(c)
	return s
}

// RequireAdmin sends anonymous visitors to the login page.
func (h *AdminHandler) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := h.open(c)
		if err != nil {
			middleware.LoggerFromContext(c).Error("restore admin session failed", slog.Any("error", err))
			showMessage(h.pages, c, http.StatusInternalServerError, "خطأ", msgGenericError, "/admin/login", "تسجيل الدخول")
			c.Abort()
			return
		}
		if !s.state.IsLoggedIn() {
			redirect(c, "/admin/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

// backendFailed renders a backend error. An unrecoverable 401 has already
// cleared the tokens, so the admin is sent back to the login page.
func (h *AdminHandler) backendFailed(c *gin.Context, s *adminSession, err error, backURL string) {
	if errors.Is(err, backend.ErrSessionExpired) {
		s.log.Info("admin session expired")
		redirect(c, "/admin/login?expired=1")
		return
	}
	s.log.Error("backend call failed", slog.Any("error", err))
	showMessage(h.pages, c, http.StatusBadGateway, "خطأ", msgGenericError, backURL, "المحاولة مرة أخرى")
}

type loginPage struct {
	basePage
	Username string
	Errors   validation.FieldErrors
}

func (h *AdminHandler) renderLogin(c *gin.Context, status int, username, notice string, errs validation.FieldErrors) {
	if errs == nil {
		errs = validation.FieldErrors{}
	}
	h.pages.render(c, status, "login", loginPage{
		basePage: basePage{Title: "تسجيل الدخول", Notice: notice},
		Username: username,
		Errors:   errs,
	})
}

// LoginForm shows the login page, or the dashboard to a logged-in admin.
func (h *AdminHandler) LoginForm(c *gin.Context) {
	s, err := h.open(c)
	if err == nil && s.state.IsLoggedIn() {
		redirect(c, "/admin/dashboard")
		return
	}
	notice := ""
	if c.Query("expired") == "1" {
		notice = msgSessionExpiry
	}
	h.renderLogin(c, http.StatusOK, "", notice, nil)
}

// Login exchanges the posted credentials for a backend session.
func (h *AdminHandler) Login(c *gin.Context) {
	s, err := h.open(c)
	if err != nil {
		middleware.LoggerFromContext(c).Error("restore admin session failed", slog.Any("error", err))
		h.renderLogin(c, http.StatusInternalServerError, "", msgGenericError, nil)
		return
	}
	creds := submission.LoginCredentials{
		Username: c.PostForm("username"),
		Password: c.PostForm("password"),
	}

	err = s.state.Login(c.Request.Context(), creds)
	if err == nil {
		s.log.Info("admin logged in", slog.String("username", strings.TrimSpace(creds.Username)))
		redirect(c, "/admin/dashboard")
		return
	}
	if fieldErrs, ok := validation.AsFieldErrors(err); ok {
		h.renderLogin(c, http.StatusUnprocessableEntity, creds.Username, "", fieldErrs)
		return
	}
	if backend.IsUnauthorized(err) {
		s.log.Info("admin login rejected", slog.String("username", strings.TrimSpace(creds.Username)))
		h.renderLogin(c, http.StatusUnauthorized, creds.Username, msgBadLogin, nil)
		return
	}
	s.log.Error("admin login failed", slog.Any("error", err))
	h.renderLogin(c, http.StatusBadGateway, creds.Username, msgGenericError, nil)
}

// Logout ends the session. Local state is cleared even if the backend call
// fails.
func (h *AdminHandler) Logout(c *gin.Context) {
	s, err := h.open(c)
	if err != nil {
		middleware.LoggerFromContext(c).Error("restore admin session failed", slog.Any("error", err))
		redirect(c, "/admin/login")
		return
	}
	ctx := c.Request.Context()
	if err := s.state.Logout(ctx); err != nil {
		s.log.Warn("admin logout incomplete", slog.Any("error", err))
	}
	if err := s.cache.InvalidatePrefix(ctx, ""); err != nil {
		s.log.Warn("drop admin query cache", slog.Any("error", err))
	}
	redirect(c, "/admin/login")
}

type dashboardPage struct {
	basePage
	Stats review.Stats
}

// Dashboard shows submission counters.
func (h *AdminHandler) Dashboard(c *gin.Context) {
	s := h.session(c)
	stats, err := review.LoadStats(c.Request.Context(), s.conn, s.cache, h.now())
	if err != nil {
		h.backendFailed(c, s, err, "/admin/dashboard")
		return
	}
	h.pages.render(c, http.StatusOK, "dashboard", dashboardPage{
		basePage: basePage{Title: "لوحة التحكم", User: s.state.User()},
		Stats:    stats,
	})
}

type listPage struct {
	basePage
	Filter        review.Filter
	StatusOptions []option
	Page          *review.Page
	Query         url.Values
}

// List shows one filtered page of submissions.
func (h *AdminHandler) List(c *gin.Context) {
	s := h.session(c)
	f := review.FilterFromQuery(c.Request.URL.Query())
	view := review.NewListView(s.conn, s.cache, review.WithFilter(f))
	defer view.Close()

	page, err := view.Load(c.Request.Context())
	if err != nil {
		h.backendFailed(c, s, err, "/admin/applications")
		return
	}
	h.pages.render(c, http.StatusOK, "applications", listPage{
		basePage:      basePage{Title: "طلبات التوظيف", User: s.state.User()},
		Filter:        page.Filter,
		StatusOptions: statusOptions(page.Filter.Status),
		Page:          page,
		Query:         page.Filter.Values(),
	})
}

type detailPage struct {
	basePage
	ID            string
	Detail        *submission.Detail
	MaritalText   string
	Editing       bool
	Draft         submission.UpdateStatusRequest
	StatusOptions []option
}

func (h *AdminHandler) renderDetail(c *gin.Context, status int, s *adminSession, id string, view *review.DetailView, notice, flash string) {
	detail := view.Detail()
	editing := view.Mode() == review.ModeEditing
	draft := view.Draft()
	selected := draft.Status
	if !editing && detail != nil {
		selected = detail.Status
	}
	page := detailPage{
		basePage:      basePage{Title: "تفاصيل الطلب", User: s.state.User(), Notice: notice, Flash: flash},
		ID:            id,
		Detail:        detail,
		Editing:       editing,
		Draft:         draft,
		StatusOptions: statusOptions(selected),
	}
	if detail != nil {
		page.MaritalText = submission.MaritalStatus(detail.FormData.MaritalStatus).Text()
	}
	h.pages.render(c, status, "application", page)
}

// loadDetail fetches submission id, rendering the error page itself on
// failure.
func (h *AdminHandler) loadDetail(c *gin.Context, s *adminSession, id string) (*review.DetailView, bool) {
	view := review.NewDetailView(id, s.conn, s.cache, s.log)
	if _, err := view.Load(c.Request.Context()); err != nil {
		if errors.Is(err, review.ErrNotFound) {
			showMessage(h.pages, c, http.StatusNotFound, "غير موجود", msgNotFound, "/admin/applications", "العودة إلى الطلبات")
			return nil, false
		}
		h.backendFailed(c, s, err, "/admin/applications")
		return nil, false
	}
	return view, true
}

// Detail shows one submission; ?edit=1 opens the status editor.
func (h *AdminHandler) Detail(c *gin.Context) {
	s := h.session(c)
	id := c.Param("id")
	view, ok := h.loadDetail(c, s, id)
	if !ok {
		return
	}
	if c.Query("edit") == "1" {
		_ = view.StartEdit()
	}
	flash := ""
	if c.Query("saved") == "1" {
		flash = msgStatusSaved
	}
	h.renderDetail(c, http.StatusOK, s, id, view, "", flash)
}

// UpdateStatus saves the posted status and notes.
func (h *AdminHandler) UpdateStatus(c *gin.Context) {
	s := h.session(c)
	id := c.Param("id")
	view, ok := h.loadDetail(c, s, id)
	if !ok {
		return
	}
	if err := view.StartEdit(); err != nil {
		h.backendFailed(c, s, err, "/admin/applications/"+id)
		return
	}

	notes := strings.TrimSpace(c.PostForm("adminNotes"))
	status, err := submission.ParseStatus(c.PostForm("status"))
	if err != nil {
		view.SetDraft(submission.StatusUnknown, notes)
		h.renderDetail(c, http.StatusUnprocessableEntity, s, id, view, msgInvalidStatus, "")
		return
	}
	view.SetDraft(status, notes)

	if _, err := view.Save(c.Request.Context()); err != nil {
		if errors.Is(err, backend.ErrSessionExpired) {
			h.backendFailed(c, s, err, "")
			return
		}
		if errors.Is(err, review.ErrInvalidStatus) {
			h.renderDetail(c, http.StatusUnprocessableEntity, s, id, view, msgInvalidStatus, "")
			return
		}
		s.log.Error("update status failed", slog.String("id", id), slog.Any("error", err))
		h.renderDetail(c, http.StatusBadGateway, s, id, view, msgStatusFailed, "")
		return
	}
	s.log.Info("submission status updated", slog.String("id", id), slog.String("status", status.String()))
	redirect(c, "/admin/applications/"+id+"?saved=1")
}

func statusOptions(selected submission.Status) []option {
	out := make([]option, 0, len(submission.Statuses))
	for _, st := range submission.Statuses {
		out = append(out, option{Value: strconv.Itoa(int(st)), Text: st.Text(), Selected: st == selected})
	}
	return out
}
