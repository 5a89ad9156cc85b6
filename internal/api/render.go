package api

import (
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"

	"wafiPortal/internal/submission"
)

//go:embed templates/*.html
var templatesFS embed.FS

const layoutTemplate = "templates/layout.html"

var pageFiles = map[string]string{
	"form":         "templates/form.html",
	"confirmation": "templates/confirmation.html",
	"message":      "templates/message.html",
	"login":        "templates/admin_login.html",
	"dashboard":    "templates/admin_dashboard.html",
	"applications": "templates/admin_list.html",
	"application":  "templates/admin_detail.html",
}

var templateFuncs = template.FuncMap{
	"statusText":  func(s submission.Status) string { return s.Text() },
	"statusClass": func(s submission.Status) string { return s.StyleTag() },
	"formatTime": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Local().Format("2006-01-02 15:04")
	},
	"formatDate": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02")
	},
	"fileSize": func(n int64) string {
		switch {
		case n >= 1024*1024:
			return strconv.FormatFloat(float64(n)/(1024*1024), 'f', 1, 64) + " MB"
		case n >= 1024:
			return strconv.FormatInt(n/1024, 10) + " KB"
		default:
			return strconv.FormatInt(n, 10) + " B"
		}
	},
	"imageURL": safeImageURL,
	"add":      func(a, b int) int { return a + b },
	"pageURL": func(base string, q url.Values, page int) string {
		next := url.Values{}
		for k, v := range q {
			next[k] = v
		}
		next.Set("page", strconv.Itoa(page))
		return base + "?" + next.Encode()
	},
}

// pages holds one parsed template set per page, each sharing the layout.
type pages map[string]*template.Template

func loadPages() (pages, error) {
	out := make(pages, len(pageFiles))
	for name, file := range pageFiles {
		tmpl, err := template.New("layout.html").Funcs(templateFuncs).ParseFS(templatesFS, layoutTemplate, file)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		out[name] = tmpl
	}
	return out, nil
}

func mustLoadPages() pages {
	p, err := loadPages()
	if err != nil {
		panic(err)
	}
	return p
}

// render writes page name wrapped in the layout.
func (p pages) render(c *gin.Context, status int, name string, data any) {
	tmpl, ok := p[name]
	if !ok {
		Internal(c, "unknown page "+name)
		return
	}
	c.Render(status, render.HTML{Template: tmpl, Name: "layout", Data: data})
}

// basePage is the data shared by every page.
type basePage struct {
	Title  string
	User   *submission.AuthUser
	Notice string
	Flash  string
}

// safeImageURL lets inline PNG/JPEG data URIs and http(s) links through as
// image sources; anything else renders as an empty source.
func safeImageURL(raw string) template.URL {
	for _, prefix := range []string{"data:image/png;base64,", "data:image/jpeg;base64,"} {
		if len(raw) > len(prefix) && raw[:len(prefix)] == prefix {
			return template.URL(raw)
		}
	}
	if u, err := url.Parse(raw); err == nil && (u.Scheme == "https" || u.Scheme == "http") {
		return template.URL(raw)
	}
	return ""
}
