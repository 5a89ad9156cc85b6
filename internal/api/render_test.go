package api

import (
	"net/url"
	"testing"
)

func TestLoadPagesParsesEveryPage(t *testing.T) {
	p, err := loadPages()
	if err != nil {
		t.Fatalf("loadPages() error = %v", err)
	}
	for name := range pageFiles {
		if p[name] == nil || p[name].Lookup("layout") == nil || p[name].Lookup("content") == nil {
			t.Fatalf("page %q is missing the layout or its content", name)
		}
	}
}

func TestSafeImageURL(t *testing.T) {
	tests := map[string]string{
		"data:image/png;base64,AAAA":  "data:image/png;base64,AAAA",
		"data:image/jpeg;base64,AAAA": "data:image/jpeg;base64,AAAA",
		"https://cdn.example.com/a":   "https://cdn.example.com/a",
		"data:text/html;base64,AAAA":  "",
		"javascript:alert(1)":         "",
		"data:image/png;base64,":      "",
	}
	for in, want := range tests {
		if got := string(safeImageURL(in)); got != want {
			t.Errorf("safeImageURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPageURLKeepsFilter(t *testing.T) {
	pageURL := templateFuncs["pageURL"].(func(string, url.Values, int) string)
	got := pageURL("/admin/applications", url.Values{"status": {"3"}, "page": {"1"}}, 2)
	if got != "/admin/applications?page=2&status=3" {
		t.Fatalf("pageURL = %q", got)
	}
}
