package handlers

import (
	"net/http"
	"strings"
	"testing"
)

func TestDocs(t *testing.T) {
	e := newTestEnv(t)
	e.r.GET("/api/docs", e.h.ServeSwaggerUI)
	e.r.GET("/api/docs/openapi.yaml", e.h.ServeOpenAPISpec)

	w := e.do(http.MethodGet, "/api/docs", "", nil)
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Header().Get("Content-Type"), "text/html") {
		t.Fatalf("docs page = %d %q", w.Code, w.Header().Get("Content-Type"))
	}
	page := w.Body.String()
	if !strings.Contains(page, "<title>Holo Search API "+Version+" reference</title>") {
		t.Errorf("title missing from page")
	}
	if !strings.Contains(page, `openapi.yaml`) {
		t.Errorf("page does not load the document")
	}

	w = e.do(http.MethodGet, "/api/docs/openapi.yaml", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("document = %d", w.Code)
	}
	for _, path := range []string{"/api/search:", "/api/v2/{path}:", "/api/statics/channelImg/{channel_id}:"} {
		if !strings.Contains(w.Body.String(), path) {
			t.Errorf("document lacks %s", path)
		}
	}
}
