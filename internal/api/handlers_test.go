package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/FocuswithJustin/JuniperReader/core/content"
)

// setupContent writes a small content tree and returns its root.
func setupContent(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"translations_manifest.json": `[{"code":"amh","name":"Amharic","translations":[{"id":"amh-1962","name":"Amharic 1962","year":1962,"folder":"bible"}]}]`,
		"amh/bible/manifest.json":    `[{"name":"Genesis","abbr":"Gen","chapters":50},{"name":"Exodus","abbr":"Exod","chapters":40}]`,
		"amh/bible/json/gen.json":    `{"book":"Genesis","chapters":[{"chapter":1,"verses":[{"verse":"1","text":"In the beginning"},{"verse":"2","text":"And the earth"}]}]}`,
		"amh/broken/manifest.json":   `[{"name":"Genesis"`,
	}
	for name, data := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	return New(cfg, content.NewResolver(content.FixedRoot(setupContent(t))))
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid envelope %q: %v", w.Body.String(), err)
	}
	return resp
}

func TestHandlers_Routes(t *testing.T) {
	handler := newTestServer(t, DefaultConfig()).Handler()

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantCode   string
		wantTotal  int
	}{
		{name: "root", method: http.MethodGet, path: "/", wantStatus: http.StatusOK},
		{name: "unknown path", method: http.MethodGet, path: "/capsules", wantStatus: http.StatusNotFound, wantCode: CodeNotFound},
		{name: "health", method: http.MethodGet, path: "/health", wantStatus: http.StatusOK},
		{name: "languages", method: http.MethodGet, path: "/languages", wantStatus: http.StatusOK, wantTotal: 1},
		{name: "books", method: http.MethodGet, path: "/languages/amh/translations/bible/books", wantStatus: http.StatusOK, wantTotal: 2},
		{name: "chapter", method: http.MethodGet, path: "/languages/amh/translations/bible/books/Gen/chapters/1", wantStatus: http.StatusOK, wantTotal: 2},
		{name: "missing chapter", method: http.MethodGet, path: "/languages/amh/translations/bible/books/Gen/chapters/2", wantStatus: http.StatusNotFound, wantCode: CodeNotFound},
		{name: "missing book file", method: http.MethodGet, path: "/languages/amh/translations/bible/books/Exod/chapters/1", wantStatus: http.StatusNotFound, wantCode: CodeNotFound},
		{name: "chapter zero", method: http.MethodGet, path: "/languages/amh/translations/bible/books/Gen/chapters/0", wantStatus: http.StatusBadRequest, wantCode: CodeInvalidInput},
		{name: "chapter not a number", method: http.MethodGet, path: "/languages/amh/translations/bible/books/Gen/chapters/one", wantStatus: http.StatusBadRequest, wantCode: CodeInvalidInput},
		{name: "encoded backslash", method: http.MethodGet, path: "/languages/amh/translations/..%5C..%5Cetc/books", wantStatus: http.StatusBadRequest, wantCode: CodeInvalidInput},
		{name: "encoded control character", method: http.MethodGet, path: "/languages/amh%09/translations/bible/books/Gen/chapters/1", wantStatus: http.StatusBadRequest, wantCode: CodeInvalidInput},
		{name: "malformed manifest", method: http.MethodGet, path: "/languages/amh/translations/broken/books", wantStatus: http.StatusUnprocessableEntity, wantCode: CodeParseError},
		{name: "missing translation", method: http.MethodGet, path: "/languages/amh/translations/none/books", wantStatus: http.StatusInternalServerError, wantCode: CodeContentUnavailable},
		{name: "wrong method", method: http.MethodPost, path: "/languages", wantStatus: http.StatusMethodNotAllowed, wantCode: CodeMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body %s", w.Code, tt.wantStatus, w.Body.String())
			}
			resp := decodeEnvelope(t, w)
			if tt.wantCode != "" {
				if resp.Success || resp.Error == nil || resp.Error.Code != tt.wantCode {
					t.Errorf("envelope = %+v, want error code %s", resp, tt.wantCode)
				}
				return
			}
			if !resp.Success {
				t.Errorf("envelope = %+v, want success", resp)
			}
			if tt.wantTotal > 0 && (resp.Meta == nil || resp.Meta.Total != tt.wantTotal) {
				t.Errorf("meta = %+v, want total %d", resp.Meta, tt.wantTotal)
			}
		})
	}
}

func TestHandlers_ChapterBody(t *testing.T) {
	handler := newTestServer(t, DefaultConfig()).Handler()

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/languages/amh/translations/bible/books/Gen/chapters/1", nil))

	var resp struct {
		Success bool            `json:"success"`
		Data    []content.Verse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Data) != 2 || resp.Data[0].Text != "In the beginning" || resp.Data[1].Verse != "2" {
		t.Errorf("data = %+v", resp.Data)
	}
	if w.Header().Get("Content-Security-Policy") == "" {
		t.Error("security headers missing")
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("request ID header missing")
	}
}

func TestHandlers_ETag(t *testing.T) {
	handler := newTestServer(t, DefaultConfig()).Handler()
	path := "/languages/amh/translations/bible/books"

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	etag := w.Header().Get("ETag")
	if !strings.HasPrefix(etag, `"`) || len(etag) != 34 {
		t.Fatalf("ETag = %q, want a strong tag", etag)
	}

	// Same content, same tag.
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	if w.Header().Get("ETag") != etag {
		t.Errorf("ETag changed between identical responses: %q vs %q", etag, w.Header().Get("ETag"))
	}

	tests := []struct {
		name        string
		ifNoneMatch string
		wantStatus  int
	}{
		{name: "matching", ifNoneMatch: etag, wantStatus: http.StatusNotModified},
		{name: "in list", ifNoneMatch: `"abc", ` + etag, wantStatus: http.StatusNotModified},
		{name: "wildcard", ifNoneMatch: "*", wantStatus: http.StatusNotModified},
		{name: "stale", ifNoneMatch: `"0000"`, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			req.Header.Set("If-None-Match", tt.ifNoneMatch)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusNotModified && w.Body.Len() != 0 {
				t.Errorf("304 should have no body, got %q", w.Body.String())
			}
		})
	}
}

func TestHandlers_Health(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		s := newTestServer(t, Config{Version: "1.2.3"})
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		var resp struct {
			Data HealthInfo `json:"data"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Data.Status != "healthy" || resp.Data.Version != "1.2.3" || resp.Data.ContentRoot == "" {
			t.Errorf("health = %+v", resp.Data)
		}
	})

	t.Run("degraded", func(t *testing.T) {
		missing := filepath.Join(t.TempDir(), "missing")
		s := New(Config{}, content.NewResolver(content.FixedRoot(missing)))
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		var resp struct {
			Data HealthInfo `json:"data"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Data.Status != "degraded" {
			t.Errorf("status = %q, want degraded", resp.Data.Status)
		}
	})
}

func TestHandlers_Invoke(t *testing.T) {
	handler := newTestServer(t, DefaultConfig()).Handler()

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantOK     bool
		wantError  string
	}{
		{
			name:       "chapter content",
			body:       `{"cmd":"get_chapter_content","args":{"languageCode":"amh","translationFolder":"bible","bookAbbr":"Gen","chapterNumber":1}}`,
			wantStatus: http.StatusOK,
			wantOK:     true,
		},
		{
			name:       "translations manifest",
			body:       `{"cmd":"get_translations_manifest"}`,
			wantStatus: http.StatusOK,
			wantOK:     true,
		},
		{
			name:       "core failure",
			body:       `{"cmd":"get_chapter_content","args":{"languageCode":"amh","translationFolder":"bible","bookAbbr":"Gen","chapterNumber":9}}`,
			wantStatus: http.StatusOK,
			wantError:  "chapter 9 not found in book file for Gen",
		},
		{
			name:       "unknown command",
			body:       `{"cmd":"delete_everything"}`,
			wantStatus: http.StatusOK,
			wantError:  "command not found: delete_everything",
		},
		{
			name:       "traversal argument",
			body:       `{"cmd":"get_book_manifest","args":{"languageCode":"..","translationFolder":"bible"}}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "validation failed for languageCode",
		},
		{
			name:       "chapter zero",
			body:       `{"cmd":"get_chapter_content","args":{"languageCode":"amh","translationFolder":"bible","bookAbbr":"Gen","chapterNumber":0}}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "validation failed for chapterNumber",
		},
		{
			name:       "invalid JSON",
			body:       `{"cmd":`,
			wantStatus: http.StatusBadRequest,
			wantError:  "validation failed for body",
		},
		{
			name:       "missing command",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "validation failed for cmd",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/invoke", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body %s", w.Code, tt.wantStatus, w.Body.String())
			}

			var resp struct {
				OK    bool            `json:"ok"`
				Data  json.RawMessage `json:"data"`
				Error string          `json:"error"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.OK != tt.wantOK {
				t.Errorf("ok = %v, want %v (%s)", resp.OK, tt.wantOK, w.Body.String())
			}
			if tt.wantOK && len(resp.Data) == 0 {
				t.Error("successful response should carry data")
			}
			if tt.wantError != "" && !strings.Contains(resp.Error, tt.wantError) {
				t.Errorf("error = %q, want it to contain %q", resp.Error, tt.wantError)
			}
		})
	}
}

func TestHandlers_InvokeMethod(t *testing.T) {
	handler := newTestServer(t, DefaultConfig()).Handler()

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/invoke", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
	if w.Header().Get("Allow") != http.MethodPost {
		t.Errorf("Allow = %q", w.Header().Get("Allow"))
	}
}

func TestEtagMatches(t *testing.T) {
	tests := []struct {
		header string
		etag   string
		want   bool
	}{
		{header: "", etag: `"a"`, want: false},
		{header: `"a"`, etag: `"a"`, want: true},
		{header: `"b"`, etag: `"a"`, want: false},
		{header: `"b", "a"`, etag: `"a"`, want: true},
		{header: `*`, etag: `"a"`, want: true},
		{header: `W/"a"`, etag: `"a"`, want: false},
	}

	for _, tt := range tests {
		if got := etagMatches(tt.header, tt.etag); got != tt.want {
			t.Errorf("etagMatches(%q, %q) = %v, want %v", tt.header, tt.etag, got, tt.want)
		}
	}
}
