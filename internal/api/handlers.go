package api

import (
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/JuniperReader/core/errors"
	"github.com/FocuswithJustin/JuniperReader/internal/commands"
	"github.com/FocuswithJustin/JuniperReader/internal/logging"
	"github.com/FocuswithJustin/JuniperReader/internal/validation"
)

// maxInvokeBody bounds POST /invoke request bodies.
const maxInvokeBody = 64 << 10

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *APIMeta    `json:"meta,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	Total     int    `json:"total,omitempty"`
	Timestamp string `json:"timestamp"`
}

// HealthInfo is the health check response.
type HealthInfo struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Uptime      string `json:"uptime"`
	ContentRoot string `json:"content_root,omitempty"`
	Connections int    `json:"connections"`
}

// Error codes of the REST envelope.
const (
	CodeInvalidInput       = "INVALID_INPUT"
	CodeNotFound           = "NOT_FOUND"
	CodeParseError         = "PARSE_ERROR"
	CodeContentUnavailable = "CONTENT_UNAVAILABLE"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeInternal           = "INTERNAL_ERROR"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		respondError(w, http.StatusNotFound, CodeNotFound, "Endpoint not found")
		return
	}
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	respond(w, http.StatusOK, map[string]interface{}{
		"name":    "Juniper Reader API",
		"version": s.cfg.Version,
		"endpoints": []string{
			"GET /health",
			"GET /languages",
			"GET /languages/:code/translations/:folder/books",
			"GET /languages/:code/translations/:folder/books/:abbr/chapters/:chapter",
			"POST /invoke",
			"WS /ws",
		},
		"commands": commands.Names,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	info := HealthInfo{
		Status:      "healthy",
		Version:     s.cfg.Version,
		Uptime:      time.Since(s.started).Round(time.Second).String(),
		Connections: s.hub.Count(),
	}
	if root, err := s.resolver.Root(); err == nil {
		info.ContentRoot = root
	} else {
		info.Status = "degraded"
	}

	respond(w, http.StatusOK, info)
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	langs, err := s.surface.GetTranslationsManifest()
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondContent(w, r, langs, len(langs))
}

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	code, folder := r.PathValue("code"), r.PathValue("folder")
	if err := validation.ValidateSegments(
		[2]string{"languageCode", code},
		[2]string{"translationFolder", folder},
	); err != nil {
		logging.SecurityEvent("invalid_path_segment", "api", "path", r.URL.Path, "error", err.Error())
		respondErr(w, r, err)
		return
	}

	books, err := s.surface.GetBookManifest(code, folder)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondContent(w, r, books, len(books))
}

func (s *Server) handleChapter(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	code, folder, abbr := r.PathValue("code"), r.PathValue("folder"), r.PathValue("abbr")
	if err := validation.ValidateSegments(
		[2]string{"languageCode", code},
		[2]string{"translationFolder", folder},
		[2]string{"bookAbbr", abbr},
	); err != nil {
		logging.SecurityEvent("invalid_path_segment", "api", "path", r.URL.Path, "error", err.Error())
		respondErr(w, r, err)
		return
	}
	chapter, err := validation.ParseChapterNumber("chapterNumber", r.PathValue("chapter"))
	if err != nil {
		respondErr(w, r, err)
		return
	}

	verses, err := s.surface.GetChapterContent(code, folder, abbr, chapter)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondContent(w, r, verses, len(verses))
}

// handleInvoke runs a named command. The body is a commands.Request and the
// reply a commands.Response, the same shape as the WebSocket bridge.
func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxInvokeBody))
	if err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, CodeInvalidInput, "Request body too large")
		return
	}

	req, err := decodeInvoke(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, commands.Response{OK: false, Error: err.Error()})
		return
	}
	if err := validateInvokeArgs(req); err != nil {
		writeJSON(w, http.StatusBadRequest, commands.Response{OK: false, Error: err.Error()})
		return
	}

	resp := s.surface.Invoke(r.Context(), req)
	writeJSON(w, http.StatusOK, resp)
}

// decodeInvoke decodes an invoke request body.
func decodeInvoke(body []byte) (commands.Request, error) {
	var req commands.Request
	if err := json.Unmarshal(body, &req); err != nil {
		return req, errors.NewValidation("body", "invalid JSON: "+err.Error())
	}
	if req.Cmd == "" {
		return req, errors.NewValidation("cmd", "missing command name")
	}
	return req, nil
}

// validateInvokeArgs applies the path segment rules to the string arguments
// of a network request before it reaches the command surface.
func validateInvokeArgs(req commands.Request) error {
	if len(req.Args) == 0 {
		return nil
	}
	var args map[string]json.RawMessage
	if err := json.Unmarshal(req.Args, &args); err != nil {
		// The command surface reports malformed arguments itself.
		return nil
	}
	for _, name := range []string{"languageCode", "translationFolder", "bookAbbr"} {
		raw, ok := args[name]
		if !ok {
			continue
		}
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			continue
		}
		if err := validation.ValidateSegment(name, v); err != nil {
			return err
		}
	}
	if raw, ok := args["chapterNumber"]; ok {
		var n uint32
		if err := json.Unmarshal(raw, &n); err == nil && n == 0 {
			return errors.NewValidation("chapterNumber", "must be a positive integer")
		}
	}
	return nil
}

// statusFor maps a content error to an HTTP status and envelope code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errors.ErrInvalidInput):
		return http.StatusBadRequest, CodeInvalidInput
	case errors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, errors.ErrParse):
		return http.StatusUnprocessableEntity, CodeParseError
	case errors.Is(err, errors.ErrContentRootNotFound), errors.Is(err, errors.ErrFileRead):
		return http.StatusInternalServerError, CodeContentUnavailable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.LoggerFromContext(r.Context()).Error("content request failed",
			"path", r.URL.Path, "error", err.Error())
	}
	respondError(w, status, code, err.Error())
}

// respondContent writes data in the envelope with a strong ETag over the
// encoded data, answering 304 when the client already holds it.
func respondContent(w http.ResponseWriter, r *http.Request, data interface{}, total int) {
	payload, err := json.Marshal(data)
	if err != nil {
		respondError(w, http.StatusInternalServerError, CodeInternal, "failed to encode response")
		return
	}

	etag := contentETag(payload)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    json.RawMessage(payload),
		Meta: &APIMeta{
			Total:     total,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// contentETag returns a strong entity tag for payload.
func contentETag(payload []byte) string {
	sum := blake3.Sum256(payload)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

// etagMatches reports whether an If-None-Match header value covers etag.
func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}

// allowMethod rejects requests whose method is not one of methods. HEAD is
// accepted wherever GET is.
func allowMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m || (m == http.MethodGet && r.Method == http.MethodHead) {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	respondError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed,
		"Only "+strings.Join(methods, " and ")+" is allowed")
	return false
}

func respond(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Meta: &APIMeta{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
		Meta: &APIMeta{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug("failed to write response", "error", err)
	}
}
