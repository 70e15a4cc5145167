package assist

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/ehr/clinical-ai/internal/platform/auth"
)

// fakeGenerator scripts the generation capability: chunks are emitted in
// order, and failAfter > 0 injects an error after that many chunks.
type fakeGenerator struct {
	chunks    []string
	object    json.RawMessage
	err       error
	failAfter int
}

func (f *fakeGenerator) GenerateObject(_ context.Context, _ string) (json.RawMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.object, nil
}

func (f *fakeGenerator) StreamText(_ context.Context, _ string, emit func(string) error) error {
	if f.err != nil && f.failAfter == 0 {
		return f.err
	}
	for i, chunk := range f.chunks {
		if f.err != nil && i == f.failAfter {
			return f.err
		}
		if err := emit(chunk); err != nil {
			return err
		}
	}
	return f.err
}

func newTestHandler(gen *fakeGenerator) (*Handler, *echo.Echo) {
	return NewHandler(NewService(gen)), echo.New()
}

func authedContext(e *echo.Echo, req *http.Request, rec *httptest.ResponseRecorder, userID string) echo.Context {
	c := e.NewContext(req, rec)
	ctx := context.WithValue(req.Context(), auth.UserIDKey, userID)
	ctx = context.WithValue(ctx, auth.UserRolesKey, []string{"physician"})
	c.SetRequest(req.WithContext(ctx))
	return c
}

func postJSON(e *echo.Echo, rec *httptest.ResponseRecorder, path, body, userID string) echo.Context {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return authedContext(e, req, rec, userID)
}

// -- Streaming --

func TestStreamAssist_RelaysChunks(t *testing.T) {
	h, e := newTestHandler(&fakeGenerator{chunks: []string{"Consider ", "pneumonia ", "workup."}})
	rec := httptest.NewRecorder()
	c := postJSON(e, rec, "/api/v1/ai/assist/stream",
		`{"type":"diagnostic_assistance","input":{"query":"fever and productive cough"}}`, "user-1")

	if err := h.StreamAssist(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Body.String(); got != "Consider pneumonia workup." {
		t.Errorf("unexpected body: %q", got)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("expected text/plain, got %q", ct)
	}
	if rec.Flushed != true {
		t.Error("expected response to be flushed per chunk")
	}
}

func TestStreamAssist_SOAPNote(t *testing.T) {
	h, e := newTestHandler(&fakeGenerator{chunks: []string{"S: cough.\nO: afebrile.\nA: URI.\nP: rest."}})
	rec := httptest.NewRecorder()
	c := postJSON(e, rec, "/api/v1/ai/assist/stream",
		`{"type":"generate_soap_note","input":{"encounterNotes":"patient reports dry cough for 3 days"}}`, "user-1")

	if err := h.StreamAssist(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "A: URI.") {
		t.Errorf("unexpected body: %q", rec.Body.String())
	}
}

func TestStreamAssist_Unauthenticated(t *testing.T) {
	h, e := newTestHandler(&fakeGenerator{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ai/assist/stream", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.StreamAssist(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestStreamAssist_InvalidType(t *testing.T) {
	h, e := newTestHandler(&fakeGenerator{})
	c := postJSON(e, httptest.NewRecorder(), "/api/v1/ai/assist/stream",
		`{"type":"clinical_assessment","input":{"query":"q"}}`, "user-1")

	err := h.StreamAssist(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("background task type must be rejected on the stream endpoint, got %v", err)
	}
}

func TestStreamAssist_EmptyInput(t *testing.T) {
	h, e := newTestHandler(&fakeGenerator{})
	c := postJSON(e, httptest.NewRecorder(), "/api/v1/ai/assist/stream",
		`{"type":"diagnostic_assistance","input":{}}`, "user-1")

	err := h.StreamAssist(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestStreamAssist_FailureBeforeFirstChunk(t *testing.T) {
	h, e := newTestHandler(&fakeGenerator{err: fmt.Errorf("upstream down")})
	rec := httptest.NewRecorder()
	c := postJSON(e, rec, "/api/v1/ai/assist/stream",
		`{"type":"diagnostic_assistance","input":{"query":"q"}}`, "user-1")

	err := h.StreamAssist(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadGateway {
		t.Errorf("expected 502 before first chunk, got %v", err)
	}
}

func TestStreamAssist_MidStreamFailure(t *testing.T) {
	h, e := newTestHandler(&fakeGenerator{
		chunks:    []string{"partial ", "answer "},
		err:       fmt.Errorf("connection reset"),
		failAfter: 2,
	})
	rec := httptest.NewRecorder()
	c := postJSON(e, rec, "/api/v1/ai/assist/stream",
		`{"type":"diagnostic_assistance","input":{"query":"q"}}`, "user-1")

	if err := h.StreamAssist(c); err != nil {
		t.Fatalf("mid-stream failure must not surface as HTTP error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status already committed, expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "partial answer ") {
		t.Errorf("expected partial output preserved, got %q", body)
	}
	if !strings.Contains(body, streamErrorMarker) {
		t.Errorf("expected stream error marker, got %q", body)
	}
}

// -- Documentation --

func TestDocumentation_Transcribe(t *testing.T) {
	h, e := newTestHandler(&fakeGenerator{object: json.RawMessage(`{"transcribedNote":"Patient presents with dyspnea on exertion."}`)})
	rec := httptest.NewRecorder()
	c := postJSON(e, rec, "/api/v1/ai/documentation",
		`{"type":"transcribe_voice","input":{"audioTranscript":"uh patient presents with um dyspnea on exertion","context":"pulmonology follow-up"}}`, "user-1")

	if err := h.Documentation(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out TranscribeResult
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.Contains(out.TranscribedNote, "dyspnea") {
		t.Errorf("unexpected transcription: %q", out.TranscribedNote)
	}
}

func TestDocumentation_Extract(t *testing.T) {
	h, e := newTestHandler(&fakeGenerator{object: json.RawMessage(`{"extractedInfo":"Medications: lisinopril. Follow up in 2 weeks."}`)})
	rec := httptest.NewRecorder()
	c := postJSON(e, rec, "/api/v1/ai/documentation",
		`{"type":"extract_medical_info","input":{"documentText":"HTN on lisinopril, follow up in 2 weeks","extractionType":"medications"}}`, "user-1")

	if err := h.Documentation(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out ExtractResult
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.Contains(out.ExtractedInfo, "lisinopril") {
		t.Errorf("unexpected extraction: %s", out.ExtractedInfo)
	}
}

func TestDocumentation_InvalidType(t *testing.T) {
	h, e := newTestHandler(&fakeGenerator{})
	c := postJSON(e, httptest.NewRecorder(), "/api/v1/ai/documentation",
		`{"type":"diagnostic_assistance","input":{}}`, "user-1")

	err := h.Documentation(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestDocumentation_MissingTranscript(t *testing.T) {
	h, e := newTestHandler(&fakeGenerator{})
	c := postJSON(e, httptest.NewRecorder(), "/api/v1/ai/documentation",
		`{"type":"transcribe_voice","input":{}}`, "user-1")

	err := h.Documentation(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestDocumentation_GenerationFailure(t *testing.T) {
	h, e := newTestHandler(&fakeGenerator{err: fmt.Errorf("upstream down")})
	c := postJSON(e, httptest.NewRecorder(), "/api/v1/ai/documentation",
		`{"type":"extract_medical_info","input":{"documentText":"some note"}}`, "user-1")

	err := h.Documentation(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %v", err)
	}
}

func TestHandler_RegisterRoutes(t *testing.T) {
	h, e := newTestHandler(&fakeGenerator{})
	h.RegisterRoutes(e.Group("/api/v1"))

	routePaths := make(map[string]bool)
	for _, r := range e.Routes() {
		routePaths[r.Method+":"+r.Path] = true
	}
	for _, path := range []string{
		"POST:/api/v1/ai/assist/stream",
		"POST:/api/v1/ai/documentation",
	} {
		if !routePaths[path] {
			t.Errorf("missing route: %s", path)
		}
	}
}
