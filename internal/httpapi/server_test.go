package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/brianfdo/signlearner/internal/globaltime"
	"github.com/brianfdo/signlearner/internal/orchestrator"
	"github.com/brianfdo/signlearner/internal/signapi"
)

type stubBackend struct {
	mu      sync.Mutex
	texts   []string
	lessons []signapi.LessonRequest
}

func (b *stubBackend) TextToASL(_ context.Context, req signapi.TextToASLRequest) (*signapi.TextToASLResponse, error) {
	b.mu.Lock()
	b.texts = append(b.texts, req.Text)
	b.mu.Unlock()

	word := req.Text
	embed := "https://www.youtube.com/embed/FVjpLa8GqeM"
	return &signapi.TextToASLResponse{
		VideoSequence:  []signapi.VideoEntry{{Word: &word, EmbedURL: &embed}},
		SearchStrategy: "words",
	}, nil
}

func (b *stubBackend) GenerateLesson(_ context.Context, req signapi.LessonRequest) (*signapi.LessonResponse, error) {
	b.mu.Lock()
	b.lessons = append(b.lessons, req)
	b.mu.Unlock()

	return &signapi.LessonResponse{
		LessonTopic:     req.Prompt,
		VocabularyWords: []string{"red", "blue"},
	}, nil
}

func (b *stubBackend) calls() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.texts), len(b.lessons)
}

type envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Code    int             `json:"code"`
}

type sessionData struct {
	SessionID        string                      `json:"session_id"`
	Defaults         orchestrator.RequestOptions `json:"defaults"`
	State            orchestrator.State          `json:"state"`
	DetectedLanguage string                      `json:"detected_language"`
}

func newTestServer(t *testing.T, backend orchestrator.Backend, opts Options) (*Server, *echo.Echo) {
	t.Helper()
	if opts.DetectLanguage == nil {
		opts.DetectLanguage = func(string) string { return "en" }
	}
	srv := NewServer(backend, zerolog.Nop(), opts)
	t.Cleanup(srv.Close)
	return srv, srv.Handler()
}

func doRequest(t *testing.T, e *echo.Echo, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope from %s %s: %v (body=%s)", method, target, err, rec.Body.String())
	}
	return rec, env
}

func decodeSession(t *testing.T, env envelope) sessionData {
	t.Helper()
	var data sessionData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode session data: %v", err)
	}
	return data
}

func createSession(t *testing.T, e *echo.Echo) string {
	t.Helper()
	rec, env := doRequest(t, e, http.MethodPost, "/api/v1/sessions", "")
	if rec.Code != http.StatusCreated || env.Status != "success" {
		t.Fatalf("create session: status=%d envelope=%+v", rec.Code, env)
	}
	data := decodeSession(t, env)
	if data.SessionID == "" || data.State.Phase != orchestrator.PhaseIdle {
		t.Fatalf("unexpected new session: %+v", data)
	}
	return data.SessionID
}

func waitForPhase(t *testing.T, e *echo.Echo, id string, phase orchestrator.Phase) orchestrator.State {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_, env := doRequest(t, e, http.MethodGet, "/api/v1/sessions/"+id, "")
		data := decodeSession(t, env)
		if data.State.Phase == phase {
			return data.State
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session %s never reached phase %s", id, phase)
	return orchestrator.State{}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	_, e := newTestServer(t, &stubBackend{}, Options{})
	rec, env := doRequest(t, e, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK || env.Status != "success" {
		t.Fatalf("unexpected health response: %d %+v", rec.Code, env)
	}
}

func TestUnknownSessionIsNotFound(t *testing.T) {
	t.Parallel()

	_, e := newTestServer(t, &stubBackend{}, Options{})
	for _, tc := range []struct {
		method string
		target string
		body   string
	}{
		{method: http.MethodGet, target: "/api/v1/sessions/7d1f0a52-4c0e-4c39-9a57-4d5f7d1b9e11"},
		{method: http.MethodGet, target: "/api/v1/sessions/not-a-uuid"},
		{method: http.MethodPost, target: "/api/v1/sessions/7d1f0a52-4c0e-4c39-9a57-4d5f7d1b9e11/translate", body: `{"text":"hello"}`},
		{method: http.MethodPost, target: "/api/v1/sessions/7d1f0a52-4c0e-4c39-9a57-4d5f7d1b9e11/lessons", body: `{"text":"hello"}`},
		{method: http.MethodGet, target: "/api/v1/sessions/7d1f0a52-4c0e-4c39-9a57-4d5f7d1b9e11/events"},
		{method: http.MethodDelete, target: "/api/v1/sessions/7d1f0a52-4c0e-4c39-9a57-4d5f7d1b9e11"},
	} {
		rec, env := doRequest(t, e, tc.method, tc.target, tc.body)
		if rec.Code != http.StatusNotFound || env.Status != "fail" || env.Message != "Session not found" {
			t.Fatalf("%s %s: status=%d envelope=%+v", tc.method, tc.target, rec.Code, env)
		}
	}
}

func TestUnknownRouteUsesFailEnvelope(t *testing.T) {
	t.Parallel()

	_, e := newTestServer(t, &stubBackend{}, Options{})
	rec, env := doRequest(t, e, http.MethodGet, "/api/v1/nope", "")
	if rec.Code != http.StatusNotFound || env.Status != "fail" {
		t.Fatalf("unexpected response: %d %+v", rec.Code, env)
	}
}

func TestTranslateSettlesSession(t *testing.T) {
	t.Parallel()

	backend := &stubBackend{}
	_, e := newTestServer(t, backend, Options{})
	id := createSession(t, e)

	rec, env := doRequest(t, e, http.MethodPost, "/api/v1/sessions/"+id+"/translate", `{"text":"  hello "}`)
	if rec.Code != http.StatusAccepted || env.Status != "success" {
		t.Fatalf("translate: status=%d envelope=%+v", rec.Code, env)
	}
	accepted := decodeSession(t, env)
	if accepted.State.Generation != 1 || accepted.DetectedLanguage != "en" {
		t.Fatalf("unexpected accepted view: %+v", accepted)
	}

	state := waitForPhase(t, e, id, orchestrator.PhaseSuccess)
	if state.Translation == nil || len(state.Translation.Videos) != 1 {
		t.Fatalf("unexpected translation: %+v", state.Translation)
	}
	if state.Translation.Videos[0].Word != "hello" {
		t.Fatalf("expected trimmed text to reach the backend, got %q", state.Translation.Videos[0].Word)
	}
}

func TestBlankTranslateLeavesSessionIdle(t *testing.T) {
	t.Parallel()

	backend := &stubBackend{}
	_, e := newTestServer(t, backend, Options{})
	id := createSession(t, e)

	rec, env := doRequest(t, e, http.MethodPost, "/api/v1/sessions/"+id+"/translate", `{"text":"   "}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("translate: status=%d envelope=%+v", rec.Code, env)
	}
	data := decodeSession(t, env)
	if data.State.Phase != orchestrator.PhaseIdle || data.State.Generation != 0 {
		t.Fatalf("blank input must not change state: %+v", data.State)
	}
	if texts, _ := backend.calls(); texts != 0 {
		t.Fatalf("blank input must not call the backend, got %d calls", texts)
	}
}

func TestLessonValidation(t *testing.T) {
	t.Parallel()

	_, e := newTestServer(t, &stubBackend{}, Options{})
	id := createSession(t, e)

	rec, env := doRequest(t, e, http.MethodPost, "/api/v1/sessions/"+id+"/lessons", `{"text":"colors","age":-1,"experience":"expert","mode":"turbo"}`)
	if rec.Code != http.StatusBadRequest || env.Status != "fail" {
		t.Fatalf("unexpected response: %d %+v", rec.Code, env)
	}
	var data struct {
		ValidationErrors map[string]string `json:"validation_errors"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode validation errors: %v", err)
	}
	for _, field := range []string{"age", "experience", "mode"} {
		if data.ValidationErrors[field] == "" {
			t.Fatalf("expected validation error for %s, got %v", field, data.ValidationErrors)
		}
	}
}

func TestLessonUsesServerDefaultsAndMode(t *testing.T) {
	t.Parallel()

	backend := &stubBackend{}
	_, e := newTestServer(t, backend, Options{
		Defaults: orchestrator.RequestOptions{Age: 12, Experience: orchestrator.ExperienceAdvanced, Mode: orchestrator.ModeFull},
	})
	id := createSession(t, e)

	_, env := doRequest(t, e, http.MethodGet, "/api/v1/sessions/"+id, "")
	wantDefaults := orchestrator.RequestOptions{Age: 12, Experience: orchestrator.ExperienceAdvanced, Mode: orchestrator.ModeFull}
	if got := decodeSession(t, env).Defaults; got != wantDefaults {
		t.Fatalf("unexpected session defaults: %+v", got)
	}

	rec, env := doRequest(t, e, http.MethodPost, "/api/v1/sessions/"+id+"/lessons", `{"text":"colors","mode":"ultra-fast"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("lesson: status=%d envelope=%+v", rec.Code, env)
	}

	state := waitForPhase(t, e, id, orchestrator.PhaseSuccess)
	if state.Lesson == nil || state.Lesson.Topic != "colors" {
		t.Fatalf("unexpected lesson: %+v", state.Lesson)
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()
	got := backend.lessons[0]
	if got.Age != 12 || got.Experience != "advanced" || got.QuickMode || !got.UltraFast {
		t.Fatalf("unexpected lesson request: %+v", got)
	}
}

func TestDeleteSession(t *testing.T) {
	t.Parallel()

	_, e := newTestServer(t, &stubBackend{}, Options{})
	id := createSession(t, e)

	rec, env := doRequest(t, e, http.MethodDelete, "/api/v1/sessions/"+id, "")
	if rec.Code != http.StatusOK || env.Status != "success" {
		t.Fatalf("delete: status=%d envelope=%+v", rec.Code, env)
	}
	rec, _ = doRequest(t, e, http.MethodGet, "/api/v1/sessions/"+id, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected deleted session to be gone, got %d", rec.Code)
	}
}

func TestSessionLimit(t *testing.T) {
	t.Parallel()

	_, e := newTestServer(t, &stubBackend{}, Options{MaxSessions: 1})
	createSession(t, e)

	rec, env := doRequest(t, e, http.MethodPost, "/api/v1/sessions", "")
	if rec.Code != http.StatusServiceUnavailable || env.Status != "error" || env.Code != http.StatusServiceUnavailable {
		t.Fatalf("unexpected response: %d %+v", rec.Code, env)
	}
}

func TestIdleSessionIsReaped(t *testing.T) {
	start := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	globaltime.SetMockTime(start)
	t.Cleanup(globaltime.ResetTime)

	srv, e := newTestServer(t, &stubBackend{}, Options{MaxSessions: 3, SessionTTL: 10 * time.Minute})
	idle := createSession(t, e)
	active := createSession(t, e)
	streaming := createSession(t, e)

	sess, err := srv.sessions.get(streaming)
	if err != nil {
		t.Fatalf("lookup streaming session: %v", err)
	}
	detach := srv.sessions.attach(sess)

	globaltime.SetMockTime(start.Add(6 * time.Minute))
	if rec, _ := doRequest(t, e, http.MethodGet, "/api/v1/sessions/"+active, ""); rec.Code != http.StatusOK {
		t.Fatalf("touch active session: status=%d", rec.Code)
	}

	globaltime.SetMockTime(start.Add(11 * time.Minute))
	if reaped := srv.reapIdleSessions(); reaped != 1 {
		t.Fatalf("reaped %d sessions, want 1", reaped)
	}
	if rec, _ := doRequest(t, e, http.MethodGet, "/api/v1/sessions/"+idle, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("idle session should be gone, got %d", rec.Code)
	}
	for _, id := range []string{active, streaming} {
		if rec, _ := doRequest(t, e, http.MethodGet, "/api/v1/sessions/"+id, ""); rec.Code != http.StatusOK {
			t.Fatalf("session %s should survive, got %d", id, rec.Code)
		}
	}

	// The freed slot is usable again.
	createSession(t, e)

	detach()
	globaltime.SetMockTime(start.Add(time.Hour))
	if reaped := srv.reapIdleSessions(); reaped != 3 {
		t.Fatalf("reaped %d sessions after the stream closed, want 3", reaped)
	}
	if srv.sessions.count() != 0 {
		t.Fatalf("expected no sessions left, got %d", srv.sessions.count())
	}
}

type sseEvent struct {
	id   string
	name string
	data string
}

func readEvent(t *testing.T, r *bufio.Reader) sseEvent {
	t.Helper()
	var ev sseEvent
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read event stream: %v", err)
		}
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if ev.name != "" {
				return ev
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "id: "):
			ev.id = strings.TrimPrefix(line, "id: ")
		case strings.HasPrefix(line, "event: "):
			ev.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func eventID(t *testing.T, ev sseEvent) uint64 {
	t.Helper()
	id, err := strconv.ParseUint(ev.id, 10, 64)
	if err != nil {
		t.Fatalf("event %q has no numeric id: %q", ev.name, ev.id)
	}
	return id
}

func TestEventStream(t *testing.T) {
	t.Parallel()

	_, e := newTestServer(t, &stubBackend{}, Options{})
	httpSrv := httptest.NewServer(e)
	t.Cleanup(httpSrv.Close)

	id := createSession(t, e)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, httpSrv.URL+"/api/v1/sessions/"+id+"/events", nil)
	if err != nil {
		t.Fatalf("build events request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open event stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get(echo.HeaderContentType); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("unexpected content type: %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	first := readEvent(t, reader)
	var state orchestrator.State
	if err := json.Unmarshal([]byte(first.data), &state); err != nil {
		t.Fatalf("decode first event: %v", err)
	}
	if first.name != stateEventName || state.Phase != orchestrator.PhaseIdle {
		t.Fatalf("unexpected first event: %+v", first)
	}
	lastID := eventID(t, first)

	rec, _ := doRequest(t, e, http.MethodPost, "/api/v1/sessions/"+id+"/translate", `{"text":"hello"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("translate: status=%d", rec.Code)
	}

	for i := 0; ; i++ {
		if i > 10 {
			t.Fatalf("never observed a success event")
		}
		ev := readEvent(t, reader)
		if err := json.Unmarshal([]byte(ev.data), &state); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		id := eventID(t, ev)
		if id <= lastID {
			t.Fatalf("event ids must increase: %d after %d (%s)", id, lastID, state.Phase)
		}
		lastID = id
		if state.Phase == orchestrator.PhaseSuccess {
			break
		}
	}

	rec, _ = doRequest(t, e, http.MethodDelete, "/api/v1/sessions/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: status=%d", rec.Code)
	}
	if ev := readEvent(t, reader); ev.name != "closed" {
		t.Fatalf("expected closed event, got %+v", ev)
	}
}
