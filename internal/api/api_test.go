package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/p-n-ai/pai-curriculum/internal/api"
	"github.com/p-n-ai/pai-curriculum/internal/binding"
	"github.com/p-n-ai/pai-curriculum/internal/curriculum"
	"github.com/p-n-ai/pai-curriculum/internal/editor"
	"github.com/p-n-ai/pai-curriculum/internal/reference"
	"github.com/p-n-ai/pai-curriculum/internal/upload"
)

type testServer struct {
	url     string
	manager *editor.Manager
	store   *curriculum.MemoryStore
}

func newServer(t *testing.T, opts ...api.Option) testServer {
	t.Helper()
	store := curriculum.NewMemoryStore()
	m := editor.NewManager(editor.Deps{
		Store:    store,
		Hub:      binding.NewHub(),
		Uploader: upload.NewMockUploader("https://cdn.example"),
		Upload: upload.Config{
			MaxDocumentBytes:  1 << 20,
			MaxVideoBytes:     1 << 20,
			VideoTypes:        []string{"video/*"},
			DocumentTypes:     []string{"application/pdf"},
			PollInterval:      10 * time.Millisecond,
			ProcessingTimeout: time.Second,
		},
	})
	t.Cleanup(m.CloseAll)

	catalog := reference.NewCatalog(time.Minute, reference.DefaultFallback())
	srv := httptest.NewServer(api.New(m, catalog, opts...).Routes())
	t.Cleanup(srv.Close)
	return testServer{url: srv.URL, manager: m, store: store}
}

func (s testServer) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(t.Context(), method, s.url+path, r)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func (s testServer) createSession(t *testing.T) editor.View {
	t.Helper()
	resp, body := s.do(t, http.MethodPost, "/api/sessions", editor.CreateRequest{Title: "Go basics"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", resp.StatusCode, body)
	}
	var v editor.View
	if err := json.Unmarshal(body, &v); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	return v
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	return v
}

func TestHealthz(t *testing.T) {
	s := newServer(t)
	resp, body := s.do(t, http.MethodGet, "/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if string(body) != `{"status":"ok"}` {
		t.Errorf("body = %q", body)
	}
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		name   string
		checks []api.Check
		want   int
	}{
		{name: "no checks", want: http.StatusOK},
		{
			name:   "passing check",
			checks: []api.Check{{Name: "database", Ping: func(context.Context) error { return nil }}},
			want:   http.StatusOK,
		},
		{
			name: "failing check",
			checks: []api.Check{
				{Name: "database", Ping: func(context.Context) error { return nil }},
				{Name: "cache", Ping: func(context.Context) error { return errors.New("connection refused") }},
			},
			want: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServer(t, api.WithChecks(tt.checks...))
			resp, body := s.do(t, http.MethodGet, "/readyz", nil)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d, body = %s", resp.StatusCode, tt.want, body)
			}
			if tt.want == http.StatusServiceUnavailable && !strings.Contains(string(body), "connection refused") {
				t.Errorf("body = %s, want failing check reported", body)
			}
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := newServer(t)
	v := s.createSession(t)

	if v.Title != "Go basics" {
		t.Errorf("Title = %q", v.Title)
	}
	if len(v.Curriculum) != 1 || !strings.HasPrefix(v.Curriculum[0].ID, "week_") {
		t.Fatalf("Curriculum = %+v, want one empty week", v.Curriculum)
	}

	resp, body := s.do(t, http.MethodGet, "/api/sessions/"+v.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, body = %s", resp.StatusCode, body)
	}

	resp, _ = s.do(t, http.MethodDelete, "/api/sessions/"+v.ID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", resp.StatusCode)
	}

	resp, body = s.do(t, http.MethodGet, "/api/sessions/"+v.ID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", resp.StatusCode)
	}
	if !strings.Contains(string(body), `"error"`) {
		t.Errorf("body = %s, want error field", body)
	}
}

func TestCreateSessionUnknownTemplate(t *testing.T) {
	s := newServer(t)
	resp, _ := s.do(t, http.MethodPost, "/api/sessions", editor.CreateRequest{Template: "missing"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestCreateSessionBadJSON(t *testing.T) {
	s := newServer(t)
	resp, err := http.Post(s.url+"/api/sessions", "application/json", strings.NewReader("{"))
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCommands(t *testing.T) {
	s := newServer(t)
	v := s.createSession(t)
	path := "/api/sessions/" + v.ID + "/commands"

	tests := []struct {
		name    string
		cmd     editor.Command
		want    int
		warning string
	}{
		{name: "add week", cmd: editor.Command{Op: editor.OpAddWeek}, want: http.StatusOK},
		{name: "add section", cmd: editor.Command{Op: editor.OpAddSection, Week: 0}, want: http.StatusOK},
		{name: "update week title", cmd: editor.Command{Op: editor.OpUpdateWeek, Week: 0, Field: "weekTitle", Value: "Intro"}, want: http.StatusOK},
		{name: "unknown op", cmd: editor.Command{Op: "shuffle"}, want: http.StatusBadRequest},
		{name: "week out of range", cmd: editor.Command{Op: editor.OpRemoveWeek, Week: 9}, want: http.StatusBadRequest},
		{name: "unknown field", cmd: editor.Command{Op: editor.OpUpdateWeek, Week: 0, Field: "colour", Value: "red"}, want: http.StatusBadRequest},
		{name: "remove week", cmd: editor.Command{Op: editor.OpRemoveWeek, Week: 1}, want: http.StatusOK},
		{
			name:    "remove last week",
			cmd:     editor.Command{Op: editor.OpRemoveWeek, Week: 0},
			want:    http.StatusConflict,
			warning: curriculum.LastWeekWarning,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := s.do(t, http.MethodPost, path, tt.cmd)
			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d, body = %s", resp.StatusCode, tt.want, body)
			}
			if tt.warning != "" {
				got := decode[map[string]any](t, body)
				if got["warning"] != tt.warning {
					t.Errorf("warning = %v, want %q", got["warning"], tt.warning)
				}
			}
		})
	}

	_, body := s.do(t, http.MethodGet, "/api/sessions/"+v.ID, nil)
	got := decode[editor.View](t, body)
	if len(got.Curriculum) != 1 || got.Curriculum[0].Title != "Intro" {
		t.Errorf("Curriculum = %+v, want one week titled Intro", got.Curriculum)
	}
}

func TestDragReordersWeeks(t *testing.T) {
	s := newServer(t)
	v := s.createSession(t)
	base := "/api/sessions/" + v.ID

	s.do(t, http.MethodPost, base+"/commands", editor.Command{Op: editor.OpAddWeek})
	s.do(t, http.MethodPost, base+"/commands", editor.Command{Op: editor.OpUpdateWeek, Week: 0, Field: "weekTitle", Value: "First"})

	resp, body := s.do(t, http.MethodPost, base+"/drag/start", map[string]any{"itemType": "week", "itemId": v.Curriculum[0].ID})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start status = %d, body = %s", resp.StatusCode, body)
	}
	if got := decode[map[string]any](t, body); got["action"] != "started" {
		t.Fatalf("start = %s", body)
	}

	// No index: the week is appended.
	_, body = s.do(t, http.MethodPost, base+"/drag/drop", map[string]any{"targetType": "curriculum", "targetId": "curriculum"})
	res := decode[editor.DragResult](t, body)
	if res.Action != "moved" {
		t.Fatalf("drop = %s", body)
	}
	if len(res.Curriculum) != 2 || res.Curriculum[1].Title != "First" {
		t.Errorf("Curriculum = %+v, want First last", res.Curriculum)
	}
	if res.Curriculum[1].ID != "week_2" || res.Curriculum[1].WeekNumber != 2 {
		t.Errorf("moved week = %s #%d, want week_2 #2", res.Curriculum[1].ID, res.Curriculum[1].WeekNumber)
	}
}

func TestDragWithoutStartIsIgnored(t *testing.T) {
	s := newServer(t)
	v := s.createSession(t)

	resp, body := s.do(t, http.MethodPost, "/api/sessions/"+v.ID+"/drag/end", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := decode[map[string]any](t, body); got["action"] != "ignored" {
		t.Errorf("end = %s, want ignored", body)
	}
}

func multipartFile(t *testing.T, name, contentType string, data []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("CreatePart() error = %v", err)
	}
	part.Write(data)
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func postFile(t *testing.T, url, name, contentType string, data []byte) (*http.Response, []byte) {
	t.Helper()
	body, ct := multipartFile(t, name, contentType, data)
	resp, err := http.Post(url, ct, body)
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp, out
}

func TestUploadVideoLesson(t *testing.T) {
	s := newServer(t)
	v := s.createSession(t)
	base := "/api/sessions/" + v.ID

	s.do(t, http.MethodPost, base+"/commands", editor.Command{Op: editor.OpAddSection, Week: 0})
	resp, body := s.do(t, http.MethodPost, base+"/commands", editor.Command{Op: editor.OpAddLesson, Week: 0, Section: 0, LessonType: curriculum.LessonVideo})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add lesson status = %d, body = %s", resp.StatusCode, body)
	}

	lessonID := decode[editor.Result](t, body).Curriculum[0].Sections[0].Lessons[0].ID

	resp, body = postFile(t, s.url+base+"/lessons/"+lessonID+"/upload", "intro.mp4", "video/mp4", []byte("not really a video"))
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("upload status = %d, body = %s", resp.StatusCode, body)
	}
	st := decode[upload.LessonState](t, body)
	if st.Key != lessonID {
		t.Errorf("Key = %q", st.Key)
	}

	sess, err := s.manager.Get(v.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	sess.WaitUploads()

	_, body = s.do(t, http.MethodGet, base+"/uploads", nil)
	list := decode[struct {
		Uploads []upload.LessonState `json:"uploads"`
	}](t, body)
	if len(list.Uploads) != 1 || list.Uploads[0].Status != upload.StatusCompleted {
		t.Fatalf("uploads = %s, want one completed", body)
	}

	got := sess.View()
	lesson := got.Curriculum[0].Sections[0].Lessons[0]
	if lesson.Video == nil || !strings.HasPrefix(lesson.Video.URL, "https://cdn.example/") {
		t.Errorf("lesson video = %+v, want uploaded URL", lesson.Video)
	}
}

func TestUploadErrors(t *testing.T) {
	s := newServer(t)
	v := s.createSession(t)
	base := "/api/sessions/" + v.ID
	s.do(t, http.MethodPost, base+"/commands", editor.Command{Op: editor.OpAddSection, Week: 0})
	s.do(t, http.MethodPost, base+"/commands", editor.Command{Op: editor.OpAddLesson, Week: 0, Section: 0, LessonType: curriculum.LessonQuiz})
	_, body := s.do(t, http.MethodPost, base+"/commands", editor.Command{Op: editor.OpAddLesson, Week: 0, Section: 0, LessonType: curriculum.LessonVideo})
	lessons := decode[editor.Result](t, body).Curriculum[0].Sections[0].Lessons
	quizID, videoID := lessons[0].ID, lessons[1].ID

	tests := []struct {
		name        string
		lesson      string
		file        string
		contentType string
		want        int
	}{
		{name: "unknown lesson", lesson: "lesson_missing", file: "a.mp4", contentType: "video/mp4", want: http.StatusNotFound},
		{name: "quiz lesson", lesson: quizID, file: "a.mp4", contentType: "video/mp4", want: http.StatusBadRequest},
		{name: "wrong type", lesson: videoID, file: "notes.txt", contentType: "text/plain", want: http.StatusUnsupportedMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := postFile(t, s.url+base+"/lessons/"+tt.lesson+"/upload", tt.file, tt.contentType, []byte("data"))
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d, body = %s", resp.StatusCode, tt.want, body)
			}
		})
	}
}

func TestUploadRequiresFile(t *testing.T) {
	s := newServer(t)
	v := s.createSession(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("resourceId", "resource_1_0_1_1")
	mw.Close()
	resp, err := http.Post(s.url+"/api/sessions/"+v.ID+"/lessons/lesson_1_0_1/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestUploadBodyTooLarge(t *testing.T) {
	s := newServer(t)
	v := s.createSession(t)
	h := api.New(s.manager, reference.NewCatalog(time.Minute, reference.DefaultFallback()), api.WithMaxUpload(16))

	body, ct := multipartFile(t, "big.mp4", "video/mp4", bytes.Repeat([]byte("x"), 2<<20))
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+v.ID+"/lessons/lesson_1_0_1/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413, body = %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), `"kind":"too_large"`) {
		t.Errorf("body = %s, want too_large kind", rec.Body)
	}
}

func TestSave(t *testing.T) {
	s := newServer(t)
	v := s.createSession(t)
	base := "/api/sessions/" + v.ID

	// An untitled week fails validation.
	resp, body := s.do(t, http.MethodPost, base+"/save", nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("save status = %d, want 422, body = %s", resp.StatusCode, body)
	}
	got := decode[map[string]any](t, body)
	if got["summary"] == "" || got["errors"] == nil {
		t.Errorf("body = %s, want summary and errors", body)
	}

	s.do(t, http.MethodPost, base+"/commands", editor.Command{Op: editor.OpUpdateWeek, Week: 0, Field: "weekTitle", Value: "Intro"})
	resp, body = s.do(t, http.MethodPost, base+"/save", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save status = %d, body = %s", resp.StatusCode, body)
	}
	res := decode[curriculum.SaveResult](t, body)
	if !res.Success || res.ID == "" {
		t.Fatalf("SaveResult = %+v", res)
	}
	rec, err := s.store.Load(t.Context(), res.ID)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if rec.Weeks[0].Title != "Intro" {
		t.Errorf("stored week title = %q", rec.Weeks[0].Title)
	}
}

func TestExports(t *testing.T) {
	s := newServer(t)
	v := s.createSession(t)
	base := "/api/sessions/" + v.ID
	s.do(t, http.MethodPost, base+"/commands", editor.Command{Op: editor.OpUpdateWeek, Week: 0, Field: "weekTitle", Value: "Intro"})

	resp, body := s.do(t, http.MethodGet, base+"/export.yaml", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("yaml status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "Intro") {
		t.Errorf("yaml export = %s, want week title", body)
	}

	resp, body = s.do(t, http.MethodGet, base+"/export.xlsx", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("xlsx status = %d", resp.StatusCode)
	}
	if !bytes.HasPrefix(body, []byte("PK")) {
		t.Errorf("xlsx export does not look like a zip archive")
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "curriculum.xlsx") {
		t.Errorf("Content-Disposition = %q", cd)
	}
}

func TestReference(t *testing.T) {
	s := newServer(t)

	resp, body := s.do(t, http.MethodGet, "/api/reference/quizzes", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}
	l := decode[reference.List](t, body)
	if !l.UsingFallback || len(l.Items) == 0 {
		t.Errorf("List = %+v, want fallback items", l)
	}

	resp, _ = s.do(t, http.MethodGet, "/api/reference/spaceships", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown kind status = %d, want 404", resp.StatusCode)
	}
}

func TestTemplatesWithoutLoader(t *testing.T) {
	s := newServer(t)
	resp, body := s.do(t, http.MethodGet, "/api/templates", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if string(bytes.TrimSpace(body)) != `{"templates":[]}` {
		t.Errorf("body = %s", body)
	}
}
