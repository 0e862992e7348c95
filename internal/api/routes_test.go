package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danschewy/twelvesocial/internal/apperr"
	"github.com/danschewy/twelvesocial/internal/chat"
	"github.com/danschewy/twelvesocial/internal/clips"
	"github.com/danschewy/twelvesocial/internal/publish"
	"github.com/danschewy/twelvesocial/internal/store"
	"github.com/danschewy/twelvesocial/internal/twelvelabs"
	"github.com/danschewy/twelvesocial/internal/uploads"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeUploads struct {
	submitTask store.UploadTask
	submitErr  error
	pollTask   store.UploadTask
	pollErr    error
}

func (f *fakeUploads) Submit(ctx context.Context, filename, contentType string, width, height int, video io.Reader) (store.UploadTask, error) {
	if err := uploads.ValidateVideo(contentType, width, height); err != nil {
		return store.UploadTask{}, err
	}
	if f.submitErr != nil {
		return store.UploadTask{}, f.submitErr
	}
	return f.submitTask, nil
}

func (f *fakeUploads) PollStatus(ctx context.Context, taskID string) (store.UploadTask, error) {
	if f.pollErr != nil {
		return store.UploadTask{}, f.pollErr
	}
	return f.pollTask, nil
}

type fakeVideos struct {
	video      *twelvelabs.Video
	videoErr   error
	hits       []twelvelabs.SearchHit
	searchErr  error
	summary    *twelvelabs.Summary
	sumErr     error
	taskPage   *twelvelabs.TaskPage
	gotQuery   string
	gotOptions []string
	gotPrompt  string
}

func (f *fakeVideos) GetVideo(ctx context.Context, indexID, videoID string) (*twelvelabs.Video, error) {
	if f.videoErr != nil {
		return nil, f.videoErr
	}
	return f.video, nil
}

func (f *fakeVideos) Search(ctx context.Context, indexID, videoID, query string, options []string, pageLimit int) ([]twelvelabs.SearchHit, error) {
	f.gotQuery = query
	f.gotOptions = options
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.hits, nil
}

func (f *fakeVideos) Summarize(ctx context.Context, videoID, prompt string, temperature *float64) (*twelvelabs.Summary, error) {
	f.gotPrompt = prompt
	if f.sumErr != nil {
		return nil, f.sumErr
	}
	return f.summary, nil
}

func (f *fakeVideos) ListTasks(ctx context.Context, indexID string, page, limit int) (*twelvelabs.TaskPage, error) {
	return f.taskPage, nil
}

type fakeClips struct {
	results []clips.Result
	dir     string
}

func (f *fakeClips) ExtractBatch(ctx context.Context, streamURL string, reqs []clips.Request) []clips.Result {
	return f.results
}

func (f *fakeClips) ResolveDownload(name string) (string, error) {
	if filepath.Base(name) != name || name == "" {
		return "", apperr.InvalidInput("invalid file name")
	}
	path := filepath.Join(f.dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", clips.ErrNotFound
	}
	return path, nil
}

type fakePlanner struct {
	resp chat.Response
	err  error
}

func (f *fakePlanner) Respond(ctx context.Context, sessionID, message string, video *chat.VideoContext) (chat.Response, error) {
	if f.err != nil {
		return chat.Response{}, f.err
	}
	return f.resp, nil
}

type fakeRefiner struct {
	out string
	err error
}

func (f *fakeRefiner) RefineCaption(ctx context.Context, caption, platform, tone string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.out, nil
}

type fakePublisher struct {
	result publish.Result
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, req publish.Request) (publish.Result, error) {
	if f.err != nil {
		return publish.Result{}, f.err
	}
	return f.result, nil
}

type fakeSMS struct {
	sid string
	err error
	got PublishSMSRequest
}

func (f *fakeSMS) Send(ctx context.Context, to, body string) (string, error) {
	f.got = PublishSMSRequest{ToPhoneNumber: to, MessageBody: body}
	if f.err != nil {
		return "", f.err
	}
	return f.sid, nil
}

type testEnv struct {
	uploads   *fakeUploads
	videos    *fakeVideos
	clips     *fakeClips
	planner   *fakePlanner
	refiner   *fakeRefiner
	publisher *fakePublisher
	sms       *fakeSMS
	router    http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		uploads:   &fakeUploads{},
		videos:    &fakeVideos{},
		clips:     &fakeClips{dir: t.TempDir()},
		planner:   &fakePlanner{},
		refiner:   &fakeRefiner{},
		publisher: &fakePublisher{},
		sms:       &fakeSMS{},
	}
	env.router = NewRouter(ServerConfig{
		Port:      8790,
		IndexID:   "idx-1",
		Uploads:   env.uploads,
		Videos:    env.videos,
		Clips:     env.clips,
		Planner:   env.planner,
		Refiner:   env.refiner,
		Publisher: env.publisher,
		SMS:       env.sms,
		Logger:    testLogger(),
		StartTime: time.Now(),
	})
	return env
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rec := doJSON(t, env.router, http.MethodGet, "/health", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeBody[HealthResponse](t, rec)
	if resp.Status != "ok" {
		t.Errorf("status field = %q, want ok", resp.Status)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header should be set")
	}
}

func multipartVideo(t *testing.T, field, filename, contentType, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte(content))
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestUploadEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.uploads.submitTask = store.UploadTask{TaskID: "task-1", Status: store.TaskPending, FileName: "demo.mp4"}

	body, contentType := multipartVideo(t, "video", "demo.mp4", "video/mp4", "bytes")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/videos", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[UploadResponse](t, rec)
	if resp.TaskID != "task-1" || resp.Status != store.TaskPending {
		t.Errorf("response = %+v", resp)
	}
}

func TestUploadEndpoint_RejectsNonVideo(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartVideo(t, "video", "photo.png", "image/png", "bytes")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/videos", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	resp := decodeBody[ErrorResponse](t, rec)
	if resp.Code != string(apperr.KindInvalidInput) {
		t.Errorf("code = %q, want %q", resp.Code, apperr.KindInvalidInput)
	}
}

func TestUploadEndpoint_MissingFile(t *testing.T) {
	env := newTestEnv(t)
	rec := doJSON(t, env.router, http.MethodPost, "/api/v1/videos", map[string]string{"not": "multipart"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestTaskStatusEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.uploads.pollTask = store.UploadTask{TaskID: "task-1", Status: store.TaskReady, VideoID: "vid-7"}

	rec := doJSON(t, env.router, http.MethodGet, "/api/v1/tasks/task-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeBody[TaskStatusResponse](t, rec)
	if resp.Status != store.TaskReady || resp.VideoID != "vid-7" {
		t.Errorf("response = %+v", resp)
	}
}

func TestTaskStatusEndpoint_VendorErrorPassThrough(t *testing.T) {
	env := newTestEnv(t)
	env.uploads.pollErr = apperr.Vendor("task not found", 404, `{"message":"task not found"}`)

	rec := doJSON(t, env.router, http.MethodGet, "/api/v1/tasks/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	resp := decodeBody[ErrorResponse](t, rec)
	if resp.Details != "task not found" {
		t.Errorf("details = %q", resp.Details)
	}
	if resp.Code != string(apperr.KindVendor) {
		t.Errorf("code = %q, want %q", resp.Code, apperr.KindVendor)
	}
}

func TestListVideosEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.videos.taskPage = &twelvelabs.TaskPage{
		Data: []twelvelabs.TaskListItem{
			{ID: "task-1", VideoID: "vid-1", SystemMetadata: twelvelabs.SystemMetadata{Filename: "a.mp4"}},
			{ID: "task-2", VideoID: ""},
		},
	}

	rec := doJSON(t, env.router, http.MethodGet, "/api/v1/videos", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeBody[VideoListResponse](t, rec)
	if len(resp.Videos) != 1 {
		t.Fatalf("videos = %d, want 1 (entries without a video ID dropped)", len(resp.Videos))
	}
	if resp.Videos[0].Filename != "a.mp4" {
		t.Errorf("filename = %q", resp.Videos[0].Filename)
	}
}

func TestGetVideoEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.videos.video = &twelvelabs.Video{
		ID: "vid-7",
		SystemMetadata: twelvelabs.SystemMetadata{
			Filename: "launch.mp4", Duration: 320, Width: 1920, Height: 1080,
		},
		HLS: &twelvelabs.HLSInfo{VideoURL: "https://cdn/stream.m3u8"},
	}

	rec := doJSON(t, env.router, http.MethodGet, "/api/v1/videos/vid-7", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeBody[VideoResponse](t, rec)
	if resp.HLSURL != "https://cdn/stream.m3u8" {
		t.Errorf("hls url = %q", resp.HLSURL)
	}
	if resp.Duration != 320 {
		t.Errorf("duration = %v", resp.Duration)
	}
}

func TestSearchEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.videos.hits = []twelvelabs.SearchHit{{Start: 10, End: 25, Score: 88.5, Confidence: "high"}}

	rec := doJSON(t, env.router, http.MethodPost, "/api/v1/videos/vid-7/search", SearchRequest{
		Query:         "person waving",
		SearchOptions: []string{"visual"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeBody[SearchResponse](t, rec)
	if len(resp.Hits) != 1 || resp.Hits[0].Start != 10 {
		t.Errorf("hits = %+v", resp.Hits)
	}
	if env.videos.gotQuery != "person waving" {
		t.Errorf("query = %q", env.videos.gotQuery)
	}
}

func TestSearchEndpoint_EmptyQuery(t *testing.T) {
	env := newTestEnv(t)
	rec := doJSON(t, env.router, http.MethodPost, "/api/v1/videos/vid-7/search", SearchRequest{Query: "  "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAnalyzeEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.videos.summary = &twelvelabs.Summary{
		ID:      "sum-1",
		Summary: "A tutorial showing how to set up the pipeline step by step.",
	}

	rec := doJSON(t, env.router, http.MethodPost, "/api/v1/videos/vid-7/analyze", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeBody[AnalyzeResponse](t, rec)
	if resp.Insights.ContentType != "tutorial" {
		t.Errorf("content type = %q, want tutorial", resp.Insights.ContentType)
	}
	if !strings.Contains(env.videos.gotPrompt, "comprehensive analysis") {
		t.Errorf("analyze should use the analysis prompt, got %q", env.videos.gotPrompt)
	}
}

func TestCreateClipsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.videos.video = &twelvelabs.Video{
		ID:  "vid-7",
		HLS: &twelvelabs.HLSInfo{VideoURL: "https://cdn/stream.m3u8"},
	}
	env.clips.results = []clips.Result{
		{Index: 0, Start: 0, End: 10, FileName: "clip_1_0s-10s_ab12cd34.mp4", Strategy: "stream-copy"},
		{Index: 1, Start: 20, End: 30, Error: "all extraction strategies failed"},
	}

	rec := doJSON(t, env.router, http.MethodPost, "/api/v1/videos/vid-7/clips", ClipsRequest{
		Segments: []clips.Request{{Start: 0, End: 10}, {Start: 20, End: 30}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (partial failures stay in-band), body %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[ClipsResponse](t, rec)
	if len(resp.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(resp.Results))
	}
	if resp.Results[0].DownloadURL != "/api/v1/clips/download?file=clip_1_0s-10s_ab12cd34.mp4" {
		t.Errorf("download url = %q", resp.Results[0].DownloadURL)
	}
	if resp.Results[1].DownloadURL != "" {
		t.Error("failed result should carry no download URL")
	}
	if resp.Results[1].Error == "" {
		t.Error("failed result should carry its error")
	}
}

func TestCreateClipsEndpoint_EmptyBatch(t *testing.T) {
	env := newTestEnv(t)
	rec := doJSON(t, env.router, http.MethodPost, "/api/v1/videos/vid-7/clips", ClipsRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreateClipsEndpoint_NoStream(t *testing.T) {
	env := newTestEnv(t)
	env.videos.video = &twelvelabs.Video{ID: "vid-7"}

	rec := doJSON(t, env.router, http.MethodPost, "/api/v1/videos/vid-7/clips", ClipsRequest{
		Segments: []clips.Request{{Start: 0, End: 10}},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDownloadEndpoint(t *testing.T) {
	env := newTestEnv(t)
	name := "clip_1_0s-10s_ab12cd34.mp4"
	if err := os.WriteFile(filepath.Join(env.clips.dir, name), []byte("mp4-bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	rec := doJSON(t, env.router, http.MethodGet, "/api/v1/clips/download?file="+name, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "mp4-bytes" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), name) {
		t.Errorf("content disposition = %q", rec.Header().Get("Content-Disposition"))
	}
}

func TestDownloadEndpoint_NotFound(t *testing.T) {
	env := newTestEnv(t)
	rec := doJSON(t, env.router, http.MethodGet, "/api/v1/clips/download?file=missing.mp4", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestDownloadEndpoint_Traversal(t *testing.T) {
	env := newTestEnv(t)
	rec := doJSON(t, env.router, http.MethodGet, "/api/v1/clips/download?file="+
		"..%2F..%2Fetc%2Fpasswd", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestChatEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.planner.resp = chat.Response{
		SessionID: "sess-1",
		Message:   "I planned one search.",
		SearchQueries: []chat.SearchQuery{
			{ID: "q1", QueryText: "the demo", SearchOptions: []string{"visual"}},
		},
	}

	rec := doJSON(t, env.router, http.MethodPost, "/api/v1/chat", ChatRequest{Message: "find the demo"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeBody[ChatResponse](t, rec)
	if resp.Reply != "I planned one search." {
		t.Errorf("reply = %q", resp.Reply)
	}
	if len(resp.SearchQueries) != 1 {
		t.Errorf("queries = %d, want 1", len(resp.SearchQueries))
	}
}

func TestRefineCaptionEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.refiner.out = "Check this out! #launch"

	rec := doJSON(t, env.router, http.MethodPost, "/api/v1/captions/refine", RefineCaptionRequest{
		Text: "check this out", Platform: "twitter",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeBody[RefineCaptionResponse](t, rec)
	if resp.RefinedText != "Check this out! #launch" {
		t.Errorf("refined = %q", resp.RefinedText)
	}
}

func TestPublishStorageEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.publisher.result = publish.Result{
		PublicURL: "https://bucket.nyc3.digitaloceanspaces.com/video-clips/u-clip.mp4",
		Key:       "video-clips/u-clip.mp4",
	}

	rec := doJSON(t, env.router, http.MethodPost, "/api/v1/publish/storage", publish.Request{
		SourceURL: "https://example.com/clip.mp4",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeBody[PublishStorageResponse](t, rec)
	if resp.PublicURL == "" || resp.Key == "" {
		t.Errorf("response = %+v", resp)
	}
}

func TestPublishSMSEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.sms.sid = "SM123"

	rec := doJSON(t, env.router, http.MethodPost, "/api/v1/publish/sms", PublishSMSRequest{
		ToPhoneNumber: "+15551234567", MessageBody: "your clip is ready",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeBody[PublishSMSResponse](t, rec)
	if resp.MessageSID != "SM123" {
		t.Errorf("sid = %q", resp.MessageSID)
	}
	if env.sms.got.ToPhoneNumber != "+15551234567" {
		t.Errorf("to = %q", env.sms.got.ToPhoneNumber)
	}
}

func TestPublishSMSEndpoint_ConfigurationError(t *testing.T) {
	env := newTestEnv(t)
	env.sms.err = apperr.Configuration("SMS credentials are not configured")

	rec := doJSON(t, env.router, http.MethodPost, "/api/v1/publish/sms", PublishSMSRequest{
		ToPhoneNumber: "+15551234567", MessageBody: "hi",
	})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestInvalidJSONBody(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
