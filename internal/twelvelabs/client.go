package twelvelabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/danschewy/twelvesocial/internal/apperr"
)

const (
	maxErrorBodyBytes = 4096

	// One timeout for the whole client; uploads dominate, and poll/search
	// calls are bounded by the caller's context.
	clientTimeout = 5 * time.Minute
)

// Client talks to the video-understanding REST API. All methods return
// *apperr.Error (wrapped) on failure: a non-2xx response is never shaped
// like success.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(baseURL, apiKey string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: clientTimeout,
		},
		logger: logger,
	}
}

// CreateTask submits a video for indexing and returns the vendor task ID.
func (c *Client) CreateTask(ctx context.Context, indexID, filename, contentType string, video io.Reader) (string, error) {
	if c.apiKey == "" {
		return "", apperr.Configuration("video API key is not configured")
	}
	if indexID == "" {
		return "", apperr.Configuration("video index ID is not configured")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := mw.WriteField("index_id", indexID); err != nil {
		return "", fmt.Errorf("write index_id field: %w", err)
	}
	if err := mw.WriteField("enable_video_stream", "true"); err != nil {
		return "", fmt.Errorf("write enable_video_stream field: %w", err)
	}

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="video_file"; filename=%q`, filename))
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return "", fmt.Errorf("create video_file part: %w", err)
	}
	if _, err := io.Copy(part, video); err != nil {
		return "", fmt.Errorf("copy video payload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tasks", &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	c.logger.Info("submitting video for indexing",
		"index_id", indexID,
		"filename", filename,
		"body_bytes", body.Len(),
	)

	var task Task
	if err := c.do(req, &task); err != nil {
		return "", fmt.Errorf("submit video: %w", err)
	}
	if task.ID == "" {
		return "", apperr.Vendor("task ID missing from upload response", 0, "")
	}
	return task.ID, nil
}

// GetTask fetches the current state of a processing task. Safe to call
// repeatedly; every call is a fresh round-trip.
func (c *Client) GetTask(ctx context.Context, taskID string) (*Task, error) {
	req, err := c.jsonRequest(ctx, http.MethodGet, "/tasks/"+url.PathEscape(taskID), nil)
	if err != nil {
		return nil, err
	}

	var task Task
	if err := c.do(req, &task); err != nil {
		return nil, fmt.Errorf("retrieve task %s: %w", taskID, err)
	}
	return &task, nil
}

// GetVideo fetches details for an indexed video, including the playable
// HLS stream URL clip extraction reads from.
func (c *Client) GetVideo(ctx context.Context, indexID, videoID string) (*Video, error) {
	path := "/indexes/" + url.PathEscape(indexID) + "/videos/" + url.PathEscape(videoID)
	req, err := c.jsonRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var video Video
	if err := c.do(req, &video); err != nil {
		return nil, fmt.Errorf("retrieve video %s: %w", videoID, err)
	}
	return &video, nil
}

// Search runs a free-text query scoped to a single video. options is the
// vendor's modality vocabulary (visual, audio).
func (c *Client) Search(ctx context.Context, indexID, videoID, query string, options []string, pageLimit int) ([]SearchHit, error) {
	if c.apiKey == "" {
		return nil, apperr.Configuration("video API key is not configured")
	}
	if pageLimit <= 0 {
		pageLimit = 50
	}

	filter, err := json.Marshal(map[string][]string{"id": {videoID}})
	if err != nil {
		return nil, fmt.Errorf("marshal search filter: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fields := map[string]string{
		"index_id":   indexID,
		"query_text": query,
		"filter":     string(filter),
		"page_limit": strconv.Itoa(pageLimit),
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("write %s field: %w", k, err)
		}
	}
	for _, option := range options {
		if err := mw.WriteField("search_options", option); err != nil {
			return nil, fmt.Errorf("write search_options field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var result struct {
		Data []SearchHit `json:"data"`
	}
	if err := c.do(req, &result); err != nil {
		return nil, fmt.Errorf("search video %s: %w", videoID, err)
	}

	c.logger.Info("video search complete",
		"video_id", videoID,
		"query", query,
		"hits", len(result.Data),
	)
	return result.Data, nil
}

// Summarize runs the one-shot summarize endpoint. temperature may be nil.
func (c *Client) Summarize(ctx context.Context, videoID, prompt string, temperature *float64) (*Summary, error) {
	payload := map[string]any{
		"video_id": videoID,
		"type":     "summary",
	}
	if prompt != "" {
		payload["prompt"] = prompt
	}
	if temperature != nil {
		payload["temperature"] = *temperature
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal summarize request: %w", err)
	}

	req, err := c.jsonRequest(ctx, http.MethodPost, "/summarize", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var summary Summary
	if err := c.do(req, &summary); err != nil {
		return nil, fmt.Errorf("summarize video %s: %w", videoID, err)
	}
	if summary.Summary == "" || summary.ID == "" {
		return nil, apperr.Vendor("unexpected summarize response shape", 0, "")
	}
	return &summary, nil
}

// ListTasks returns one page of finished tasks for an index, newest first.
func (c *Client) ListTasks(ctx context.Context, indexID string, page, limit int) (*TaskPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 50 {
		limit = 10
	}

	q := url.Values{}
	q.Set("index_id", indexID)
	q.Set("status", "ready")
	q.Set("page", strconv.Itoa(page))
	q.Set("page_limit", strconv.Itoa(limit))
	q.Set("sort_by", "created_at")
	q.Set("sort_option", "desc")

	req, err := c.jsonRequest(ctx, http.MethodGet, "/tasks?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var pageData TaskPage
	if err := c.do(req, &pageData); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return &pageData, nil
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if c.apiKey == "" {
		return nil, apperr.Configuration("video API key is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	return req, nil
}

// do executes the request, normalizes failures, and decodes 2xx bodies
// into out.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.Transport("video service unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return normalizeError(resp.StatusCode, raw)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Vendor("malformed response body", resp.StatusCode, "")
	}
	return nil
}

// normalizeError folds the vendor's inconsistent error body shapes
// (bare string, {message}, {detail}) into one error value.
func normalizeError(status int, raw []byte) *apperr.Error {
	body := strings.TrimSpace(string(raw))
	message := extractMessage(raw)
	if message == "" {
		message = body
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return apperr.Vendor(message, status, body)
}

func extractMessage(raw []byte) string {
	var parsed vendorErrorBody
	if err := json.Unmarshal(raw, &parsed); err != nil {
		// Not JSON; the body may be a bare string or plain text.
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return s
		}
		return ""
	}
	if parsed.Message != "" {
		return parsed.Message
	}
	if len(parsed.Detail) > 0 {
		var s string
		if json.Unmarshal(parsed.Detail, &s) == nil {
			return s
		}
		return string(parsed.Detail)
	}
	return ""
}
