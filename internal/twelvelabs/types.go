// Package twelvelabs is the outbound client for the video-understanding
// service: task submission, polling, details, scoped search, summarize.
// It is a mapping layer only; the upload orchestrator owns the state machine.
package twelvelabs

import "encoding/json"

// Task mirrors the vendor's processing-task resource. Status uses the
// vendor's own vocabulary (pending, validating, queued, indexing, ready,
// failed); callers map it onto their own enum.
type Task struct {
	ID      string `json:"_id"`
	Status  string `json:"status"`
	VideoID string `json:"video_id,omitempty"`
}

// Video is the subset of the vendor's video resource the service uses.
type Video struct {
	ID             string         `json:"_id"`
	CreatedAt      string         `json:"created_at,omitempty"`
	UpdatedAt      string         `json:"updated_at,omitempty"`
	SystemMetadata SystemMetadata `json:"system_metadata"`
	HLS            *HLSInfo       `json:"hls,omitempty"`
}

type SystemMetadata struct {
	Filename string  `json:"filename,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
	FPS      float64 `json:"fps,omitempty"`
}

type HLSInfo struct {
	VideoURL      string   `json:"video_url,omitempty"`
	ThumbnailURLs []string `json:"thumbnail_urls,omitempty"`
	Status        string   `json:"status,omitempty"`
}

// SearchHit is a scored time range from the search endpoint. Read-only.
type SearchHit struct {
	Score        float64 `json:"score"`
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	Confidence   string  `json:"confidence"`
	ThumbnailURL string  `json:"thumbnail_url,omitempty"`
	VideoID      string  `json:"video_id,omitempty"`
}

// Summary is the one-shot summarize result.
type Summary struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
}

// TaskPage is one page of the task listing.
type TaskPage struct {
	Data     []TaskListItem `json:"data"`
	PageInfo PageInfo       `json:"page_info"`
}

type TaskListItem struct {
	ID             string         `json:"_id"`
	Status         string         `json:"status"`
	VideoID        string         `json:"video_id,omitempty"`
	CreatedAt      string         `json:"created_at,omitempty"`
	SystemMetadata SystemMetadata `json:"system_metadata"`
}

type PageInfo struct {
	Page         int `json:"page,omitempty"`
	TotalPage    int `json:"total_page,omitempty"`
	TotalResults int `json:"total_results,omitempty"`
	LimitPerPage int `json:"limit_per_page,omitempty"`
}

// vendorErrorBody covers the error shapes the vendor is known to emit:
// a bare string, {"message": ...}, or {"detail": ...} where detail may
// itself be a string or an object.
type vendorErrorBody struct {
	Message string          `json:"message"`
	Detail  json.RawMessage `json:"detail"`
}
