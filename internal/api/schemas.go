package api

import (
	"github.com/danschewy/twelvesocial/internal/chat"
	"github.com/danschewy/twelvesocial/internal/clips"
	"github.com/danschewy/twelvesocial/internal/insights"
	"github.com/danschewy/twelvesocial/internal/twelvelabs"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Code    string `json:"code,omitempty"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type UploadResponse struct {
	TaskID   string `json:"taskId"`
	Status   string `json:"status"`
	FileName string `json:"fileName"`
}

type TaskStatusResponse struct {
	TaskID  string `json:"taskId"`
	Status  string `json:"status"`
	VideoID string `json:"videoId,omitempty"`
}

type VideoListResponse struct {
	Videos []VideoListItem `json:"videos"`
}

type VideoListItem struct {
	VideoID   string `json:"videoId"`
	TaskID    string `json:"taskId"`
	Filename  string `json:"filename,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

type VideoResponse struct {
	VideoID  string  `json:"videoId"`
	Filename string  `json:"filename,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
	HLSURL   string  `json:"hlsUrl,omitempty"`
}

type SearchRequest struct {
	Query         string   `json:"query"`
	SearchOptions []string `json:"searchOptions,omitempty"`
	PageLimit     int      `json:"pageLimit,omitempty"`
}

type SearchResponse struct {
	Hits []twelvelabs.SearchHit `json:"hits"`
}

type SummarizeRequest struct {
	Prompt      string   `json:"prompt,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

type SummarizeResponse struct {
	JobID   string `json:"jobId"`
	Summary string `json:"summary"`
}

type AnalyzeResponse struct {
	VideoID    string            `json:"videoId"`
	Summary    string            `json:"summary"`
	Insights   insights.Insights `json:"insights"`
	AnalyzedAt string            `json:"analyzedAt"`
}

type ClipsRequest struct {
	Segments []clips.Request `json:"segments"`
}

type ClipsResponse struct {
	Results []clipResult `json:"results"`
}

// clipResult is clips.Result plus the download URL route knowledge the
// clips package should not have.
type clipResult struct {
	clips.Result
	DownloadURL string `json:"downloadUrl,omitempty"`
}

type ChatRequest struct {
	SessionID string             `json:"sessionId,omitempty"`
	Message   string             `json:"message"`
	Video     *chat.VideoContext `json:"video,omitempty"`
}

type ChatResponse struct {
	SessionID     string             `json:"sessionId"`
	Reply         string             `json:"reply"`
	SearchQueries []chat.SearchQuery `json:"searchQueries,omitempty"`
}

type RefineCaptionRequest struct {
	Text     string `json:"text"`
	Platform string `json:"platform,omitempty"`
	Tone     string `json:"tone,omitempty"`
}

type RefineCaptionResponse struct {
	RefinedText string `json:"refinedText"`
}

type PublishStorageResponse struct {
	PublicURL string `json:"publicUrl"`
	Key       string `json:"key"`
}

type PublishSMSRequest struct {
	ToPhoneNumber string `json:"toPhoneNumber"`
	MessageBody   string `json:"messageBody"`
}

type PublishSMSResponse struct {
	MessageSID string `json:"messageSid"`
}
