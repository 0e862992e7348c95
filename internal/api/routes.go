package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/danschewy/twelvesocial/internal/apperr"
	"github.com/danschewy/twelvesocial/internal/chat"
	"github.com/danschewy/twelvesocial/internal/clips"
	"github.com/danschewy/twelvesocial/internal/config"
	"github.com/danschewy/twelvesocial/internal/insights"
	"github.com/danschewy/twelvesocial/internal/publish"
	"github.com/danschewy/twelvesocial/internal/store"
	"github.com/danschewy/twelvesocial/internal/twelvelabs"
)

// The handler layer consumes narrow interfaces so routes can be tested
// against fakes without standing up vendor clients.

type uploadService interface {
	Submit(ctx context.Context, filename, contentType string, width, height int, video io.Reader) (store.UploadTask, error)
	PollStatus(ctx context.Context, taskID string) (store.UploadTask, error)
}

type videoService interface {
	GetVideo(ctx context.Context, indexID, videoID string) (*twelvelabs.Video, error)
	Search(ctx context.Context, indexID, videoID, query string, options []string, pageLimit int) ([]twelvelabs.SearchHit, error)
	Summarize(ctx context.Context, videoID, prompt string, temperature *float64) (*twelvelabs.Summary, error)
	ListTasks(ctx context.Context, indexID string, page, limit int) (*twelvelabs.TaskPage, error)
}

type clipService interface {
	ExtractBatch(ctx context.Context, streamURL string, reqs []clips.Request) []clips.Result
	ResolveDownload(name string) (string, error)
}

type chatPlanner interface {
	Respond(ctx context.Context, sessionID, message string, video *chat.VideoContext) (chat.Response, error)
}

type captionRefiner interface {
	RefineCaption(ctx context.Context, caption, platform, tone string) (string, error)
}

type clipPublisher interface {
	Publish(ctx context.Context, req publish.Request) (publish.Result, error)
}

type smsSender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

type ServerConfig struct {
	Port           int
	AllowedOrigins []string
	IndexID        string
	Uploads        uploadService
	Videos         videoService
	Clips          clipService
	Planner        chatPlanner
	Refiner        captionRefiner
	Publisher      clipPublisher
	SMS            smsSender
	Logger         *slog.Logger
	StartTime      time.Time
}

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/videos", uploadHandler(cfg))
		r.Get("/videos", listVideosHandler(cfg))
		r.Get("/tasks/{taskID}", taskStatusHandler(cfg))
		r.Get("/videos/{videoID}", getVideoHandler(cfg))
		r.Post("/videos/{videoID}/search", searchHandler(cfg))
		r.Post("/videos/{videoID}/summarize", summarizeHandler(cfg))
		r.Post("/videos/{videoID}/analyze", analyzeHandler(cfg))
		r.Post("/videos/{videoID}/clips", createClipsHandler(cfg))
		r.Get("/clips/download", downloadClipHandler(cfg))
		r.Post("/chat", chatHandler(cfg))
		r.Post("/captions/refine", refineCaptionHandler(cfg))
		r.Post("/publish/storage", publishStorageHandler(cfg))
		r.Post("/publish/sms", publishSMSHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: config.Version,
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
		})
	}
}

func uploadHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("video")
		if err != nil {
			WriteError(w, http.StatusBadRequest, "no video file provided", string(apperr.KindInvalidInput))
			return
		}
		defer file.Close()

		contentType := header.Header.Get("Content-Type")
		width, _ := strconv.Atoi(r.FormValue("width"))
		height, _ := strconv.Atoi(r.FormValue("height"))

		task, err := cfg.Uploads.Submit(r.Context(), header.Filename, contentType, width, height, file)
		if err != nil {
			writeAppError(w, cfg.Logger, "video upload failed", err)
			return
		}

		WriteJSON(w, http.StatusAccepted, UploadResponse{
			TaskID:   task.TaskID,
			Status:   task.Status,
			FileName: task.FileName,
		})
	}
}

func taskStatusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taskID := chi.URLParam(r, "taskID")

		task, err := cfg.Uploads.PollStatus(r.Context(), taskID)
		if err != nil {
			writeAppError(w, cfg.Logger, "task status check failed", err)
			return
		}

		WriteJSON(w, http.StatusOK, TaskStatusResponse{
			TaskID:  task.TaskID,
			Status:  task.Status,
			VideoID: task.VideoID,
		})
	}
}

func listVideosHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		tasks, err := cfg.Videos.ListTasks(r.Context(), cfg.IndexID, page, limit)
		if err != nil {
			writeAppError(w, cfg.Logger, "video listing failed", err)
			return
		}

		resp := VideoListResponse{Videos: make([]VideoListItem, 0, len(tasks.Data))}
		for _, t := range tasks.Data {
			if t.VideoID == "" {
				continue
			}
			resp.Videos = append(resp.Videos, VideoListItem{
				VideoID:   t.VideoID,
				TaskID:    t.ID,
				Filename:  t.SystemMetadata.Filename,
				CreatedAt: t.CreatedAt,
			})
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videoID := chi.URLParam(r, "videoID")

		video, err := cfg.Videos.GetVideo(r.Context(), cfg.IndexID, videoID)
		if err != nil {
			writeAppError(w, cfg.Logger, "video lookup failed", err)
			return
		}

		resp := VideoResponse{
			VideoID:  video.ID,
			Filename: video.SystemMetadata.Filename,
			Duration: video.SystemMetadata.Duration,
			Width:    video.SystemMetadata.Width,
			Height:   video.SystemMetadata.Height,
		}
		if video.HLS != nil {
			resp.HLSURL = video.HLS.VideoURL
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func searchHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videoID := chi.URLParam(r, "videoID")

		var req SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", string(apperr.KindInvalidInput))
			return
		}
		if strings.TrimSpace(req.Query) == "" {
			WriteError(w, http.StatusBadRequest, "query is required", string(apperr.KindInvalidInput))
			return
		}

		hits, err := cfg.Videos.Search(r.Context(), cfg.IndexID, videoID, req.Query, req.SearchOptions, req.PageLimit)
		if err != nil {
			writeAppError(w, cfg.Logger, "video search failed", err)
			return
		}
		if hits == nil {
			hits = []twelvelabs.SearchHit{}
		}
		WriteJSON(w, http.StatusOK, SearchResponse{Hits: hits})
	}
}

func summarizeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videoID := chi.URLParam(r, "videoID")

		var req SummarizeRequest
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				WriteError(w, http.StatusBadRequest, "invalid request body", string(apperr.KindInvalidInput))
				return
			}
		}

		summary, err := cfg.Videos.Summarize(r.Context(), videoID, req.Prompt, req.Temperature)
		if err != nil {
			writeAppError(w, cfg.Logger, "video summarize failed", err)
			return
		}

		WriteJSON(w, http.StatusOK, SummarizeResponse{JobID: summary.ID, Summary: summary.Summary})
	}
}

func analyzeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videoID := chi.URLParam(r, "videoID")

		temp := insights.AnalysisTemperature
		summary, err := cfg.Videos.Summarize(r.Context(), videoID, insights.AnalysisPrompt, &temp)
		if err != nil {
			writeAppError(w, cfg.Logger, "video analysis failed", err)
			return
		}

		WriteJSON(w, http.StatusOK, AnalyzeResponse{
			VideoID:    videoID,
			Summary:    summary.Summary,
			Insights:   insights.Extract(summary.Summary),
			AnalyzedAt: time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func createClipsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videoID := chi.URLParam(r, "videoID")

		var req ClipsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", string(apperr.KindInvalidInput))
			return
		}
		if err := clips.ValidateBatch(req.Segments); err != nil {
			writeAppError(w, cfg.Logger, "clip request rejected", err)
			return
		}

		video, err := cfg.Videos.GetVideo(r.Context(), cfg.IndexID, videoID)
		if err != nil {
			writeAppError(w, cfg.Logger, "video lookup failed", err)
			return
		}
		if video.HLS == nil || video.HLS.VideoURL == "" {
			writeAppError(w, cfg.Logger, "clip extraction failed",
				apperr.InvalidInput("video has no playable stream; upload it with streaming enabled"))
			return
		}

		results := cfg.Clips.ExtractBatch(r.Context(), video.HLS.VideoURL, req.Segments)

		resp := ClipsResponse{Results: make([]clipResult, len(results))}
		for i, res := range results {
			resp.Results[i] = clipResult{Result: res}
			if res.FileName != "" {
				resp.Results[i].DownloadURL = "/api/v1/clips/download?file=" + url.QueryEscape(res.FileName)
			}
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func downloadClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("file")

		path, err := cfg.Clips.ResolveDownload(name)
		if err != nil {
			if errors.Is(err, clips.ErrNotFound) {
				WriteError(w, http.StatusNotFound, "clip not found", "NOT_FOUND")
				return
			}
			writeAppError(w, cfg.Logger, "clip download rejected", err)
			return
		}

		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
		http.ServeFile(w, r, path)
	}
}

func chatHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", string(apperr.KindInvalidInput))
			return
		}

		resp, err := cfg.Planner.Respond(r.Context(), req.SessionID, req.Message, req.Video)
		if err != nil {
			writeAppError(w, cfg.Logger, "chat turn failed", err)
			return
		}

		WriteJSON(w, http.StatusOK, ChatResponse{
			SessionID:     resp.SessionID,
			Reply:         resp.Message,
			SearchQueries: resp.SearchQueries,
		})
	}
}

func refineCaptionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RefineCaptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", string(apperr.KindInvalidInput))
			return
		}

		refined, err := cfg.Refiner.RefineCaption(r.Context(), req.Text, req.Platform, req.Tone)
		if err != nil {
			writeAppError(w, cfg.Logger, "caption refinement failed", err)
			return
		}
		WriteJSON(w, http.StatusOK, RefineCaptionResponse{RefinedText: refined})
	}
}

func publishStorageHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req publish.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", string(apperr.KindInvalidInput))
			return
		}

		result, err := cfg.Publisher.Publish(r.Context(), req)
		if err != nil {
			writeAppError(w, cfg.Logger, "clip publish failed", err)
			return
		}
		WriteJSON(w, http.StatusOK, PublishStorageResponse{PublicURL: result.PublicURL, Key: result.Key})
	}
}

func publishSMSHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PublishSMSRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", string(apperr.KindInvalidInput))
			return
		}

		sid, err := cfg.SMS.Send(r.Context(), req.ToPhoneNumber, req.MessageBody)
		if err != nil {
			writeAppError(w, cfg.Logger, "sms delivery failed", err)
			return
		}
		WriteJSON(w, http.StatusOK, PublishSMSResponse{MessageSID: sid})
	}
}
