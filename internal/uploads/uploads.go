// Package uploads handles video submission and indexing-status polls.
package uploads

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/danschewy/twelvesocial/internal/apperr"
	"github.com/danschewy/twelvesocial/internal/store"
	"github.com/danschewy/twelvesocial/internal/twelvelabs"
)

// Aspect ratio bounds the vendor accepts, width divided by height.
// Square through widescreen.
const (
	minAspectRatio = 1.0
	maxAspectRatio = 16.0 / 9.0
)

// taskClient is the slice of the vendor API this package uses.
type taskClient interface {
	CreateTask(ctx context.Context, indexID, filename, contentType string, video io.Reader) (string, error)
	GetTask(ctx context.Context, taskID string) (*twelvelabs.Task, error)
}

// Service validates incoming videos, submits them for indexing, and
// answers status polls from persisted task state.
type Service struct {
	client  taskClient
	tasks   store.TaskStore
	indexID string
	logger  *slog.Logger
}

func NewService(client taskClient, tasks store.TaskStore, indexID string, logger *slog.Logger) *Service {
	return &Service{client: client, tasks: tasks, indexID: indexID, logger: logger}
}

// ValidateVideo rejects non-video payloads and, when dimensions are
// known, aspect ratios outside the vendor's accepted range. Zero
// dimensions mean the caller could not probe them; the ratio check is
// skipped rather than guessed.
func ValidateVideo(contentType string, width, height int) error {
	if !strings.HasPrefix(contentType, "video/") {
		return apperr.InvalidInput(fmt.Sprintf("unsupported content type %q, expected a video file", contentType))
	}
	if width > 0 && height > 0 {
		ratio := float64(width) / float64(height)
		if ratio < minAspectRatio || ratio > maxAspectRatio {
			return apperr.InvalidInput(fmt.Sprintf(
				"aspect ratio %d:%d is outside the supported range (1:1 to 16:9)", width, height))
		}
	}
	return nil
}

// Submit sends the video to the indexing vendor and records a pending
// task. The returned ID is what clients poll with.
func (s *Service) Submit(ctx context.Context, filename, contentType string, width, height int, video io.Reader) (store.UploadTask, error) {
	if err := ValidateVideo(contentType, width, height); err != nil {
		return store.UploadTask{}, err
	}

	taskID, err := s.client.CreateTask(ctx, s.indexID, filename, contentType, video)
	if err != nil {
		return store.UploadTask{}, err
	}

	now := time.Now().UTC()
	task := store.UploadTask{
		TaskID:    taskID,
		Status:    store.TaskPending,
		FileName:  filename,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.tasks.SaveTask(ctx, task); err != nil {
		return store.UploadTask{}, fmt.Errorf("record upload task: %w", err)
	}

	s.logger.Info("video submitted for indexing",
		"task_id", taskID,
		"filename", filename,
	)
	return task, nil
}

// PollStatus asks the vendor for the task's current state, folds it
// into the local lifecycle, persists the transition, and returns the
// updated task. Unknown task IDs surface store.ErrTaskNotFound only
// when the vendor does not know them either.
func (s *Service) PollStatus(ctx context.Context, taskID string) (store.UploadTask, error) {
	vendorTask, err := s.client.GetTask(ctx, taskID)
	if err != nil {
		return store.UploadTask{}, err
	}

	task, storeErr := s.tasks.GetTask(ctx, taskID)
	if storeErr != nil {
		// Poll for a task submitted before a restart; reconstruct it.
		task = store.UploadTask{TaskID: taskID, CreatedAt: time.Now().UTC()}
	}

	task.Status = MapStatus(vendorTask.Status)
	if task.Status == store.TaskReady {
		if vendorTask.VideoID == "" {
			return store.UploadTask{}, apperr.Vendor("task ready but video ID missing", 0, "")
		}
		task.VideoID = vendorTask.VideoID
	} else {
		task.VideoID = ""
	}
	task.UpdatedAt = time.Now().UTC()

	if err := s.tasks.SaveTask(ctx, task); err != nil {
		return store.UploadTask{}, fmt.Errorf("record task status: %w", err)
	}

	return task, nil
}

// MapStatus folds the vendor's task states into the four client-facing
// ones. Unrecognized states count as processing; the vendor adds
// intermediate states without notice.
func MapStatus(vendorStatus string) string {
	switch vendorStatus {
	case "pending", "validating", "queued":
		return store.TaskPending
	case "indexing":
		return store.TaskProcessing
	case "ready":
		return store.TaskReady
	case "failed", "error":
		return store.TaskFailed
	default:
		return store.TaskProcessing
	}
}
