package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrTaskNotFound reports a lookup for an unknown task ID.
var ErrTaskNotFound = errors.New("upload task not found")

// Upload task lifecycle states as exposed to clients. Vendor states are
// folded into these four before they ever reach a response body.
const (
	TaskPending    = "pending"
	TaskProcessing = "processing"
	TaskReady      = "ready"
	TaskFailed     = "failed"
)

// UploadTask tracks one video submission through indexing. VideoID is
// populated exactly when Status is ready.
type UploadTask struct {
	TaskID    string    `json:"taskId"`
	Status    string    `json:"status"`
	VideoID   string    `json:"videoId,omitempty"`
	FileName  string    `json:"fileName,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TaskStore persists upload tasks across poll requests.
type TaskStore interface {
	SaveTask(ctx context.Context, task UploadTask) error
	GetTask(ctx context.Context, taskID string) (UploadTask, error)
}

// MemoryTaskStore is the default in-process TaskStore.
type MemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[string]UploadTask
}

func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{tasks: make(map[string]UploadTask)}
}

func (s *MemoryTaskStore) SaveTask(_ context.Context, task UploadTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.TaskID] = task
	return nil
}

func (s *MemoryTaskStore) GetTask(_ context.Context, taskID string) (UploadTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return UploadTask{}, ErrTaskNotFound
	}
	return task, nil
}

// SaveTask upserts a task row, bumping updated_at.
func (d *DB) SaveTask(ctx context.Context, task UploadTask) error {
	now := time.Now().UTC()
	createdAt := task.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO upload_tasks (task_id, status, video_id, file_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			status = excluded.status,
			video_id = excluded.video_id,
			updated_at = excluded.updated_at`,
		task.TaskID, task.Status, task.VideoID, task.FileName,
		createdAt.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save upload task: %w", err)
	}
	return nil
}

func (d *DB) GetTask(ctx context.Context, taskID string) (UploadTask, error) {
	row := d.conn.QueryRowContext(ctx, `
		SELECT task_id, status, video_id, file_name, created_at, updated_at
		FROM upload_tasks WHERE task_id = ?`, taskID)

	var task UploadTask
	var createdAt, updatedAt string
	err := row.Scan(&task.TaskID, &task.Status, &task.VideoID, &task.FileName, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return UploadTask{}, ErrTaskNotFound
	}
	if err != nil {
		return UploadTask{}, fmt.Errorf("load upload task: %w", err)
	}

	task.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	task.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return task, nil
}
