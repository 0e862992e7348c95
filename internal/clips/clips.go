// Package clips turns search hits into downloadable MP4 files on local
// disk. Extraction failures are isolated per clip so one bad window
// never sinks the whole batch.
package clips

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/danschewy/twelvesocial/internal/apperr"
)

// ErrNotFound reports a download request for a clip that does not
// exist on disk.
var ErrNotFound = errors.New("clip not found")

// Request describes one clip to cut from an indexed video's stream.
type Request struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	ID    string  `json:"id,omitempty"`
}

// Result reports one clip outcome. Exactly one of FileName or Error is
// set; a batch always returns one Result per Request, in order.
type Result struct {
	Index    int     `json:"index"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	ID       string  `json:"id,omitempty"`
	FileName string  `json:"fileName,omitempty"`
	Strategy string  `json:"strategy,omitempty"`
	Message  string  `json:"message,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// extractor cuts one window out of a stream URL. Satisfied by
// *ffmpeg.Extractor.
type extractor interface {
	Extract(ctx context.Context, input string, start, duration float64, output string) (string, error)
}

// Service owns the clip output directory and the extraction backend.
type Service struct {
	extractor extractor
	clipDir   string
	logger    *slog.Logger
}

func NewService(ex extractor, clipDir string, logger *slog.Logger) (*Service, error) {
	if err := os.MkdirAll(clipDir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create clip dir: %w", err)
	}
	return &Service{extractor: ex, clipDir: clipDir, logger: logger}, nil
}

// ClipDir returns the directory extracted clips are written to.
func (s *Service) ClipDir() string {
	return s.clipDir
}

// ValidateBatch rejects an empty batch before any ffmpeg work starts.
// Malformed windows are handled per item inside ExtractBatch so one bad
// range does not discard its siblings.
func ValidateBatch(reqs []Request) error {
	if len(reqs) == 0 {
		return apperr.InvalidInput("at least one clip is required")
	}
	return nil
}

func validateWindow(r Request) error {
	if r.Start < 0 {
		return apperr.InvalidInput("start must not be negative")
	}
	if r.End <= r.Start {
		return apperr.InvalidInput("end must be greater than start")
	}
	return nil
}

// ExtractBatch cuts every requested window from streamURL. The returned
// slice always has len(reqs) entries in request order; entries that
// failed carry Error instead of FileName.
func (s *Service) ExtractBatch(ctx context.Context, streamURL string, reqs []Request) []Result {
	results := make([]Result, len(reqs))

	for i, req := range reqs {
		results[i] = Result{Index: i, Start: req.Start, End: req.End, ID: req.ID}

		if ctx.Err() != nil {
			results[i].Error = "extraction cancelled"
			continue
		}

		// A bad window never reaches ffmpeg.
		if err := validateWindow(req); err != nil {
			results[i].Error = err.Error()
			continue
		}

		fileName := clipFileName(i+1, req.Start, req.End)
		outPath := filepath.Join(s.clipDir, fileName)

		s.logger.Info("extracting clip",
			"clip", i+1,
			"total", len(reqs),
			"start", req.Start,
			"end", req.End,
		)

		strategy, err := s.extractor.Extract(ctx, streamURL, req.Start, req.End-req.Start, outPath)
		if err != nil {
			s.logger.Error("clip extraction failed",
				"clip", i+1,
				"error", err,
			)
			// Do not leave partial output behind.
			os.Remove(outPath)
			results[i].Error = err.Error()
			continue
		}

		results[i].FileName = fileName
		results[i].Strategy = strategy
		results[i].Message = fmt.Sprintf("clip %d created", i+1)
	}

	return results
}

// clipFileName builds a collision-free name that stays meaningful to a
// human downloading it: ordinal, window, short random suffix.
func clipFileName(ordinal int, start, end float64) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("clip_%d_%ds-%ds_%s.mp4", ordinal, int(start), int(end), suffix)
}

// ResolveDownload maps a user-supplied file name to a path inside the
// clip directory. Any name that is not a bare file name is rejected, so
// traversal sequences can never escape the directory.
func (s *Service) ResolveDownload(name string) (string, error) {
	if name == "" {
		return "", apperr.InvalidInput("file name is required")
	}
	if filepath.Base(name) != name || name == "." || name == ".." {
		return "", apperr.InvalidInput("invalid file name")
	}

	path := filepath.Join(s.clipDir, name)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("stat clip: %w", err)
	}
	if info.IsDir() {
		return "", apperr.InvalidInput("invalid file name")
	}
	return path, nil
}
