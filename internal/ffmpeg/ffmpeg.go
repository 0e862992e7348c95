// Package ffmpeg wraps the ffmpeg binary for clip extraction. Stream URLs
// served by the video vendor vary in codec friendliness, so extraction
// walks a ladder of encoding strategies instead of trusting any single
// invocation to work.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"time"
)

const (
	maxStderrBytes = 8 * 1024 // tail of stderr kept for diagnostics
)

// Strategy is one rung of the extraction ladder. Rungs are tried in
// order; a non-zero exit advances to the next rung.
type Strategy struct {
	Name string
	// Args builds the full ffmpeg argument list for one extraction.
	Args func(input string, start, duration float64, output string) []string
}

// Ladder returns the extraction strategies in preference order. Re-encoding
// with a silent audio bed comes first because social platforms reject
// soundless video files; stream copy is the cheap fallback when the
// source encode is already compatible.
func Ladder() []Strategy {
	return []Strategy{
		{
			Name: "reencode-silent-audio",
			Args: func(input string, start, duration float64, output string) []string {
				return []string{
					"-ss", formatSeconds(start),
					"-i", input,
					"-f", "lavfi",
					"-i", "anullsrc=channel_layout=stereo:sample_rate=44100",
					"-t", formatSeconds(duration),
					"-map", "0:v:0",
					"-map", "1:a:0",
					"-c:v", "libx264",
					"-preset", "fast",
					"-crf", "23",
					"-c:a", "aac",
					"-shortest",
					"-movflags", "+faststart",
					"-y", output,
				}
			},
		},
		{
			Name: "reencode-drop-audio",
			Args: func(input string, start, duration float64, output string) []string {
				return []string{
					"-ss", formatSeconds(start),
					"-i", input,
					"-t", formatSeconds(duration),
					"-c:v", "libx264",
					"-preset", "fast",
					"-crf", "23",
					"-an",
					"-movflags", "+faststart",
					"-y", output,
				}
			},
		},
		{
			Name: "stream-copy",
			Args: func(input string, start, duration float64, output string) []string {
				return []string{
					"-ss", formatSeconds(start),
					"-i", input,
					"-t", formatSeconds(duration),
					"-c", "copy",
					"-movflags", "+faststart",
					"-y", output,
				}
			},
		},
		{
			Name: "copy-drop-audio",
			Args: func(input string, start, duration float64, output string) []string {
				return []string{
					"-ss", formatSeconds(start),
					"-i", input,
					"-t", formatSeconds(duration),
					"-c:v", "copy",
					"-an",
					"-movflags", "+faststart",
					"-y", output,
				}
			},
		},
	}
}

// RunResult reports one ffmpeg invocation.
type RunResult struct {
	ExitCode   int
	StderrTail string
	Duration   time.Duration
}

// runFunc executes one ffmpeg command. Swapped out in tests.
type runFunc func(ctx context.Context, bin string, args []string) RunResult

// Extractor runs the ladder against a single input stream.
type Extractor struct {
	bin     string
	timeout time.Duration
	logger  *slog.Logger
	run     runFunc
}

// NewExtractor resolves the ffmpeg binary and returns an Extractor.
// bin may be empty, in which case PATH is searched.
func NewExtractor(bin string, timeout time.Duration, logger *slog.Logger) (*Extractor, error) {
	if bin == "" {
		bin = "ffmpeg"
	}
	resolved, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("cannot locate ffmpeg binary %q: %w", bin, err)
	}

	e := &Extractor{
		bin:     resolved,
		timeout: timeout,
		logger:  logger,
	}
	e.run = e.execute
	return e, nil
}

// Extract cuts [start, start+duration) out of input into output,
// walking the strategy ladder until one invocation exits zero. The
// returned string names the strategy that produced the file.
func (e *Extractor) Extract(ctx context.Context, input string, start, duration float64, output string) (string, error) {
	if duration <= 0 {
		return "", fmt.Errorf("non-positive clip duration %v", duration)
	}

	var lastResult RunResult
	var lastStrategy string
	for _, strategy := range Ladder() {
		runCtx, cancel := context.WithTimeout(ctx, e.timeout)
		result := e.run(runCtx, e.bin, strategy.Args(input, start, duration, output))
		cancel()

		if result.ExitCode == 0 {
			e.logger.Info("clip extracted",
				"strategy", strategy.Name,
				"start", start,
				"duration", duration,
				"elapsed_ms", result.Duration.Milliseconds(),
			)
			return strategy.Name, nil
		}

		e.logger.Warn("extraction strategy failed",
			"strategy", strategy.Name,
			"exit_code", result.ExitCode,
			"stderr_tail", truncate(result.StderrTail, 512),
		)
		lastResult = result
		lastStrategy = strategy.Name

		if ctx.Err() != nil {
			return "", fmt.Errorf("extraction cancelled: %w", ctx.Err())
		}
	}

	return "", fmt.Errorf("all extraction strategies failed, last %s exited %d: %s",
		lastStrategy, lastResult.ExitCode, truncate(lastResult.StderrTail, 512))
}

// execute is the production runFunc.
func (e *Extractor) execute(ctx context.Context, bin string, args []string) RunResult {
	start := time.Now()

	cmd := exec.CommandContext(ctx, bin, args...)
	var stderrBuf bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}
	cmd.Stdout = io.Discard

	err := cmd.Run()
	elapsed := time.Since(start)

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	return RunResult{
		ExitCode:   exitCode,
		StderrTail: stderrBuf.String(),
		Duration:   elapsed,
	}
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter keeps only the last `limit` bytes written.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		lw.w.Reset()
		lw.w.Write(b[len(b)-lw.limit:])
	}
	return n, nil
}
