// Package publish pushes finished clips to S3-compatible object
// storage and hands back a public URL clients can share.
package publish

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"

	"github.com/danschewy/twelvesocial/internal/apperr"
)

const keyPrefix = "video-clips"

// objectUploader is the slice of the storage SDK the publisher needs.
// Satisfied by *minio.Client.
type objectUploader interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Publisher copies a clip from its source URL into the configured
// bucket.
type Publisher struct {
	uploader objectUploader
	endpoint string
	bucket   string
	fetch    *http.Client
	logger   *slog.Logger
}

func NewPublisher(uploader objectUploader, endpoint, bucket string, logger *slog.Logger) *Publisher {
	return &Publisher{
		uploader: uploader,
		endpoint: endpoint,
		bucket:   bucket,
		fetch:    &http.Client{Timeout: 5 * time.Minute},
		logger:   logger,
	}
}

// Request describes one publish operation. TargetFileName and
// ContentType are optional; sensible values are derived from the
// source when absent.
type Request struct {
	SourceURL      string `json:"sourceUrl"`
	TargetFileName string `json:"targetFileName,omitempty"`
	ContentType    string `json:"contentType,omitempty"`
}

// Result carries the stored object's public location.
type Result struct {
	PublicURL string `json:"publicUrl"`
	Key       string `json:"key"`
}

// Publish downloads the source and uploads it under a fresh key. The
// object is world readable; that is the point of publishing.
func (p *Publisher) Publish(ctx context.Context, req Request) (Result, error) {
	if p.uploader == nil {
		return Result{}, apperr.Configuration("object storage is not configured")
	}

	src, err := url.Parse(req.SourceURL)
	if err != nil || (src.Scheme != "http" && src.Scheme != "https") {
		return Result{}, apperr.InvalidInput("sourceUrl must be an absolute http(s) URL")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.SourceURL, nil)
	if err != nil {
		return Result{}, fmt.Errorf("create fetch request: %w", err)
	}
	resp, err := p.fetch.Do(httpReq)
	if err != nil {
		return Result{}, apperr.Transport("cannot fetch clip source", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, apperr.Vendor(
			fmt.Sprintf("clip source answered %d", resp.StatusCode), resp.StatusCode, "")
	}

	name := req.TargetFileName
	if name == "" {
		name = path.Base(src.Path)
	}
	name = sanitizeName(name)

	contentType := req.ContentType
	if contentType == "" {
		contentType = resp.Header.Get("Content-Type")
	}
	if contentType == "" {
		contentType = "video/mp4"
	}

	key := fmt.Sprintf("%s/%s-%s", keyPrefix, uuid.NewString(), name)

	_, err = p.uploader.PutObject(ctx, p.bucket, key, resp.Body, resp.ContentLength, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{"x-amz-acl": "public-read"},
	})
	if err != nil {
		return Result{}, apperr.Transport("object storage upload failed", err)
	}

	publicURL := fmt.Sprintf("https://%s.%s/%s", p.bucket, p.endpoint, key)

	p.logger.Info("clip published",
		"key", key,
		"content_type", contentType,
	)
	return Result{PublicURL: publicURL, Key: key}, nil
}

// sanitizeName strips path separators and anything else that would make
// an awkward object key component.
func sanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "" || name == "." || name == ".." || name == "/" {
		return "clip.mp4"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
