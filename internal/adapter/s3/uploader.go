package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"

	"github.com/couchcryptid/aq-export-service/internal/config"
)

const (
	contentType = "text/csv"
	objectACL   = "public-read"
)

// NewSession builds an AWS session for the configured region. Credentials come
// from the default chain. A custom endpoint switches to path-style addressing
// for S3-compatible stores.
func NewSession(cfg *config.Config) (*session.Session, error) {
	awsCfg := &aws.Config{
		Region: aws.String(cfg.AWSRegion),
	}
	if cfg.S3Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.S3Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return sess, nil
}

// Uploader puts day files into a bucket as publicly readable CSV objects.
// It implements pipeline.Uploader.
type Uploader struct {
	api    s3manageriface.UploaderAPI
	bucket string
	logger *slog.Logger
}

// NewUploader creates an Uploader backed by an s3manager multipart uploader.
func NewUploader(sess *session.Session, bucket string, logger *slog.Logger) *Uploader {
	return newUploader(s3manager.NewUploader(sess), bucket, logger)
}

func newUploader(api s3manageriface.UploaderAPI, bucket string, logger *slog.Logger) *Uploader {
	return &Uploader{api: api, bucket: bucket, logger: logger}
}

// Upload sends the file at path to key and returns its size. The local file is
// removed before Upload returns, on success and on failure.
func (u *Uploader) Upload(ctx context.Context, path, key string) (n int64, err error) {
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			u.logger.Warn("remove local day file failed", "path", path, "error", rmErr)
			if err == nil {
				err = fmt.Errorf("remove %s: %w", path, rmErr)
			}
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open day file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat day file: %w", err)
	}
	size := info.Size()

	body := newProgressReader(f, size, func(pct int) {
		u.logger.Info("upload progress", "key", key, "percent", pct)
	})

	out, err := u.api.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        body,
		ACL:         aws.String(objectACL),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return 0, fmt.Errorf("upload s3://%s/%s: %w", u.bucket, key, err)
	}

	u.logger.Info("upload complete", "key", key, "bytes", size, "location", out.Location)
	return size, nil
}

// progressReader reports the share of distinct bytes read as whole-decile
// percentages. It keeps io.ReaderAt and io.Seeker so s3manager can read parts
// concurrently. Ranges read again while a request is signed or retried are
// not counted twice.
type progressReader struct {
	f      *os.File
	size   int64
	report func(pct int)

	mu       sync.Mutex
	pos      int64
	covered  []span
	read     int64
	reported int64
}

// span is a half-open byte range [start, end).
type span struct{ start, end int64 }

func newProgressReader(f *os.File, size int64, report func(pct int)) *progressReader {
	return &progressReader{f: f, size: size, report: report}
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.f.Read(p)
	r.mu.Lock()
	off := r.pos
	r.pos += int64(n)
	r.mu.Unlock()
	r.advance(off, n)
	return n, err
}

func (r *progressReader) ReadAt(p []byte, off int64) (int, error) {
	n, err := r.f.ReadAt(p, off)
	r.advance(off, n)
	return n, err
}

func (r *progressReader) Seek(offset int64, whence int) (int64, error) {
	pos, err := r.f.Seek(offset, whence)
	if err == nil {
		r.mu.Lock()
		r.pos = pos
		r.mu.Unlock()
	}
	return pos, err
}

func (r *progressReader) advance(off int64, n int) {
	if n <= 0 || r.size <= 0 {
		return
	}
	r.mu.Lock()
	r.read += r.cover(span{start: off, end: off + int64(n)})
	decile := min(r.read*10/r.size, 10)
	if decile <= r.reported {
		r.mu.Unlock()
		return
	}
	r.reported = decile
	r.mu.Unlock()
	r.report(int(decile * 10))
}

// cover merges s into the sorted, disjoint covered ranges and returns how
// many of its bytes were not covered before. Callers hold r.mu.
func (r *progressReader) cover(s span) int64 {
	fresh := s.end - s.start
	merged := make([]span, 0, len(r.covered)+1)
	i := 0
	for ; i < len(r.covered) && r.covered[i].end < s.start; i++ {
		merged = append(merged, r.covered[i])
	}
	for ; i < len(r.covered) && r.covered[i].start <= s.end; i++ {
		c := r.covered[i]
		fresh -= max(0, min(c.end, s.end)-max(c.start, s.start))
		s.start = min(s.start, c.start)
		s.end = max(s.end, c.end)
	}
	merged = append(merged, s)
	merged = append(merged, r.covered[i:]...)
	r.covered = merged
	return fresh
}

var (
	_ io.ReadSeeker = (*progressReader)(nil)
	_ io.ReaderAt   = (*progressReader)(nil)
)
