package s3

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/dittobench/internal/logger"
	"github.com/marmos91/dittobench/pkg/remote"
)

// writer streams data into a multipart upload.
//
// remote.File has no context parameter, so the writer keeps the context
// it was opened with for every request it issues.
type writer struct {
	fs  *FileSystem
	ctx context.Context
	key string

	// commit is true when Close must produce an object even if nothing
	// was written (truncating or creating opens).
	commit bool

	buf      []byte
	written  int64
	uploadID string
	parts    []types.CompletedPart
	closed   bool
}

func newWriter(ctx context.Context, fs *FileSystem, key string, commit bool) *writer {
	return &writer{fs: fs, ctx: ctx, key: key, commit: commit}
}

// Write buffers p and uploads every full part.
func (w *writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, remote.ErrClosed
	}

	w.buf = append(w.buf, p...)
	w.written += int64(len(p))

	for int64(len(w.buf)) >= w.fs.partSize {
		if err := w.uploadPart(w.buf[:w.fs.partSize]); err != nil {
			return 0, err
		}
		w.buf = append(w.buf[:0], w.buf[w.fs.partSize:]...)
	}
	return len(p), nil
}

// Flush is a no-op: full parts are uploaded by Write and nothing is
// visible to readers until Close completes the upload.
func (w *writer) Flush() error {
	if w.closed {
		return remote.ErrClosed
	}
	return nil
}

// Close commits the object.
func (w *writer) Close() error {
	if w.closed {
		return remote.ErrClosed
	}
	w.closed = true

	if w.written == 0 && !w.commit {
		logger.Debug("s3: %s opened without truncation and not written, leaving object as is", w.key)
		return nil
	}

	if w.uploadID == "" {
		_, err := w.fs.client.PutObject(w.ctx, &s3.PutObjectInput{
			Bucket: aws.String(w.fs.bucket),
			Key:    aws.String(w.key),
			Body:   bytes.NewReader(w.buf),
		})
		if err != nil {
			return fmt.Errorf("put %s: %w", w.key, err)
		}
		return nil
	}

	if len(w.buf) > 0 {
		if err := w.uploadPart(w.buf); err != nil {
			w.abort()
			return err
		}
		w.buf = nil
	}

	sort.Slice(w.parts, func(i, j int) bool {
		return aws.ToInt32(w.parts[i].PartNumber) < aws.ToInt32(w.parts[j].PartNumber)
	})

	_, err := w.fs.client.CompleteMultipartUpload(w.ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(w.fs.bucket),
		Key:             aws.String(w.key),
		UploadId:        aws.String(w.uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: w.parts},
	})
	if err != nil {
		w.abort()
		return fmt.Errorf("complete multipart upload of %s: %w", w.key, err)
	}
	return nil
}

func (w *writer) uploadPart(data []byte) error {
	if w.uploadID == "" {
		out, err := w.fs.client.CreateMultipartUpload(w.ctx, &s3.CreateMultipartUploadInput{
			Bucket: aws.String(w.fs.bucket),
			Key:    aws.String(w.key),
		})
		if err != nil {
			return fmt.Errorf("create multipart upload of %s: %w", w.key, err)
		}
		w.uploadID = aws.ToString(out.UploadId)
	}

	partNumber := int32(len(w.parts) + 1)
	out, err := w.fs.client.UploadPart(w.ctx, &s3.UploadPartInput{
		Bucket:     aws.String(w.fs.bucket),
		Key:        aws.String(w.key),
		UploadId:   aws.String(w.uploadID),
		PartNumber: aws.Int32(partNumber),
		Body:       bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("upload part %d of %s: %w", partNumber, w.key, err)
	}

	w.parts = append(w.parts, types.CompletedPart{
		ETag:       out.ETag,
		PartNumber: aws.Int32(partNumber),
	})
	return nil
}

func (w *writer) abort() {
	_, err := w.fs.client.AbortMultipartUpload(w.ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(w.fs.bucket),
		Key:      aws.String(w.key),
		UploadId: aws.String(w.uploadID),
	})
	if err != nil {
		logger.Warn("s3: abort multipart upload of %s: %v", w.key, err)
	}
}
