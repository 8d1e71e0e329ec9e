package s3

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/dittobench/pkg/remote"
)

// reader serves reads with one ranged GetObject per call.
type reader struct {
	fs     *FileSystem
	ctx    context.Context
	key    string
	size   int64
	offset int64
	closed bool
}

func (r *reader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, remote.ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	if r.offset >= r.size {
		return 0, io.EOF
	}

	end := r.offset + int64(len(p))
	if end > r.size {
		end = r.size
	}

	out, err := r.fs.client.GetObject(r.ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.fs.bucket),
		Key:    aws.String(r.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", r.offset, end-1)),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, fmt.Errorf("read %s: %w", r.key, remote.ErrNotFound)
		}
		return 0, fmt.Errorf("read %s at %d: %w", r.key, r.offset, err)
	}
	defer out.Body.Close()

	n, err := io.ReadFull(out.Body, p[:end-r.offset])
	r.offset += int64(n)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		// object shrank since open; report what arrived
		return n, nil
	}
	if err != nil && n == 0 {
		return 0, fmt.Errorf("read %s: %w", r.key, err)
	}
	return n, nil
}

func (r *reader) Write(p []byte) (int, error) {
	return 0, fmt.Errorf("write %s: opened for reading: %w", r.key, remote.ErrNotSupported)
}

func (r *reader) Flush() error {
	return nil
}

func (r *reader) Close() error {
	if r.closed {
		return remote.ErrClosed
	}
	r.closed = true
	return nil
}
