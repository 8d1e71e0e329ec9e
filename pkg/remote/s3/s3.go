// Package s3 implements remote.FileSystem on an S3 bucket, addressed the
// way Hadoop's s3a connector addresses it: s3a://bucket/prefix.
//
// Object stores have no in-place writes and no partial visibility, so the
// mapping is:
//   - writers buffer data and upload it as a multipart upload, committed
//     on Close (small files use a single PutObject)
//   - a writer opened without O_TRUNC that writes nothing commits nothing,
//     leaving an existing object untouched
//   - a writer opened without O_TRUNC that does write replaces the object
//     with what it wrote
//   - readers issue ranged GetObject calls from their cursor
//   - directories are key prefixes
package s3

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/marmos91/dittobench/pkg/remote"
)

const (
	// minPartSize is the smallest part S3 accepts except for the last one.
	minPartSize = 5 << 20

	// DefaultPartSize is used when Config.PartSize is zero.
	DefaultPartSize = 16 << 20

	// deleteBatchSize is the DeleteObjects limit.
	deleteBatchSize = 1000
)

// Client is the subset of *s3.Client the filesystem uses.
type Client interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// FileSystem implements remote.FileSystem using Amazon S3 or an
// S3-compatible store (MinIO, Localstack, Cubbit DS3).
//
// Thread Safety:
// Safe for concurrent use. Each file handle must be used by one goroutine.
type FileSystem struct {
	client    Client
	bucket    string
	keyPrefix string
	partSize  int64
}

// Config contains configuration for the S3 filesystem.
type Config struct {
	// Client is the configured S3 client
	Client Client

	// Bucket holds every file
	Bucket string

	// KeyPrefix is prepended to every key (optional)
	KeyPrefix string

	// PartSize is the multipart upload part size (default: 16MB, min: 5MB)
	PartSize int64
}

// New creates an S3 filesystem.
func New(ctx context.Context, cfg Config) (*FileSystem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("s3: client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3: bucket is required")
	}

	partSize := cfg.PartSize
	if partSize == 0 {
		partSize = DefaultPartSize
	}
	if partSize < minPartSize {
		return nil, fmt.Errorf("s3: part size %d below minimum %d", partSize, minPartSize)
	}

	return &FileSystem{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: strings.Trim(cfg.KeyPrefix, "/"),
		partSize:  partSize,
	}, nil
}

// Connect creates an S3 filesystem from an s3a:// descriptor, building the
// client from the environment (see ClientOptionsFromEnv).
func Connect(ctx context.Context, desc remote.Descriptor) (remote.FileSystem, error) {
	loc, err := remote.ParseLocation(desc.NameNode, desc.Port)
	if err != nil {
		return nil, err
	}
	if loc.Scheme != remote.SchemeS3A {
		return nil, fmt.Errorf("s3: unsupported name node %q", desc.NameNode)
	}

	client, err := NewClient(ctx, ClientOptionsFromEnv())
	if err != nil {
		return nil, err
	}

	return New(ctx, Config{
		Client:    client,
		Bucket:    loc.Host,
		KeyPrefix: loc.Path,
	})
}

// objectKey maps a remote path to an object key.
func (s *FileSystem) objectKey(p string) string {
	key := strings.TrimPrefix(path.Clean("/"+p), "/")
	if s.keyPrefix == "" {
		return key
	}
	if key == "" {
		return s.keyPrefix
	}
	return s.keyPrefix + "/" + key
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

// head returns the object size, or remote.ErrNotFound.
func (s *FileSystem) head(ctx context.Context, key string) (*s3.HeadObjectOutput, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%s: %w", key, remote.ErrNotFound)
		}
		return nil, fmt.Errorf("head %s: %w", key, err)
	}
	return out, nil
}

// hasChildren reports whether key is a non-empty "directory".
func (s *FileSystem) hasChildren(ctx context.Context, key string) (bool, error) {
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(key + "/"),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, fmt.Errorf("list %s/: %w", key, err)
	}
	return len(out.Contents) > 0, nil
}

// ============================================================================
// remote.FileSystem Interface Implementation
// ============================================================================

// OpenFile opens p for reading (ranged GETs) or writing (multipart upload).
// Replication and block size hints have no S3 equivalent and are ignored.
func (s *FileSystem) OpenFile(ctx context.Context, p string, flag int, bufferSize int64, replicas int, blockSize int64) (remote.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := s.objectKey(p)

	if !remote.IsWrite(flag) {
		out, err := s.head(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", p, err)
		}
		return &reader{fs: s, ctx: ctx, key: key, size: aws.ToInt64(out.ContentLength)}, nil
	}

	if flag&os.O_RDWR != 0 {
		return nil, fmt.Errorf("open %s: read-write access: %w", p, remote.ErrNotSupported)
	}
	if flag&os.O_APPEND != 0 {
		return nil, fmt.Errorf("open %s: append: %w", p, remote.ErrNotSupported)
	}

	commit := flag&os.O_TRUNC != 0
	if !commit || flag&os.O_EXCL != 0 {
		_, err := s.head(ctx, key)
		switch {
		case err == nil && flag&os.O_EXCL != 0 && flag&os.O_CREATE != 0:
			return nil, fmt.Errorf("open %s: %w", p, remote.ErrExists)
		case errors.Is(err, remote.ErrNotFound):
			if flag&os.O_CREATE == 0 {
				return nil, fmt.Errorf("open %s: %w", p, err)
			}
			// Creating a missing object always commits, even if empty.
			commit = true
		case err != nil:
			return nil, fmt.Errorf("open %s: %w", p, err)
		}
	}

	return newWriter(ctx, s, key, commit), nil
}

// Delete removes the object at p. Recursive deletes remove every object
// below p as well.
func (s *FileSystem) Delete(ctx context.Context, p string, recursive bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := s.objectKey(p)

	_, headErr := s.head(ctx, key)
	if headErr != nil && !errors.Is(headErr, remote.ErrNotFound) {
		return fmt.Errorf("delete %s: %w", p, headErr)
	}
	isFile := headErr == nil

	isDir, err := s.hasChildren(ctx, key)
	if err != nil {
		return fmt.Errorf("delete %s: %w", p, err)
	}

	switch {
	case !isFile && !isDir:
		return fmt.Errorf("delete %s: %w", p, remote.ErrNotFound)
	case isDir && !recursive:
		return fmt.Errorf("delete %s: directory not empty: %w", p, remote.ErrIsDirectory)
	}

	if isDir {
		if err := s.deletePrefix(ctx, key+"/"); err != nil {
			return fmt.Errorf("delete %s: %w", p, err)
		}
	}
	if isFile {
		if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		}); err != nil {
			return fmt.Errorf("delete %s: %w", p, err)
		}
	}
	return nil
}

func (s *FileSystem) deletePrefix(ctx context.Context, prefix string) error {
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
			MaxKeys:           aws.Int32(deleteBatchSize),
		})
		if err != nil {
			return fmt.Errorf("list %s: %w", prefix, err)
		}

		if len(out.Contents) > 0 {
			ids := make([]types.ObjectIdentifier, 0, len(out.Contents))
			for _, obj := range out.Contents {
				ids = append(ids, types.ObjectIdentifier{Key: obj.Key})
			}
			if _, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(s.bucket),
				Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
			}); err != nil {
				return fmt.Errorf("delete objects under %s: %w", prefix, err)
			}
		}

		if !aws.ToBool(out.IsTruncated) {
			return nil
		}
		token = out.NextContinuationToken
	}
}

// Stat returns the object size, or a directory entry for a key prefix.
func (s *FileSystem) Stat(ctx context.Context, p string) (*remote.PathInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := s.objectKey(p)

	out, err := s.head(ctx, key)
	if err == nil {
		return &remote.PathInfo{
			Name:        path.Base(key),
			Size:        aws.ToInt64(out.ContentLength),
			ModTime:     aws.ToTime(out.LastModified),
			Replication: 1,
		}, nil
	}
	if !errors.Is(err, remote.ErrNotFound) {
		return nil, fmt.Errorf("stat %s: %w", p, err)
	}

	isDir, listErr := s.hasChildren(ctx, key)
	if listErr != nil {
		return nil, fmt.Errorf("stat %s: %w", p, listErr)
	}
	if isDir {
		return &remote.PathInfo{Name: path.Base(key), IsDir: true}, nil
	}
	return nil, fmt.Errorf("stat %s: %w", p, remote.ErrNotFound)
}

// Close is a no-op; the SDK client owns its own connection pool.
func (s *FileSystem) Close() error {
	return nil
}
