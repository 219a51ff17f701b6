// Package evidence stores uploaded case documents in an external object
// store. Documents are opaque to the rest of the system: only the returned
// reference is recorded on the case.
package evidence

import (
	"context"
	"fmt"
	"io"
	"path"
	"strconv"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStore is the narrow contract the case workflow needs from the
// storage collaborator.
type ObjectStore interface {
	Put(ctx context.Context, caseID, side, filename string, r io.Reader, size int64, contentType string) (string, error)
}

// MinioStore stores evidence objects in a MinIO (S3-compatible) bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
}

func NewMinioStore(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &MinioStore{client: client, bucket: bucket}, nil
}

// Put uploads one document and returns its stable reference
// ("bucket/caseID/side/object").
func (s *MinioStore) Put(ctx context.Context, caseID, side, filename string, r io.Reader, size int64, contentType string) (string, error) {
	objectName := ObjectName(caseID, side, filename)
	if _, err := s.client.PutObject(ctx, s.bucket, objectName, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return "", fmt.Errorf("put object %s: %w", objectName, err)
	}
	return s.bucket + "/" + objectName, nil
}

// ObjectName builds a collision-free object key for an uploaded file. The
// nanosecond prefix keeps repeated uploads of the same filename distinct.
func ObjectName(caseID, side, filename string) string {
	return path.Join(caseID, side, strconv.FormatInt(time.Now().UnixNano(), 36)+"_"+SanitizeFilename(filename))
}

// SanitizeFilename strips path separators and control characters from a
// client-supplied filename.
func SanitizeFilename(name string) string {
	base := path.Base(name)
	result := make([]rune, 0, len(base))
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			result = append(result, r)
		case r == ' ':
			result = append(result, '-')
		}
	}
	if len(result) == 0 {
		return "document"
	}
	if len(result) > 100 {
		result = result[:100]
	}
	return string(result)
}
