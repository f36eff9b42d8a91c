package contacts

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/minio/minio-go/v7"
)

// AvatarStore persists user avatars in object storage.
type AvatarStore interface {
	Upload(ctx context.Context, userID, filename string, reader io.Reader, size int64, contentType string) (string, error)
	Download(ctx context.Context, ref string) (io.ReadCloser, error)
	Delete(ctx context.Context, ref string) error
}

// Internal adapter interface to enable mocking without a real MinIO server.
type objectStoreAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// Wrapper to adapt *minio.Client to objectStoreAPI.
type minioClientWrapper struct{ c *minio.Client }

func (w minioClientWrapper) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	return w.c.BucketExists(ctx, bucketName)
}

func (w minioClientWrapper) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	return w.c.MakeBucket(ctx, bucketName, opts)
}

func (w minioClientWrapper) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	return w.c.PutObject(ctx, bucketName, objectName, reader, objectSize, opts)
}

func (w minioClientWrapper) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	obj, err := w.c.GetObject(ctx, bucketName, objectName, opts)
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func (w minioClientWrapper) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	return w.c.RemoveObject(ctx, bucketName, objectName, opts)
}

var _ AvatarStore = (*MinioAvatarStore)(nil)

// MinioAvatarStore stores avatars in a MinIO bucket, one object per user.
type MinioAvatarStore struct {
	api    objectStoreAPI
	bucket string
}

// NewMinioAvatarStore creates an avatar store backed by a real *minio.Client.
func NewMinioAvatarStore(ctx context.Context, client *minio.Client, bucket string) (*MinioAvatarStore, error) {
	return NewMinioAvatarStoreWithAPI(ctx, minioClientWrapper{c: client}, bucket)
}

// NewMinioAvatarStoreWithAPI allows injecting a mockable API (used in tests).
func NewMinioAvatarStoreWithAPI(ctx context.Context, api objectStoreAPI, bucket string) (*MinioAvatarStore, error) {
	s := &MinioAvatarStore{
		api:    api,
		bucket: bucket,
	}

	if err := s.ensureBucketExists(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}

	return s, nil
}

// ensureBucketExists creates the bucket if it doesn't exist
func (s *MinioAvatarStore) ensureBucketExists(ctx context.Context) error {
	exists, err := s.api.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = s.api.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// Upload stores the avatar and returns its object reference. Re-uploading
// replaces the previous avatar for the user.
func (s *MinioAvatarStore) Upload(ctx context.Context, userID, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	ext := strings.ToLower(path.Ext(filename))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
	default:
		return "", goerrors.New("unsupported avatar format", goerrors.CategoryValidation).
			WithMetadata(map[string]any{"filename": filename})
	}

	ref := fmt.Sprintf("avatars/%s%s", userID, ext)

	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := s.api.PutObject(ctx, s.bucket, ref, reader, size, opts); err != nil {
		return "", fmt.Errorf("failed to upload avatar: %w", err)
	}

	return ref, nil
}

// Download returns the avatar object for the reference.
func (s *MinioAvatarStore) Download(ctx context.Context, ref string) (io.ReadCloser, error) {
	obj, err := s.api.GetObject(ctx, s.bucket, ref, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get avatar: %w", err)
	}
	return obj, nil
}

// Delete removes the avatar object.
func (s *MinioAvatarStore) Delete(ctx context.Context, ref string) error {
	if ref == "" {
		return nil
	}
	if err := s.api.RemoveObject(ctx, s.bucket, ref, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete avatar: %w", err)
	}
	return nil
}
