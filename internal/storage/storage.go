package storage

import (
	"context"
	"fmt"
	"mime/multipart"
	"path"
	"strings"

	"course-forum-backend/config"
	"course-forum-backend/internal/util"
)

// MaxImageSize bounds a single post attachment.
const MaxImageSize = 5 << 20

var allowedImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// Uploader stores an attachment under path and returns its public URL.
// Delete removes a stored object; a missing object is not an error.
type Uploader interface {
	UploadFile(ctx context.Context, file *multipart.FileHeader, path string) (string, error)
	Delete(ctx context.Context, path string) error
}

// New builds the Uploader selected by cfg.StorageBackend.
func New(cfg config.Config) (Uploader, error) {
	switch cfg.StorageBackend {
	case "local":
		return NewLocalStorage(cfg.LocalStoragePath, strings.TrimRight(cfg.BackendURL, "/")+"/uploads")
	case "s3":
		return NewS3Client(cfg.S3Region, cfg.S3Bucket)
	case "gcs":
		return NewGCSClient(cfg.GCSProjectID, cfg.GCSBucketName, cfg.GCSCredentialsFile)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// ValidateImage checks the size and extension of an uploaded image.
func ValidateImage(file *multipart.FileHeader) error {
	if file.Size > MaxImageSize {
		return fmt.Errorf("image %s exceeds %d bytes", file.Filename, MaxImageSize)
	}
	ext := strings.ToLower(path.Ext(file.Filename))
	if !allowedImageExts[ext] {
		return fmt.Errorf("image %s has unsupported type %q", file.Filename, ext)
	}
	return nil
}

// PostImagePath returns the object key for an image attached to a post.
func PostImagePath(postID string, file *multipart.FileHeader) string {
	return path.Join("posts", postID, util.GenerateUniqueFilename(file.Filename))
}
