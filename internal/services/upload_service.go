package services

import (
	"context"
	"path"
	"strings"
	"time"

	"medbridge/internal/storage"
	medbridge_errors "medbridge/pkg/errors"

	"github.com/google/uuid"
)

// UploadPurpose decides the bucket prefix and which content types pass.
type UploadPurpose string

const (
	UploadAudio      UploadPurpose = "audio"
	UploadImage      UploadPurpose = "image"
	UploadDiagnostic UploadPurpose = "diagnostic"
)

const (
	maxImageBytes = 10 << 20
	maxAudioBytes = 25 << 20
)

var diagnosticExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}

type PresignInput struct {
	UploaderID  string
	Purpose     UploadPurpose
	FileName    string
	ContentType string
	FileSize    int64
}

type PresignResult struct {
	UploadKey string                   `json:"upload_key"`
	Upload    storage.PresignedRequest `json:"upload"`
	// FileURL is empty for private buckets; fetch a read URL by key instead.
	FileURL   string                   `json:"file_url,omitempty"`
}

// MediaURL is where a client can read an uploaded object.
type MediaURL struct {
	Key       string     `json:"key"`
	URL       string     `json:"url"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type UploadService struct {
	storage storage.MediaStore
}

func NewUploadService(store storage.MediaStore) *UploadService {
	return &UploadService{storage: store}
}

// Presign validates an upload and returns a signed PUT request under a
// fresh key of the form <purpose>/<uploader>/<uuid><ext>.
func (s *UploadService) Presign(ctx context.Context, in PresignInput) (PresignResult, error) {
	if s.storage == nil {
		return PresignResult{}, medbridge_errors.Dependency("object storage is not configured", nil)
	}
	if in.UploaderID == "" {
		return PresignResult{}, medbridge_errors.ErrUnauthorized
	}

	contentType := strings.ToLower(strings.TrimSpace(in.ContentType))
	ext := strings.ToLower(path.Ext(in.FileName))

	switch in.Purpose {
	case UploadAudio:
		if !strings.HasPrefix(contentType, "audio/") {
			return PresignResult{}, medbridge_errors.InvalidInput("audio uploads must be audio/*")
		}
		if in.FileSize > maxAudioBytes {
			return PresignResult{}, medbridge_errors.InvalidInput("audio file is too large")
		}
	case UploadImage, UploadDiagnostic:
		if !strings.HasPrefix(contentType, "image/") {
			return PresignResult{}, medbridge_errors.InvalidInput("image uploads must be image/*")
		}
		if in.Purpose == UploadDiagnostic && !diagnosticExtensions[ext] {
			return PresignResult{}, medbridge_errors.InvalidInput("only images are allowed (.jpg .jpeg .png .webp)")
		}
		if in.FileSize > maxImageBytes {
			return PresignResult{}, medbridge_errors.InvalidInput("image file is too large")
		}
	default:
		return PresignResult{}, medbridge_errors.InvalidInput("unknown upload purpose")
	}
	if in.FileSize < 0 {
		return PresignResult{}, medbridge_errors.InvalidInput("file size must be positive")
	}

	key := path.Join(string(in.Purpose), in.UploaderID, uuid.NewString()+ext)
	signed, err := s.storage.PresignPut(ctx, storage.Object{Key: key, ContentType: contentType, Size: in.FileSize})
	if err != nil {
		return PresignResult{}, medbridge_errors.Dependency("failed to presign upload", err)
	}
	return PresignResult{UploadKey: key, Upload: signed, FileURL: s.storage.FileURL(key)}, nil
}

// ReadURL returns a URL for an uploaded object. Keys carry a random uuid,
// so any signed-in user holding one may read it.
func (s *UploadService) ReadURL(ctx context.Context, key string) (MediaURL, error) {
	if s.storage == nil {
		return MediaURL{}, medbridge_errors.Dependency("object storage is not configured", nil)
	}
	key = strings.TrimPrefix(path.Clean("/"+strings.TrimSpace(key)), "/")
	if !validUploadKey(key) {
		return MediaURL{}, medbridge_errors.InvalidInput("invalid upload key")
	}

	found, err := s.storage.Exists(ctx, key)
	if err != nil {
		return MediaURL{}, medbridge_errors.Dependency("object storage unavailable", err)
	}
	if !found {
		return MediaURL{}, medbridge_errors.NotFound("upload not found")
	}

	if public := s.storage.FileURL(key); public != "" {
		return MediaURL{Key: key, URL: public}, nil
	}
	signed, err := s.storage.PresignGet(ctx, key)
	if err != nil {
		return MediaURL{}, medbridge_errors.Dependency("failed to presign download", err)
	}
	return MediaURL{Key: key, URL: signed.URL, ExpiresAt: &signed.ExpiresAt}, nil
}

func validUploadKey(key string) bool {
	parts := strings.Split(key, "/")
	if len(parts) != 3 || parts[1] == "" {
		return false
	}
	switch UploadPurpose(parts[0]) {
	case UploadAudio, UploadImage, UploadDiagnostic:
	default:
		return false
	}
	name := strings.TrimSuffix(parts[2], path.Ext(parts[2]))
	_, err := uuid.Parse(name)
	return err == nil
}
