package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
)

var (
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the MIME type is not permitted.
	ErrUploadTypeNotAllowed = errors.New("file type not allowed")
)

// evidenceImageTypes are the MIME types accepted as participation evidence.
var evidenceImageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
}

// FileStorage abstracts upload destinations.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// EvidenceService validates and stores participation evidence images.
type EvidenceService interface {
	Upload(ctx context.Context, file *multipart.FileHeader) (string, error)
}

type evidenceService struct {
	storage FileStorage
	logger  zerolog.Logger
	maxSize int64
}

// NewEvidenceService constructs an evidence upload service.
func NewEvidenceService(storage FileStorage, maxSizeMB int, logger zerolog.Logger) EvidenceService {
	if maxSizeMB <= 0 {
		maxSizeMB = 5
	}
	return &evidenceService{
		storage: storage,
		logger:  logger.With().Str("component", "evidence_service").Logger(),
		maxSize: int64(maxSizeMB) * 1024 * 1024,
	}
}

func (s *evidenceService) Upload(ctx context.Context, file *multipart.FileHeader) (string, error) {
	if file == nil {
		return "", errors.New("file is required")
	}
	if file.Size > s.maxSize {
		return "", ErrUploadTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		return "", err
	}
	defer handle.Close()

	data, err := io.ReadAll(io.LimitReader(handle, s.maxSize+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > s.maxSize {
		return "", ErrUploadTooLarge
	}

	// Sniff the content rather than trusting the declared Content-Type.
	detected := mimetype.Detect(data)
	if _, ok := evidenceImageTypes[detected.String()]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUploadTypeNotAllowed, detected.String())
	}

	name := strings.TrimSpace(file.Filename)
	if name == "" {
		name = "evidence"
	}

	url, err := s.storage.Upload(ctx, name, bytes.NewReader(data))
	if err != nil {
		return "", err
	}

	s.logger.Info().Str("file", name).Str("mime", detected.String()).Msg("evidence image stored")
	return url, nil
}
