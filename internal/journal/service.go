package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"taeu.kr/uploadhub/internal/upload"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

type Storer interface {
	CreateEntry(ctx context.Context, entry *Entry) error
	ListRecent(ctx context.Context, limit int) ([]*Entry, error)
	ListByUploadType(ctx context.Context, uploadType upload.UploadType, limit int) ([]*Entry, error)
}

type Service struct {
	store Storer
	now   func() time.Time
}

func NewService(store Storer) *Service {
	return &Service{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Record implements upload.Recorder.
func (s *Service) Record(ctx context.Context, op upload.Operation, result upload.OperationResult) error {
	if op.Kind == "" {
		return fmt.Errorf("operation kind is required")
	}
	entry := newEntry(uuid.NewString(), op, result, s.now())
	if err := s.store.CreateEntry(ctx, entry); err != nil {
		return fmt.Errorf("record %s operation: %w", op.Kind, err)
	}
	return nil
}

func (s *Service) ListRecent(ctx context.Context, limit int) ([]*Entry, error) {
	return s.store.ListRecent(ctx, clampLimit(limit))
}

// ListByUploadType returns entries where uploadType is either the source or the move target.
func (s *Service) ListByUploadType(ctx context.Context, uploadType upload.UploadType, limit int) ([]*Entry, error) {
	normalized := upload.NormalizeUploadType(string(uploadType))
	if normalized == "" {
		return nil, fmt.Errorf("upload type is required")
	}
	return s.store.ListByUploadType(ctx, normalized, clampLimit(limit))
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
