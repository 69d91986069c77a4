// Package intake composes the upload path: persist the file, hand new
// content to the work queue and report connectivity alongside the result.
// Only storage failures fail the operation; queue degradation is metadata.
package intake

import (
	"context"
	"io"

	"go.uber.org/zap"

	"docqueue/internal/models"
)

// FileStore persists uploads and deduplicates them by content.
type FileStore interface {
	Save(ctx context.Context, r io.Reader, suggestedName string) (*models.UploadResult, error)
}

// Queue delivers work items to the broker, buffering locally when it is
// unreachable.
type Queue interface {
	Enqueue(ctx context.Context, fileName, filePath string) bool
	IsConnected(ctx context.Context) bool
}

// Outcome is the combined result of one upload.
type Outcome struct {
	Upload *models.UploadResult
	// Delivered reports whether the queue item reached the broker. Always
	// false for duplicates, which are never re-queued.
	Delivered bool
	// Connected is the live broker probe at the time of the upload. An item
	// can be undelivered while Connected is about to flip true mid-reconnect;
	// the two are independent signals.
	Connected bool
}

// Service sequences the intake steps for a single upload.
type Service struct {
	store  FileStore
	queue  Queue
	logger *zap.Logger
}

func New(store FileStore, queue Queue, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, queue: queue, logger: logger}
}

// Upload stores the file and, when it is new content, enqueues it for
// downstream processing. Storage errors are returned as-is; nothing is
// enqueued or reported successful after a failed write.
func (s *Service) Upload(ctx context.Context, r io.Reader, suggestedName string) (*Outcome, error) {
	result, err := s.store.Save(ctx, r, suggestedName)
	if err != nil {
		return nil, err
	}

	out := &Outcome{Upload: result}
	if result.IsDuplicate {
		out.Connected = s.queue.IsConnected(ctx)
		s.logger.Info("duplicate upload, queue skipped",
			zap.String("file", result.File.Name), zap.String("duplicate_of", result.DuplicateOf))
		return out, nil
	}

	out.Delivered = s.queue.Enqueue(ctx, result.File.Name, result.File.Path)
	out.Connected = s.queue.IsConnected(ctx)
	return out, nil
}
