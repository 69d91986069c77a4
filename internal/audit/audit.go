// Package audit keeps a bounded, append-only record of system events in a
// redis list. Recording is fire-and-forget: when the backing store is
// unreachable entries are surfaced through local diagnostics only and are
// not retried or buffered.
package audit

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"go.uber.org/zap"

	"docqueue/internal/models"
	"docqueue/internal/redis"
)

// MaxEntries is the retention bound; the list is trimmed on every write so
// the bound is never exceeded, even transiently.
const MaxEntries = 1000

// Option attaches optional context to an audit entry.
type Option func(*models.LogEntry)

func WithDetails(details string) Option {
	return func(e *models.LogEntry) { e.Details = &details }
}

func WithFile(name, path string) Option {
	return func(e *models.LogEntry) {
		e.FileName = &name
		e.FilePath = &path
	}
}

func WithFileSize(size int64) Option {
	return func(e *models.LogEntry) { e.FileSize = &size }
}

func WithError(err error) Option {
	return func(e *models.LogEntry) {
		if err != nil {
			msg := err.Error()
			e.Error = &msg
		}
	}
}

// Store writes audit entries to a bounded redis list shared with the rest
// of the system through the resilient connection handle.
type Store struct {
	conn   *redis.Conn
	list   string
	logger *zap.Logger
}

// NewStore creates an audit store over the given connection handle.
func NewStore(conn *redis.Conn, listName string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{conn: conn, list: listName, logger: logger}
}

// Record appends one entry and trims the list to MaxEntries. Failures are
// logged locally and never propagated; recording is an observability side
// effect, not part of the calling operation's success contract.
func (s *Store) Record(ctx context.Context, level, event, message string, opts ...Option) {
	if s == nil {
		return
	}
	entry := models.LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Event:     event,
		Message:   message,
	}
	for _, opt := range opts {
		opt(&entry)
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		s.logger.Error("audit entry marshal failed", zap.String("event", event), zap.Error(err))
		return
	}

	client := s.conn.Raw()
	if client == nil {
		s.logger.Info("audit store unreachable, entry dropped",
			zap.String("event", event), zap.String("message", message))
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, redis.OpTimeout)
	defer cancel()
	if err := client.LPush(opCtx, s.list, payload).Err(); err != nil {
		s.logger.Error("audit entry write failed", zap.String("event", event), zap.Error(err))
		return
	}
	if err := client.LTrim(opCtx, s.list, 0, MaxEntries-1).Err(); err != nil {
		s.logger.Error("audit list trim failed", zap.Error(err))
	}
}

// Recent returns up to count entries, most recent first. A corrupt stored
// entry is skipped, not fatal to the whole read; read failures yield an
// empty slice rather than an error.
func (s *Store) Recent(ctx context.Context, count int) []models.LogEntry {
	if s == nil || count <= 0 {
		return []models.LogEntry{}
	}
	client := s.conn.Raw()
	if client == nil {
		s.logger.Warn("audit store unreachable, no entries returned")
		return []models.LogEntry{}
	}

	opCtx, cancel := context.WithTimeout(ctx, redis.OpTimeout)
	defer cancel()
	raw, err := client.LRange(opCtx, s.list, 0, int64(count-1)).Result()
	if err != nil {
		s.logger.Error("audit list read failed", zap.Error(err))
		return []models.LogEntry{}
	}

	entries := make([]models.LogEntry, 0, len(raw))
	for _, item := range raw {
		var entry models.LogEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			s.logger.Warn("skipping corrupt audit entry", zap.Error(err))
			continue
		}
		entries = append(entries, entry)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	return entries
}
