package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"docqueue/internal/audit"
	"docqueue/internal/models"
)

// List returns the stored files, newest first. Digests are not computed
// here; listing is a metadata operation.
func (s *Store) List() ([]models.FileRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, &StorageError{Op: "list", Err: err}
	}
	records := make([]models.FileRecord, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), tempPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		records = append(records, models.FileRecord{
			Name:      entry.Name(),
			Path:      filepath.Join(s.dir, entry.Name()),
			Size:      info.Size(),
			CreatedAt: info.ModTime().UTC(),
		})
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// Open returns a read stream for the named file. The name is reduced to its
// base so callers cannot traverse outside the storage root.
func (s *Store) Open(name string) (io.ReadCloser, error) {
	path := filepath.Join(s.dir, filepath.Base(name))
	f, err := os.Open(path)
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}
	return f, nil
}

// Delete removes the named file and its index row. Deleting a file that is
// not there reports false without error.
func (s *Store) Delete(ctx context.Context, name string) (bool, error) {
	base := filepath.Base(name)
	path := filepath.Join(s.dir, base)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, &StorageError{Op: "delete", Err: err}
	}
	if err := os.Remove(path); err != nil {
		return false, &StorageError{Op: "delete", Err: err}
	}
	if err := s.index.DeleteByName(ctx, base); err != nil {
		s.logger.Warn("index row removal failed", zap.Error(err))
	}
	s.logger.Info("file deleted", zap.String("name", base))
	s.record(ctx, models.LevelInfo, models.EventFileDeleted, "file deleted",
		audit.WithFile(base, path))
	return true, nil
}
