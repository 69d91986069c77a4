// Package storage persists uploaded files under a single directory and
// deduplicates them by content digest. Identity is the sha256 of the bytes,
// not the caller-supplied name; a re-upload of known content returns the
// existing record instead of writing a second copy.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"docqueue/internal/audit"
	"docqueue/internal/models"
)

// ErrEmptyFile is returned for an empty or missing upload body.
var ErrEmptyFile = errors.New("empty or missing file")

// StorageError wraps an I/O failure during a store operation. It is
// surfaced to the caller unretried; retry policy belongs to the transport.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

const (
	defaultFileName = "file"
	maxNameLength   = 200
	tempPrefix      = ".upload-"
)

// Recorder is the audit sink upload outcomes are reported to, best effort.
type Recorder interface {
	Record(ctx context.Context, level, event, message string, opts ...audit.Option)
}

// Store is a content-addressed file store rooted at a single directory.
type Store struct {
	dir    string
	index  *Index
	audit  Recorder
	logger *zap.Logger
}

// New creates the store, ensuring the root directory exists. The index may
// be nil, in which case every duplicate check scans the directory.
func New(dir string, index *Index, rec Recorder, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &StorageError{Op: "init", Err: err}
	}
	logger.Info("upload directory ready", zap.String("path", dir))
	return &Store{dir: dir, index: index, audit: rec, logger: logger}, nil
}

// Dir returns the storage root.
func (s *Store) Dir() string { return s.dir }

// Save streams the upload to disk, deduplicating by content digest. For a
// duplicate the existing record is returned and nothing is rewritten. A new
// file gets a sanitized, timestamped name so repeated uploads of distinct
// content under the same name never collide.
func (s *Store) Save(ctx context.Context, r io.Reader, suggestedName string) (*models.UploadResult, error) {
	if r == nil {
		return nil, ErrEmptyFile
	}

	tmp, err := os.CreateTemp(s.dir, tempPrefix+"*")
	if err != nil {
		return nil, &StorageError{Op: "create", Err: err}
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hasher), r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, &StorageError{Op: "write", Err: err}
	}
	if size == 0 {
		return nil, ErrEmptyFile
	}
	digest := hex.EncodeToString(hasher.Sum(nil))

	existing, err := s.findByDigest(ctx, digest)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.logger.Info("duplicate upload, existing file kept",
			zap.String("name", existing.Name), zap.String("digest", digest))
		s.record(ctx, models.LevelInfo, models.EventFileDuplicate,
			"identical file already stored",
			audit.WithFile(existing.Name, existing.Path),
			audit.WithFileSize(existing.Size),
			audit.WithDetails("Hash: "+digest))
		return &models.UploadResult{
			File:        *existing,
			IsDuplicate: true,
			DuplicateOf: existing.Name,
			StorageType: "FileStorage",
		}, nil
	}

	name := filepath.Base(suggestedName)
	ext := sanitizeExt(filepath.Ext(name))
	base := SanitizeFileName(strings.TrimSuffix(name, filepath.Ext(name)))
	now := time.Now()
	safeName := fmt.Sprintf("%s_%s%s", base, now.Format("20060102_150405"), ext)
	path := filepath.Join(s.dir, safeName)
	if _, err := os.Stat(path); err == nil {
		// Same name in the same second; the digest prefix disambiguates.
		safeName = fmt.Sprintf("%s_%s_%s%s", base, now.Format("20060102_150405"), digest[:8], ext)
		path = filepath.Join(s.dir, safeName)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return nil, &StorageError{Op: "store", Err: err}
	}

	rec := models.FileRecord{
		Name:      safeName,
		Path:      path,
		Size:      size,
		Digest:    digest,
		CreatedAt: now.UTC(),
	}
	if err := s.index.Put(ctx, rec); err != nil {
		s.logger.Warn("digest index update failed", zap.Error(err))
	}

	s.logger.Info("file stored", zap.String("name", safeName), zap.Int64("size", size))
	s.record(ctx, models.LevelInfo, models.EventFileUploaded,
		"file stored successfully",
		audit.WithFile(safeName, path),
		audit.WithFileSize(size))

	return &models.UploadResult{
		File:        rec,
		StorageType: "FileStorage",
	}, nil
}

// findByDigest consults the index first and falls back to a full directory
// scan, refreshing the index with every digest it computes. A hash match is
// treated as full duplication without comparing sizes.
func (s *Store) findByDigest(ctx context.Context, digest string) (*models.FileRecord, error) {
	rec, err := s.index.Lookup(ctx, digest)
	if err != nil {
		s.logger.Warn("digest index lookup failed, falling back to scan", zap.Error(err))
	} else if rec != nil {
		if _, statErr := os.Stat(rec.Path); statErr == nil {
			return rec, nil
		}
		// File was removed out of band; drop the stale row and rescan.
		if err := s.index.DeleteByDigest(ctx, digest); err != nil {
			s.logger.Warn("stale index row removal failed", zap.Error(err))
		}
	}
	return s.scanForDigest(ctx, digest)
}

func (s *Store) scanForDigest(ctx context.Context, digest string) (*models.FileRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, &StorageError{Op: "scan", Err: err}
	}

	var match *models.FileRecord
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), tempPrefix) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			continue
		}
		fileDigest, err := hashFile(path)
		if err != nil {
			s.logger.Warn("hashing stored file failed", zap.String("path", path), zap.Error(err))
			continue
		}
		rec := models.FileRecord{
			Name:      entry.Name(),
			Path:      path,
			Size:      info.Size(),
			Digest:    fileDigest,
			CreatedAt: info.ModTime().UTC(),
		}
		if err := s.index.Put(ctx, rec); err != nil {
			s.logger.Warn("digest index refresh failed", zap.Error(err))
		}
		if match == nil && strings.EqualFold(fileDigest, digest) {
			found := rec
			match = &found
		}
	}
	return match, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func (s *Store) record(ctx context.Context, level, event, message string, opts ...audit.Option) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, level, event, message, opts...)
}
