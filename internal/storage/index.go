package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"docqueue/internal/config"
	"docqueue/internal/models"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the digest index database.
func Open(cfg config.IndexConfig) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)

	switch strings.ToLower(cfg.Driver) {
	case "sqlite", "sqlite3":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("sqlite dsn must be provided")
		}
		if dir := filepath.Dir(cfg.DSN); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create index directory: %w", err)
			}
		}
		db, err = sql.Open("sqlite3", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
	case "mysql":
		params := cfg.Params
		if params == "" {
			params = "parseTime=true"
		}
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
			cfg.Username,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.DBName,
			params,
		)
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrate ensures the index table is present.
func Migrate(db *sql.DB, driver string) error {
	var stmt string
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		stmt = `CREATE TABLE IF NOT EXISTS files (
			digest TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			path TEXT NOT NULL,
			size INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		)`
	case "mysql":
		stmt = `CREATE TABLE IF NOT EXISTS files (
			digest VARCHAR(64) NOT NULL,
			name VARCHAR(255) NOT NULL,
			path TEXT NOT NULL,
			size BIGINT NOT NULL,
			created_at DATETIME NOT NULL,
			PRIMARY KEY (digest)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`
	default:
		return fmt.Errorf("unsupported driver for migration: %s", driver)
	}

	if _, err := db.Exec(stmt); err != nil {
		return fmt.Errorf("migrate (%s): %w", driver, err)
	}
	return nil
}

// Index is the digest→record lookup backing the duplicate check. It is a
// cache over the directory contents; a miss falls back to a full scan which
// refreshes the index as it goes.
type Index struct {
	db *sql.DB
}

// NewIndex wraps an opened and migrated database.
func NewIndex(db *sql.DB) *Index {
	return &Index{db: db}
}

// Lookup returns the record stored for digest, or nil when absent.
func (ix *Index) Lookup(ctx context.Context, digest string) (*models.FileRecord, error) {
	if ix == nil || ix.db == nil {
		return nil, nil
	}
	row := ix.db.QueryRowContext(ctx,
		`SELECT digest, name, path, size, created_at FROM files WHERE digest = ?`, digest)
	var rec models.FileRecord
	if err := row.Scan(&rec.Digest, &rec.Name, &rec.Path, &rec.Size, &rec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("index lookup: %w", err)
	}
	return &rec, nil
}

// Put inserts or replaces the record for its digest.
func (ix *Index) Put(ctx context.Context, rec models.FileRecord) error {
	if ix == nil || ix.db == nil {
		return nil
	}
	_, err := ix.db.ExecContext(ctx,
		`REPLACE INTO files (digest, name, path, size, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.Digest, rec.Name, rec.Path, rec.Size, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("index put: %w", err)
	}
	return nil
}

// DeleteByDigest removes a stale row.
func (ix *Index) DeleteByDigest(ctx context.Context, digest string) error {
	if ix == nil || ix.db == nil {
		return nil
	}
	if _, err := ix.db.ExecContext(ctx, `DELETE FROM files WHERE digest = ?`, digest); err != nil {
		return fmt.Errorf("index delete: %w", err)
	}
	return nil
}

// DeleteByName removes any rows pointing at the named file.
func (ix *Index) DeleteByName(ctx context.Context, name string) error {
	if ix == nil || ix.db == nil {
		return nil
	}
	if _, err := ix.db.ExecContext(ctx, `DELETE FROM files WHERE name = ?`, name); err != nil {
		return fmt.Errorf("index delete: %w", err)
	}
	return nil
}
