package models

import "time"

// FileRecord describes a file persisted in the content-addressed store.
// Two records with the same Digest are the same logical file regardless
// of their names.
type FileRecord struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	Digest    string    `json:"digest"`
	CreatedAt time.Time `json:"created_at"`
}

// UploadResult is the outcome of a store write. For duplicates the embedded
// record points at the previously stored file, not a new copy.
type UploadResult struct {
	File        FileRecord `json:"file"`
	IsDuplicate bool       `json:"is_duplicate"`
	DuplicateOf string     `json:"duplicate_of,omitempty"`
	StorageType string     `json:"storage_type"`
}
