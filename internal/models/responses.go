package models

import "time"

// UploadResponse is returned by the upload endpoint.
type UploadResponse struct {
	Success   bool         `json:"success"`
	Message   string       `json:"message"`
	Timestamp time.Time    `json:"timestamp"`
	File      *FileDetails `json:"file,omitempty"`
	Queue     *QueueInfo   `json:"queue,omitempty"`
	Error     string       `json:"error,omitempty"`
}

type FileDetails struct {
	FileName    string    `json:"fileName"`
	FilePath    string    `json:"filePath"`
	FileSize    int64     `json:"fileSize"`
	StorageType string    `json:"storageType"`
	UploadTime  time.Time `json:"uploadTime"`
	FileHash    string    `json:"fileHash,omitempty"`
	IsDuplicate bool      `json:"isDuplicate"`
	DuplicateOf string    `json:"duplicateOf,omitempty"`
}

// QueueInfo reports how the queue step went, independent of upload success.
type QueueInfo struct {
	Queued         bool   `json:"queued"`
	Status         string `json:"status"`
	RedisConnected bool   `json:"redisConnected"`
}

// LogsResponse wraps a page of audit entries.
type LogsResponse struct {
	Success     bool       `json:"success"`
	TotalCount  int        `json:"totalCount"`
	Logs        []LogEntry `json:"logs"`
	RetrievedAt time.Time  `json:"retrievedAt"`
}

// StoredFileInfo is a file listing row with its pipeline status as derived
// from recent audit events.
type StoredFileInfo struct {
	FileName   string    `json:"fileName"`
	FileSize   int64     `json:"fileSize"`
	UploadedAt time.Time `json:"uploadedAt"`
	Status     string    `json:"status"`
}

type FilesResponse struct {
	Success     bool             `json:"success"`
	Files       []StoredFileInfo `json:"files"`
	TotalCount  int              `json:"totalCount"`
	RetrievedAt time.Time        `json:"retrievedAt"`
	Error       string           `json:"error,omitempty"`
}

// Per-service health payloads are typed rather than free-form maps.

type RedisHealth struct {
	IsConnected      bool   `json:"isConnected"`
	LocalBufferDepth int    `json:"localBufferDepth"`
	Address          string `json:"address"`
}

type StorageHealth struct {
	Reachable bool   `json:"reachable"`
	Path      string `json:"path"`
	FileCount int    `json:"fileCount"`
}

type HealthResponse struct {
	Status    string        `json:"status"`
	UptimeSec float64       `json:"uptimeSeconds"`
	Timestamp time.Time     `json:"timestamp"`
	Redis     RedisHealth   `json:"redis"`
	Storage   StorageHealth `json:"storage"`
}
