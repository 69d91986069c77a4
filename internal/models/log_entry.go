package models

import "time"

// Audit severity tags.
const (
	LevelInfo    = "INFO"
	LevelWarning = "WARNING"
	LevelError   = "ERROR"
)

// Symbolic audit event kinds.
const (
	EventFileUploaded      = "FILE_UPLOADED"
	EventFileDuplicate     = "FILE_DUPLICATE"
	EventFileDeleted       = "FILE_DELETED"
	EventFileQueued        = "FILE_QUEUED"
	EventFileQueuedLocal   = "FILE_QUEUED_LOCAL"
	EventFileQueueError    = "FILE_QUEUE_ERROR"
	EventRedisConnected    = "REDIS_CONNECTED"
	EventRedisConnFailed   = "REDIS_CONNECTION_FAILED"
	EventRedisDisconnected = "REDIS_DISCONNECTED"
)

// LogEntry is a single audit record. Optional fields are pointers so their
// serialized form is null when absent.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Event     string    `json:"event"`
	Message   string    `json:"message"`
	Details   *string   `json:"details"`
	FileName  *string   `json:"fileName"`
	FilePath  *string   `json:"filePath"`
	FileSize  *int64    `json:"fileSize"`
	Error     *string   `json:"error"`
}
