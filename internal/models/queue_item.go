package models

import "time"

// QueueItem is the wire form handed to the broker queue, and the form held
// in the local fallback buffer while the broker is unreachable. Never
// mutated after creation.
type QueueItem struct {
	FileName  string    `json:"fileName"`
	FilePath  string    `json:"filePath"`
	Timestamp time.Time `json:"timestamp"`
	ID        string    `json:"id"`
}
