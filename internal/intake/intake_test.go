package intake

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"docqueue/internal/models"
)

type stubStore struct {
	result *models.UploadResult
	err    error
}

func (s *stubStore) Save(_ context.Context, _ io.Reader, _ string) (*models.UploadResult, error) {
	return s.result, s.err
}

type stubQueue struct {
	delivered bool
	connected bool
	enqueues  int
}

func (q *stubQueue) Enqueue(_ context.Context, _, _ string) bool {
	q.enqueues++
	return q.delivered
}

func (q *stubQueue) IsConnected(_ context.Context) bool {
	return q.connected
}

func TestUploadNewFileEnqueued(t *testing.T) {
	queue := &stubQueue{delivered: true, connected: true}
	store := &stubStore{result: &models.UploadResult{
		File:        models.FileRecord{Name: "a_20250101_120000.txt", Path: "/data/a.txt", Size: 3, Digest: "abc"},
		StorageType: "FileStorage",
	}}
	svc := New(store, queue, nil)

	out, err := svc.Upload(context.Background(), strings.NewReader("abc"), "a.txt")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !out.Delivered || !out.Connected {
		t.Fatalf("expected delivered and connected, got %+v", out)
	}
	if queue.enqueues != 1 {
		t.Fatalf("enqueue called %d times, want 1", queue.enqueues)
	}
}

func TestUploadDuplicateSkipsQueue(t *testing.T) {
	queue := &stubQueue{delivered: true, connected: true}
	store := &stubStore{result: &models.UploadResult{
		File:        models.FileRecord{Name: "orig.txt", Path: "/data/orig.txt", Size: 3, Digest: "abc"},
		IsDuplicate: true,
		DuplicateOf: "orig.txt",
		StorageType: "FileStorage",
	}}
	svc := New(store, queue, nil)

	out, err := svc.Upload(context.Background(), strings.NewReader("abc"), "copy.txt")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if queue.enqueues != 0 {
		t.Fatalf("duplicate upload reached the queue %d times", queue.enqueues)
	}
	if out.Delivered {
		t.Fatalf("duplicate reported as delivered")
	}
	// Connectivity is still reported for transparency.
	if !out.Connected {
		t.Fatalf("expected connectivity probe result on duplicate path")
	}
}

func TestUploadStorageFailureIsFatal(t *testing.T) {
	wantErr := errors.New("disk full")
	queue := &stubQueue{delivered: true, connected: true}
	svc := New(&stubStore{err: wantErr}, queue, nil)

	_, err := svc.Upload(context.Background(), bytes.NewReader([]byte("x")), "x.txt")
	if !errors.Is(err, wantErr) {
		t.Fatalf("got %v, want storage error", err)
	}
	if queue.enqueues != 0 {
		t.Fatalf("failed upload still reached the queue")
	}
}

func TestUploadQueueDegradationIsMetadata(t *testing.T) {
	queue := &stubQueue{delivered: false, connected: false}
	store := &stubStore{result: &models.UploadResult{
		File:        models.FileRecord{Name: "b.txt", Path: "/data/b.txt", Size: 1, Digest: "def"},
		StorageType: "FileStorage",
	}}
	svc := New(store, queue, nil)

	out, err := svc.Upload(context.Background(), strings.NewReader("b"), "b.txt")
	if err != nil {
		t.Fatalf("queue degradation must not fail the upload: %v", err)
	}
	if out.Delivered || out.Connected {
		t.Fatalf("expected degraded metadata, got %+v", out)
	}
}
