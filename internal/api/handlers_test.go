package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"docqueue/internal/intake"
	"docqueue/internal/models"
	"docqueue/internal/storage"
)

type stubIntake struct {
	outcome *intake.Outcome
	err     error
	gotName string
}

func (s *stubIntake) Upload(_ context.Context, _ io.Reader, suggestedName string) (*intake.Outcome, error) {
	s.gotName = suggestedName
	return s.outcome, s.err
}

type stubAudit struct {
	entries  []models.LogEntry
	gotCount int
}

func (s *stubAudit) Recent(_ context.Context, count int) []models.LogEntry {
	s.gotCount = count
	if count < len(s.entries) {
		return s.entries[:count]
	}
	return s.entries
}

type stubQueue struct {
	connected bool
	depth     int
}

func (s *stubQueue) IsConnected(_ context.Context) bool { return s.connected }
func (s *stubQueue) BufferDepth() int                   { return s.depth }

type stubFiles struct {
	records []models.FileRecord
	err     error
}

func (s *stubFiles) List() ([]models.FileRecord, error) { return s.records, s.err }
func (s *stubFiles) Dir() string                        { return "/data/uploaded_files" }

func newTestRouter(in Intake, auditLog AuditLog, queue QueueStatus, files FileLister) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(in, auditLog, queue, files, "localhost:6379", nil).RegisterRoutes(router)
	return router
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func decodeJSON(t *testing.T, data []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode response: %v (%s)", err, data)
	}
}

func TestUploadEndpoint(t *testing.T) {
	in := &stubIntake{outcome: &intake.Outcome{
		Upload: &models.UploadResult{
			File: models.FileRecord{
				Name:   "report_20250101_120000.pdf",
				Path:   "/data/report_20250101_120000.pdf",
				Size:   5,
				Digest: "abc123",
			},
			StorageType: "FileStorage",
		},
		Delivered: true,
		Connected: true,
	}}
	router := newTestRouter(in, &stubAudit{}, &stubQueue{connected: true}, &stubFiles{})

	body, contentType := multipartBody(t, "file", "report.pdf", "hello")
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.Code, resp.Body.String())
	}
	var got models.UploadResponse
	decodeJSON(t, resp.Body.Bytes(), &got)
	if !got.Success {
		t.Fatalf("expected success response")
	}
	if got.File == nil || got.File.FileName != "report_20250101_120000.pdf" {
		t.Fatalf("unexpected file details: %+v", got.File)
	}
	if got.Queue == nil || !got.Queue.Queued || !got.Queue.RedisConnected {
		t.Fatalf("unexpected queue info: %+v", got.Queue)
	}
	if in.gotName != "report.pdf" {
		t.Fatalf("intake received name %q", in.gotName)
	}
}

func TestUploadDuplicateResponse(t *testing.T) {
	in := &stubIntake{outcome: &intake.Outcome{
		Upload: &models.UploadResult{
			File:        models.FileRecord{Name: "orig.pdf", Path: "/data/orig.pdf", Size: 5, Digest: "abc"},
			IsDuplicate: true,
			DuplicateOf: "orig.pdf",
			StorageType: "FileStorage",
		},
		Connected: true,
	}}
	router := newTestRouter(in, &stubAudit{}, &stubQueue{connected: true}, &stubFiles{})

	body, contentType := multipartBody(t, "file", "copy.pdf", "hello")
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	var got models.UploadResponse
	decodeJSON(t, resp.Body.Bytes(), &got)
	if !got.Success || got.File == nil || !got.File.IsDuplicate {
		t.Fatalf("expected duplicate marked successful: %+v", got)
	}
	if got.Queue == nil || got.Queue.Queued {
		t.Fatalf("duplicate must not be queued: %+v", got.Queue)
	}
	if !got.Queue.RedisConnected {
		t.Fatalf("connectivity should still be reported for duplicates")
	}
}

func TestUploadMissingFile(t *testing.T) {
	router := newTestRouter(&stubIntake{}, &stubAudit{}, &stubQueue{}, &stubFiles{})

	req := httptest.NewRequest(http.MethodPost, "/api/upload", bytes.NewBufferString(""))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.Code)
	}
}

func TestUploadEmptyFileRejected(t *testing.T) {
	in := &stubIntake{err: storage.ErrEmptyFile}
	router := newTestRouter(in, &stubAudit{}, &stubQueue{}, &stubFiles{})

	body, contentType := multipartBody(t, "file", "empty.txt", "x")
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.Code)
	}
	var got models.UploadResponse
	decodeJSON(t, resp.Body.Bytes(), &got)
	if got.Success {
		t.Fatalf("empty file reported successful")
	}
}

func TestGetLogsCountClamped(t *testing.T) {
	cases := []struct {
		query string
		want  int
	}{
		{"", 50},
		{"?count=10", 10},
		{"?count=0", 1},
		{"?count=-5", 1},
		{"?count=500", 100},
		{"?count=abc", 50},
	}
	for _, tc := range cases {
		auditLog := &stubAudit{}
		router := newTestRouter(&stubIntake{}, auditLog, &stubQueue{}, &stubFiles{})
		req := httptest.NewRequest(http.MethodGet, "/api/logs"+tc.query, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		if resp.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", tc.query, resp.Code)
		}
		if auditLog.gotCount != tc.want {
			t.Fatalf("%s: count = %d, want %d", tc.query, auditLog.gotCount, tc.want)
		}
	}
}

func TestGetFilesWithStatuses(t *testing.T) {
	name1, name2 := "queued.pdf", "buffered.pdf"
	auditLog := &stubAudit{entries: []models.LogEntry{
		{Timestamp: time.Now(), Event: models.EventFileQueued, FileName: &name1},
		{Timestamp: time.Now(), Event: models.EventFileQueuedLocal, FileName: &name2},
	}}
	files := &stubFiles{records: []models.FileRecord{
		{Name: "queued.pdf", Size: 10, CreatedAt: time.Now()},
		{Name: "buffered.pdf", Size: 20, CreatedAt: time.Now()},
		{Name: "silent.pdf", Size: 30, CreatedAt: time.Now()},
	}}
	router := newTestRouter(&stubIntake{}, auditLog, &stubQueue{}, files)

	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	var got models.FilesResponse
	decodeJSON(t, resp.Body.Bytes(), &got)
	if got.TotalCount != 3 {
		t.Fatalf("total = %d, want 3", got.TotalCount)
	}
	want := map[string]string{
		"queued.pdf":   "Queued",
		"buffered.pdf": "Buffered",
		"silent.pdf":   "Stored",
	}
	for _, f := range got.Files {
		if f.Status != want[f.FileName] {
			t.Fatalf("%s status = %q, want %q", f.FileName, f.Status, want[f.FileName])
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(&stubIntake{}, &stubAudit{}, &stubQueue{connected: true}, &stubFiles{
		records: []models.FileRecord{{Name: "a.pdf"}},
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	var got models.HealthResponse
	decodeJSON(t, resp.Body.Bytes(), &got)
	if got.Status != "healthy" {
		t.Fatalf("status = %q, want healthy", got.Status)
	}
	if !got.Redis.IsConnected || got.Redis.Address != "localhost:6379" {
		t.Fatalf("unexpected redis health: %+v", got.Redis)
	}
	if !got.Storage.Reachable || got.Storage.FileCount != 1 {
		t.Fatalf("unexpected storage health: %+v", got.Storage)
	}
}

func TestHealthDegradedWhenDisconnected(t *testing.T) {
	router := newTestRouter(&stubIntake{}, &stubAudit{}, &stubQueue{connected: false, depth: 2}, &stubFiles{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	var got models.HealthResponse
	decodeJSON(t, resp.Body.Bytes(), &got)
	if got.Status != "degraded" {
		t.Fatalf("status = %q, want degraded", got.Status)
	}
	if got.Redis.LocalBufferDepth != 2 {
		t.Fatalf("buffer depth = %d, want 2", got.Redis.LocalBufferDepth)
	}
}
