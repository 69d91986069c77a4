package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"docqueue/internal/intake"
	"docqueue/internal/models"
	"docqueue/internal/storage"
)

const maxUploadBytes = 100 << 20

// Intake is the upload orchestrator.
type Intake interface {
	Upload(ctx context.Context, r io.Reader, suggestedName string) (*intake.Outcome, error)
}

// AuditLog serves recent audit entries.
type AuditLog interface {
	Recent(ctx context.Context, count int) []models.LogEntry
}

// QueueStatus reports broker connectivity and local buffer depth.
type QueueStatus interface {
	IsConnected(ctx context.Context) bool
	BufferDepth() int
}

// FileLister enumerates stored files.
type FileLister interface {
	List() ([]models.FileRecord, error)
	Dir() string
}

// Handler wires HTTP routes to the intake pipeline and its collaborators.
type Handler struct {
	intake     Intake
	audit      AuditLog
	queue      QueueStatus
	files      FileLister
	brokerAddr string
	started    time.Time
	logger     *zap.Logger
}

// NewHandler constructs a Handler instance.
func NewHandler(in Intake, auditLog AuditLog, queue QueueStatus, files FileLister, brokerAddr string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		intake:     in,
		audit:      auditLog,
		queue:      queue,
		files:      files,
		brokerAddr: brokerAddr,
		started:    time.Now(),
		logger:     logger,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsAllowAll())
	router.GET("/", h.health)
	api := router.Group("/api")
	api.POST("/upload", h.uploadFile)
	api.GET("/logs", h.getLogs)
	api.GET("/files", h.getFiles)
}

func (h *Handler) uploadFile(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.UploadResponse{
			Success:   false,
			Message:   "upload failed",
			Timestamp: time.Now().UTC(),
			Error:     "file is required",
		})
		return
	}
	if fileHeader.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, models.UploadResponse{
			Success:   false,
			Message:   "upload failed",
			Timestamp: time.Now().UTC(),
			Error:     "file too large",
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.UploadResponse{
			Success:   false,
			Message:   "upload failed",
			Timestamp: time.Now().UTC(),
			Error:     "file could not be read",
		})
		return
	}
	defer file.Close()

	outcome, err := h.intake.Upload(c.Request.Context(), file, fileHeader.Filename)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, storage.ErrEmptyFile) {
			status = http.StatusBadRequest
		}
		h.logger.Warn("upload failed", zap.String("file", fileHeader.Filename), zap.Error(err))
		c.JSON(status, models.UploadResponse{
			Success:   false,
			Message:   "upload failed",
			Timestamp: time.Now().UTC(),
			Error:     err.Error(),
		})
		return
	}

	result := outcome.Upload
	message := "file uploaded and queued for processing"
	queueStatus := "added to processing queue"
	switch {
	case result.IsDuplicate:
		message = "identical file already stored, marked as duplicate"
		queueStatus = "duplicate file, not queued"
	case !outcome.Delivered:
		queueStatus = "added to local queue (broker unreachable)"
	}

	c.JSON(http.StatusOK, models.UploadResponse{
		Success:   true,
		Message:   message,
		Timestamp: time.Now().UTC(),
		File: &models.FileDetails{
			FileName:    result.File.Name,
			FilePath:    result.File.Path,
			FileSize:    result.File.Size,
			StorageType: result.StorageType,
			UploadTime:  result.File.CreatedAt,
			FileHash:    result.File.Digest,
			IsDuplicate: result.IsDuplicate,
			DuplicateOf: result.DuplicateOf,
		},
		Queue: &models.QueueInfo{
			Queued:         outcome.Delivered,
			Status:         queueStatus,
			RedisConnected: outcome.Connected,
		},
	})
}

func (h *Handler) getLogs(c *gin.Context) {
	count := 50
	if v := c.Query("count"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			count = parsed
		}
	}
	// Clamp to [1, 100]; the store itself does not enforce this.
	if count < 1 {
		count = 1
	}
	if count > 100 {
		count = 100
	}

	logs := h.audit.Recent(c.Request.Context(), count)
	c.JSON(http.StatusOK, models.LogsResponse{
		Success:     true,
		TotalCount:  len(logs),
		Logs:        logs,
		RetrievedAt: time.Now().UTC(),
	})
}

func (h *Handler) getFiles(c *gin.Context) {
	records, err := h.files.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.FilesResponse{
			Success:     false,
			Files:       []models.StoredFileInfo{},
			RetrievedAt: time.Now().UTC(),
			Error:       err.Error(),
		})
		return
	}

	statuses := fileStatuses(h.audit.Recent(c.Request.Context(), 100))
	files := make([]models.StoredFileInfo, 0, len(records))
	for _, rec := range records {
		status, ok := statuses[rec.Name]
		if !ok {
			status = "Stored"
		}
		files = append(files, models.StoredFileInfo{
			FileName:   rec.Name,
			FileSize:   rec.Size,
			UploadedAt: rec.CreatedAt,
			Status:     status,
		})
	}

	c.JSON(http.StatusOK, models.FilesResponse{
		Success:     true,
		Files:       files,
		TotalCount:  len(files),
		RetrievedAt: time.Now().UTC(),
	})
}

// fileStatuses derives a per-file pipeline status from recent audit events.
// Entries arrive most recent first, so the first event seen for a file wins.
func fileStatuses(logs []models.LogEntry) map[string]string {
	statuses := make(map[string]string)
	for _, entry := range logs {
		if entry.FileName == nil {
			continue
		}
		name := *entry.FileName
		if _, seen := statuses[name]; seen {
			continue
		}
		switch entry.Event {
		case models.EventFileQueued:
			statuses[name] = "Queued"
		case models.EventFileQueuedLocal:
			statuses[name] = "Buffered"
		case models.EventFileQueueError:
			statuses[name] = "Error"
		case models.EventFileUploaded:
			statuses[name] = "Stored"
		}
	}
	return statuses
}

func (h *Handler) health(c *gin.Context) {
	connected := h.queue.IsConnected(c.Request.Context())

	fileCount := 0
	reachable := true
	records, err := h.files.List()
	if err != nil {
		reachable = false
	} else {
		fileCount = len(records)
	}

	status := "healthy"
	if !connected || !reachable {
		status = "degraded"
	}

	c.JSON(http.StatusOK, models.HealthResponse{
		Status:    status,
		UptimeSec: time.Since(h.started).Seconds(),
		Timestamp: time.Now().UTC(),
		Redis: models.RedisHealth{
			IsConnected:      connected,
			LocalBufferDepth: h.queue.BufferDepth(),
			Address:          h.brokerAddr,
		},
		Storage: models.StorageHealth{
			Reachable: reachable,
			Path:      h.files.Dir(),
			FileCount: fileCount,
		},
	})
}

func corsAllowAll() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "*")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
