// Package queue delivers file-processing work items to a redis-backed queue
// and survives the broker being unavailable: items written while offline go
// to an in-memory FIFO buffer and are replayed once the connection retry
// loop re-establishes the broker link.
//
// The buffer is process-memory only and is lost on restart. Items delivered
// directly while buffered items are still pending may reach the broker out
// of order across that boundary; order is guaranteed only within the buffer.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"docqueue/internal/audit"
	"docqueue/internal/models"
	"docqueue/internal/redis"
)

// DefaultRetryInterval is the fixed reconnect cadence.
const DefaultRetryInterval = 10 * time.Second

// marshalItem is swappable in tests.
var marshalItem = json.Marshal

// Recorder is the audit sink the client reports transitions to.
type Recorder interface {
	Record(ctx context.Context, level, event, message string, opts ...audit.Option)
}

// Config configures a Client.
type Config struct {
	// QueueName is the redis list items are pushed to.
	QueueName string
	// RetryInterval overrides the reconnect cadence (default 10s).
	RetryInterval time.Duration
}

// Client owns the broker connection and the local fallback buffer.
type Client struct {
	conn     *redis.Conn
	queue    string
	interval time.Duration
	audit    Recorder
	logger   *zap.Logger

	bufMu  sync.Mutex
	buffer []string

	// at most one drain in flight
	drainMu sync.Mutex

	retryMu sync.Mutex
	stop    chan struct{}
	done    chan struct{}
}

// New creates a queue client over the given connection handle. The client
// does not connect; call StartRetry to begin connection management.
func New(conn *redis.Conn, cfg Config, rec Recorder, logger *zap.Logger) *Client {
	if cfg.QueueName == "" {
		cfg.QueueName = "file_processing_queue"
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		conn:     conn,
		queue:    cfg.QueueName,
		interval: cfg.RetryInterval,
		audit:    rec,
		logger:   logger,
	}
}

// Enqueue hands one work item to the broker, falling back to the local
// buffer when the broker is unreachable. The returned bool reports whether
// the item reached the broker; false means it is buffered, never dropped.
func (c *Client) Enqueue(ctx context.Context, fileName, filePath string) bool {
	item := models.QueueItem{
		FileName:  fileName,
		FilePath:  filePath,
		Timestamp: time.Now().UTC(),
		ID:        uuid.NewString(),
	}
	payload, err := marshalItem(item)
	if err != nil {
		// The item must survive an encoding failure; buffer a hand-built
		// payload so it still drains once the broker accepts it.
		payload = []byte(fmt.Sprintf(`{"fileName":%q,"filePath":%q,"timestamp":%q,"id":%q}`,
			item.FileName, item.FilePath, item.Timestamp.Format(time.RFC3339Nano), item.ID))
		depth := c.push(string(payload))
		c.logger.Error("queue item encoding failed, item buffered",
			zap.String("file", fileName), zap.Error(err))
		c.record(ctx, models.LevelError, models.EventFileQueueError,
			"queue item encoding failed, item buffered locally",
			audit.WithDetails(fmt.Sprintf("Error Job ID: %s, Local Queue Count: %d", item.ID, depth)),
			audit.WithFile(fileName, filePath),
			audit.WithError(err))
		return false
	}

	if c.conn.IsConnected(ctx) {
		client := c.conn.Raw()
		if client != nil {
			opCtx, cancel := context.WithTimeout(ctx, redis.OpTimeout)
			depth, err := client.LPush(opCtx, c.queue, payload).Result()
			cancel()
			if err == nil {
				c.logger.Info("file queued", zap.String("file", fileName), zap.Int64("depth", depth))
				c.record(ctx, models.LevelInfo, models.EventFileQueued,
					"file added to processing queue",
					audit.WithDetails(fmt.Sprintf("Queue Length: %d, Job ID: %s", depth, item.ID)),
					audit.WithFile(fileName, filePath))
				return true
			}
			// Delivery failed mid-attempt: treat as a disconnect and keep the
			// item in the local buffer.
			c.conn.MarkDown()
			depth2 := c.push(string(payload))
			c.logger.Error("queue delivery failed, item buffered",
				zap.String("file", fileName), zap.Error(err))
			c.record(ctx, models.LevelError, models.EventFileQueueError,
				"queue delivery failed, item buffered locally",
				audit.WithDetails(fmt.Sprintf("Error Job ID: %s, Local Queue Count: %d", item.ID, depth2)),
				audit.WithFile(fileName, filePath),
				audit.WithError(err))
			return false
		}
	} else if c.conn.State() == redis.StateConnected {
		// A failed probe while the handle still reads Connected is a
		// disconnect; the retry loop replays the buffer only after a
		// Disconnected -> Connected transition.
		c.conn.MarkDown()
	}

	depth := c.push(string(payload))
	c.logger.Warn("broker unreachable, item buffered", zap.String("file", fileName), zap.Int("depth", depth))
	c.record(ctx, models.LevelWarning, models.EventFileQueuedLocal,
		"broker unreachable, file added to local queue",
		audit.WithDetails(fmt.Sprintf("Local Queue Count: %d, Job ID: %s", depth, item.ID)),
		audit.WithFile(fileName, filePath))
	return false
}

// Dequeue pops the oldest broker-side item, for the consumer boundary.
// Returns false when the queue is empty or the broker is unreachable.
func (c *Client) Dequeue(ctx context.Context) (string, bool) {
	client := c.conn.Raw()
	if client == nil {
		return "", false
	}
	opCtx, cancel := context.WithTimeout(ctx, redis.OpTimeout)
	defer cancel()
	item, err := client.RPop(opCtx, c.queue).Result()
	if err != nil {
		if err != goredis.Nil {
			c.logger.Error("queue pop failed", zap.Error(err))
		}
		return "", false
	}
	return item, true
}

// IsConnected is a cheap liveness probe against the broker.
func (c *Client) IsConnected(ctx context.Context) bool {
	return c.conn.IsConnected(ctx)
}

// BufferDepth reports how many items are waiting in the local buffer.
func (c *Client) BufferDepth() int {
	c.bufMu.Lock()
	defer c.bufMu.Unlock()
	return len(c.buffer)
}

// Raw exposes the underlying connection handle for collaborators that share
// the broker link.
func (c *Client) Raw() *redis.Conn {
	return c.conn
}

func (c *Client) push(payload string) int {
	c.bufMu.Lock()
	defer c.bufMu.Unlock()
	c.buffer = append(c.buffer, payload)
	return len(c.buffer)
}

func (c *Client) record(ctx context.Context, level, event, message string, opts ...audit.Option) {
	if c.audit == nil {
		return
	}
	c.audit.Record(ctx, level, event, message, opts...)
}
