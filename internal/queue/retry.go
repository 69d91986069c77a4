package queue

import (
	"context"

	"go.uber.org/zap"

	"docqueue/internal/audit"
	"docqueue/internal/models"
	"docqueue/internal/redis"
)

// StartRetry launches the periodic reconnect loop. Calling it while a loop
// is already running is a no-op. The first attempt fires immediately, then
// on the fixed interval.
func (c *Client) StartRetry() {
	c.retryMu.Lock()
	defer c.retryMu.Unlock()
	if c.stop != nil {
		return
	}
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.retryLoop(c.stop, c.done)
	c.logger.Info("broker reconnect loop started", zap.Duration("interval", c.interval))
}

// StopRetry halts the reconnect loop and waits for it to exit. Stopping an
// already-stopped loop is a no-op.
func (c *Client) StopRetry() {
	c.retryMu.Lock()
	defer c.retryMu.Unlock()
	if c.stop == nil {
		return
	}
	close(c.stop)
	<-c.done
	c.stop = nil
	c.done = nil
	c.logger.Info("broker reconnect loop stopped")
}

func (c *Client) retryLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ctx := context.Background()
	c.tick(ctx)

	ticker := newTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			c.tick(ctx)
		}
	}
}

// tick advances the connection state machine once: reconnect when down,
// verify liveness when up.
func (c *Client) tick(ctx context.Context) {
	if c.conn.State() == redis.StateConnected {
		if !c.conn.IsConnected(ctx) {
			c.conn.MarkDown()
			c.logger.Warn("broker connection lost")
			c.record(ctx, models.LevelWarning, models.EventRedisDisconnected,
				"broker connection lost")
			return
		}
		// Items can land in the buffer without a state change (an encoding
		// fallback, or a blip the state machine never observed).
		if c.BufferDepth() > 0 {
			c.drain(ctx)
		}
		return
	}

	if err := c.conn.TryConnect(ctx); err != nil {
		c.logger.Warn("broker connection attempt failed",
			zap.String("addr", c.conn.Addr()), zap.Error(err))
		c.record(ctx, models.LevelWarning, models.EventRedisConnFailed,
			"broker connection attempt failed", audit.WithError(err))
		return
	}

	c.logger.Info("broker connection established", zap.String("addr", c.conn.Addr()))
	c.record(ctx, models.LevelInfo, models.EventRedisConnected,
		"broker connection established")
	c.drain(ctx)
}

// drain replays buffered items to the broker in insertion order, one at a
// time. Each item is removed only after its push succeeds, so a mid-drain
// failure leaves the remaining items (including the one in flight) intact.
func (c *Client) drain(ctx context.Context) {
	c.drainMu.Lock()
	defer c.drainMu.Unlock()

	moved := 0
	for {
		c.bufMu.Lock()
		if len(c.buffer) == 0 {
			c.bufMu.Unlock()
			break
		}
		payload := c.buffer[0]
		c.bufMu.Unlock()

		client := c.conn.Raw()
		if client == nil {
			break
		}
		opCtx, cancel := context.WithTimeout(ctx, redis.OpTimeout)
		err := client.LPush(opCtx, c.queue, payload).Err()
		cancel()
		if err != nil {
			c.conn.MarkDown()
			c.logger.Warn("drain interrupted, remaining items kept",
				zap.Int("remaining", c.BufferDepth()), zap.Error(err))
			break
		}

		c.bufMu.Lock()
		c.buffer = c.buffer[1:]
		if len(c.buffer) == 0 {
			// Drop the backing array a long outage may have grown.
			c.buffer = nil
		}
		c.bufMu.Unlock()
		moved++
	}

	if moved > 0 {
		c.logger.Info("local queue drained to broker", zap.Int("items", moved))
	}
}
