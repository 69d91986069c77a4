package redis

import (
	"context"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// OpTimeout bounds every broker operation. A timed-out operation is treated
// the same as a connection failure by callers.
const OpTimeout = 3 * time.Second

// State is the connection lifecycle state. It transitions only through
// TryConnect and MarkDown.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Conn is a swappable handle to a redis server. The inner client is replaced
// under the mutex on reconnect so readers never observe a half-initialized
// connection.
type Conn struct {
	addr string

	mu    sync.RWMutex
	inner *redis.Client
	state State
}

// NewConn creates an unconnected handle for the given host:port address.
func NewConn(addr string) *Conn {
	return &Conn{addr: addr, state: StateDisconnected}
}

// Addr returns the configured broker address.
func (c *Conn) Addr() string {
	if c == nil {
		return ""
	}
	return c.addr
}

// TryConnect establishes a fresh connection and swaps it in. If the current
// connection still answers a ping, it is kept and no swap happens.
func (c *Conn) TryConnect(ctx context.Context) error {
	if cur := c.Raw(); cur != nil {
		pingCtx, cancel := context.WithTimeout(ctx, OpTimeout)
		err := cur.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			c.setState(StateConnected)
			return nil
		}
	}

	c.setState(StateConnecting)

	client := redis.NewClient(&redis.Options{Addr: c.addr})
	pingCtx, cancel := context.WithTimeout(ctx, OpTimeout)
	err := client.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		client.Close()
		c.setState(StateDisconnected)
		return err
	}

	c.mu.Lock()
	old := c.inner
	c.inner = client
	c.state = StateConnected
	c.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

// Raw exposes the live client, or nil while disconnected.
func (c *Conn) Raw() *redis.Client {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != StateConnected {
		return nil
	}
	return c.inner
}

// IsConnected is a side-effect-free liveness probe. Any failure reads as
// false, never as an error.
func (c *Conn) IsConnected(ctx context.Context) bool {
	client := c.Raw()
	if client == nil {
		return false
	}
	pingCtx, cancel := context.WithTimeout(ctx, OpTimeout)
	defer cancel()
	return client.Ping(pingCtx).Err() == nil
}

// State reports the current lifecycle state.
func (c *Conn) State() State {
	if c == nil {
		return StateDisconnected
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// MarkDown records a broker-reported disconnect. In-flight operations are
// not interrupted; only subsequent routing is affected.
func (c *Conn) MarkDown() {
	c.setState(StateDisconnected)
}

func (c *Conn) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Close releases the underlying client.
func (c *Conn) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateDisconnected
	if c.inner == nil {
		return nil
	}
	err := c.inner.Close()
	c.inner = nil
	return err
}
