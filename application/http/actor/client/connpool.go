package client

import (
	"browser-core/lib/ds/queue"
	"browser-core/transport/connect"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

type idleConn struct {
	conn   *connect.Conn
	idleAt time.Time
}

// connPool keeps connections whose last response allowed reuse.
// Each key holds its connections oldest first, so expiry only looks at the front.
// A key's ring has the pool's MaxIdle as capacity, which the pool never exceeds in total.
type connPool struct {
	idle  map[poolKey]*queue.Ring[*idleConn]
	count uint
	timer *clock.Timer

	closed bool
	mu     sync.Mutex

	maxIdle     uint
	idleTimeout time.Duration

	clock  clock.Clock
	logger *slog.Logger
}

func newConnPool(maxIdle uint, idleTimeout time.Duration, clock clock.Clock, logger *slog.Logger) *connPool {
	return &connPool{
		idle:        make(map[poolKey]*queue.Ring[*idleConn]),
		maxIdle:     maxIdle,
		idleTimeout: idleTimeout,
		clock:       clock,
		logger:      logger,
	}
}

func (pool *connPool) expired(ic *idleConn, now time.Time) bool {
	return pool.idleTimeout > 0 && now.Sub(ic.idleAt) >= pool.idleTimeout
}

// get takes the oldest live connection for key.
func (pool *connPool) get(key poolKey) (*connect.Conn, bool) {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	conns, ok := pool.idle[key]
	if !ok {
		return nil, false
	}

	now := pool.clock.Now()
	for conns.Len() > 0 {
		ic, _ := conns.Dequeue()
		pool.count--

		if pool.expired(ic, now) {
			ic.conn.Close()
			continue
		}

		if conns.Len() == 0 {
			delete(pool.idle, key)
		}
		return ic.conn, true
	}

	delete(pool.idle, key)
	return nil, false
}

// put parks conn for reuse. When the pool is full the oldest idle connection
// makes room.
func (pool *connPool) put(key poolKey, conn *connect.Conn) {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	if pool.closed || pool.maxIdle == 0 {
		conn.Close()
		return
	}

	if pool.count >= pool.maxIdle {
		pool.evictOldestLocked()
	}

	conns, ok := pool.idle[key]
	if !ok {
		conns = queue.NewRing[*idleConn](pool.maxIdle)
		pool.idle[key] = conns
	}
	conns.Enqueue(&idleConn{conn: conn, idleAt: pool.clock.Now()})
	pool.count++

	if pool.timer == nil && pool.idleTimeout > 0 {
		pool.timer = pool.clock.AfterFunc(pool.idleTimeout, pool.expire)
	}
}

func (pool *connPool) evictOldestLocked() {
	var (
		oldestKey poolKey
		oldest    *idleConn
	)
	for key, conns := range pool.idle {
		ic, err := conns.Peek()
		if err != nil {
			continue
		}
		if oldest == nil || ic.idleAt.Before(oldest.idleAt) {
			oldestKey, oldest = key, ic
		}
	}
	if oldest == nil {
		return
	}

	conns := pool.idle[oldestKey]
	conns.Dequeue()
	pool.count--
	if conns.Len() == 0 {
		delete(pool.idle, oldestKey)
	}
	oldest.conn.Close()
}

// expire closes connections idle for too long and rearms the timer for the
// next one due.
func (pool *connPool) expire() {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	pool.timer = nil
	if pool.closed {
		return
	}

	now := pool.clock.Now()
	var next time.Time
	for key, conns := range pool.idle {
		for conns.Len() > 0 {
			ic, _ := conns.Peek()
			if !pool.expired(ic, now) {
				if due := ic.idleAt.Add(pool.idleTimeout); next.IsZero() || due.Before(next) {
					next = due
				}
				break
			}

			conns.Dequeue()
			pool.count--
			ic.conn.Close()
			pool.logger.Debug("idle connection expired",
				slog.String("host", key.host), slog.Int("port", int(key.port)))
		}
		if conns.Len() == 0 {
			delete(pool.idle, key)
		}
	}

	if !next.IsZero() {
		pool.timer = pool.clock.AfterFunc(next.Sub(now), pool.expire)
	}
}

func (pool *connPool) len() uint {
	pool.mu.Lock()
	defer pool.mu.Unlock()
	return pool.count
}

func (pool *connPool) close() {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	pool.closed = true
	if pool.timer != nil {
		pool.timer.Stop()
		pool.timer = nil
	}

	for key, conns := range pool.idle {
		conns.Drain(func(ic *idleConn) { ic.conn.Close() })
		delete(pool.idle, key)
	}
	pool.count = 0
}
