package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeusync/kartking/internal/core/protocol"
)

const (
	pingInterval   = 15 * time.Second
	pongWait       = 45 * time.Second
	maxMessageSize = 4 << 10
)

// ClientSession is one connected WebSocket client. Outgoing messages go
// through a bounded queue drained by the session's writer goroutine.
type ClientSession struct {
	ID          protocol.ClientID
	ConnectedAt time.Time
	LastSeen    int64 // atomic unix timestamp
	Active      int32 // atomic bool

	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	dropped uint64 // atomic

	// held is only touched by the reader goroutine.
	held map[string]struct{}
}

func newSession(conn *websocket.Conn, buffer int) *ClientSession {
	return &ClientSession{
		ID:          protocol.GenerateClientID(),
		ConnectedAt: time.Now(),
		LastSeen:    time.Now().Unix(),
		Active:      1,
		conn:        conn,
		send:        make(chan []byte, buffer),
		done:        make(chan struct{}),
		held:        make(map[string]struct{}),
	}
}

// enqueue queues data without blocking. It reports false when the session is
// closed or its queue is full.
func (c *ClientSession) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		atomic.AddUint64(&c.dropped, 1)
		return false
	}
}

func (c *ClientSession) Dropped() uint64 { return atomic.LoadUint64(&c.dropped) }

func (c *ClientSession) close() {
	c.once.Do(func() {
		atomic.StoreInt32(&c.Active, 0)
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *ClientSession) touch() {
	atomic.StoreInt64(&c.LastSeen, time.Now().Unix())
}

// writeLoop drains the queue and keeps the connection alive with pings.
func (c *ClientSession) writeLoop(writeTimeout time.Duration) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return nil
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return err
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return err
			}
		}
	}
}
