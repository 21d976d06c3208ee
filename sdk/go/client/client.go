// Package client provides a WebSocket client SDK for the kart server: it
// receives frames and events and sends key presses.
package client

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeusync/kartking/internal/core/events/bus"
	"github.com/zeusync/kartking/internal/core/observability/log"
	"github.com/zeusync/kartking/internal/core/protocol"
	"github.com/zeusync/kartking/internal/core/sim"
)

// Client represents a connection to a kart server
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	codec   protocol.JSONCodec

	id atomic.Value // protocol.ClientID

	frames chan sim.Frame
	events chan bus.Event

	messageHandlers map[protocol.MessageType][]MessageHandler
	eventHandlers   map[EventType][]EventHandler
	handlerMutex    sync.RWMutex

	// Lifecycle
	state  int32 // atomic, one of the state constants
	closed int32 // atomic bool
	done   chan struct{}

	framesDropped uint64 // atomic

	config Config
	logger log.Log

	workerGroup sync.WaitGroup
}

const (
	stateIdle int32 = iota
	stateConnecting
	stateConnected
)

// Config holds configuration for the client
type Config struct {
	ServerURL      string
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	MaxMessageSize int64

	// FrameBuffer bounds the Frames channel. When it is full the oldest
	// unread frame is discarded.
	FrameBuffer int
	EventBuffer int

	LogLevel log.Level
}

// DefaultClientConfig returns default client configuration
func DefaultClientConfig() Config {
	return Config{
		ServerURL:      "ws://localhost:8080/ws",
		ConnectTimeout: 10 * time.Second,
		WriteTimeout:   5 * time.Second,
		MaxMessageSize: 1 << 20,
		FrameBuffer:    4,
		EventBuffer:    64,
		LogLevel:       log.LevelInfo,
	}
}

// MessageHandler defines a function type for handling incoming messages
type MessageHandler func(msg protocol.Message) error

// EventHandler defines a function type for handling client events
type EventHandler func(event Event) error

// EventType represents different types of client events
type EventType string

const (
	EventTypeConnected    EventType = "connected"
	EventTypeDisconnected EventType = "disconnected"
	EventTypeError        EventType = "error"
)

// Event represents a client lifecycle event
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      map[string]any
	Error     error
}

// NewClient creates a new client. A nil logger builds one at config.LogLevel.
func NewClient(config Config, logger log.Log) *Client {
	defaults := DefaultClientConfig()
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = defaults.ConnectTimeout
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = defaults.MaxMessageSize
	}
	if config.FrameBuffer <= 0 {
		config.FrameBuffer = defaults.FrameBuffer
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = defaults.EventBuffer
	}
	if logger == nil {
		logger = log.New(config.LogLevel)
	}

	return &Client{
		frames:          make(chan sim.Frame, config.FrameBuffer),
		events:          make(chan bus.Event, config.EventBuffer),
		messageHandlers: make(map[protocol.MessageType][]MessageHandler),
		eventHandlers:   make(map[EventType][]EventHandler),
		done:            make(chan struct{}),
		config:          config,
		logger:          logger.With(log.String("component", "client")),
	}
}

// Connect dials the server and waits for its hello message.
func (c *Client) Connect(ctx context.Context) error {
	if atomic.LoadInt32(&c.closed) == 1 {
		return ErrClientClosed
	}
	if !atomic.CompareAndSwapInt32(&c.state, stateIdle, stateConnecting) {
		return ErrAlreadyConnected
	}

	c.logger.Info("Connecting to server", log.String("url", c.config.ServerURL))

	connectCtx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
	defer cancel()

	conn, resp, err := websocket.DefaultDialer.DialContext(connectCtx, c.config.ServerURL, nil)
	if err != nil {
		atomic.StoreInt32(&c.state, stateIdle)
		if resp != nil && resp.StatusCode == http.StatusServiceUnavailable {
			err = fmt.Errorf("%w: %w", ErrServerFull, err)
		}
		c.logger.Error("Failed to connect to server",
			log.String("url", c.config.ServerURL),
			log.Error(err))
		return err
	}
	conn.SetReadLimit(c.config.MaxMessageSize)

	hello, err := c.readHello(connectCtx, conn)
	if err != nil {
		atomic.StoreInt32(&c.state, stateIdle)
		_ = conn.Close()
		return err
	}

	c.conn = conn
	c.id.Store(hello.ClientID)
	atomic.StoreInt32(&c.state, stateConnected)

	c.logger.Info("Connected to server",
		log.String("client_id", string(hello.ClientID)),
		log.String("remote_addr", conn.RemoteAddr().String()))

	c.workerGroup.Add(1)
	go c.readLoop(conn)

	c.emitEvent(Event{
		Type:      EventTypeConnected,
		Timestamp: time.Now(),
		Data: map[string]any{
			"client_id": string(hello.ClientID),
			"url":       c.config.ServerURL,
		},
	})

	return nil
}

func (c *Client) readHello(ctx context.Context, conn *websocket.Conn) (protocol.Message, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.ConnectTimeout)
	}
	_ = conn.SetReadDeadline(deadline)
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	_, data, err := conn.ReadMessage()
	if err != nil {
		return protocol.Message{}, fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}
	msg, err := c.codec.Decode(data)
	if err != nil {
		return protocol.Message{}, fmt.Errorf("%w: %w", ErrHandshakeFailed, err)
	}
	if msg.Type != protocol.MessageTypeHello || msg.ClientID == "" {
		return protocol.Message{}, fmt.Errorf("%w: expected hello, got %q", ErrHandshakeFailed, msg.Type)
	}
	return msg, nil
}

// Disconnect closes the connection to the server
func (c *Client) Disconnect() error {
	if !atomic.CompareAndSwapInt32(&c.state, stateConnected, stateIdle) {
		return ErrNotConnected
	}

	c.logger.Info("Disconnecting from server")

	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	_ = c.conn.Close()

	c.workerGroup.Wait()

	c.emitEvent(Event{
		Type:      EventTypeDisconnected,
		Timestamp: time.Now(),
	})

	c.logger.Info("Disconnected from server")
	return nil
}

// Close closes the client and releases all resources
func (c *Client) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}

	c.logger.Info("Closing client")

	if atomic.LoadInt32(&c.state) == stateConnected {
		_ = c.Disconnect()
	}
	c.workerGroup.Wait()
	close(c.done)

	c.logger.Info("Client closed")
	return nil
}

// SendKey reports a key press or release.
func (c *Client) SendKey(code string, down bool) error {
	return c.SendMessage(protocol.NewKey(code, down))
}

// Press sends a key down followed by a key up for code.
func (c *Client) Press(code string) error {
	if err := c.SendKey(code, true); err != nil {
		return err
	}
	return c.SendKey(code, false)
}

// SendMessage sends a message to the server
func (c *Client) SendMessage(msg protocol.Message) error {
	if atomic.LoadInt32(&c.state) != stateConnected {
		return ErrNotConnected
	}

	data, err := c.codec.Encode(msg)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.logger.Error("Failed to send message",
			log.String("type", msg.Type.String()),
			log.Error(err))
		return err
	}
	return nil
}

// OnMessage registers a handler for messages of a specific type
func (c *Client) OnMessage(msgType protocol.MessageType, handler MessageHandler) {
	c.handlerMutex.Lock()
	defer c.handlerMutex.Unlock()
	c.messageHandlers[msgType] = append(c.messageHandlers[msgType], handler)
}

// OnEvent registers a handler for client events
func (c *Client) OnEvent(eventType EventType, handler EventHandler) {
	c.handlerMutex.Lock()
	defer c.handlerMutex.Unlock()
	c.eventHandlers[eventType] = append(c.eventHandlers[eventType], handler)
}

// Frames delivers the frames streamed by the server.
func (c *Client) Frames() <-chan sim.Frame { return c.frames }

// Events delivers the simulation events forwarded by the server.
func (c *Client) Events() <-chan bus.Event { return c.events }

// ID returns the identifier assigned by the server, empty before Connect.
func (c *Client) ID() protocol.ClientID {
	id, _ := c.id.Load().(protocol.ClientID)
	return id
}

// IsConnected returns whether the client is connected
func (c *Client) IsConnected() bool {
	return atomic.LoadInt32(&c.state) == stateConnected
}

// FramesDropped counts frames discarded because Frames was not drained.
func (c *Client) FramesDropped() uint64 {
	return atomic.LoadUint64(&c.framesDropped)
}

// Done is closed once the client is closed.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) readLoop(conn *websocket.Conn) {
	defer c.workerGroup.Done()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if atomic.CompareAndSwapInt32(&c.state, stateConnected, stateIdle) {
				// The server went away rather than us disconnecting.
				_ = conn.Close()
				c.logger.Warn("Connection lost", log.Error(err))
				c.emitEvent(Event{
					Type:      EventTypeDisconnected,
					Timestamp: time.Now(),
					Error:     err,
				})
			}
			return
		}

		msg, err := c.codec.Decode(data)
		if err != nil {
			c.logger.Debug("Dropping malformed message", log.Error(err))
			continue
		}
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg protocol.Message) {
	switch msg.Type {
	case protocol.MessageTypeFrame:
		if msg.Frame != nil {
			c.pushFrame(*msg.Frame)
		}
	case protocol.MessageTypeEvent:
		if msg.Event != nil {
			select {
			case c.events <- *msg.Event:
			default:
				c.logger.Debug("Event buffer full", log.String("type", msg.Event.Type))
			}
		}
	case protocol.MessageTypeError:
		c.emitEvent(Event{
			Type:      EventTypeError,
			Timestamp: time.Now(),
			Error:     fmt.Errorf("%w: %s", ErrServerError, msg.Error),
		})
	}

	c.handlerMutex.RLock()
	handlers := c.messageHandlers[msg.Type]
	c.handlerMutex.RUnlock()

	for _, handler := range handlers {
		if err := handler(msg); err != nil {
			c.logger.Error("Message handler failed",
				log.String("type", msg.Type.String()),
				log.Error(err))
		}
	}
}

// pushFrame keeps the newest frames: when the buffer is full the oldest one
// is dropped.
func (c *Client) pushFrame(frame sim.Frame) {
	for {
		select {
		case c.frames <- frame:
			return
		default:
		}
		select {
		case <-c.frames:
			atomic.AddUint64(&c.framesDropped, 1)
		default:
		}
	}
}

func (c *Client) emitEvent(event Event) {
	c.handlerMutex.RLock()
	handlers := c.eventHandlers[event.Type]
	c.handlerMutex.RUnlock()

	for _, handler := range handlers {
		if err := handler(event); err != nil {
			c.logger.Error("Event handler failed",
				log.String("event_type", string(event.Type)),
				log.Error(err))
		}
	}
}
