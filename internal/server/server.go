// Package server streams simulation frames to WebSocket clients and feeds
// their key events back into the input tracker.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeusync/kartking/internal/config"
	"github.com/zeusync/kartking/internal/core/events/bus"
	"github.com/zeusync/kartking/internal/core/observability/log"
	"github.com/zeusync/kartking/internal/core/protocol"
	"github.com/zeusync/kartking/internal/core/sim"
)

// Server is the renderer side of the frame loop: every frame handed to Render
// is fanned out to the connected clients.
type Server struct {
	config config.ServerConfig
	sim    *sim.Context
	frames *sim.FrameStats
	codec  protocol.JSONCodec
	logger log.Log

	upgrader   websocket.Upgrader
	httpServer *http.Server
	listener   net.Listener
	events     bus.Subscription

	clients     sync.Map // map[protocol.ClientID]*ClientSession
	clientCount int64    // atomic

	framesSent    uint64 // atomic
	framesDropped uint64 // atomic
	eventsSent    uint64 // atomic

	running int32 // atomic bool
	closed  int32 // atomic bool

	workerGroup sync.WaitGroup
}

// Stats contains server statistics
type Stats struct {
	ClientCount   int64  `json:"client_count"`
	FramesSent    uint64 `json:"frames_sent"`
	FramesDropped uint64 `json:"frames_dropped"`
	EventsSent    uint64 `json:"events_sent"`
	Running       bool   `json:"running"`
}

// NewServer creates a server for simCtx. frames is the scheduler's stats
// collector, reported on /stats; it may be nil.
func NewServer(cfg config.ServerConfig, simCtx *sim.Context, frames *sim.FrameStats, logger log.Log) *Server {
	if logger == nil {
		logger = log.Nop()
	}
	if cfg.FrameBuffer <= 0 {
		cfg.FrameBuffer = 1
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if frames == nil {
		frames = sim.NewFrameStats()
	}

	s := &Server{
		config: cfg,
		sim:    simCtx,
		frames: frames,
		logger: logger.With(log.String("component", "server")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	s.logger.Info("Server created",
		log.String("listen_addr", cfg.ListenAddr),
		log.Int("max_clients", cfg.MaxClients))

	return s
}

// Handler exposes the HTTP routes: /ws, /stats and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// Start listens on the configured address and forwards bus events to clients.
func (s *Server) Start(_ context.Context) error {
	if atomic.LoadInt32(&s.closed) == 1 {
		return ErrServerClosed
	}
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrServerAlreadyRunning
	}

	s.logger.Info("Starting server")

	listener, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		atomic.StoreInt32(&s.running, 0)
		s.logger.Error("Failed to create listener", log.Error(err))
		return fmt.Errorf("%w: %w", ErrListenerFailed, err)
	}
	s.listener = listener

	sub, err := s.sim.Bus().Subscribe(bus.Wildcard, s.forwardEvent)
	if err != nil {
		atomic.StoreInt32(&s.running, 0)
		_ = listener.Close()
		return err
	}
	s.events = sub

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.workerGroup.Add(1)
	go func() {
		defer s.workerGroup.Done()
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", log.Error(err))
		}
	}()

	s.logger.Info("Server listening", log.String("addr", listener.Addr().String()))
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return ErrServerNotRunning
	}

	s.logger.Info("Stopping server")

	if s.events != nil {
		_ = s.events.Cancel()
	}

	err := s.httpServer.Shutdown(ctx)

	// Hijacked WebSocket connections are not closed by Shutdown.
	s.clients.Range(func(_, value any) bool {
		value.(*ClientSession).close()
		return true
	})

	s.workerGroup.Wait()
	s.logger.Info("Server stopped")
	return err
}

// Close closes the server and releases all resources
func (s *Server) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	if atomic.LoadInt32(&s.running) == 1 {
		return s.Stop(context.Background())
	}
	return nil
}

// Addr is the bound listen address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.ListenAddr
}

// Render implements sim.Renderer. A client whose queue is full misses the
// frame; the tick never waits for a client.
func (s *Server) Render(frame sim.Frame) error {
	if atomic.LoadInt64(&s.clientCount) == 0 {
		return nil
	}
	data, err := s.codec.Encode(protocol.NewFrame(frame))
	if err != nil {
		return err
	}
	s.clients.Range(func(_, value any) bool {
		if value.(*ClientSession).enqueue(data) {
			atomic.AddUint64(&s.framesSent, 1)
		} else {
			atomic.AddUint64(&s.framesDropped, 1)
		}
		return true
	})
	return nil
}

func (s *Server) forwardEvent(event bus.Event) error {
	if atomic.LoadInt64(&s.clientCount) == 0 {
		return nil
	}
	data, err := s.codec.Encode(protocol.NewEvent(event))
	if err != nil {
		return err
	}
	s.clients.Range(func(_, value any) bool {
		if value.(*ClientSession).enqueue(data) {
			atomic.AddUint64(&s.eventsSent, 1)
		}
		return true
	})
	return nil
}

// GetStats returns server statistics
func (s *Server) GetStats() Stats {
	return Stats{
		ClientCount:   atomic.LoadInt64(&s.clientCount),
		FramesSent:    atomic.LoadUint64(&s.framesSent),
		FramesDropped: atomic.LoadUint64(&s.framesDropped),
		EventsSent:    atomic.LoadUint64(&s.eventsSent),
		Running:       atomic.LoadInt32(&s.running) == 1,
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if limit := s.config.MaxClients; limit > 0 && atomic.LoadInt64(&s.clientCount) >= int64(limit) {
		s.logger.Warn("Maximum clients reached, rejecting connection",
			log.String("remote_addr", r.RemoteAddr))
		http.Error(w, ErrMaxClientsReached.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("WebSocket upgrade failed", log.Error(err))
		return
	}

	session := newSession(conn, s.config.FrameBuffer)
	s.clients.Store(session.ID, session)
	atomic.AddInt64(&s.clientCount, 1)

	s.logger.Info("Client connected",
		log.String("client_id", string(session.ID)),
		log.String("remote_addr", conn.RemoteAddr().String()),
		log.Int64("total_clients", atomic.LoadInt64(&s.clientCount)))

	if hello, err := s.codec.Encode(protocol.NewHello(session.ID)); err == nil {
		session.enqueue(hello)
	}

	go func() {
		if err := session.writeLoop(s.config.WriteTimeout); err != nil {
			s.logger.Debug("Client write failed",
				log.String("client_id", string(session.ID)),
				log.Error(err))
		}
		session.close()
	}()

	s.handleClient(session)
}

// handleClient reads key messages until the connection ends, then releases
// every key the client still held.
func (s *Server) handleClient(session *ClientSession) {
	defer func() {
		tracker := s.sim.Input()
		for code := range session.held {
			tracker.OnKeyUp(code)
		}
		s.clients.Delete(session.ID)
		atomic.AddInt64(&s.clientCount, -1)
		session.close()

		s.logger.Info("Client disconnected",
			log.String("client_id", string(session.ID)),
			log.Uint64("frames_dropped", session.Dropped()),
			log.Int64("total_clients", atomic.LoadInt64(&s.clientCount)))
	}()

	conn := session.conn
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		session.touch()
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for atomic.LoadInt32(&session.Active) == 1 {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("Client read failed",
					log.String("client_id", string(session.ID)),
					log.Error(err))
			}
			return
		}
		session.touch()
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		s.handleMessage(session, data)
	}
}

func (s *Server) handleMessage(session *ClientSession, data []byte) {
	msg, err := s.codec.Decode(data)
	if err != nil {
		s.logger.Debug("Rejecting client message",
			log.String("client_id", string(session.ID)),
			log.Error(err))
		if reply, encErr := s.codec.Encode(protocol.NewError(err)); encErr == nil {
			session.enqueue(reply)
		}
		return
	}

	switch msg.Type {
	case protocol.MessageTypeKey:
		tracker := s.sim.Input()
		if msg.Down {
			if tracker.OnKeyDown(msg.Code) {
				session.held[msg.Code] = struct{}{}
			}
		} else {
			tracker.OnKeyUp(msg.Code)
			delete(session.held, msg.Code)
		}
	default:
		s.logger.Debug("Ignoring message",
			log.String("client_id", string(session.ID)),
			log.String("type", msg.Type.String()))
	}
}
