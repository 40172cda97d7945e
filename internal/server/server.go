// Package server 提供客户端 websocket 入口和健康检查
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/gorilla/websocket"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/connection"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/database"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/logger"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/session"
	"net"
	"net/http"
	"time"
)

// World 网络层需要的世界接口, 全部方法可在任意协程调用
type World interface {
	AddSession(s *session.Session)
	LockedDown() bool
	Stopped() bool
	OnlineCount() (active int, queued int)
}

type Options struct {
	Listen           string
	AuthTimeout      time.Duration
	HeartbeatTimeout time.Duration
	MaxConnections   int
}

type Server struct {
	opts     Options
	world    World
	store    database.Store
	manager  *connection.Manager
	upgrader websocket.Upgrader
	sem      chan struct{}
	http     *http.Server
}

func New(opts Options, world World, store database.Store, manager *connection.Manager) *Server {
	if opts.AuthTimeout <= 0 {
		opts.AuthTimeout = time.Minute
	}
	if opts.MaxConnections <= 0 {
		opts.MaxConnections = 10000
	}
	s := &Server{
		opts:    opts,
		world:   world,
		store:   store,
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		sem: make(chan struct{}, opts.MaxConnections),
	}
	s.http = &http.Server{Addr: opts.Listen, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebsocket)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	default:
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnF("Websocket upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}
	logger.DebugF("Accepted new connection from %s", conn.RemoteAddr())
	handler := &ConnectionHandler{server: s, conn: conn, connID: conn.RemoteAddr().String()}
	handler.handleConnection(r.Context())
}

type healthResponse struct {
	Status   string `json:"status"`
	Online   int    `json:"online"`
	Queued   int    `json:"queued"`
	Locked   bool   `json:"locked"`
	Stopping bool   `json:"stopping"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	online, queued := s.world.OnlineCount()
	response := healthResponse{
		Status:   "ok",
		Online:   online,
		Queued:   queued,
		Locked:   s.world.LockedDown(),
		Stopping: s.world.Stopped(),
	}
	code := http.StatusOK
	if response.Stopping {
		response.Status = "stopping"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(response)
}

// Serve 阻塞直到 ctx 取消或监听失败
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.opts.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.opts.Listen, err)
	}
	return s.ServeListener(ctx, listener)
}

func (s *Server) ServeListener(ctx context.Context, listener net.Listener) error {
	logger.InfoF("World server listen on %s", listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.http.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Invoke(shutdownCtx)
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Invoke 停止接受新连接, websocket 连接由 connection.Manager 关闭
func (s *Server) Invoke(ctx context.Context) error {
	if err := s.http.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
