// Package connection 管理客户端的 websocket 连接
package connection

import (
	"context"
	"errors"
	"github.com/gorilla/websocket"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/logger"
	"io"
	"net"
	"os"
	"sync"
)

// Manager 在线连接表, 可在任意协程使用
type Manager struct {
	connections sync.Map
	count       sync.WaitGroup
}

func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) Add(client *Client) {
	m.count.Add(1)
	m.connections.Store(client.ID(), client)
	logger.DebugF("[%s] Client %s connected", client.ID(), client.RemoteAddr())
}

func (m *Manager) Remove(client *Client) {
	if _, loaded := m.connections.LoadAndDelete(client.ID()); loaded {
		m.count.Done()
		logger.DebugF("[%s] Client %s disconnected", client.ID(), client.RemoteAddr())
	}
}

func (m *Manager) Get(id string) (*Client, bool) {
	if value, ok := m.connections.Load(id); ok {
		return value.(*Client), true
	}
	return nil, false
}

func (m *Manager) Count() int {
	count := 0
	m.connections.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}

// Invoke 关闭全部连接并等待它们退出
func (m *Manager) Invoke(ctx context.Context) error {
	m.connections.Range(func(_, value any) bool {
		value.(*Client).Close()
		return true
	})
	done := make(chan struct{})
	go func() {
		m.count.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func IsNetClosedError(err error) bool {
	if errors.Is(err, net.ErrClosed) || errors.Is(err, websocket.ErrCloseSent) {
		return true
	}
	var opErr *net.OpError
	ok := errors.As(err, &opErr)
	return ok && opErr.Timeout()
}

func HandleReadError(connID string, err error) {
	switch {
	case errors.Is(err, io.EOF), websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		logger.DebugF("[%s] Client close connection", connID)
	case os.IsTimeout(err):
		logger.WarnF("[%s] Reading timeout", connID)
	case IsNetClosedError(err):
		logger.DebugF("[%s] Connection closed by server", connID)
	default:
		logger.WarnF("[%s] Error occured while reading message, details: %v", connID, err)
	}
}
