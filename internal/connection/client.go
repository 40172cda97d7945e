package connection

import (
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/logger"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/protocol"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/queue"
	"sync"
	"sync/atomic"
	"time"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 64
	maxMessageSize = 4096
)

// Client 一个已认证的 websocket 连接, 实现 session.Conn
// Update/Loading/CharacterName/Zone 只在主循环协程调用
type Client struct {
	id       string
	conn     *websocket.Conn
	remote   string
	manager  *Manager
	send     chan []byte
	incoming *queue.Queue[protocol.ClientMessage]
	done     chan struct{}

	closeOnce sync.Once
	closed    atomic.Bool

	heartbeatTimeout time.Duration
	idle             time.Duration
	character        string
	zone             uint32
	loading          bool
}

func NewClient(conn *websocket.Conn, manager *Manager, heartbeatTimeout time.Duration) *Client {
	return &Client{
		id:               uuid.NewString(),
		conn:             conn,
		remote:           conn.RemoteAddr().String(),
		manager:          manager,
		send:             make(chan []byte, sendBufferSize),
		incoming:         queue.New[protocol.ClientMessage](),
		done:             make(chan struct{}),
		heartbeatTimeout: heartbeatTimeout,
	}
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) RemoteAddr() string {
	return c.remote
}

// Start 启动写协程并在当前协程读取消息, 连接断开后返回
func (c *Client) Start() {
	if c.manager != nil {
		c.manager.Add(c)
		defer c.manager.Remove(c)
	}
	go c.writePump()
	c.readPump()
}

func (c *Client) readPump() {
	defer c.Close()
	c.conn.SetReadLimit(maxMessageSize)
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			HandleReadError(c.id, err)
			return
		}
		message, err := protocol.DecodeClientMessage(payload)
		if err != nil {
			logger.WarnF("[%s] Discarding malformed message: %v", c.id, err)
			continue
		}
		if message.Type == protocol.TypeAuth {
			logger.WarnF("[%s] Duplicate auth message", c.id)
			return
		}
		c.incoming.Push(message)
	}
}

func (c *Client) writePump() {
	defer func() {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		if err := c.conn.Close(); err != nil && !IsNetClosedError(err) {
			logger.WarnF("[%s] Error occured while closing connection, details: %v", c.id, err)
		}
	}()
	for {
		select {
		case data := <-c.send:
			if !c.write(data) {
				return
			}
		case <-c.done:
			// 先发完已排队的消息, 踢人原因需要送达
			for {
				select {
				case data := <-c.send:
					if !c.write(data) {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (c *Client) write(data []byte) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		if !IsNetClosedError(err) {
			logger.WarnF("[%s] Fail to send data, details: %v", c.id, err)
		}
		c.Close()
		return false
	}
	logger.DebugF("[%s] Send %d bytes to client", c.id, len(data))
	return true
}

// Close 可重复调用, 可在任意协程调用
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
	})
}

func (c *Client) Closed() bool {
	return c.closed.Load()
}

func (c *Client) Update(diff time.Duration) bool {
	if c.Closed() {
		return false
	}
	messages := c.incoming.Drain()
	if len(messages) > 0 {
		c.idle = 0
	} else {
		c.idle += diff
	}
	for _, message := range messages {
		switch message.Type {
		case protocol.TypeLoading:
			c.loading = message.Loading
			if message.Character != "" {
				c.character = message.Character
			}
			c.zone = message.Zone
		case protocol.TypeLogout:
			logger.DebugF("[%s] Client logout", c.id)
			c.Close()
			return false
		}
	}
	if c.heartbeatTimeout > 0 && c.idle > c.heartbeatTimeout {
		logger.InfoF("[%s] Heartbeat timeout after %v", c.id, c.idle)
		c.Close()
		return false
	}
	return true
}

func (c *Client) Kick() {
	c.Close()
}

func (c *Client) SendAuthResponse(status protocol.AuthStatus, queuePosition int) {
	c.Send(protocol.NewAuthResponse(status, queuePosition))
}

// Send 不阻塞, 发送缓冲区满时断开连接
func (c *Client) Send(message any) {
	if c.Closed() {
		return
	}
	data, err := protocol.Encode(message)
	if err != nil {
		logger.ErrorF("[%s] %v", c.id, err)
		return
	}
	select {
	case c.send <- data:
	default:
		logger.WarnF("[%s] Send buffer full, dropping connection", c.id)
		c.Close()
	}
}

func (c *Client) Loading() bool {
	return c.loading
}

func (c *Client) CharacterName() string {
	if c.loading {
		return ""
	}
	return c.character
}

func (c *Client) Zone() uint32 {
	return c.zone
}
