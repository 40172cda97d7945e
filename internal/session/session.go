// Package session 管理已认证的客户端会话、登录排队和断线容忍
package session

import (
	"github.com/life-stream-dev/life-stream-go-world-server/internal/account"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/protocol"
	"time"
)

// Conn 会话所属的网络连接, 所有方法都在主循环协程调用, 实现不能阻塞
type Conn interface {
	// Update 处理连接上积压的数据, 返回 false 表示连接已失效
	Update(diff time.Duration) bool
	// Kick 通知连接关闭, 会话在下一次 Update 返回 false 后被移除
	Kick()
	SendAuthResponse(status protocol.AuthStatus, queuePosition int)
	Send(message any)
	// Loading 角色正在进入世界时不能被新的登录顶掉
	Loading() bool
	// CharacterName 未进入世界时返回空字符串
	CharacterName() string
	Zone() uint32
}

type Session struct {
	accountID    uint32
	security     account.Security
	conn         Conn
	inQueue      bool
	lastActivity time.Time
}

func New(accountID uint32, security account.Security, conn Conn) *Session {
	return &Session{accountID: accountID, security: security, conn: conn}
}

func (s *Session) AccountID() uint32 {
	return s.accountID
}

func (s *Session) Security() account.Security {
	return s.security
}

func (s *Session) Conn() Conn {
	return s.conn
}

func (s *Session) InQueue() bool {
	return s.inQueue
}

func (s *Session) LastActivity() time.Time {
	return s.lastActivity
}

func (s *Session) Kick() {
	s.conn.Kick()
}

func (s *Session) Loading() bool {
	return s.conn.Loading()
}

func (s *Session) CharacterName() string {
	return s.conn.CharacterName()
}

// InWorld 角色已进入世界, 只有这样的会话才会收到世界广播
func (s *Session) InWorld() bool {
	return s.conn.CharacterName() != "" && !s.conn.Loading()
}

func (s *Session) Zone() uint32 {
	return s.conn.Zone()
}

func (s *Session) Send(message any) {
	s.conn.Send(message)
}
