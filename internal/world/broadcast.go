package world

import (
	"github.com/life-stream-dev/life-stream-go-world-server/internal/account"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/protocol"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/session"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/text"
)

// SendGlobalMessage 发给全部在世界中的会话, except 可以为 nil
func (w *World) SendGlobalMessage(message any, except *session.Session) {
	w.sessions.Each(func(s *session.Session) {
		if s != except && s.InWorld() {
			s.Send(message)
		}
	})
}

// SendGlobalGMMessage 只发给非玩家权限的会话
func (w *World) SendGlobalGMMessage(message any, except *session.Session) {
	w.sessions.Each(func(s *session.Session) {
		if s != except && s.InWorld() && s.Security() > account.SecurityPlayer {
			s.Send(message)
		}
	})
}

// SendZoneMessage 发给指定区域内的会话, 返回是否有人收到
func (w *World) SendZoneMessage(zone uint32, message any, except *session.Session) bool {
	sent := false
	w.sessions.Each(func(s *session.Session) {
		if s != except && s.InWorld() && s.Zone() == zone {
			s.Send(message)
			sent = true
		}
	})
	return sent
}

func (w *World) SendZoneText(zone uint32, content string, except *session.Session) bool {
	return w.SendZoneMessage(zone, protocol.NewSystemText(content), except)
}

// SendWorldText 以系统消息广播本地化文本
func (w *World) SendWorldText(key text.Key, args ...any) {
	w.SendGlobalMessage(protocol.NewSystemText(w.text.Sprintf(key, args...)), nil)
}

func (w *World) SendGMText(key text.Key, args ...any) {
	w.SendGlobalGMMessage(protocol.NewSystemText(w.text.Sprintf(key, args...)), nil)
}

// SendServerMessage target 为 nil 时广播
func (w *World) SendServerMessage(messageType protocol.ServerMessageType, content string, target *session.Session) {
	message := protocol.NewServerMessage(messageType, content)
	if target != nil {
		target.Send(message)
		return
	}
	w.SendGlobalMessage(message, nil)
}
