package server

import (
	"context"
	"errors"
	"github.com/gorilla/websocket"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/account"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/connection"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/database"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/logger"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/protocol"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/session"
	"time"
)

type ConnectionHandler struct {
	server *Server
	conn   *websocket.Conn
	connID string
}

// handleFirstMessage 读取并校验登录消息, 失败时返回应答给客户端的状态
func (c *ConnectionHandler) handleFirstMessage(ctx context.Context) (account.Account, protocol.AuthStatus) {
	_ = c.conn.SetReadDeadline(time.Now().Add(c.server.opts.AuthTimeout))
	_, payload, err := c.conn.ReadMessage()
	if err != nil {
		logger.WarnF("[%s] Fail to read first message, details: %v", c.connID, err)
		return account.Account{}, protocol.AuthFailed
	}
	_ = c.conn.SetReadDeadline(time.Time{})

	message, err := protocol.DecodeClientMessage(payload)
	if err != nil {
		logger.WarnF("[%s] Fail to parse first message, details: %v", c.connID, err)
		return account.Account{}, protocol.AuthFailed
	}
	if message.Type != protocol.TypeAuth {
		logger.WarnF("[%s] Invalid first message type, expected %s, but got %s", c.connID, protocol.TypeAuth, message.Type)
		return account.Account{}, protocol.AuthFailed
	}

	if c.server.world.Stopped() {
		return account.Account{}, protocol.AuthServerShuttingDown
	}

	acc, err := c.server.store.FindAccount(ctx, message.Account)
	if errors.Is(err, database.ErrNotFound) {
		logger.InfoF("[%s] Unknown account %s", c.connID, message.Account)
		return account.Account{}, protocol.AuthUnknownAccount
	}
	if err != nil {
		logger.ErrorF("[%s] Fail to load account %s, details: %v", c.connID, message.Account, err)
		return account.Account{}, protocol.AuthFailed
	}

	ip := remoteIP(c.conn.RemoteAddr())
	banned, err := c.server.store.IsBanned(ctx, acc.ID, ip, time.Now())
	if err != nil {
		logger.ErrorF("[%s] Fail to check bans of account %d, details: %v", c.connID, acc.ID, err)
		return account.Account{}, protocol.AuthFailed
	}
	if banned {
		logger.InfoF("[%s] Banned account %d tried to log in", c.connID, acc.ID)
		return account.Account{}, protocol.AuthBanned
	}

	if c.server.world.LockedDown() && acc.Security < account.SecurityGameMaster {
		return account.Account{}, protocol.AuthServerLocked
	}

	if acc.LastIP != ip {
		acc.LastIP = ip
		if err := c.server.store.SaveAccount(ctx, acc); err != nil {
			logger.WarnF("[%s] Fail to save last ip of account %d, details: %v", c.connID, acc.ID, err)
		}
	}
	return acc, protocol.AuthOK
}

func (c *ConnectionHandler) handleConnection(ctx context.Context) {
	acc, status := c.handleFirstMessage(ctx)
	if status != protocol.AuthOK {
		rejectConnection(c.conn, c.connID, status)
		return
	}

	client := connection.NewClient(c.conn, c.server.manager, c.server.opts.HeartbeatTimeout)
	logger.InfoF("[%s] Account %s (%d) authenticated as %s", c.connID, acc.Username, acc.ID, client.ID())
	c.server.world.AddSession(session.New(acc.ID, acc.Security, client))
	client.Start()
}
