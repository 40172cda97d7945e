package server

import (
	"github.com/gorilla/websocket"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/connection"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/logger"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/protocol"
	"net"
	"time"
)

func remoteIP(addr net.Addr) string {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.IP.String()
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

// rejectConnection 发送登录失败应答后关闭连接
func rejectConnection(conn *websocket.Conn, connID string, status protocol.AuthStatus) {
	defer func() {
		if err := conn.Close(); err != nil && !connection.IsNetClosedError(err) {
			logger.WarnF("[%s] Error occured while closing connection, details: %v", connID, err)
		}
	}()

	data, err := protocol.Encode(protocol.NewAuthResponse(status, 0))
	if err != nil {
		logger.ErrorF("[%s] %v", connID, err)
		return
	}
	deadline := time.Now().Add(5 * time.Second)
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		logger.WarnF("[%s] Fail to send auth response, details: %v", connID, err)
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, status.String()), deadline)
	logger.DebugF("[%s] Connection rejected with %s", connID, status)
}
