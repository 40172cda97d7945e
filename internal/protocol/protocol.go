// Package protocol 定义客户端与世界服之间的 JSON 消息
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

type MessageType string

const (
	TypeAuth      MessageType = "auth"
	TypeHeartbeat MessageType = "heartbeat"
	TypeLoading   MessageType = "loading"
	TypeLogout    MessageType = "logout"

	TypeAuthResponse  MessageType = "auth_response"
	TypeServerMessage MessageType = "server_message"
	TypeNotification  MessageType = "notification"
	TypeSystemText    MessageType = "system_text"
	TypeKick          MessageType = "kick"
)

// AuthStatus 登录结果
type AuthStatus byte

const (
	AuthOK AuthStatus = iota
	AuthWaitQueue
	AuthFailed
	AuthUnknownAccount
	AuthBanned
	AuthServerLocked
	AuthAlreadyLoading
	AuthServerShuttingDown
)

var authStatusNames = map[AuthStatus]string{
	AuthOK:                 "ok",
	AuthWaitQueue:          "wait_queue",
	AuthFailed:             "failed",
	AuthUnknownAccount:     "unknown_account",
	AuthBanned:             "banned",
	AuthServerLocked:       "server_locked",
	AuthAlreadyLoading:     "already_loading",
	AuthServerShuttingDown: "shutting_down",
}

func (s AuthStatus) String() string {
	if name, ok := authStatusNames[s]; ok {
		return name
	}
	return "unknown"
}

// ServerMessageType 由客户端本地化显示的服务器消息类型
type ServerMessageType byte

const (
	ServerMsgShutdownTime ServerMessageType = iota + 1
	ServerMsgRestartTime
	ServerMsgCustom
	ServerMsgShutdownCancelled
	ServerMsgRestartCancelled
)

var (
	ErrEmptyMessage   = errors.New("empty message")
	ErrUnknownMessage = errors.New("unknown message type")
	ErrMissingAccount = errors.New("auth message without account")
)

// ClientMessage 客户端发来的所有消息共用一个结构
type ClientMessage struct {
	Type      MessageType `json:"type"`
	Account   string      `json:"account,omitempty"`
	Character string      `json:"character,omitempty"`
	Zone      uint32      `json:"zone,omitempty"`
	Loading   bool        `json:"loading,omitempty"`
	SentAt    int64       `json:"sentAt,omitempty"`
}

func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var message ClientMessage
	if len(data) == 0 {
		return message, ErrEmptyMessage
	}
	if err := json.Unmarshal(data, &message); err != nil {
		return message, fmt.Errorf("invalid client message: %w", err)
	}
	switch message.Type {
	case TypeAuth:
		if message.Account == "" {
			return message, ErrMissingAccount
		}
	case TypeHeartbeat, TypeLoading, TypeLogout:
	default:
		return message, fmt.Errorf("%w: %q", ErrUnknownMessage, message.Type)
	}
	return message, nil
}

type AuthResponse struct {
	Type          MessageType `json:"type"`
	Status        AuthStatus  `json:"status"`
	StatusName    string      `json:"statusName"`
	QueuePosition int         `json:"queuePosition"`
}

func NewAuthResponse(status AuthStatus, queuePosition int) AuthResponse {
	return AuthResponse{
		Type:          TypeAuthResponse,
		Status:        status,
		StatusName:    status.String(),
		QueuePosition: queuePosition,
	}
}

type ServerMessage struct {
	Type        MessageType       `json:"type"`
	MessageType ServerMessageType `json:"messageType"`
	Text        string            `json:"text,omitempty"`
}

func NewServerMessage(messageType ServerMessageType, text string) ServerMessage {
	return ServerMessage{Type: TypeServerMessage, MessageType: messageType, Text: text}
}

// TextMessage 系统文本、屏幕中央通知和踢出原因共用
type TextMessage struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
}

func NewSystemText(text string) TextMessage {
	return TextMessage{Type: TypeSystemText, Text: text}
}

func NewNotification(text string) TextMessage {
	return TextMessage{Type: TypeNotification, Text: text}
}

func NewKick(reason string) TextMessage {
	return TextMessage{Type: TypeKick, Text: reason}
}

func Encode(message any) ([]byte, error) {
	data, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return data, nil
}
