// Package text 保存世界广播使用的服务器文本
package text

import (
	"fmt"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

type Key string

const (
	ShutdownTime      Key = "server.shutdown_time"
	RestartTime       Key = "server.restart_time"
	ShutdownCancelled Key = "server.shutdown_cancelled"
	RestartCancelled  Key = "server.restart_cancelled"
	LockdownTime      Key = "server.lockdown_time"
	LockdownStarted   Key = "server.lockdown_started"
	LockdownFinished  Key = "server.lockdown_finished"
	AutoBroadcast     Key = "server.auto_broadcast"
	Kicked            Key = "server.kicked"
	Banned            Key = "server.banned"
	Announce          Key = "server.announce"
)

var translations = map[language.Tag]map[Key]string{
	language.English: {
		ShutdownTime:      "Server shutdown in %s",
		RestartTime:       "Server restart in %s",
		ShutdownCancelled: "Server shutdown cancelled.",
		RestartCancelled:  "Server restart cancelled.",
		LockdownTime:      "Server maintenance lockdown in %s",
		LockdownStarted:   "Server is locked down for maintenance, expected duration %s",
		LockdownFinished:  "Server maintenance finished.",
		AutoBroadcast:     "[Server]: %s",
		Kicked:            "You have been kicked from the server.",
		Banned:            "Your account has been banned: %s",
		Announce:          "[Announce by %s]: %s",
	},
	language.SimplifiedChinese: {
		ShutdownTime:      "服务器将在 %s 后关闭",
		RestartTime:       "服务器将在 %s 后重启",
		ShutdownCancelled: "服务器关闭已取消。",
		RestartCancelled:  "服务器重启已取消。",
		LockdownTime:      "服务器将在 %s 后进入维护",
		LockdownStarted:   "服务器维护中, 预计持续 %s",
		LockdownFinished:  "服务器维护已结束。",
		AutoBroadcast:     "[服务器]: %s",
		Kicked:            "你已被踢出服务器。",
		Banned:            "你的账号已被封禁: %s",
		Announce:          "[%s 的公告]: %s",
	},
}

// Catalog 按语言格式化服务器文本
type Catalog struct {
	printer *message.Printer
}

func NewCatalog(locale string) (*Catalog, error) {
	tag := language.English
	if locale != "" {
		parsed, err := language.Parse(locale)
		if err != nil {
			return nil, fmt.Errorf("parse locale tag %q: %w", locale, err)
		}
		tag = parsed
	}

	builder := catalog.NewBuilder(catalog.Fallback(language.English))
	for lang, messages := range translations {
		for key, value := range messages {
			if err := builder.SetString(lang, string(key), value); err != nil {
				return nil, fmt.Errorf("register %s for %s: %w", key, lang, err)
			}
		}
	}

	supported := builder.Languages()
	_, index, _ := language.NewMatcher(supported).Match(tag)
	return &Catalog{printer: message.NewPrinter(supported[index], message.Catalog(builder))}, nil
}

// Default 英文文本, 初始化失败时退回原始 key
func Default() *Catalog {
	c, err := NewCatalog("")
	if err != nil {
		return &Catalog{printer: message.NewPrinter(language.English)}
	}
	return c
}

func (c *Catalog) Sprintf(key Key, args ...any) string {
	return c.printer.Sprintf(string(key), args...)
}
