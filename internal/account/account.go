// Package account 定义账号相关的基础类型
package account

import (
	"strings"
	"time"
)

// Security 账号权限等级
type Security uint8

const (
	SecurityPlayer Security = iota
	SecurityModerator
	SecurityGameMaster
	SecurityAdministrator
	SecurityConsole
)

var securityNames = map[Security]string{
	SecurityPlayer:        "player",
	SecurityModerator:     "moderator",
	SecurityGameMaster:    "gamemaster",
	SecurityAdministrator: "administrator",
	SecurityConsole:       "console",
}

func (s Security) String() string {
	if name, ok := securityNames[s]; ok {
		return name
	}
	return "unknown"
}

// BanMode 封禁目标类型
type BanMode uint8

const (
	BanAccount BanMode = iota
	BanCharacter
	BanIP
)

var banModeNames = map[BanMode]string{
	BanAccount:   "account",
	BanCharacter: "character",
	BanIP:        "ip",
}

func (m BanMode) String() string {
	if name, ok := banModeNames[m]; ok {
		return name
	}
	return "unknown"
}

// ParseBanMode 大小写不敏感
func ParseBanMode(value string) (BanMode, bool) {
	value = strings.ToLower(value)
	for mode, name := range banModeNames {
		if name == value {
			return mode, true
		}
	}
	return 0, false
}

type Account struct {
	ID         uint32   `bson:"account_id" json:"account_id"`
	Username   string   `bson:"username" json:"username"`
	Security   Security `bson:"security" json:"security"`
	LastIP     string   `bson:"last_ip" json:"last_ip"`
	Characters []string `bson:"characters" json:"characters"`
}

// Ban 一条封禁记录, End 为零值表示永久封禁
type Ban struct {
	Mode      BanMode   `bson:"mode" json:"mode"`
	Target    string    `bson:"target" json:"target"`
	AccountID uint32    `bson:"account_id" json:"account_id"`
	Start     time.Time `bson:"start" json:"start"`
	End       time.Time `bson:"end" json:"end"`
	Author    string    `bson:"author" json:"author"`
	Reason    string    `bson:"reason" json:"reason"`
	Active    bool      `bson:"active" json:"active"`
}

func (b Ban) Permanent() bool {
	return b.End.IsZero()
}

// ActiveAt 判断封禁在 now 时刻是否生效
func (b Ban) ActiveAt(now time.Time) bool {
	if !b.Active {
		return false
	}
	return b.Permanent() || now.Before(b.End)
}

// BanStatus 封禁操作的结果
type BanStatus uint8

const (
	BanSuccess BanStatus = iota
	BanNotFound
	BanSyntaxError
)

func (s BanStatus) String() string {
	switch s {
	case BanSuccess:
		return "success"
	case BanNotFound:
		return "not_found"
	default:
		return "syntax_error"
	}
}
