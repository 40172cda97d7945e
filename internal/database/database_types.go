package database

import (
	"context"
	"errors"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/account"
	"time"
)

const (
	SavedVariableCollectionName = "saved_variables"
	AccountCollectionName       = "accounts"
	AccountBanCollectionName    = "account_bans"
	IPBanCollectionName         = "ip_bans"
	UptimeCollectionName        = "uptime"
	RealmCollectionName         = "realms"
	LogCollectionName           = "logs"
)

// 持久化的时间点变量名
const (
	VarServerLockdownTime  = "ServerLockdownTime"
	VarNextDailyQuestReset = "NextDailyQuestReset"
)

var (
	ErrNotFound      = errors.New("document does not exist")
	ErrEmptyUsername = errors.New("username is empty")
	ErrEmptyTarget   = errors.New("ban target is empty")
)

type SavedVariable struct {
	Name  string `bson:"name"`
	Value int64  `bson:"value"`
}

type UptimeRecord struct {
	RealmID    uint32    `bson:"realm_id"`
	StartTime  time.Time `bson:"start_time"`
	Uptime     int64     `bson:"uptime"`
	MaxPlayers int       `bson:"max_players"`
}

type RealmRecord struct {
	RealmID    uint32  `bson:"realm_id"`
	Population float64 `bson:"population"`
}

type LogRecord struct {
	At   time.Time `bson:"at"`
	Text string    `bson:"text"`
}

// Store 世界服需要的全部持久化操作
// 所有方法都可能阻塞, 主循环只能通过 ResultQueue 调用
type Store interface {
	// LoadVariable 变量不存在时返回 ErrNotFound
	LoadVariable(ctx context.Context, name string) (int64, error)
	SaveVariable(ctx context.Context, name string, value int64) error

	FindAccount(ctx context.Context, username string) (account.Account, error)
	SaveAccount(ctx context.Context, a account.Account) error
	// IsBanned 判断账号或 IP 在 now 时刻是否被封禁
	IsBanned(ctx context.Context, accountID uint32, ip string, now time.Time) (bool, error)
	// Ban 记录封禁并返回受影响的账号, 账号或角色不存在时返回 ErrNotFound
	// IP 封禁总是成功, 即使没有账号使用该 IP
	Ban(ctx context.Context, ban account.Ban) ([]uint32, error)
	// Unban 返回 false 表示找不到封禁目标
	Unban(ctx context.Context, mode account.BanMode, target string) (bool, error)

	StartUptime(ctx context.Context, realmID uint32, start time.Time) error
	UpdateUptime(ctx context.Context, realmID uint32, start time.Time, uptime time.Duration, maxPlayers int) error
	UpdatePopulation(ctx context.Context, realmID uint32, population float64) error

	AppendLog(ctx context.Context, at time.Time, text string) error
	// PurgeLogs 删除 before 之前的日志记录, 返回删除的数量
	PurgeLogs(ctx context.Context, before time.Time) (int64, error)

	Close(ctx context.Context) error
}
