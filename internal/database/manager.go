package database

import (
	"context"
	"fmt"
	c "github.com/life-stream-dev/life-stream-go-world-server/internal/config"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/logger"
)

// Open 按配置选择存储实现, 并包上账号缓存
func Open(config c.DatabaseConfig, appName string) (Store, error) {
	var store Store
	switch config.Driver {
	case "", "memory":
		logger.Warn("Using in-memory store, nothing will be persisted")
		store = NewMemoryStore()
	case "mongo":
		mongoStore, err := ConnectMongo(config, appName)
		if err != nil {
			return nil, err
		}
		store = mongoStore
	case "sqlite":
		sqliteStore, err := OpenSQLite(config.SQLitePath)
		if err != nil {
			return nil, err
		}
		store = sqliteStore
	default:
		return nil, fmt.Errorf("unknown database driver %q", config.Driver)
	}

	if config.AccountCacheSize > 0 {
		store = NewAccountCache(store, config.AccountCacheSize, c.Duration(config.AccountCacheTTL))
	}
	return store, nil
}

// CloseCallback 在进程退出时关闭存储
type CloseCallback struct {
	store Store
}

func NewCloseCallback(store Store) *CloseCallback {
	return &CloseCallback{store: store}
}

func (dc *CloseCallback) Invoke(ctx context.Context) error {
	return dc.store.Close(ctx)
}
