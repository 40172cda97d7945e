package database

import (
	"context"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/account"
	"strings"
	"time"
)

// AccountCache 缓存登录时的账号查询, 其他操作直接转发给底层存储
type AccountCache struct {
	Store
	cache *expirable.LRU[string, account.Account]
}

func NewAccountCache(store Store, size int, ttl time.Duration) *AccountCache {
	if size <= 0 {
		size = 256
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &AccountCache{
		Store: store,
		cache: expirable.NewLRU[string, account.Account](size, nil, ttl),
	}
}

func cacheKey(username string) string {
	return strings.ToLower(username)
}

func (c *AccountCache) FindAccount(ctx context.Context, username string) (account.Account, error) {
	key := cacheKey(username)
	if a, ok := c.cache.Get(key); ok {
		return a, nil
	}
	a, err := c.Store.FindAccount(ctx, username)
	if err != nil {
		return a, err
	}
	c.cache.Add(key, a)
	return a, nil
}

func (c *AccountCache) SaveAccount(ctx context.Context, a account.Account) error {
	c.cache.Remove(cacheKey(a.Username))
	return c.Store.SaveAccount(ctx, a)
}

func (c *AccountCache) Len() int {
	return c.cache.Len()
}
