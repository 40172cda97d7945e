package database

import (
	"context"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/account"
	"testing"
	"time"
)

type countingStore struct {
	*MemoryStore
	lookups int
}

func (s *countingStore) FindAccount(ctx context.Context, username string) (account.Account, error) {
	s.lookups++
	return s.MemoryStore.FindAccount(ctx, username)
}

func TestAccountCache(t *testing.T) {
	ctx := context.Background()
	backing := &countingStore{MemoryStore: NewMemoryStore()}
	_ = backing.SaveAccount(ctx, account.Account{ID: 1, Username: "alice"})
	cache := NewAccountCache(backing, 16, time.Hour)

	for i := 0; i < 3; i++ {
		a, err := cache.FindAccount(ctx, "Alice")
		if err != nil || a.ID != 1 {
			t.Fatalf("unexpected lookup result %+v %v", a, err)
		}
	}
	if backing.lookups != 1 {
		t.Errorf("expected a single backing lookup, got %d", backing.lookups)
	}

	if err := cache.SaveAccount(ctx, account.Account{ID: 1, Username: "alice", Security: account.SecurityGameMaster}); err != nil {
		t.Fatal(err)
	}
	a, _ := cache.FindAccount(ctx, "alice")
	if a.Security != account.SecurityGameMaster || backing.lookups != 2 {
		t.Errorf("save should invalidate the cache, got %+v after %d lookups", a, backing.lookups)
	}

	if _, err := cache.FindAccount(ctx, "ghost"); err == nil {
		t.Error("missing account should not be cached as found")
	}
	if cache.Len() != 1 {
		t.Errorf("expected one cached entry, got %d", cache.Len())
	}
}
