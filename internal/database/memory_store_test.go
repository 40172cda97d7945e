package database

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, NewMemoryStore())
}

func TestMemoryStoreUptimeRecord(t *testing.T) {
	store := NewMemoryStore()
	start := time.Unix(1700000000, 0)
	_ = store.StartUptime(context.Background(), 1, start)
	_ = store.UpdateUptime(context.Background(), 1, start, 10*time.Minute, 7)

	record, ok := store.Uptime(1, start)
	if !ok || record.Uptime != 600 || record.MaxPlayers != 7 {
		t.Errorf("unexpected record %+v %v", record, ok)
	}
}
