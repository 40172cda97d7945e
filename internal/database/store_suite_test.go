package database

import (
	"context"
	"errors"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/account"
	"testing"
	"time"
)

func seedAccounts(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	accounts := []account.Account{
		{ID: 1, Username: "alice", LastIP: "10.0.0.1", Characters: []string{"Arthas"}},
		{ID: 2, Username: "bob", LastIP: "10.0.0.1", Characters: []string{"Jaina", "Thrall"}},
		{ID: 3, Username: "carol", Security: account.SecurityGameMaster, LastIP: "10.0.0.3"},
	}
	for _, a := range accounts {
		if err := store.SaveAccount(ctx, a); err != nil {
			t.Fatalf("SaveAccount(%s): %v", a.Username, err)
		}
	}
}

// runStoreSuite 所有 Store 实现共用的行为测试
func runStoreSuite(t *testing.T, store Store) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	seedAccounts(t, store)

	t.Run("variables", func(t *testing.T) {
		if _, err := store.LoadVariable(ctx, VarServerLockdownTime); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if err := store.SaveVariable(ctx, VarServerLockdownTime, 100); err != nil {
			t.Fatal(err)
		}
		if err := store.SaveVariable(ctx, VarServerLockdownTime, 200); err != nil {
			t.Fatal(err)
		}
		value, err := store.LoadVariable(ctx, VarServerLockdownTime)
		if err != nil || value != 200 {
			t.Fatalf("expected 200, got %d %v", value, err)
		}
	})

	t.Run("accounts", func(t *testing.T) {
		a, err := store.FindAccount(ctx, "BOB")
		if err != nil {
			t.Fatal(err)
		}
		if a.ID != 2 || len(a.Characters) != 2 {
			t.Errorf("unexpected account %+v", a)
		}
		gm, err := store.FindAccount(ctx, "carol")
		if err != nil || gm.Security != account.SecurityGameMaster {
			t.Errorf("unexpected account %+v %v", gm, err)
		}
		if _, err := store.FindAccount(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if _, err := store.FindAccount(ctx, ""); !errors.Is(err, ErrEmptyUsername) {
			t.Errorf("expected ErrEmptyUsername, got %v", err)
		}
	})

	t.Run("bans", func(t *testing.T) {
		ids, err := store.Ban(ctx, account.Ban{Mode: account.BanCharacter, Target: "thrall", Start: now, End: now.Add(time.Hour), Author: "gm"})
		if err != nil || len(ids) != 1 || ids[0] != 2 {
			t.Fatalf("character ban: expected [2], got %v %v", ids, err)
		}
		banned, err := store.IsBanned(ctx, 2, "", now.Add(time.Minute))
		if err != nil || !banned {
			t.Errorf("expected account 2 banned, got %v %v", banned, err)
		}
		banned, _ = store.IsBanned(ctx, 2, "", now.Add(2*time.Hour))
		if banned {
			t.Error("expired ban should not apply")
		}

		if _, err := store.Ban(ctx, account.Ban{Mode: account.BanAccount, Target: "nobody", Start: now}); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}

		ids, err = store.Ban(ctx, account.Ban{Mode: account.BanIP, Target: "10.0.0.1", Start: now})
		if err != nil || len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
			t.Errorf("ip ban: expected [1 2], got %v %v", ids, err)
		}
		ids, err = store.Ban(ctx, account.Ban{Mode: account.BanIP, Target: "192.168.1.1", Start: now})
		if err != nil || len(ids) != 0 {
			t.Errorf("ip ban without accounts must succeed, got %v %v", ids, err)
		}
		banned, _ = store.IsBanned(ctx, 3, "192.168.1.1", now)
		if !banned {
			t.Error("expected ip ban to apply")
		}

		found, err := store.Unban(ctx, account.BanIP, "192.168.1.1")
		if err != nil || !found {
			t.Errorf("expected ip unban to succeed, got %v %v", found, err)
		}
		found, _ = store.Unban(ctx, account.BanIP, "192.168.1.1")
		if found {
			t.Error("second ip unban should report not found")
		}

		if _, err := store.Ban(ctx, account.Ban{Mode: account.BanAccount, Target: "alice", Start: now}); err != nil {
			t.Fatal(err)
		}
		found, err = store.Unban(ctx, account.BanAccount, "alice")
		if err != nil || !found {
			t.Errorf("expected account unban to succeed, got %v %v", found, err)
		}
		banned, _ = store.IsBanned(ctx, 1, "", now)
		if banned {
			t.Error("unbanned account should not be banned")
		}
		found, _ = store.Unban(ctx, account.BanCharacter, "nobody")
		if found {
			t.Error("unknown character should report not found")
		}
	})

	t.Run("uptime", func(t *testing.T) {
		if err := store.StartUptime(ctx, 1, now); err != nil {
			t.Fatal(err)
		}
		if err := store.UpdateUptime(ctx, 1, now, 90*time.Second, 12); err != nil {
			t.Fatal(err)
		}
		if err := store.UpdateUptime(ctx, 9, now, time.Second, 1); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound for unknown realm, got %v", err)
		}
		if err := store.UpdatePopulation(ctx, 1, 0.5); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("logs", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			if err := store.AppendLog(ctx, now.Add(time.Duration(i)*time.Hour), "entry"); err != nil {
				t.Fatal(err)
			}
		}
		removed, err := store.PurgeLogs(ctx, now.Add(90*time.Minute))
		if err != nil || removed != 2 {
			t.Errorf("expected 2 purged logs, got %d %v", removed, err)
		}
	})
}
