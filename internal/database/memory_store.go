package database

import (
	"context"
	"fmt"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/account"
	"slices"
	"strings"
	"sync"
	"time"
)

// MemoryStore 进程内存储, 用于开发环境和测试
type MemoryStore struct {
	mu          sync.RWMutex
	variables   map[string]int64
	accounts    map[uint32]account.Account
	accountBans []account.Ban
	ipBans      map[string]account.Ban
	uptime      map[uint32]map[int64]UptimeRecord
	realms      map[uint32]float64
	logs        []LogRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		variables: make(map[string]int64),
		accounts:  make(map[uint32]account.Account),
		ipBans:    make(map[string]account.Ban),
		uptime:    make(map[uint32]map[int64]UptimeRecord),
		realms:    make(map[uint32]float64),
	}
}

func (ms *MemoryStore) LoadVariable(_ context.Context, name string) (int64, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	value, ok := ms.variables[name]
	if !ok {
		return 0, fmt.Errorf("variable %s: %w", name, ErrNotFound)
	}
	return value, nil
}

func (ms *MemoryStore) SaveVariable(_ context.Context, name string, value int64) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.variables[name] = value
	return nil
}

func (ms *MemoryStore) findAccountLocked(match func(a account.Account) bool) (account.Account, bool) {
	for _, a := range ms.accounts {
		if match(a) {
			return a, true
		}
	}
	return account.Account{}, false
}

func (ms *MemoryStore) FindAccount(_ context.Context, username string) (account.Account, error) {
	if username == "" {
		return account.Account{}, ErrEmptyUsername
	}
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	a, ok := ms.findAccountLocked(func(a account.Account) bool { return strings.EqualFold(a.Username, username) })
	if !ok {
		return account.Account{}, fmt.Errorf("account %s: %w", username, ErrNotFound)
	}
	return a, nil
}

func (ms *MemoryStore) SaveAccount(_ context.Context, a account.Account) error {
	if a.Username == "" {
		return ErrEmptyUsername
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	a.Characters = slices.Clone(a.Characters)
	ms.accounts[a.ID] = a
	return nil
}

func (ms *MemoryStore) IsBanned(_ context.Context, accountID uint32, ip string, now time.Time) (bool, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	if ban, ok := ms.ipBans[ip]; ok && ip != "" && ban.ActiveAt(now) {
		return true, nil
	}
	for _, ban := range ms.accountBans {
		if ban.AccountID == accountID && ban.ActiveAt(now) {
			return true, nil
		}
	}
	return false, nil
}

func (ms *MemoryStore) accountsForLocked(mode account.BanMode, target string) []uint32 {
	var ids []uint32
	for _, a := range ms.accounts {
		switch mode {
		case account.BanIP:
			if a.LastIP == target {
				ids = append(ids, a.ID)
			}
		case account.BanAccount:
			if strings.EqualFold(a.Username, target) {
				ids = append(ids, a.ID)
			}
		case account.BanCharacter:
			if slices.ContainsFunc(a.Characters, func(name string) bool { return strings.EqualFold(name, target) }) {
				ids = append(ids, a.ID)
			}
		}
	}
	slices.Sort(ids)
	return ids
}

func (ms *MemoryStore) Ban(_ context.Context, ban account.Ban) ([]uint32, error) {
	if ban.Target == "" {
		return nil, ErrEmptyTarget
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ids := ms.accountsForLocked(ban.Mode, ban.Target)
	ban.Active = true
	if ban.Mode == account.BanIP {
		ms.ipBans[ban.Target] = ban
		return ids, nil
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%s %s: %w", ban.Mode, ban.Target, ErrNotFound)
	}
	for _, id := range ids {
		entry := ban
		entry.AccountID = id
		ms.accountBans = append(ms.accountBans, entry)
	}
	return ids, nil
}

func (ms *MemoryStore) Unban(_ context.Context, mode account.BanMode, target string) (bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if mode == account.BanIP {
		if _, ok := ms.ipBans[target]; !ok {
			return false, nil
		}
		delete(ms.ipBans, target)
		return true, nil
	}

	ids := ms.accountsForLocked(mode, target)
	if len(ids) == 0 {
		return false, nil
	}
	for i := range ms.accountBans {
		if slices.Contains(ids, ms.accountBans[i].AccountID) {
			ms.accountBans[i].Active = false
		}
	}
	return true, nil
}

func (ms *MemoryStore) StartUptime(_ context.Context, realmID uint32, start time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.uptime[realmID] == nil {
		ms.uptime[realmID] = make(map[int64]UptimeRecord)
	}
	ms.uptime[realmID][start.Unix()] = UptimeRecord{RealmID: realmID, StartTime: start}
	return nil
}

func (ms *MemoryStore) UpdateUptime(_ context.Context, realmID uint32, start time.Time, uptime time.Duration, maxPlayers int) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	records, ok := ms.uptime[realmID]
	if !ok {
		return fmt.Errorf("uptime of realm %d: %w", realmID, ErrNotFound)
	}
	record, ok := records[start.Unix()]
	if !ok {
		return fmt.Errorf("uptime of realm %d: %w", realmID, ErrNotFound)
	}
	record.Uptime = int64(uptime / time.Second)
	record.MaxPlayers = maxPlayers
	records[start.Unix()] = record
	return nil
}

// Uptime 返回指定启动时间的记录, 供测试和诊断使用
func (ms *MemoryStore) Uptime(realmID uint32, start time.Time) (UptimeRecord, bool) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	record, ok := ms.uptime[realmID][start.Unix()]
	return record, ok
}

func (ms *MemoryStore) UpdatePopulation(_ context.Context, realmID uint32, population float64) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.realms[realmID] = population
	return nil
}

func (ms *MemoryStore) Population(realmID uint32) float64 {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.realms[realmID]
}

func (ms *MemoryStore) AppendLog(_ context.Context, at time.Time, text string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.logs = append(ms.logs, LogRecord{At: at, Text: text})
	return nil
}

func (ms *MemoryStore) PurgeLogs(_ context.Context, before time.Time) (int64, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	kept := ms.logs[:0]
	var removed int64
	for _, record := range ms.logs {
		if record.At.Before(before) {
			removed++
			continue
		}
		kept = append(kept, record)
	}
	ms.logs = kept
	return removed, nil
}

func (ms *MemoryStore) Logs() []LogRecord {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return slices.Clone(ms.logs)
}

func (ms *MemoryStore) Close(_ context.Context) error {
	return nil
}
