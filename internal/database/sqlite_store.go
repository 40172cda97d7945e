package database

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/account"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/logger"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed sqlite_schema.sql
var sqliteSchema string

// SQLiteStore 单机部署使用的本地存储
type SQLiteStore struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return time.UnixMilli(value).UTC()
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// sqlite 只允许一个写连接
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if _, err := sqlDB.Exec(sqliteSchema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	logger.InfoF("Opened sqlite database %s", path)
	return &SQLiteStore{sqlDB: sqlDB}, nil
}

func (s *SQLiteStore) LoadVariable(ctx context.Context, name string) (int64, error) {
	var value int64
	err := s.sqlDB.QueryRowContext(ctx, `SELECT value FROM saved_variables WHERE name = ?`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("variable %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("database operation failed: %w", err)
	}
	return value, nil
}

func (s *SQLiteStore) SaveVariable(ctx context.Context, name string, value int64) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO saved_variables (name, value) VALUES (?, ?)
		 ON CONFLICT (name) DO UPDATE SET value = excluded.value`, name, value)
	if err != nil {
		return fmt.Errorf("database operation failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) FindAccount(ctx context.Context, username string) (account.Account, error) {
	if username == "" {
		return account.Account{}, ErrEmptyUsername
	}
	var a account.Account
	var security int64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, username, security, last_ip FROM accounts WHERE username = ?`, username).
		Scan(&a.ID, &a.Username, &security, &a.LastIP)
	if errors.Is(err, sql.ErrNoRows) {
		return account.Account{}, fmt.Errorf("account %s: %w", username, ErrNotFound)
	}
	if err != nil {
		return account.Account{}, fmt.Errorf("database operation failed: %w", err)
	}
	a.Security = account.Security(security)

	rows, err := s.sqlDB.QueryContext(ctx, `SELECT name FROM characters WHERE account_id = ? ORDER BY name`, a.ID)
	if err != nil {
		return account.Account{}, fmt.Errorf("database operation failed: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return account.Account{}, fmt.Errorf("database operation failed: %w", err)
		}
		a.Characters = append(a.Characters, name)
	}
	return a, rows.Err()
}

func (s *SQLiteStore) SaveAccount(ctx context.Context, a account.Account) error {
	if a.Username == "" {
		return ErrEmptyUsername
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO accounts (id, username, security, last_ip) VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET username = excluded.username, security = excluded.security, last_ip = excluded.last_ip`,
		a.ID, a.Username, int64(a.Security), a.LastIP)
	if err != nil {
		return fmt.Errorf("database operation failed: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM characters WHERE account_id = ?`, a.ID); err != nil {
		return fmt.Errorf("database operation failed: %w", err)
	}
	for _, name := range a.Characters {
		if _, err = tx.ExecContext(ctx, `INSERT INTO characters (name, account_id) VALUES (?, ?)`, name, a.ID); err != nil {
			return fmt.Errorf("database operation failed: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) IsBanned(ctx context.Context, accountID uint32, ip string, now time.Time) (bool, error) {
	nowMillis := toMillis(now)
	var count int64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM account_bans WHERE account_id = ? AND active = 1 AND (end_at = 0 OR end_at > ?)`,
		accountID, nowMillis).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("database operation failed: %w", err)
	}
	if count > 0 || ip == "" {
		return count > 0, nil
	}
	err = s.sqlDB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ip_bans WHERE target = ? AND (end_at = 0 OR end_at > ?)`, ip, nowMillis).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("database operation failed: %w", err)
	}
	return count > 0, nil
}

func (s *SQLiteStore) accountsFor(ctx context.Context, mode account.BanMode, target string) ([]uint32, error) {
	var query string
	switch mode {
	case account.BanIP:
		query = `SELECT id FROM accounts WHERE last_ip = ? ORDER BY id`
	case account.BanAccount:
		query = `SELECT id FROM accounts WHERE username = ? ORDER BY id`
	case account.BanCharacter:
		query = `SELECT account_id FROM characters WHERE name = ? ORDER BY account_id`
	default:
		return nil, fmt.Errorf("unsupported ban mode %d", mode)
	}

	rows, err := s.sqlDB.QueryContext(ctx, query, target)
	if err != nil {
		return nil, fmt.Errorf("database operation failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []uint32
	for rows.Next() {
		var id uint32
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("database operation failed: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) Ban(ctx context.Context, ban account.Ban) ([]uint32, error) {
	if ban.Target == "" {
		return nil, ErrEmptyTarget
	}
	ids, err := s.accountsFor(ctx, ban.Mode, ban.Target)
	if err != nil {
		return nil, err
	}

	if ban.Mode == account.BanIP {
		_, err = s.sqlDB.ExecContext(ctx,
			`INSERT INTO ip_bans (target, start_at, end_at, author, reason) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (target) DO UPDATE SET start_at = excluded.start_at, end_at = excluded.end_at,
			 author = excluded.author, reason = excluded.reason`,
			ban.Target, toMillis(ban.Start), toMillis(ban.End), ban.Author, ban.Reason)
		if err != nil {
			return nil, fmt.Errorf("database operation failed: %w", err)
		}
		return ids, nil
	}

	if len(ids) == 0 {
		return nil, fmt.Errorf("%s %s: %w", ban.Mode, ban.Target, ErrNotFound)
	}
	for _, id := range ids {
		_, err = s.sqlDB.ExecContext(ctx,
			`INSERT INTO account_bans (account_id, mode, target, start_at, end_at, author, reason, active)
			 VALUES (?, ?, ?, ?, ?, ?, ?, 1)`,
			id, int64(ban.Mode), ban.Target, toMillis(ban.Start), toMillis(ban.End), ban.Author, ban.Reason)
		if err != nil {
			return nil, fmt.Errorf("database operation failed: %w", err)
		}
	}
	return ids, nil
}

func (s *SQLiteStore) Unban(ctx context.Context, mode account.BanMode, target string) (bool, error) {
	if mode == account.BanIP {
		result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM ip_bans WHERE target = ?`, target)
		if err != nil {
			return false, fmt.Errorf("database operation failed: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("database operation failed: %w", err)
		}
		return affected > 0, nil
	}

	ids, err := s.accountsFor(ctx, mode, target)
	if err != nil {
		return false, err
	}
	if len(ids) == 0 {
		return false, nil
	}
	for _, id := range ids {
		if _, err = s.sqlDB.ExecContext(ctx, `UPDATE account_bans SET active = 0 WHERE account_id = ? AND active = 1`, id); err != nil {
			return false, fmt.Errorf("database operation failed: %w", err)
		}
	}
	return true, nil
}

func (s *SQLiteStore) StartUptime(ctx context.Context, realmID uint32, start time.Time) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO uptime (realm_id, start_time, uptime, max_players) VALUES (?, ?, 0, 0)`,
		realmID, toMillis(start))
	if err != nil {
		return fmt.Errorf("database operation failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateUptime(ctx context.Context, realmID uint32, start time.Time, uptime time.Duration, maxPlayers int) error {
	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE uptime SET uptime = ?, max_players = ? WHERE realm_id = ? AND start_time = ?`,
		int64(uptime/time.Second), maxPlayers, realmID, toMillis(start))
	if err != nil {
		return fmt.Errorf("database operation failed: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("uptime of realm %d: %w", realmID, ErrNotFound)
	}
	return nil
}

// Uptime 读取一条启动记录
func (s *SQLiteStore) Uptime(ctx context.Context, realmID uint32, start time.Time) (UptimeRecord, error) {
	record := UptimeRecord{RealmID: realmID, StartTime: start}
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT uptime, max_players FROM uptime WHERE realm_id = ? AND start_time = ?`,
		realmID, toMillis(start)).Scan(&record.Uptime, &record.MaxPlayers)
	if errors.Is(err, sql.ErrNoRows) {
		return record, fmt.Errorf("uptime of realm %d: %w", realmID, ErrNotFound)
	}
	if err != nil {
		return record, fmt.Errorf("database operation failed: %w", err)
	}
	return record, nil
}

func (s *SQLiteStore) UpdatePopulation(ctx context.Context, realmID uint32, population float64) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO realms (realm_id, population) VALUES (?, ?)
		 ON CONFLICT (realm_id) DO UPDATE SET population = excluded.population`, realmID, population)
	if err != nil {
		return fmt.Errorf("database operation failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AppendLog(ctx context.Context, at time.Time, text string) error {
	if _, err := s.sqlDB.ExecContext(ctx, `INSERT INTO logs (at, text) VALUES (?, ?)`, toMillis(at), text); err != nil {
		return fmt.Errorf("database operation failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) PurgeLogs(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM logs WHERE at < ?`, toMillis(before))
	if err != nil {
		return 0, fmt.Errorf("database operation failed: %w", err)
	}
	return result.RowsAffected()
}

func (s *SQLiteStore) Close(_ context.Context) error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	logger.InfoF("Closing sqlite database")
	return s.sqlDB.Close()
}
