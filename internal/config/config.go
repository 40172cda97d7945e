package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/caarlos0/env/v11"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/utils"
	"os"
	"time"
)

const DefaultPath = "config.json"

type DatabaseConfig struct {
	// Driver 可选 memory / mongo / sqlite
	Driver             string `json:"driver" env:"DRIVER"`
	Host               string `json:"host" env:"HOST"`
	Port               uint64 `json:"port" env:"PORT"`
	Username           string `json:"username" env:"USERNAME"`
	Password           string `json:"password" env:"PASSWORD"`
	Database           string `json:"database" env:"NAME"`
	UseTLS             bool   `json:"use_tls" env:"USE_TLS"`
	ConnectTimeout     string `json:"connect_timeout" env:"CONNECT_TIMEOUT"`
	SocketTimeout      string `json:"socket_timeout" env:"SOCKET_TIMEOUT"`
	ConnectIdleTimeout string `json:"connect_idle_timeout" env:"CONNECT_IDLE_TIMEOUT"`
	OperationTimeout   string `json:"operation_timeout" env:"OPERATION_TIMEOUT"`
	Heartbeat          string `json:"heartbeat" env:"HEARTBEAT"`
	MinPoolSize        uint64 `json:"min_pool_size" env:"MIN_POOL_SIZE"`
	MaxPoolSize        uint64 `json:"max_pool_size" env:"MAX_POOL_SIZE"`
	SQLitePath         string `json:"sqlite_path" env:"SQLITE_PATH"`
	AccountCacheSize   int    `json:"account_cache_size" env:"ACCOUNT_CACHE_SIZE"`
	AccountCacheTTL    string `json:"account_cache_ttl" env:"ACCOUNT_CACHE_TTL"`
}

type RedisConfig struct {
	Enabled    bool   `json:"enabled" env:"ENABLED"`
	Addr       string `json:"addr" env:"ADDR"`
	Password   string `json:"password" env:"PASSWORD"`
	DB         int    `json:"db" env:"DB"`
	CommandKey string `json:"command_key" env:"COMMAND_KEY"`
}

type ServerConfig struct {
	Listen           string `json:"listen" env:"LISTEN"`
	AuthTimeout      string `json:"auth_timeout" env:"AUTH_TIMEOUT"`
	HeartbeatTimeout string `json:"heartbeat_timeout" env:"HEARTBEAT_TIMEOUT"`
	MaxConnections   int    `json:"max_connections" env:"MAX_CONNECTIONS"`
}

type AdminConfig struct {
	GRPCListen     string `json:"grpc_listen" env:"GRPC_LISTEN"`
	CommandTimeout string `json:"command_timeout" env:"COMMAND_TIMEOUT"`
}

type WorldConfig struct {
	RealmID             uint32 `json:"realm_id" env:"REALM_ID"`
	PlayerLimit         int    `json:"player_limit" env:"PLAYER_LIMIT"`
	DisconnectTolerance string `json:"disconnect_tolerance" env:"DISCONNECT_TOLERANCE"`
	TickInterval        string `json:"tick_interval" env:"TICK_INTERVAL"`
	UptimeUpdate        string `json:"uptime_update" env:"UPTIME_UPDATE"`
	LogUpdateInterval   string `json:"log_update_interval" env:"LOG_UPDATE_INTERVAL"`
	LogDBClearTime      string `json:"log_db_clear_time" env:"LOG_DB_CLEAR_TIME"`
	LogDBClearInterval  string `json:"log_db_clear_interval" env:"LOG_DB_CLEAR_INTERVAL"`
	CorpseDecay         string `json:"corpse_decay" env:"CORPSE_DECAY"`
	MailExpireInterval  string `json:"mail_expire_interval" env:"MAIL_EXPIRE_INTERVAL"`
	DailyResetHour      int    `json:"daily_reset_hour" env:"DAILY_RESET_HOUR"`
}

type LockdownConfig struct {
	Enabled  bool   `json:"enabled" env:"ENABLED"`
	Interval string `json:"interval" env:"INTERVAL"`
	Length   string `json:"length" env:"LENGTH"`
	Tasks    uint32 `json:"tasks" env:"TASKS"`
}

type AutoBroadcastConfig struct {
	Enabled  bool     `json:"enabled" env:"ENABLED"`
	Center   int      `json:"center" env:"CENTER"`
	Interval string   `json:"interval" env:"INTERVAL"`
	Messages []string `json:"messages" env:"MESSAGES" envSeparator:"|"`
}

type Config struct {
	Database      DatabaseConfig      `json:"database" envPrefix:"DATABASE_"`
	Redis         RedisConfig         `json:"redis" envPrefix:"REDIS_"`
	Server        ServerConfig        `json:"server" envPrefix:"SERVER_"`
	Admin         AdminConfig         `json:"admin" envPrefix:"ADMIN_"`
	World         WorldConfig         `json:"world" envPrefix:"WORLD_"`
	Lockdown      LockdownConfig      `json:"lockdown" envPrefix:"LOCKDOWN_"`
	AutoBroadcast AutoBroadcastConfig `json:"auto_broadcast" envPrefix:"AUTO_BROADCAST_"`
	DebugMode     bool                `json:"debug_mode" env:"DEBUG_MODE"`
	AppName       string              `json:"app_name" env:"APP_NAME"`
	LogPath       string              `json:"log_path" env:"LOG_PATH"`
}

var ErrConfigCreated = errors.New("the configuration file does not exist and has been created. Please try again after editing the configuration file")

// Default 返回首次运行时写入配置文件的默认配置
func Default() Config {
	return Config{
		Database: DatabaseConfig{
			Driver:             "memory",
			Host:               "127.0.0.1",
			Port:               27017,
			Database:           "world",
			ConnectTimeout:     "10s",
			SocketTimeout:      "30s",
			ConnectIdleTimeout: "5m",
			OperationTimeout:   "5s",
			Heartbeat:          "10s",
			MinPoolSize:        1,
			MaxPoolSize:        16,
			SQLitePath:         "world.db",
			AccountCacheSize:   256,
			AccountCacheTTL:    "1h",
		},
		Redis: RedisConfig{
			Addr:       "127.0.0.1:6379",
			CommandKey: "world:admin:commands",
		},
		Server: ServerConfig{
			Listen:           ":8085",
			AuthTimeout:      "1m",
			HeartbeatTimeout: "2m",
			MaxConnections:   10000,
		},
		Admin: AdminConfig{
			GRPCListen:     "127.0.0.1:8086",
			CommandTimeout: "10s",
		},
		World: WorldConfig{
			RealmID:             1,
			PlayerLimit:         100,
			DisconnectTolerance: "0s",
			TickInterval:        "50ms",
			UptimeUpdate:        "10m",
			LogUpdateInterval:   "0s",
			LogDBClearTime:      "0s",
			LogDBClearInterval:  "10m",
			CorpseDecay:         "20m",
			MailExpireInterval:  "1d",
			DailyResetHour:      6,
		},
		Lockdown: LockdownConfig{
			Interval: "7d",
			Length:   "5m",
			Tasks:    0,
		},
		AutoBroadcast: AutoBroadcastConfig{
			Interval: "10m",
		},
		AppName: "world-server",
		LogPath: "logs",
	}
}

func ReadConfig(path string) (Config, error) {
	config := Default()
	bytes, err := os.ReadFile(path)

	if err != nil {
		writer, _ := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if writer != nil {
			data, _ := json.MarshalIndent(config, "", "\t")
			_, _ = writer.Write(data)
			_ = writer.Close()
		}
		return config, ErrConfigCreated
	}

	if err = json.Unmarshal(bytes, &config); err != nil {
		return config, errors.New("the configuration file does not contain valid JSON")
	}

	if err = ApplyEnv(&config); err != nil {
		return config, err
	}

	if err = config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

// ApplyEnv 用 WORLD_ 前缀的环境变量覆盖配置文件中的值
func ApplyEnv(config *Config) error {
	if err := env.ParseWithOptions(config, env.Options{Prefix: "WORLD_"}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	durations := map[string]string{
		"database.operation_timeout":   c.Database.OperationTimeout,
		"database.account_cache_ttl":   c.Database.AccountCacheTTL,
		"server.auth_timeout":          c.Server.AuthTimeout,
		"server.heartbeat_timeout":     c.Server.HeartbeatTimeout,
		"admin.command_timeout":        c.Admin.CommandTimeout,
		"world.disconnect_tolerance":   c.World.DisconnectTolerance,
		"world.tick_interval":          c.World.TickInterval,
		"world.uptime_update":          c.World.UptimeUpdate,
		"world.log_update_interval":    c.World.LogUpdateInterval,
		"world.log_db_clear_time":      c.World.LogDBClearTime,
		"world.log_db_clear_interval":  c.World.LogDBClearInterval,
		"world.corpse_decay":           c.World.CorpseDecay,
		"world.mail_expire_interval":   c.World.MailExpireInterval,
		"lockdown.interval":            c.Lockdown.Interval,
		"lockdown.length":              c.Lockdown.Length,
		"auto_broadcast.interval":      c.AutoBroadcast.Interval,
	}
	for key, value := range durations {
		if _, err := utils.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	switch c.Database.Driver {
	case "memory", "mongo", "sqlite":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	if c.World.PlayerLimit < 0 {
		return errors.New("world.player_limit must not be negative")
	}
	if c.World.DailyResetHour < 0 || c.World.DailyResetHour > 23 {
		return errors.New("world.daily_reset_hour must be between 0 and 23")
	}
	if c.AutoBroadcast.Center < 0 || c.AutoBroadcast.Center > 2 {
		return errors.New("auto_broadcast.center must be 0, 1 or 2")
	}
	return nil
}

// Duration 解析已经通过 Validate 校验的时间字符串
func Duration(value string) time.Duration {
	return utils.ParseStringTime(value)
}
