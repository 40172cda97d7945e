// Package world 驱动世界服主循环: 会话、定时器、延迟脚本、关服与维护锁定
package world

import (
	"context"
	"errors"
	"fmt"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/admin"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/config"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/database"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/logger"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/queue"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/script"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/session"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/text"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/timer"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/utils"
	"math/rand/v2"
	"sync/atomic"
	"time"
)

const (
	auctionInterval = time.Minute
	weatherInterval = time.Second
	eventInterval   = time.Minute
)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type LockdownConfig struct {
	Enabled  bool
	Interval time.Duration
	Length   time.Duration
	Tasks    MaintenanceTask
}

type AutoBroadcastConfig struct {
	Enabled  bool
	Center   int
	Interval time.Duration
	Messages []string
}

type Config struct {
	RealmID             uint32
	PlayerLimit         int
	DisconnectTolerance time.Duration
	TickInterval        time.Duration
	UptimeUpdate        time.Duration
	LogUpdateInterval   time.Duration
	LogDBClearTime      time.Duration
	LogDBClearInterval  time.Duration
	LogPath             string
	CorpseDecay         time.Duration
	MailExpireInterval  time.Duration
	DailyResetHour      int
	Lockdown            LockdownConfig
	AutoBroadcast       AutoBroadcastConfig
}

// ConfigFrom 把配置文件中的字符串时间转换成世界配置
func ConfigFrom(c config.Config) Config {
	return Config{
		RealmID:             c.World.RealmID,
		PlayerLimit:         c.World.PlayerLimit,
		DisconnectTolerance: config.Duration(c.World.DisconnectTolerance),
		TickInterval:        config.Duration(c.World.TickInterval),
		UptimeUpdate:        config.Duration(c.World.UptimeUpdate),
		LogUpdateInterval:   config.Duration(c.World.LogUpdateInterval),
		LogDBClearTime:      config.Duration(c.World.LogDBClearTime),
		LogDBClearInterval:  config.Duration(c.World.LogDBClearInterval),
		LogPath:             c.LogPath,
		CorpseDecay:         config.Duration(c.World.CorpseDecay),
		MailExpireInterval:  config.Duration(c.World.MailExpireInterval),
		DailyResetHour:      c.World.DailyResetHour,
		Lockdown: LockdownConfig{
			Enabled:  c.Lockdown.Enabled,
			Interval: config.Duration(c.Lockdown.Interval),
			Length:   config.Duration(c.Lockdown.Length),
			Tasks:    MaintenanceTask(c.Lockdown.Tasks),
		},
		AutoBroadcast: AutoBroadcastConfig{
			Enabled:  c.AutoBroadcast.Enabled,
			Center:   c.AutoBroadcast.Center,
			Interval: config.Duration(c.AutoBroadcast.Interval),
			Messages: c.AutoBroadcast.Messages,
		},
	}
}

// Weather 区域天气, Update 返回 false 时从世界移除
type Weather interface {
	Zone() uint32
	Update(diff time.Duration) bool
}

// Maintenance 维护锁定期间执行的任务
type Maintenance struct {
	DistributeArenaPoints func() error
	EraseCorpses          func() error
	UnloadMaps            func() error
	ReloadAll             func() error
}

// Hooks 外部子系统, 为 nil 的钩子直接跳过
type Hooks struct {
	Auctions       func() error
	ReturnOldMails func() error
	Groups         func(diff time.Duration) error
	Objects        func(diff time.Duration) error
	Battlegrounds  func(diff time.Duration) error
	OutdoorPvP     func(diff time.Duration) error
	Corpses        func() error
	// Events 返回下一次更新游戏事件的间隔
	Events     func() (time.Duration, error)
	DailyReset func() error
	Weather    func(zone uint32) (Weather, bool)
	Maintenance
}

type Deps struct {
	Store    database.Store
	Results  *database.ResultQueue
	Clock    Clock
	Resolver script.Resolver
	Executor script.Executor
	Text     *text.Catalog
	Hooks    Hooks
	Rand     *rand.Rand
}

type World struct {
	cfg      Config
	clock    Clock
	store    database.Store
	results  *database.ResultQueue
	sessions *session.Table
	scripts  *script.Scheduler
	commands *queue.Queue[*admin.Command]
	timers   timer.Bank
	hooks    Hooks
	text     *text.Catalog
	rand     *rand.Rand
	weathers map[uint32]Weather

	shutdown ShutdownState
	lockdown LockdownState

	startTime      time.Time
	gameTime       time.Time
	nextDailyReset time.Time

	mailTimer        int
	mailTimerExpires int

	updateTimeSum   time.Duration
	updateTimeCount int
	updateLogTimer  time.Duration

	stopped    atomic.Bool
	lockedDown atomic.Bool
	online     atomic.Int64
	queued     atomic.Int64
}

func New(cfg Config, deps Deps) *World {
	if deps.Clock == nil {
		deps.Clock = systemClock{}
	}
	if deps.Store == nil {
		deps.Store = database.NewMemoryStore()
	}
	if deps.Results == nil {
		deps.Results = database.NewResultQueue(5 * time.Second)
	}
	if deps.Text == nil {
		deps.Text = text.Default()
	}
	if deps.Resolver == nil {
		deps.Resolver = script.NewDirectory()
	}
	if deps.Executor == nil {
		deps.Executor = script.NewDispatcher()
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}

	w := &World{
		cfg:      cfg,
		clock:    deps.Clock,
		store:    deps.Store,
		results:  deps.Results,
		commands: queue.New[*admin.Command](),
		hooks:    deps.Hooks,
		text:     deps.Text,
		rand:     deps.Rand,
		weathers: make(map[uint32]Weather),
	}
	w.gameTime = w.clock.Now().Truncate(time.Second)
	w.startTime = w.gameTime
	w.shutdown.ExitCode = ShutdownExitCode
	w.sessions = session.NewTable(session.Options{
		PlayerLimit:         cfg.PlayerLimit,
		DisconnectTolerance: cfg.DisconnectTolerance,
		Now:                 w.GameTime,
		OnPopulation:        w.savePopulation,
	})
	// 脚本按整秒游戏时间到期
	w.scripts = script.NewScheduler(w.GameTime, deps.Resolver, deps.Executor)
	return w
}

// Init 设置定时器并读取持久化的时间点, 失败时不能启动
func (w *World) Init(ctx context.Context) error {
	w.gameTime = w.clock.Now().Truncate(time.Second)
	w.startTime = w.gameTime

	w.timers.Get(timer.Auctions).SetInterval(auctionInterval)
	w.timers.Get(timer.Uptime).SetInterval(w.cfg.UptimeUpdate)
	w.timers.Get(timer.Corpses).SetInterval(w.cfg.CorpseDecay)
	w.timers.Get(timer.Events).SetInterval(eventInterval)
	w.timers.Get(timer.CleanDB).SetInterval(w.cfg.LogDBClearInterval)
	w.timers.Get(timer.AutoBroadcast).SetInterval(w.cfg.AutoBroadcast.Interval)
	w.timers.Get(timer.Sessions).SetInterval(0)
	w.timers.Get(timer.Weathers).SetInterval(weatherInterval)
	w.timers.Get(timer.Objects).SetInterval(0)

	w.mailTimer = 0
	w.mailTimerExpires = 1
	if w.cfg.MailExpireInterval > auctionInterval {
		w.mailTimerExpires = int(w.cfg.MailExpireInterval / auctionInterval)
	}

	if err := w.store.StartUptime(ctx, w.cfg.RealmID, w.startTime); err != nil {
		return fmt.Errorf("start uptime record: %w", err)
	}
	if err := w.initDailyReset(ctx); err != nil {
		return err
	}
	if w.cfg.Lockdown.Enabled {
		if err := w.initLockdown(ctx); err != nil {
			return err
		}
	}

	logger.InfoF("World initialized: realm=%d, player_limit=%d, disconnect_tolerance=%v",
		w.cfg.RealmID, w.cfg.PlayerLimit, w.cfg.DisconnectTolerance)
	return nil
}

// loadTimestamp 读取以 unix 秒保存的时间点, 不存在时写入 fallback
func (w *World) loadTimestamp(ctx context.Context, name string, fallback time.Time) (time.Time, error) {
	value, err := w.store.LoadVariable(ctx, name)
	if err == nil {
		return time.Unix(value, 0), nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return time.Time{}, fmt.Errorf("load %s: %w", name, err)
	}
	if err := w.store.SaveVariable(ctx, name, fallback.Unix()); err != nil {
		return time.Time{}, fmt.Errorf("save %s: %w", name, err)
	}
	return fallback, nil
}

func (w *World) saveTimestamp(name string, at time.Time) {
	value := at.Unix()
	w.results.Execute("save "+name, func(ctx context.Context) error {
		return w.store.SaveVariable(ctx, name, value)
	})
}

func (w *World) initDailyReset(ctx context.Context) error {
	next, err := w.loadTimestamp(ctx, database.VarNextDailyQuestReset, utils.NextDailyTime(w.gameTime, w.cfg.DailyResetHour))
	if err != nil {
		return err
	}
	w.nextDailyReset = next
	logger.InfoF("Next daily reset at %s", next.Format(time.DateTime))
	return nil
}

func (w *World) savePopulation(population float64) {
	realm := w.cfg.RealmID
	w.results.Execute("update population", func(ctx context.Context) error {
		return w.store.UpdatePopulation(ctx, realm, population)
	})
}

// AddSession 可在任意协程调用
func (w *World) AddSession(s *session.Session) {
	w.sessions.Enqueue(s)
}

// QueueCommand 可在任意协程调用, 命令在下一次 tick 执行
func (w *World) QueueCommand(cmd *admin.Command) bool {
	if w.stopped.Load() {
		return false
	}
	w.commands.Push(cmd)
	return true
}

func (w *World) GameTime() time.Time {
	return w.gameTime
}

func (w *World) StartTime() time.Time {
	return w.startTime
}

func (w *World) Uptime() time.Duration {
	return w.gameTime.Sub(w.startTime)
}

func (w *World) Sessions() *session.Table {
	return w.sessions
}

func (w *World) Scripts() *script.Scheduler {
	return w.scripts
}

func (w *World) Results() *database.ResultQueue {
	return w.results
}

func (w *World) NextDailyReset() time.Time {
	return w.nextDailyReset
}

// Stopped 关服倒计时结束后为 true, 可在任意协程调用
func (w *World) Stopped() bool {
	return w.stopped.Load()
}

// LockedDown 维护锁定期间为 true, 可在任意协程调用
func (w *World) LockedDown() bool {
	return w.lockedDown.Load()
}

// OnlineCount 最近一次会话更新后的在线和排队人数, 可在任意协程调用
func (w *World) OnlineCount() (active int, queued int) {
	return int(w.online.Load()), int(w.queued.Load())
}

func (w *World) publishCounters() {
	w.online.Store(int64(w.sessions.ActiveCount()))
	w.queued.Store(int64(w.sessions.QueuedCount()))
}

// Run 按固定间隔调用 Update, 直到关服或 ctx 取消, 返回进程退出码
func (w *World) Run(ctx context.Context) int {
	interval := w.cfg.TickInterval
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			logger.Info("World loop stopped by signal")
			return w.ExitCode()
		case now := <-ticker.C:
			diff := now.Sub(last)
			last = now
			w.Update(diff)
			if w.Stopped() {
				logger.InfoF("World loop finished with exit code %d", w.ExitCode())
				return w.ExitCode()
			}
		}
	}
}

// Close 踢掉所有会话, 最后执行一次会话更新和数据库回调
func (w *World) Close(ctx context.Context) error {
	w.sessions.KickAll()
	w.sessions.Update(0)
	w.publishCounters()
	w.results.Execute("final uptime", w.uptimeJob())
	w.results.Wait()
	w.results.Update()
	return ctx.Err()
}
