package world

import (
	"context"
	"fmt"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/database"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/logger"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/protocol"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/text"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/timer"
	"time"
)

// stage 执行一个更新阶段, 错误和 panic 只记录日志, 不影响后续阶段
// stage 隔离执行一个更新阶段, 发生 panic 时返回 false
func (w *World) stage(name string, fn func() error) (completed bool) {
	if fn == nil {
		return true
	}
	defer func() {
		if err := recover(); err != nil {
			logger.ErrorF("World update stage %s panicked: %v", name, err)
			completed = false
		}
	}()
	if err := fn(); err != nil {
		logger.ErrorF("World update stage %s failed: %v", name, err)
	}
	return true
}

func withDiff(fn func(time.Duration) error, diff time.Duration) func() error {
	if fn == nil {
		return nil
	}
	return func() error { return fn(diff) }
}

// Update 主循环每个 tick 调用一次, 只能在主循环协程调用
func (w *World) Update(diff time.Duration) {
	w.logUpdateTime(diff)
	w.timers.Advance(diff)
	w.updateGameTime()
	w.updateDailyReset()

	if w.timers.Passed(timer.Auctions) {
		w.stage("auctions", w.hooks.Auctions)
		w.mailTimer++
		if w.mailTimer > w.mailTimerExpires {
			w.mailTimer = 0
			w.stage("mails", w.hooks.ReturnOldMails)
		}
	}

	if w.timers.Passed(timer.Sessions) {
		w.stage("sessions", func() error {
			w.sessions.Update(diff)
			w.publishCounters()
			return nil
		})
		w.stage("groups", withDiff(w.hooks.Groups, diff))
	}

	if w.timers.Passed(timer.Weathers) {
		interval := w.timers.Get(timer.Weathers).Interval()
		w.stage("weathers", func() error {
			w.updateWeathers(interval)
			return nil
		})
	}

	if w.timers.Passed(timer.Uptime) {
		w.results.Execute("update uptime", w.uptimeJob())
	}

	if w.cfg.LogDBClearTime > 0 && w.timers.Passed(timer.CleanDB) {
		w.cleanLogs()
	}

	if w.cfg.AutoBroadcast.Enabled && w.timers.Passed(timer.AutoBroadcast) {
		w.stage("auto_broadcast", w.autoBroadcast)
	}

	if w.timers.Passed(timer.Objects) {
		w.stage("objects", withDiff(w.hooks.Objects, diff))
		w.stage("scripts", func() error {
			w.scripts.Process()
			return nil
		})
		w.stage("battlegrounds", withDiff(w.hooks.Battlegrounds, diff))
		w.stage("outdoor_pvp", withDiff(w.hooks.OutdoorPvP, diff))
	}

	if w.timers.Passed(timer.Corpses) {
		w.stage("corpses", w.hooks.Corpses)
	}

	if w.timers.Passed(timer.Events) {
		w.stage("events", w.updateEvents)
	}

	w.stage("results", func() error {
		w.results.Update()
		return nil
	})
	w.stage("commands", w.processCommands)

	w.updateLockdown()
}

func (w *World) updateGameTime() {
	now := w.clock.Now().Truncate(time.Second)
	elapsed := now.Sub(w.gameTime)
	w.gameTime = now
	w.advanceShutdown(elapsed)
}

func (w *World) updateDailyReset() {
	if !w.gameTime.After(w.nextDailyReset) {
		return
	}
	w.stage("daily_reset", w.hooks.DailyReset)
	w.nextDailyReset = w.nextDailyReset.Add(24 * time.Hour)
	w.saveTimestamp(database.VarNextDailyQuestReset, w.nextDailyReset)
}

func (w *World) updateEvents() error {
	if w.hooks.Events == nil {
		return nil
	}
	next, err := w.hooks.Events()
	if err != nil {
		return err
	}
	if next > 0 {
		w.timers.Get(timer.Events).SetInterval(next)
	}
	return nil
}

func (w *World) uptimeJob() func(ctx context.Context) error {
	realm, start := w.cfg.RealmID, w.startTime
	uptime := w.Uptime()
	maxPlayers := w.sessions.MaxActiveCount()
	return func(ctx context.Context) error {
		return w.store.UpdateUptime(ctx, realm, start, uptime, maxPlayers)
	}
}

func (w *World) cleanLogs() {
	retention := w.cfg.LogDBClearTime
	before := w.gameTime.Add(-retention)
	logPath := w.cfg.LogPath
	w.results.Execute("clean logs", func(ctx context.Context) error {
		removed, err := w.store.PurgeLogs(ctx, before)
		if err != nil {
			return err
		}
		files := 0
		if logPath != "" {
			files = logger.CleanOldLogs(logPath, retention)
		}
		logger.InfoF("Removed %d log records and %d log files older than %v", removed, files, retention)
		return nil
	})
}

func (w *World) autoBroadcast() error {
	messages := w.cfg.AutoBroadcast.Messages
	if len(messages) == 0 {
		return nil
	}
	message := messages[w.rand.IntN(len(messages))]
	switch w.cfg.AutoBroadcast.Center {
	case 0:
		w.SendWorldText(text.AutoBroadcast, message)
	case 1:
		w.SendGlobalMessage(protocol.NewNotification(message), nil)
	case 2:
		w.SendWorldText(text.AutoBroadcast, message)
		w.SendGlobalMessage(protocol.NewNotification(message), nil)
	default:
		return fmt.Errorf("unknown auto broadcast center %d", w.cfg.AutoBroadcast.Center)
	}
	logger.DebugF("AutoBroadcast: %s", message)
	return nil
}

func (w *World) logUpdateTime(diff time.Duration) {
	if w.cfg.LogUpdateInterval <= 0 {
		return
	}
	w.updateTimeSum += diff
	w.updateTimeCount++
	w.updateLogTimer += diff
	if w.updateLogTimer < w.cfg.LogUpdateInterval {
		return
	}
	average := w.updateTimeSum / time.Duration(w.updateTimeCount)
	logger.InfoF("Update time diff: average %v over %d ticks, %d players online", average, w.updateTimeCount, w.sessions.ActiveCount())
	w.updateTimeSum = 0
	w.updateTimeCount = 0
	w.updateLogTimer = 0
}
