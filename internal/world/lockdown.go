package world

import (
	"context"
	"fmt"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/database"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/logger"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/text"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/utils"
	"time"
)

// MaintenanceTask 维护期间执行的任务位
type MaintenanceTask uint32

const (
	TaskDistributeArenaPoints MaintenanceTask = 1 << iota
	TaskEraseCorpses
	TaskUnloadMaps
	TaskReloadAll
)

type LockdownPhase uint8

const (
	LockdownUnlocked LockdownPhase = iota
	LockdownLocked
	LockdownMaintenanceRunning
)

func (p LockdownPhase) String() string {
	switch p {
	case LockdownUnlocked:
		return "unlocked"
	case LockdownLocked:
		return "locked"
	default:
		return "maintenance_running"
	}
}

type LockdownState struct {
	Phase LockdownPhase
	// Next 下一次锁定的时间, 持久化为 ServerLockdownTime
	Next     time.Time
	UnlockAt time.Time

	lastAnnounced int64
}

func (w *World) LockdownState() LockdownState {
	return w.lockdown
}

func (w *World) initLockdown(ctx context.Context) error {
	next, err := w.loadTimestamp(ctx, database.VarServerLockdownTime, w.gameTime.Add(w.cfg.Lockdown.Interval))
	if err != nil {
		return fmt.Errorf("init lockdown: %w", err)
	}
	w.lockdown = LockdownState{Phase: LockdownUnlocked, Next: next, lastAnnounced: -1}
	logger.InfoF("Next maintenance lockdown at %s", next.Format(time.DateTime))
	return nil
}

func (w *World) updateLockdown() {
	if !w.cfg.Lockdown.Enabled {
		return
	}
	now := w.gameTime

	switch w.lockdown.Phase {
	case LockdownUnlocked:
		if now.After(w.lockdown.Next) {
			w.lock()
			return
		}
		w.lockdownMessage(w.lockdown.Next.Sub(now))
		return
	case LockdownLocked:
		w.runMaintenance()
		w.lockdown.Phase = LockdownMaintenanceRunning
	}

	if now.After(w.lockdown.UnlockAt) {
		w.unlock()
	}
}

// lock 错过的维护窗口不补执行, 从当前时间开始一次完整的锁定
func (w *World) lock() {
	now := w.gameTime
	if !w.lockdown.Next.Add(w.cfg.Lockdown.Length).After(now) {
		logger.WarnF("Maintenance window at %s was missed, locking down now", w.lockdown.Next.Format(time.DateTime))
		w.lockdown.Next = now
	}
	w.lockdown.Phase = LockdownLocked
	w.lockdown.UnlockAt = w.lockdown.Next.Add(w.cfg.Lockdown.Length)
	w.lockedDown.Store(true)

	w.SendWorldText(text.LockdownStarted, utils.FormatCountdown(w.cfg.Lockdown.Length))
	w.sessions.KickAll()
	w.saveTimestamp(database.VarServerLockdownTime, w.lockdown.Next)
	logger.InfoF("Server locked down for maintenance until %s", w.lockdown.UnlockAt.Format(time.DateTime))
}

func (w *World) unlock() {
	w.lockdown.Phase = LockdownUnlocked
	w.lockdown.Next = w.lockdown.UnlockAt.Add(w.cfg.Lockdown.Interval - w.cfg.Lockdown.Length)
	if now := w.gameTime; !w.lockdown.Next.After(now) {
		w.lockdown.Next = now.Add(w.cfg.Lockdown.Interval - w.cfg.Lockdown.Length)
	}
	w.lockdown.lastAnnounced = -1
	w.lockedDown.Store(false)

	w.saveTimestamp(database.VarServerLockdownTime, w.lockdown.Next)
	logger.InfoF("Server maintenance finished, next lockdown at %s", w.lockdown.Next.Format(time.DateTime))
}

func (w *World) lockdownMessage(remaining time.Duration) {
	seconds := int64(remaining / time.Second)
	if seconds == w.lockdown.lastAnnounced || !announceAt(seconds) {
		return
	}
	w.lockdown.lastAnnounced = seconds
	w.SendWorldText(text.LockdownTime, utils.FormatCountdown(remaining.Truncate(time.Second)))
}

func (w *World) runMaintenance() {
	tasks := w.cfg.Lockdown.Tasks
	hooks := w.hooks.Maintenance
	logger.InfoF("Running maintenance tasks %#x", uint32(tasks))
	if tasks&TaskDistributeArenaPoints != 0 {
		w.stage("maintenance.arena_points", hooks.DistributeArenaPoints)
	}
	if tasks&TaskEraseCorpses != 0 {
		w.stage("maintenance.erase_corpses", hooks.EraseCorpses)
	}
	if tasks&TaskUnloadMaps != 0 {
		w.stage("maintenance.unload_maps", hooks.UnloadMaps)
	}
	if tasks&TaskReloadAll != 0 {
		w.stage("maintenance.reload_all", hooks.ReloadAll)
	}
}
