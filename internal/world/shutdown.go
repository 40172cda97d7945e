package world

import (
	"github.com/life-stream-dev/life-stream-go-world-server/internal/logger"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/protocol"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/text"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/utils"
	"time"
)

const (
	ShutdownExitCode = 0
	RestartExitCode  = 2
)

type ShutdownMask uint8

const (
	ShutdownMaskRestart ShutdownMask = 1 << iota
	// ShutdownMaskIdle 仍有会话时不结束, 且不发送倒计时公告
	ShutdownMaskIdle
)

type ShutdownPhase uint8

const (
	ShutdownPhaseIdle ShutdownPhase = iota
	ShutdownPhaseCountingDown
	ShutdownPhaseTriggered
)

func (p ShutdownPhase) String() string {
	switch p {
	case ShutdownPhaseIdle:
		return "idle"
	case ShutdownPhaseCountingDown:
		return "counting_down"
	default:
		return "triggered"
	}
}

type ShutdownState struct {
	Phase     ShutdownPhase
	Remaining time.Duration
	Mask      ShutdownMask
	ExitCode  int
}

func (s ShutdownState) Restart() bool {
	return s.Mask&ShutdownMaskRestart != 0
}

func (s ShutdownState) Idle() bool {
	return s.Mask&ShutdownMaskIdle != 0
}

func (w *World) ShutdownState() ShutdownState {
	return w.shutdown
}

func (w *World) ExitCode() int {
	return w.shutdown.ExitCode
}

// ShutdownServer 开始关服倒计时, exitCode 小于 0 时按是否重启选择默认值
// 已经触发关服后调用无效
func (w *World) ShutdownServer(delay time.Duration, mask ShutdownMask, exitCode int) {
	if w.shutdown.Phase == ShutdownPhaseTriggered {
		return
	}
	if exitCode < 0 {
		exitCode = ShutdownExitCode
		if mask&ShutdownMaskRestart != 0 {
			exitCode = RestartExitCode
		}
	}
	w.shutdown.Mask = mask
	w.shutdown.ExitCode = exitCode

	delay = delay.Truncate(time.Second)
	if delay <= 0 {
		if w.canStop() {
			w.triggerShutdown()
			return
		}
		w.shutdown.Phase = ShutdownPhaseCountingDown
		w.shutdown.Remaining = time.Second
		return
	}

	w.shutdown.Phase = ShutdownPhaseCountingDown
	w.shutdown.Remaining = delay
	w.shutdownMessage(true)
}

// CancelShutdown 返回 false 表示没有进行中的倒计时
func (w *World) CancelShutdown() bool {
	if w.shutdown.Phase != ShutdownPhaseCountingDown {
		return false
	}
	messageType := protocol.ServerMsgShutdownCancelled
	key := text.ShutdownCancelled
	if w.shutdown.Restart() {
		messageType = protocol.ServerMsgRestartCancelled
		key = text.RestartCancelled
	}
	w.shutdown = ShutdownState{Phase: ShutdownPhaseIdle, ExitCode: ShutdownExitCode}
	w.SendServerMessage(messageType, w.text.Sprintf(key), nil)
	logger.Info("Server shutdown cancelled")
	return true
}

func (w *World) canStop() bool {
	return w.shutdown.Mask&ShutdownMaskIdle == 0 || w.sessions.ActiveAndQueuedCount() == 0
}

func (w *World) triggerShutdown() {
	w.shutdown.Phase = ShutdownPhaseTriggered
	w.shutdown.Remaining = 0
	w.stopped.Store(true)
	logger.InfoF("Server shutdown triggered, exit code %d", w.shutdown.ExitCode)
}

// advanceShutdown 按游戏时间推进倒计时
func (w *World) advanceShutdown(elapsed time.Duration) {
	if w.shutdown.Phase != ShutdownPhaseCountingDown || elapsed <= 0 {
		return
	}
	if w.shutdown.Remaining <= elapsed {
		if w.canStop() {
			w.triggerShutdown()
			return
		}
		// 空闲关服: 停在最后一秒直到没有会话
		w.shutdown.Remaining = time.Second
		return
	}
	w.shutdown.Remaining -= elapsed
	w.shutdownMessage(false)
}

func (w *World) shutdownMessage(show bool) {
	if w.shutdown.Idle() {
		return
	}
	seconds := int64(w.shutdown.Remaining / time.Second)
	if !show && !announceAt(seconds) {
		return
	}
	messageType, key, kind := protocol.ServerMsgShutdownTime, text.ShutdownTime, "shutdown"
	if w.shutdown.Restart() {
		messageType, key, kind = protocol.ServerMsgRestartTime, text.RestartTime, "restart"
	}
	countdown := utils.FormatCountdown(w.shutdown.Remaining)
	w.SendServerMessage(messageType, w.text.Sprintf(key, countdown), nil)
	logger.InfoF("Server %s in %s", kind, countdown)
}

// announceAt 倒计时公告节奏
func announceAt(seconds int64) bool {
	const (
		minute = 60
		hour   = 60 * minute
	)
	switch {
	case seconds < 10:
		return true
	case seconds < 30:
		return seconds%5 == 0
	case seconds < 5*minute:
		return seconds%minute == 0
	case seconds < 30*minute:
		return seconds%(5*minute) == 0
	case seconds < 12*hour:
		return seconds%hour == 0
	case seconds > 12*hour:
		return seconds%(12*hour) == 0
	default:
		return false
	}
}
