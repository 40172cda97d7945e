package world

import (
	"context"
	"errors"
	"fmt"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/account"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/admin"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/database"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/logger"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/protocol"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/session"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/text"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/utils"
	"strings"
	"time"
)

func (w *World) processCommands() error {
	for _, cmd := range w.commands.Drain() {
		completed := w.stage("command."+cmd.Kind.String(), func() error {
			w.executeCommand(cmd)
			return nil
		})
		// ban、unban 在数据库回调中回复, 只有 panic 时才补发失败
		if !completed {
			cmd.Reply(admin.StatusFailed, "command %s failed", cmd.Kind)
		}
	}
	return nil
}

func (w *World) executeCommand(cmd *admin.Command) {
	w.audit(cmd)

	switch cmd.Kind {
	case admin.KindShutdown:
		if w.shutdown.Phase == ShutdownPhaseTriggered {
			cmd.Reply(admin.StatusFailed, "server is already shutting down")
			return
		}
		var mask ShutdownMask
		if cmd.Restart {
			mask |= ShutdownMaskRestart
		}
		if cmd.Idle {
			mask |= ShutdownMaskIdle
		}
		w.ShutdownServer(cmd.Delay, mask, cmd.ExitCode)
		kind := "shutdown"
		if cmd.Restart {
			kind = "restart"
		}
		cmd.Reply(admin.StatusOK, "server %s in %s", kind, utils.FormatCountdown(cmd.Delay))

	case admin.KindShutdownCancel:
		if !w.CancelShutdown() {
			cmd.Reply(admin.StatusNotFound, "no shutdown in progress")
			return
		}
		cmd.Reply(admin.StatusOK, "shutdown cancelled")

	case admin.KindKick:
		if !w.KickPlayer(cmd.Target) {
			cmd.Reply(admin.StatusNotFound, "player %s is not online", cmd.Target)
			return
		}
		cmd.Reply(admin.StatusOK, "player %s kicked", cmd.Target)

	case admin.KindKickAll:
		count := w.sessions.ActiveAndQueuedCount()
		w.KickAll()
		cmd.Reply(admin.StatusOK, "%d sessions kicked", count)

	case admin.KindBan:
		w.BanAccount(cmd.Mode, cmd.Target, cmd.Duration, cmd.Reason, cmd.Author, func(status account.BanStatus, err error) {
			switch {
			case err != nil:
				cmd.Reply(admin.StatusFailed, "ban %s failed: %v", cmd.Target, err)
			case status == account.BanNotFound:
				cmd.Reply(admin.StatusNotFound, "%s %s not found", cmd.Mode, cmd.Target)
			case status == account.BanSyntaxError:
				cmd.Reply(admin.StatusMalformed, "invalid ban target")
			default:
				cmd.Reply(admin.StatusOK, "%s %s banned", cmd.Mode, cmd.Target)
			}
		})

	case admin.KindUnban:
		w.RemoveBan(cmd.Mode, cmd.Target, func(found bool, err error) {
			switch {
			case err != nil:
				cmd.Reply(admin.StatusFailed, "unban %s failed: %v", cmd.Target, err)
			case !found:
				cmd.Reply(admin.StatusNotFound, "no ban found for %s %s", cmd.Mode, cmd.Target)
			default:
				cmd.Reply(admin.StatusOK, "%s %s unbanned", cmd.Mode, cmd.Target)
			}
		})

	case admin.KindAnnounce:
		w.SendWorldText(text.Announce, cmd.Author, cmd.Text)
		cmd.Reply(admin.StatusOK, "announced")

	case admin.KindPlayerLimit:
		w.sessions.SetPlayerLimit(cmd.Limit)
		cmd.Reply(admin.StatusOK, "player limit set to %d", cmd.Limit)

	default:
		cmd.Reply(admin.StatusMalformed, "unsupported command %s", cmd.Kind)
	}
}

func (w *World) audit(cmd *admin.Command) {
	at := w.gameTime
	entry := fmt.Sprintf("%s executed %s %s", cmd.Author, cmd.Kind, cmd.Target)
	w.results.Execute("audit", func(ctx context.Context) error {
		return w.store.AppendLog(ctx, at, strings.TrimSpace(entry))
	})
}

// KickPlayer 按角色名踢出, 返回 false 表示不在线
func (w *World) KickPlayer(name string) bool {
	s, ok := w.sessions.FindByName(name)
	if !ok {
		return false
	}
	s.Send(protocol.NewKick(w.text.Sprintf(text.Kicked)))
	s.Kick()
	return true
}

func (w *World) KickAll() {
	w.sessions.Each(func(s *session.Session) {
		s.Send(protocol.NewKick(w.text.Sprintf(text.Kicked)))
	})
	w.sessions.KickAll()
}

// KickAllLess 踢出权限低于 security 的会话
func (w *World) KickAllLess(security account.Security) int {
	return w.sessions.KickAllLess(security)
}

// BanAccount 在工作协程写入封禁, done 在主循环执行
// 受影响的在线会话被踢出, 作者本人除外
func (w *World) BanAccount(mode account.BanMode, target string, duration time.Duration, reason string, author string, done func(account.BanStatus, error)) {
	target = strings.TrimSpace(target)
	if target == "" {
		done(account.BanSyntaxError, nil)
		return
	}
	ban := account.Ban{
		Mode:   mode,
		Target: target,
		Start:  w.gameTime,
		Author: author,
		Reason: reason,
		Active: true,
	}
	if duration > 0 {
		ban.End = w.gameTime.Add(duration)
	}

	database.QueryErr(w.results, "ban "+mode.String(), func(ctx context.Context) ([]uint32, error) {
		return w.store.Ban(ctx, ban)
	}, func(accounts []uint32, err error) {
		if errors.Is(err, database.ErrNotFound) {
			done(account.BanNotFound, nil)
			return
		}
		if errors.Is(err, database.ErrEmptyTarget) {
			done(account.BanSyntaxError, nil)
			return
		}
		if err != nil {
			done(account.BanSuccess, err)
			return
		}
		kicked := 0
		for _, id := range accounts {
			s, ok := w.sessions.Find(id)
			if !ok || strings.EqualFold(s.CharacterName(), author) {
				continue
			}
			s.Send(protocol.NewKick(w.text.Sprintf(text.Banned, reason)))
			s.Kick()
			kicked++
		}
		logger.InfoF("%s banned %s %s (%s), %d sessions kicked", author, mode, target, reason, kicked)
		done(account.BanSuccess, nil)
	})
}

// RemoveBan done 在主循环执行
func (w *World) RemoveBan(mode account.BanMode, target string, done func(found bool, err error)) {
	target = strings.TrimSpace(target)
	if target == "" {
		done(false, nil)
		return
	}
	database.QueryErr(w.results, "unban "+mode.String(), func(ctx context.Context) (bool, error) {
		return w.store.Unban(ctx, mode, target)
	}, done)
}
