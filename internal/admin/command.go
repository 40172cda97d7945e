// Package admin 解析并投递管理命令, 命令在主循环中执行后回复结果
package admin

import (
	"context"
	"errors"
	"fmt"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/account"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/utils"
	"strconv"
	"strings"
	"sync"
	"time"
)

type Kind uint8

const (
	KindShutdown Kind = iota
	KindShutdownCancel
	KindKick
	KindKickAll
	KindBan
	KindUnban
	KindAnnounce
	KindPlayerLimit
)

var kindNames = map[Kind]string{
	KindShutdown:       "shutdown",
	KindShutdownCancel: "shutdown_cancel",
	KindKick:           "kick",
	KindKickAll:        "kickall",
	KindBan:            "ban",
	KindUnban:          "unban",
	KindAnnounce:       "announce",
	KindPlayerLimit:    "limit",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

type Status uint8

const (
	StatusOK Status = iota
	StatusNotFound
	StatusMalformed
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotFound:
		return "not_found"
	case StatusMalformed:
		return "malformed"
	default:
		return "failed"
	}
}

func ParseStatus(value string) (Status, bool) {
	for _, s := range []Status{StatusOK, StatusNotFound, StatusMalformed, StatusFailed} {
		if s.String() == value {
			return s, true
		}
	}
	return StatusFailed, false
}

type Result struct {
	Status  Status
	Message string
}

var (
	ErrMalformed = errors.New("malformed command")
	ErrNoReply   = errors.New("command was not answered in time")
)

// Command 一条待执行的管理命令
type Command struct {
	Kind     Kind
	Author   string
	Delay    time.Duration
	Restart  bool
	Idle     bool
	ExitCode int
	Target   string
	Mode     account.BanMode
	// Duration 为 0 表示永久封禁
	Duration time.Duration
	Reason   string
	Text     string
	Limit    int

	once  sync.Once
	reply chan Result
}

func newCommand(kind Kind, author string) *Command {
	return &Command{Kind: kind, Author: author, reply: make(chan Result, 1)}
}

// Reply 只有第一次调用生效
func (c *Command) Reply(status Status, format string, args ...any) {
	c.once.Do(func() {
		c.reply <- Result{Status: status, Message: fmt.Sprintf(format, args...)}
	})
}

func (c *Command) Wait(ctx context.Context) (Result, error) {
	select {
	case result := <-c.reply:
		return result, nil
	case <-ctx.Done():
		return Result{Status: StatusFailed, Message: ErrNoReply.Error()}, ErrNoReply
	}
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// Parse 解析文本命令:
//
//	shutdown <delay> [idle] [restart] [exitcode]
//	restart <delay> [idle] [exitcode]
//	shutdown cancel
//	kick <name>
//	kickall
//	ban <account|character|ip> <target> <duration|perm> <reason...>
//	unban <account|character|ip> <target>
//	announce <text...>
//	limit <n>
func Parse(line string, author string) (*Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, malformed("empty command")
	}
	verb := strings.ToLower(fields[0])
	args := fields[1:]

	switch verb {
	case "shutdown", "restart":
		if len(args) == 1 && strings.EqualFold(args[0], "cancel") {
			return newCommand(KindShutdownCancel, author), nil
		}
		return parseShutdown(verb == "restart", args, author)
	case "kick":
		if len(args) != 1 {
			return nil, malformed("usage: kick <name>")
		}
		cmd := newCommand(KindKick, author)
		cmd.Target = args[0]
		return cmd, nil
	case "kickall":
		if len(args) != 0 {
			return nil, malformed("usage: kickall")
		}
		return newCommand(KindKickAll, author), nil
	case "ban":
		return parseBan(args, author)
	case "unban":
		if len(args) != 2 {
			return nil, malformed("usage: unban <account|character|ip> <target>")
		}
		mode, ok := account.ParseBanMode(args[0])
		if !ok {
			return nil, malformed("unknown ban mode %q", args[0])
		}
		cmd := newCommand(KindUnban, author)
		cmd.Mode = mode
		cmd.Target = args[1]
		return cmd, nil
	case "announce":
		if len(args) == 0 {
			return nil, malformed("usage: announce <text>")
		}
		cmd := newCommand(KindAnnounce, author)
		cmd.Text = strings.Join(args, " ")
		return cmd, nil
	case "limit":
		if len(args) != 1 {
			return nil, malformed("usage: limit <n>")
		}
		limit, err := strconv.Atoi(args[0])
		if err != nil || limit < 0 {
			return nil, malformed("invalid player limit %q", args[0])
		}
		cmd := newCommand(KindPlayerLimit, author)
		cmd.Limit = limit
		return cmd, nil
	default:
		return nil, malformed("unknown command %q", verb)
	}
}

func parseShutdown(restart bool, args []string, author string) (*Command, error) {
	if len(args) == 0 {
		return nil, malformed("usage: shutdown <delay> [idle] [restart] [exitcode]")
	}
	delay, err := utils.ParseDuration(args[0])
	if err != nil {
		return nil, malformed("invalid delay %q", args[0])
	}

	cmd := newCommand(KindShutdown, author)
	cmd.Delay = delay
	cmd.Restart = restart
	cmd.ExitCode = -1
	for _, arg := range args[1:] {
		switch strings.ToLower(arg) {
		case "idle":
			cmd.Idle = true
		case "restart":
			cmd.Restart = true
		default:
			code, err := strconv.Atoi(arg)
			if err != nil || code < 0 || code > 255 || cmd.ExitCode >= 0 {
				return nil, malformed("unexpected argument %q", arg)
			}
			cmd.ExitCode = code
		}
	}
	return cmd, nil
}

func parseBan(args []string, author string) (*Command, error) {
	if len(args) < 4 {
		return nil, malformed("usage: ban <account|character|ip> <target> <duration|perm> <reason>")
	}
	mode, ok := account.ParseBanMode(args[0])
	if !ok {
		return nil, malformed("unknown ban mode %q", args[0])
	}

	cmd := newCommand(KindBan, author)
	cmd.Mode = mode
	cmd.Target = args[1]
	switch strings.ToLower(args[2]) {
	case "perm", "permanent", "-1":
		cmd.Duration = 0
	default:
		duration, err := utils.ParseDuration(args[2])
		if err != nil || duration == 0 {
			return nil, malformed("invalid ban duration %q", args[2])
		}
		cmd.Duration = duration
	}
	cmd.Reason = strings.Join(args[3:], " ")
	return cmd, nil
}

// Submitter 由世界实现, 命令在下一次 tick 执行
type Submitter interface {
	QueueCommand(cmd *Command) bool
}

// Execute 解析、投递并等待命令结果
func Execute(ctx context.Context, submitter Submitter, line string, author string) Result {
	cmd, err := Parse(line, author)
	if err != nil {
		return Result{Status: StatusMalformed, Message: err.Error()}
	}
	if !submitter.QueueCommand(cmd) {
		return Result{Status: StatusFailed, Message: "world is not accepting commands"}
	}
	result, _ := cmd.Wait(ctx)
	return result
}
