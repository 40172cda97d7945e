package admin

import (
	"context"
	"errors"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/account"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		line  string
		check func(t *testing.T, cmd *Command)
	}{
		{"shutdown 90", func(t *testing.T, cmd *Command) {
			if cmd.Kind != KindShutdown || cmd.Delay != 90*time.Second || cmd.Restart || cmd.Idle || cmd.ExitCode != -1 {
				t.Errorf("unexpected command %+v", cmd)
			}
		}},
		{"shutdown 1h30m idle 3", func(t *testing.T, cmd *Command) {
			if cmd.Delay != 90*time.Minute || !cmd.Idle || cmd.ExitCode != 3 {
				t.Errorf("unexpected command %+v", cmd)
			}
		}},
		{"restart 10s", func(t *testing.T, cmd *Command) {
			if cmd.Kind != KindShutdown || !cmd.Restart || cmd.Delay != 10*time.Second {
				t.Errorf("unexpected command %+v", cmd)
			}
		}},
		{"SHUTDOWN cancel", func(t *testing.T, cmd *Command) {
			if cmd.Kind != KindShutdownCancel {
				t.Errorf("expected cancel, got %v", cmd.Kind)
			}
		}},
		{"kick Arthas", func(t *testing.T, cmd *Command) {
			if cmd.Kind != KindKick || cmd.Target != "Arthas" {
				t.Errorf("unexpected command %+v", cmd)
			}
		}},
		{"kickall", func(t *testing.T, cmd *Command) {
			if cmd.Kind != KindKickAll {
				t.Errorf("expected kickall, got %v", cmd.Kind)
			}
		}},
		{"ban character Arthas 1d gold selling", func(t *testing.T, cmd *Command) {
			if cmd.Kind != KindBan || cmd.Mode != account.BanCharacter || cmd.Target != "Arthas" ||
				cmd.Duration != 24*time.Hour || cmd.Reason != "gold selling" {
				t.Errorf("unexpected command %+v", cmd)
			}
		}},
		{"ban ip 10.0.0.1 perm spam", func(t *testing.T, cmd *Command) {
			if cmd.Mode != account.BanIP || cmd.Duration != 0 {
				t.Errorf("unexpected command %+v", cmd)
			}
		}},
		{"unban account alice", func(t *testing.T, cmd *Command) {
			if cmd.Kind != KindUnban || cmd.Mode != account.BanAccount || cmd.Target != "alice" {
				t.Errorf("unexpected command %+v", cmd)
			}
		}},
		{"announce raid starts  soon", func(t *testing.T, cmd *Command) {
			if cmd.Kind != KindAnnounce || cmd.Text != "raid starts soon" {
				t.Errorf("unexpected command %+v", cmd)
			}
		}},
		{"limit 250", func(t *testing.T, cmd *Command) {
			if cmd.Kind != KindPlayerLimit || cmd.Limit != 250 {
				t.Errorf("unexpected command %+v", cmd)
			}
		}},
	}

	for _, test := range tests {
		cmd, err := Parse(test.line, "console")
		if err != nil {
			t.Errorf("%q: unexpected error %v", test.line, err)
			continue
		}
		if cmd.Author != "console" {
			t.Errorf("%q: expected author console, got %q", test.line, cmd.Author)
		}
		test.check(t, cmd)
	}
}

func TestParseMalformed(t *testing.T) {
	lines := []string{
		"",
		"   ",
		"dance",
		"shutdown",
		"shutdown soon",
		"shutdown 10 idle 1 2",
		"shutdown 10 300",
		"kick",
		"kick a b",
		"kickall now",
		"ban account alice 1d",
		"ban guild alice 1d reason",
		"ban account alice forever reason",
		"ban account alice 0 reason",
		"unban account",
		"unban realm alice",
		"announce",
		"limit",
		"limit -1",
		"limit many",
	}
	for _, line := range lines {
		if _, err := Parse(line, "console"); !errors.Is(err, ErrMalformed) {
			t.Errorf("%q: expected ErrMalformed, got %v", line, err)
		}
	}
}

func TestReplyOnlyOnce(t *testing.T) {
	cmd := newCommand(KindKickAll, "console")
	cmd.Reply(StatusOK, "kicked %d", 3)
	cmd.Reply(StatusFailed, "ignored")

	result, err := cmd.Wait(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != StatusOK || result.Message != "kicked 3" {
		t.Errorf("unexpected result %+v", result)
	}
}

type fakeSubmitter struct {
	accept bool
	status Status
	got    []*Command
}

func (f *fakeSubmitter) QueueCommand(cmd *Command) bool {
	if !f.accept {
		return false
	}
	f.got = append(f.got, cmd)
	go cmd.Reply(f.status, "done")
	return true
}

func TestExecute(t *testing.T) {
	ctx := context.Background()

	submitter := &fakeSubmitter{accept: true, status: StatusNotFound}
	result := Execute(ctx, submitter, "kick nobody", "console")
	if result.Status != StatusNotFound || len(submitter.got) != 1 {
		t.Errorf("expected not-found from submitter, got %+v", result)
	}

	result = Execute(ctx, submitter, "ban account", "console")
	if result.Status != StatusMalformed || len(submitter.got) != 1 {
		t.Errorf("expected malformed without submitting, got %+v", result)
	}

	result = Execute(ctx, &fakeSubmitter{accept: false}, "kickall", "console")
	if result.Status != StatusFailed {
		t.Errorf("expected failure when world refuses, got %+v", result)
	}
}

type silentSubmitter struct{}

func (silentSubmitter) QueueCommand(*Command) bool { return true }

func TestExecuteTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	result := Execute(ctx, silentSubmitter{}, "kickall", "console")
	if result.Status != StatusFailed || result.Message != ErrNoReply.Error() {
		t.Errorf("expected timeout result, got %+v", result)
	}
}
