package timer

import (
	"testing"
	"time"
)

func TestIntervalPassedAndReset(t *testing.T) {
	var timer Interval
	timer.SetInterval(time.Second)

	timer.Update(600 * time.Millisecond)
	if timer.Passed() {
		t.Fatal("timer should not pass before its interval")
	}
	timer.Update(700 * time.Millisecond)
	if !timer.Passed() {
		t.Fatal("timer should pass after its interval")
	}
	timer.Reset()
	if timer.Current() != 300*time.Millisecond {
		t.Errorf("expected remainder 300ms, got %v", timer.Current())
	}
}

func TestBankSkipsStoppedTimers(t *testing.T) {
	var bank Bank
	bank.Get(Uptime).SetInterval(time.Second)
	bank.Get(Corpses).SetInterval(time.Second)
	bank.Get(Corpses).Stop()

	bank.Advance(2 * time.Second)
	if !bank.Passed(Uptime) {
		t.Error("expected uptime timer to pass")
	}
	if bank.Passed(Corpses) {
		t.Error("stopped timer must not pass")
	}
	if !bank.Get(Corpses).Stopped() {
		t.Error("advance must not resume a stopped timer")
	}

	bank.Get(Corpses).Resume()
	bank.Advance(time.Second)
	if !bank.Passed(Corpses) {
		t.Error("resumed timer should advance again")
	}
}

func TestBankZeroIntervalPassesEveryTick(t *testing.T) {
	var bank Bank
	for i := 0; i < 3; i++ {
		bank.Advance(50 * time.Millisecond)
		if !bank.Passed(Sessions) {
			t.Fatalf("zero interval timer should pass on tick %d", i)
		}
	}
}

func TestIDString(t *testing.T) {
	if Objects.String() != "objects" || ID(99).String() != "unknown" {
		t.Errorf("unexpected names %s %s", Objects, ID(99))
	}
}
