package world

import (
	"github.com/life-stream-dev/life-stream-go-world-server/internal/database"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/script"
	"testing"
	"time"
)

type npc struct {
	id script.Identity
}

func (n *npc) Identity() script.Identity { return n.id }

func TestScriptsRunOnObjectStage(t *testing.T) {
	directory := script.NewDirectory()
	units := script.NewMapRegistry[*npc]()
	directory.Register(script.KindUnit, units)
	guard := &npc{id: script.Identity{Kind: script.KindUnit, ID: 7}}
	units.Add(guard)

	var said []uint32
	dispatcher := script.NewDispatcher()
	dispatcher.Handle(script.CommandTalk, script.NeedSource, func(step *script.Step, source, _ script.Actor) error {
		if source != guard {
			t.Errorf("unexpected source %v", source)
		}
		said = append(said, step.DataLong)
		return nil
	})

	clock := &fakeClock{now: epoch}
	results := database.NewResultQueue(time.Second)
	defer results.Invoke(t.Context())
	w := New(testConfig(), Deps{Clock: clock, Results: results, Resolver: directory, Executor: dispatcher})
	if err := w.Init(t.Context()); err != nil {
		t.Fatal(err)
	}

	library := script.NewLibrary("event")
	library.Add(1, script.Step{ID: 1, Command: script.CommandTalk, Delay: 2 * time.Second, DataLong: 20})
	library.Add(1, script.Step{ID: 2, Command: script.CommandTalk, DataLong: 10})
	if started := w.Scripts().Start(library, 1, guard, nil, false); started != 2 {
		t.Fatalf("expected 2 steps scheduled, got %d", started)
	}

	tick(w, clock)
	if len(said) != 1 || said[0] != 10 {
		t.Fatalf("expected the immediate step after one tick, got %v", said)
	}
	tick(w, clock)
	if len(said) != 2 || said[1] != 20 {
		t.Errorf("expected delayed step at two seconds, got %v", said)
	}
	if !w.Scripts().Empty() {
		t.Error("expected scheduler to be drained")
	}
}

func TestScriptDelaysUseWholeSecondGameTime(t *testing.T) {
	var ran []uint32
	dispatcher := script.NewDispatcher()
	dispatcher.Handle(script.CommandTalk, 0, func(step *script.Step, _, _ script.Actor) error {
		ran = append(ran, step.ID)
		return nil
	})

	clock := &fakeClock{now: epoch}
	results := database.NewResultQueue(time.Second)
	defer results.Invoke(t.Context())
	w := New(testConfig(), Deps{Clock: clock, Results: results, Executor: dispatcher})
	if err := w.Init(t.Context()); err != nil {
		t.Fatal(err)
	}

	clock.Add(900 * time.Millisecond)
	w.Update(900 * time.Millisecond)
	if !w.GameTime().Equal(epoch) {
		t.Fatalf("expected game time truncated to %v, got %v", epoch, w.GameTime())
	}
	step := &script.Step{ID: 1, Command: script.CommandTalk, Delay: 1500 * time.Millisecond}
	w.Scripts().StartStep(step, step.Delay, nil, nil)

	clock.now = epoch.Add(1900 * time.Millisecond)
	w.Update(time.Second)
	if len(ran) != 0 {
		t.Fatalf("step must wait for game second 2, ran %v", ran)
	}
	clock.now = epoch.Add(2 * time.Second)
	w.Update(100 * time.Millisecond)
	if len(ran) != 1 {
		t.Errorf("expected the step at game second 2, ran %v", ran)
	}
}
