package database

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestResultQueueCallbacksRunOnUpdate(t *testing.T) {
	results := NewResultQueue(time.Second)
	defer func() { _ = results.Invoke(context.Background()) }()

	var order []string
	executed := make(chan struct{}, 1)
	results.Execute("first", func(ctx context.Context) error {
		executed <- struct{}{}
		return nil
	})
	Query(results, "second", func(ctx context.Context) (int, error) {
		return 42, nil
	}, func(result int, ok bool) {
		if !ok || result != 42 {
			t.Errorf("unexpected result %d %v", result, ok)
		}
		order = append(order, "second")
	})
	Query(results, "third", func(ctx context.Context) (string, error) {
		return "ignored", errors.New("connection reset")
	}, func(result string, ok bool) {
		if ok || result != "" {
			t.Errorf("failed query should yield an absent result, got %q %v", result, ok)
		}
		order = append(order, "third")
	})

	results.Wait()
	<-executed
	if len(order) != 0 {
		t.Fatal("callbacks must not run before Update")
	}
	if n := results.Update(); n != 2 {
		t.Fatalf("expected 2 callbacks, got %d", n)
	}
	if len(order) != 2 || order[0] != "second" || order[1] != "third" {
		t.Errorf("unexpected callback order %v", order)
	}
}

func TestResultQueueQueryErr(t *testing.T) {
	results := NewResultQueue(time.Second)
	defer func() { _ = results.Invoke(context.Background()) }()

	var got error
	QueryErr(results, "lookup", func(ctx context.Context) (int, error) {
		return 0, ErrNotFound
	}, func(result int, err error) {
		got = err
	})
	results.Wait()
	results.Update()
	if !errors.Is(got, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", got)
	}
}

func TestResultQueueRejectsAfterClose(t *testing.T) {
	results := NewResultQueue(time.Second)
	if err := results.Invoke(context.Background()); err != nil {
		t.Fatal(err)
	}

	called := false
	Query(results, "late", func(ctx context.Context) (int, error) {
		return 1, nil
	}, func(result int, ok bool) {
		called = true
		if ok {
			t.Error("query after close must fail")
		}
	})
	results.Update()
	if !called {
		t.Error("callback should still be delivered")
	}
}
