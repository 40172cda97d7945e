package connection

import (
	"errors"
	"fmt"
	"github.com/gorilla/websocket"
	"net"
	"testing"
)

func TestIsNetClosedError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{net.ErrClosed, true},
		{fmt.Errorf("write: %w", net.ErrClosed), true},
		{websocket.ErrCloseSent, true},
		{errors.New("boom"), false},
		{&net.OpError{Op: "read", Err: errors.New("reset")}, false},
	}
	for _, test := range tests {
		if got := IsNetClosedError(test.err); got != test.want {
			t.Errorf("IsNetClosedError(%v) = %v, want %v", test.err, got, test.want)
		}
	}
}

func TestManagerEmpty(t *testing.T) {
	manager := NewManager()
	if manager.Count() != 0 {
		t.Errorf("expected empty manager, got %d", manager.Count())
	}
	if _, ok := manager.Get("missing"); ok {
		t.Error("expected missing client")
	}
	if err := manager.Invoke(t.Context()); err != nil {
		t.Errorf("closing an empty manager failed: %v", err)
	}
}
