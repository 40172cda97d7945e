package server

import (
	"context"
	"encoding/json"
	"github.com/gorilla/websocket"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/account"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/connection"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/database"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/protocol"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/session"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type fakeWorld struct {
	sessions chan *session.Session
	locked   atomic.Bool
	stopped  atomic.Bool
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{sessions: make(chan *session.Session, 4)}
}

func (f *fakeWorld) AddSession(s *session.Session) { f.sessions <- s }
func (f *fakeWorld) LockedDown() bool              { return f.locked.Load() }
func (f *fakeWorld) Stopped() bool                 { return f.stopped.Load() }
func (f *fakeWorld) OnlineCount() (int, int)       { return 3, 1 }

func newTestServer(t *testing.T, world *fakeWorld) (*httptest.Server, *database.MemoryStore) {
	t.Helper()
	store := database.NewMemoryStore()
	ctx := context.Background()
	for _, a := range []account.Account{
		{ID: 1, Username: "alice", Security: account.SecurityPlayer},
		{ID: 2, Username: "gm", Security: account.SecurityGameMaster},
		{ID: 3, Username: "mallory", Security: account.SecurityPlayer},
	} {
		if err := store.SaveAccount(ctx, a); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := store.Ban(ctx, account.Ban{Mode: account.BanAccount, Target: "mallory", Start: time.Now(), Reason: "test"}); err != nil {
		t.Fatal(err)
	}

	manager := connection.NewManager()
	s := New(Options{AuthTimeout: time.Second, MaxConnections: 8}, world, store, manager)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		_ = manager.Invoke(context.Background())
		ts.Close()
	})
	return ts, store
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readAuthResponse(t *testing.T, conn *websocket.Conn) protocol.AuthResponse {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var response protocol.AuthResponse
	if err := conn.ReadJSON(&response); err != nil {
		t.Fatal(err)
	}
	if response.Type != protocol.TypeAuthResponse {
		t.Fatalf("expected auth response, got %+v", response)
	}
	return response
}

func TestHandshakeRejections(t *testing.T) {
	tests := []struct {
		name    string
		message any
		locked  bool
		stopped bool
		want    protocol.AuthStatus
	}{
		{"not auth", map[string]any{"type": "heartbeat"}, false, false, protocol.AuthFailed},
		{"unknown account", map[string]any{"type": "auth", "account": "nobody"}, false, false, protocol.AuthUnknownAccount},
		{"banned", map[string]any{"type": "auth", "account": "mallory"}, false, false, protocol.AuthBanned},
		{"locked", map[string]any{"type": "auth", "account": "alice"}, true, false, protocol.AuthServerLocked},
		{"stopping", map[string]any{"type": "auth", "account": "alice"}, false, true, protocol.AuthServerShuttingDown},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			world := newFakeWorld()
			world.locked.Store(test.locked)
			world.stopped.Store(test.stopped)
			ts, _ := newTestServer(t, world)

			conn := dial(t, ts)
			if err := conn.WriteJSON(test.message); err != nil {
				t.Fatal(err)
			}
			if response := readAuthResponse(t, conn); response.Status != test.want {
				t.Errorf("expected %s, got %s", test.want, response.Status)
			}
			if len(world.sessions) != 0 {
				t.Error("rejected connection must not reach the world")
			}
		})
	}
}

func TestHandshakeAdmitsSession(t *testing.T) {
	world := newFakeWorld()
	world.locked.Store(true)
	ts, store := newTestServer(t, world)

	conn := dial(t, ts)
	if err := conn.WriteJSON(map[string]any{"type": "auth", "account": "GM"}); err != nil {
		t.Fatal(err)
	}

	var s *session.Session
	select {
	case s = <-world.sessions:
	case <-time.After(2 * time.Second):
		t.Fatal("session was not handed to the world")
	}
	if s.AccountID() != 2 || s.Security() != account.SecurityGameMaster {
		t.Errorf("unexpected session %d %s", s.AccountID(), s.Security())
	}

	s.Conn().SendAuthResponse(protocol.AuthWaitQueue, 3)
	if response := readAuthResponse(t, conn); response.Status != protocol.AuthWaitQueue || response.QueuePosition != 3 {
		t.Errorf("unexpected auth response %+v", response)
	}

	message := map[string]any{"type": "loading", "character": "Uther", "zone": 12}
	if err := conn.WriteJSON(message); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for s.CharacterName() == "" && time.Now().Before(deadline) {
		if !s.Conn().Update(10 * time.Millisecond) {
			t.Fatal("connection closed unexpectedly")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if s.CharacterName() != "Uther" || s.Zone() != 12 || !s.InWorld() {
		t.Errorf("expected character in world, got %q zone %d", s.CharacterName(), s.Zone())
	}

	saved, err := store.FindAccount(context.Background(), "gm")
	if err != nil || saved.LastIP != "127.0.0.1" {
		t.Errorf("expected last ip to be recorded, got %+v %v", saved, err)
	}

	s.Kick()
	if s.Conn().Update(0) {
		t.Error("kicked connection must report closed")
	}
}

func TestHealth(t *testing.T) {
	world := newFakeWorld()
	ts, _ := newTestServer(t, world)

	response, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer response.Body.Close()
	var body healthResponse
	if err := json.NewDecoder(response.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if response.StatusCode != http.StatusOK || body.Online != 3 || body.Queued != 1 || body.Status != "ok" {
		t.Errorf("unexpected health %d %+v", response.StatusCode, body)
	}

	world.stopped.Store(true)
	response, err = http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 while stopping, got %d", response.StatusCode)
	}
}
