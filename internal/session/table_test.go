package session

import (
	"github.com/life-stream-dev/life-stream-go-world-server/internal/account"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/protocol"
	"testing"
	"time"
)

type authReply struct {
	status   protocol.AuthStatus
	position int
}

type fakeConn struct {
	alive    bool
	loading  bool
	kicked   bool
	name     string
	zone     uint32
	replies  []authReply
	messages []any
}

func newFakeConn() *fakeConn {
	return &fakeConn{alive: true}
}

func (c *fakeConn) Update(time.Duration) bool { return c.alive && !c.kicked }
func (c *fakeConn) Kick()                     { c.kicked = true }
func (c *fakeConn) SendAuthResponse(status protocol.AuthStatus, position int) {
	c.replies = append(c.replies, authReply{status, position})
}
func (c *fakeConn) Send(message any)      { c.messages = append(c.messages, message) }
func (c *fakeConn) Loading() bool         { return c.loading }
func (c *fakeConn) CharacterName() string { return c.name }
func (c *fakeConn) Zone() uint32          { return c.zone }

func (c *fakeConn) last() authReply {
	if len(c.replies) == 0 {
		return authReply{status: 255}
	}
	return c.replies[len(c.replies)-1]
}

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func newTestTable(limit int, tolerance time.Duration) (*Table, *clock) {
	c := &clock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	return NewTable(Options{PlayerLimit: limit, DisconnectTolerance: tolerance, Now: c.Now}), c
}

func player(id uint32) (*Session, *fakeConn) {
	conn := newFakeConn()
	return New(id, account.SecurityPlayer, conn), conn
}

func TestAdmissionQueueAndPromotion(t *testing.T) {
	table, _ := newTestTable(2, 0)
	s1, c1 := player(1)
	s2, c2 := player(2)
	s3, c3 := player(3)
	s4, c4 := player(4)

	for _, s := range []*Session{s1, s2, s3, s4} {
		table.Enqueue(s)
	}
	table.Update(0)

	if c1.last() != (authReply{protocol.AuthOK, 0}) || c2.last() != (authReply{protocol.AuthOK, 0}) {
		t.Fatalf("expected first two sessions admitted, got %v %v", c1.replies, c2.replies)
	}
	if c3.last() != (authReply{protocol.AuthWaitQueue, 1}) || c4.last() != (authReply{protocol.AuthWaitQueue, 2}) {
		t.Fatalf("expected queued positions 1 and 2, got %v %v", c3.replies, c4.replies)
	}
	if table.ActiveCount() != 2 || table.QueuedCount() != 2 {
		t.Fatalf("expected 2 active and 2 queued, got %d and %d", table.ActiveCount(), table.QueuedCount())
	}

	c1.alive = false
	table.Update(time.Second)

	if c3.last() != (authReply{protocol.AuthOK, 0}) {
		t.Errorf("expected S3 admitted with position 0, got %v", c3.replies)
	}
	if c4.last() != (authReply{protocol.AuthWaitQueue, 1}) {
		t.Errorf("expected S4 renumbered to 1, got %v", c4.replies)
	}
	if s3.InQueue() || !s4.InQueue() {
		t.Errorf("unexpected queue flags s3=%v s4=%v", s3.InQueue(), s4.InQueue())
	}
	if table.QueuePosition(s4) != 1 || table.QueuePosition(s3) != 0 {
		t.Errorf("unexpected queue positions %d %d", table.QueuePosition(s4), table.QueuePosition(s3))
	}
	if _, ok := table.Find(1); ok {
		t.Error("dead session should be removed")
	}
	if table.ActiveCount() > 2 {
		t.Errorf("active count %d exceeds limit", table.ActiveCount())
	}
	if table.MaxActiveCount() != 2 || table.MaxQueuedCount() != 2 {
		t.Errorf("unexpected max counters %d %d", table.MaxActiveCount(), table.MaxQueuedCount())
	}
}

func TestQueuedSessionLeavingRenumbersTail(t *testing.T) {
	table, _ := newTestTable(1, 0)
	s1, _ := player(1)
	s2, c2 := player(2)
	s3, c3 := player(3)
	table.Admit(s1)
	table.Admit(s2)
	table.Admit(s3)

	c2.alive = false
	table.Update(0)

	if c3.last() != (authReply{protocol.AuthWaitQueue, 1}) {
		t.Errorf("expected S3 moved to position 1, got %v", c3.replies)
	}
	if table.ActiveCount() != 1 || table.QueuedCount() != 1 {
		t.Errorf("expected 1 active and 1 queued, got %d %d", table.ActiveCount(), table.QueuedCount())
	}
	if !s3.InQueue() {
		t.Error("S3 should still be queued")
	}
}

func TestDisconnectTolerance(t *testing.T) {
	table, clk := newTestTable(1, 30*time.Second)
	a, ca := player(1)
	b, _ := player(2)

	table.Admit(a)
	ca.alive = false
	table.Update(0)

	if table.Admit(b) != Admitted {
		t.Fatal("B should take the free slot")
	}

	clk.now = clk.now.Add(10 * time.Second)
	again, _ := player(1)
	if result := table.Admit(again); result != Admitted {
		t.Fatalf("reconnect within tolerance should bypass the queue, got %v", result)
	}
	if table.ActiveCount() != 2 {
		t.Errorf("expected tolerance exemption to exceed the limit by one, got %d", table.ActiveCount())
	}

	late, lateConn := player(3)
	table.tolerance = 30 * time.Second
	table.disconnects[3] = clk.now.Add(-time.Minute)
	if result := table.Admit(late); result != Queued {
		t.Fatalf("expired disconnect record should not exempt, got %v", result)
	}
	if lateConn.last().status != protocol.AuthWaitQueue {
		t.Errorf("expected wait queue reply, got %v", lateConn.replies)
	}
	if _, ok := table.disconnects[3]; ok {
		t.Error("expired record should be pruned during lookup")
	}
}

func TestDisconnectNotRecordedWhenDisabledOrQueued(t *testing.T) {
	table, _ := newTestTable(1, 0)
	a, ca := player(1)
	table.Admit(a)
	ca.alive = false
	table.Update(0)
	if len(table.disconnects) != 0 {
		t.Error("disconnects must not be recorded when tolerance is disabled")
	}

	table, _ = newTestTable(1, time.Minute)
	active, _ := player(1)
	queued, cq := player(2)
	table.Admit(active)
	table.Admit(queued)
	cq.alive = false
	table.Update(0)
	if _, ok := table.disconnects[2]; ok {
		t.Error("queued sessions must not leave a disconnect record")
	}
}

func TestCollisionWithLoadingSessionRejectsNew(t *testing.T) {
	table, _ := newTestTable(0, 0)
	old, oldConn := player(7)
	table.Admit(old)
	oldConn.loading = true

	fresh, freshConn := player(7)
	if result := table.Admit(fresh); result != Rejected {
		t.Fatalf("expected rejected, got %v", result)
	}
	if !freshConn.kicked || oldConn.kicked {
		t.Errorf("expected only the new session kicked, fresh=%v old=%v", freshConn.kicked, oldConn.kicked)
	}
	if s, _ := table.Find(7); s != old {
		t.Error("old session should be kept")
	}
}

func TestCollisionReplacesOldSession(t *testing.T) {
	table, _ := newTestTable(0, 0)
	old, oldConn := player(7)
	table.Admit(old)

	fresh, freshConn := player(7)
	if result := table.Admit(fresh); result != Admitted {
		t.Fatalf("expected admitted, got %v", result)
	}
	if !oldConn.kicked {
		t.Error("old session should be kicked")
	}
	if freshConn.last() != (authReply{protocol.AuthOK, 0}) {
		t.Errorf("unexpected reply %v", freshConn.replies)
	}
	if s, _ := table.Find(7); s != fresh || table.ActiveAndQueuedCount() != 1 {
		t.Error("new session should replace the old one")
	}
}

func TestReplacingQueuedSessionKeepsItQueued(t *testing.T) {
	table, _ := newTestTable(1, 0)
	a, _ := player(1)
	queued, _ := player(2)
	table.Admit(a)
	table.Admit(queued)

	again, againConn := player(2)
	if result := table.Admit(again); result != Queued {
		t.Fatalf("expected queued, got %v", result)
	}
	if againConn.last() != (authReply{protocol.AuthWaitQueue, 1}) {
		t.Errorf("unexpected reply %v", againConn.replies)
	}
	if table.QueuedCount() != 1 || table.ActiveAndQueuedCount() != 2 {
		t.Errorf("unexpected counts queued=%d total=%d", table.QueuedCount(), table.ActiveAndQueuedCount())
	}
}

func TestGameMasterBypassesQueue(t *testing.T) {
	table, _ := newTestTable(1, 0)
	a, _ := player(1)
	table.Admit(a)

	gm := New(2, account.SecurityGameMaster, newFakeConn())
	if result := table.Admit(gm); result != Admitted {
		t.Fatalf("expected game master admitted, got %v", result)
	}
}

func TestKickAllClearsQueueWithoutPromotion(t *testing.T) {
	table, _ := newTestTable(1, 0)
	a, ca := player(1)
	b, cb := player(2)
	table.Admit(a)
	table.Admit(b)

	table.KickAll()
	if table.QueuedCount() != 0 || b.InQueue() {
		t.Error("queue should be cleared")
	}
	if !ca.kicked || !cb.kicked {
		t.Error("every session should be kicked")
	}
	table.Update(0)
	if table.ActiveAndQueuedCount() != 0 {
		t.Errorf("expected empty table, got %d", table.ActiveAndQueuedCount())
	}
	for _, reply := range cb.replies {
		if reply.status == protocol.AuthOK {
			t.Error("queued session must not be promoted during kick all")
		}
	}
}

func TestKickHelpers(t *testing.T) {
	table, _ := newTestTable(0, 0)
	s1, c1 := player(1)
	c1.name = "Arthas"
	gmConn := newFakeConn()
	gm := New(2, account.SecurityGameMaster, gmConn)
	table.Admit(s1)
	table.Admit(gm)

	if !table.KickByName("arthas") || !c1.kicked {
		t.Error("expected case insensitive kick by name")
	}
	if table.KickByName("nobody") {
		t.Error("unknown name should not be found")
	}
	c1.kicked = false
	if kicked := table.KickAllLess(account.SecurityGameMaster); kicked != 1 || gmConn.kicked {
		t.Errorf("expected only the player kicked, got %d gm=%v", kicked, gmConn.kicked)
	}
}

func TestPopulationCallback(t *testing.T) {
	var got []float64
	table := NewTable(Options{PlayerLimit: 4, OnPopulation: func(p float64) { got = append(got, p) }})
	a, _ := player(1)
	b, _ := player(2)
	table.Admit(a)
	table.Admit(b)

	if len(got) != 2 || got[0] != 0.5 || got[1] != 1 {
		t.Errorf("unexpected population updates %v", got)
	}
}

func TestEachIsOrdered(t *testing.T) {
	table, _ := newTestTable(0, 0)
	for _, id := range []uint32{5, 1, 3} {
		s, _ := player(id)
		table.Admit(s)
	}
	var ids []uint32
	table.Each(func(s *Session) { ids = append(ids, s.AccountID()) })
	if len(ids) != 3 || ids[0] != 1 || ids[1] != 3 || ids[2] != 5 {
		t.Errorf("unexpected order %v", ids)
	}
}
