package session

import (
	"github.com/life-stream-dev/life-stream-go-world-server/internal/account"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/logger"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/protocol"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/queue"
	"sort"
	"strings"
	"time"
)

type AdmitResult int

const (
	Admitted AdmitResult = iota
	Queued
	Rejected
)

func (r AdmitResult) String() string {
	switch r {
	case Admitted:
		return "admitted"
	case Queued:
		return "queued"
	default:
		return "rejected"
	}
}

type Options struct {
	PlayerLimit         int
	DisconnectTolerance time.Duration
	Now                 func() time.Time
	// OnPopulation 每次放行会话后收到 在线数/上限*2
	OnPopulation func(population float64)
}

// Table 会话表与登录排队控制, 除 Enqueue 外只能在主循环协程调用
type Table struct {
	sessions     map[uint32]*Session
	queue        []*Session
	disconnects  map[uint32]time.Time
	ingress      *queue.Queue[*Session]
	limit        int
	tolerance    time.Duration
	now          func() time.Time
	onPopulation func(population float64)
	maxActive    int
	maxQueued    int
}

func NewTable(opts Options) *Table {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Table{
		sessions:     make(map[uint32]*Session),
		disconnects:  make(map[uint32]time.Time),
		ingress:      queue.New[*Session](),
		limit:        opts.PlayerLimit,
		tolerance:    opts.DisconnectTolerance,
		now:          opts.Now,
		onPopulation: opts.OnPopulation,
	}
}

// Enqueue 可在任意协程调用, 会话在下一次 Update 时处理
func (t *Table) Enqueue(s *Session) {
	t.ingress.Push(s)
}

func (t *Table) PendingCount() int {
	return t.ingress.Len()
}

// Update 处理新会话, 更新所有会话并移除失效的会话
func (t *Table) Update(diff time.Duration) {
	for _, s := range t.ingress.Drain() {
		t.Admit(s)
	}

	for id, s := range t.sessions {
		if s.conn.Update(diff) {
			s.lastActivity = t.now()
			continue
		}
		if !s.inQueue && t.tolerance > 0 {
			t.disconnects[id] = t.now()
		}
		t.removeQueued(s)
		delete(t.sessions, id)
		logger.DebugF("[account %d] Session removed", id)
	}
}

// Admit 把会话加入表中, 按容量决定直接放行还是排队
func (t *Table) Admit(s *Session) AdmitResult {
	if !t.Remove(s.accountID) {
		s.Kick()
		logger.WarnF("[account %d] New session rejected, previous session is still loading", s.accountID)
		return Rejected
	}

	decrease := true
	if old, ok := t.sessions[s.accountID]; ok {
		// 被顶掉的会话如果在排队, 新会话继承它占用的名额
		if t.removeQueued(old) {
			decrease = false
		}
	}
	t.sessions[s.accountID] = s
	s.lastActivity = t.now()

	count := len(t.sessions)
	if decrease {
		count--
	}

	if t.limit > 0 && count >= t.limit && s.security == account.SecurityPlayer && !t.RecentlyDisconnected(s.accountID) {
		t.addQueued(s)
		t.updateMaxCounters()
		logger.InfoF("[account %d] Session queued at position %d", s.accountID, t.QueuePosition(s))
		return Queued
	}

	s.conn.SendAuthResponse(protocol.AuthOK, 0)
	t.updateMaxCounters()
	if t.limit > 0 && t.onPopulation != nil {
		t.onPopulation(float64(t.ActiveCount()) / float64(t.limit) * 2)
	}
	logger.DebugF("[account %d] Session admitted", s.accountID)
	return Admitted
}

// Remove 踢掉账号已有的会话, 会话正在加载时返回 false
func (t *Table) Remove(accountID uint32) bool {
	s, ok := t.sessions[accountID]
	if !ok {
		return true
	}
	if s.Loading() {
		return false
	}
	s.Kick()
	return true
}

func (t *Table) addQueued(s *Session) {
	s.inQueue = true
	t.queue = append(t.queue, s)
	s.conn.SendAuthResponse(protocol.AuthWaitQueue, len(t.queue))
}

// removeQueued 在会话离开前调用, 返回会话是否在排队
// 在线人数低于上限时放行队首, 并通知位置发生变化的排队会话
func (t *Table) removeQueued(s *Session) bool {
	active := t.ActiveCount()

	found := false
	from := -1
	for i, queued := range t.queue {
		if queued == s {
			queued.inQueue = false
			t.queue = append(t.queue[:i], t.queue[i+1:]...)
			found = true
			from = i
			break
		}
	}

	if !found && active > 0 {
		active--
	}

	if (t.limit == 0 || active < t.limit) && len(t.queue) > 0 {
		head := t.queue[0]
		t.queue = t.queue[1:]
		head.inQueue = false
		head.conn.SendAuthResponse(protocol.AuthOK, 0)
		logger.DebugF("[account %d] Session left the queue", head.accountID)
		from = 0
	}

	if from >= 0 {
		for i := from; i < len(t.queue); i++ {
			t.queue[i].conn.SendAuthResponse(protocol.AuthWaitQueue, i+1)
		}
	}
	return found
}

// RecentlyDisconnected 断线容忍窗口内的账号不需要排队, 扫描时顺带清理过期记录
func (t *Table) RecentlyDisconnected(accountID uint32) bool {
	if t.tolerance <= 0 {
		return false
	}
	now := t.now()
	result := false
	for id, at := range t.disconnects {
		if now.Sub(at) < t.tolerance {
			if id == accountID {
				result = true
			}
			continue
		}
		delete(t.disconnects, id)
	}
	return result
}

// QueuePosition 从 1 开始, 不在队列中返回 0
func (t *Table) QueuePosition(s *Session) int {
	for i, queued := range t.queue {
		if queued == s {
			return i + 1
		}
	}
	return 0
}

func (t *Table) updateMaxCounters() {
	if active := t.ActiveCount(); active > t.maxActive {
		t.maxActive = active
	}
	if queued := len(t.queue); queued > t.maxQueued {
		t.maxQueued = queued
	}
}

// KickAll 清空排队并踢掉所有会话, 排队的会话不会被放行
func (t *Table) KickAll() {
	for _, queued := range t.queue {
		queued.inQueue = false
	}
	t.queue = nil
	for _, s := range t.sessions {
		s.Kick()
	}
}

// KickAllLess 踢掉权限低于 security 的会话
func (t *Table) KickAllLess(security account.Security) int {
	kicked := 0
	for _, s := range t.sessions {
		if s.security < security {
			s.Kick()
			kicked++
		}
	}
	return kicked
}

// KickByName 按角色名踢人, 找不到返回 false
func (t *Table) KickByName(name string) bool {
	s, ok := t.FindByName(name)
	if !ok {
		return false
	}
	s.Kick()
	return true
}

func (t *Table) Find(accountID uint32) (*Session, bool) {
	s, ok := t.sessions[accountID]
	return s, ok
}

func (t *Table) FindByName(name string) (*Session, bool) {
	if name == "" {
		return nil, false
	}
	for _, s := range t.sessions {
		if strings.EqualFold(s.CharacterName(), name) {
			return s, true
		}
	}
	return nil, false
}

// Each 按账号 ID 顺序遍历会话
func (t *Table) Each(fn func(s *Session)) {
	ids := make([]uint32, 0, len(t.sessions))
	for id := range t.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fn(t.sessions[id])
	}
}

func (t *Table) ActiveCount() int {
	return len(t.sessions) - len(t.queue)
}

func (t *Table) QueuedCount() int {
	return len(t.queue)
}

func (t *Table) ActiveAndQueuedCount() int {
	return len(t.sessions)
}

func (t *Table) MaxActiveCount() int {
	return t.maxActive
}

func (t *Table) MaxQueuedCount() int {
	return t.maxQueued
}

func (t *Table) PlayerLimit() int {
	return t.limit
}

func (t *Table) SetPlayerLimit(limit int) {
	if limit < 0 {
		limit = 0
	}
	t.limit = limit
}

func (t *Table) DisconnectTolerance() time.Duration {
	return t.tolerance
}
