package script

import (
	"container/heap"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/logger"
	"time"
)

// Executor 执行单个步骤, source 和 target 可能为 nil
type Executor interface {
	Execute(step *Step, source, target Actor)
}

type action struct {
	deadline time.Time
	seq      uint64
	step     *Step
	source   Identity
	target   Identity
	owner    Identity
}

// actionHeap 按 (deadline, seq) 排序的最小堆
type actionHeap []*action

func (h actionHeap) Len() int { return len(h) }

func (h actionHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}

func (h actionHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *actionHeap) Push(x any) { *h = append(*h, x.(*action)) }

func (h *actionHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Scheduler 延迟脚本队列, 只能在主循环协程使用
type Scheduler struct {
	actions    actionHeap
	seq        uint64
	now        func() time.Time
	resolver   Resolver
	executor   Executor
	processing bool
}

func NewScheduler(now func() time.Time, resolver Resolver, executor Executor) *Scheduler {
	if now == nil {
		now = time.Now
	}
	return &Scheduler{now: now, resolver: resolver, executor: executor}
}

func identityOf(actor Actor) Identity {
	if actor == nil {
		return Identity{}
	}
	return actor.Identity()
}

func ownerOf(source Actor) Identity {
	if source == nil || source.Identity().Kind != KindItem {
		return Identity{}
	}
	if owned, ok := source.(Owned); ok {
		return owned.Owner()
	}
	return Identity{}
}

func (s *Scheduler) push(step *Step, delay time.Duration, source, target, owner Identity) {
	s.seq++
	heap.Push(&s.actions, &action{
		deadline: s.now().Add(delay),
		seq:      s.seq,
		step:     step,
		source:   source,
		target:   target,
		owner:    owner,
	})
}

// Start 调度步骤集合中的全部步骤, 集合不存在时什么都不做
// runImmediately 为真且存在零延迟步骤时, 返回前立即执行到期的动作
func (s *Scheduler) Start(library *Library, id uint32, source, target Actor, runImmediately bool) int {
	if library == nil {
		return 0
	}
	steps, ok := library.Set(id)
	if !ok {
		return 0
	}

	sourceID := identityOf(source)
	targetID := identityOf(target)
	ownerID := ownerOf(source)

	immediate := false
	for i := range steps {
		step := &steps[i]
		s.push(step, step.Delay, sourceID, targetID, ownerID)
		if step.Delay == 0 {
			immediate = true
		}
	}

	if immediate && runImmediately {
		s.Process()
	}
	return len(steps)
}

// StartStep 调度单个步骤, 零延迟的步骤立即执行
func (s *Scheduler) StartStep(step *Step, delay time.Duration, source, target Actor) {
	if step == nil {
		return
	}
	s.push(step, delay, identityOf(source), identityOf(target), ownerOf(source))
	if delay == 0 {
		s.Process()
	}
}

// Process 执行所有到期的动作, 返回执行的数量
// 执行过程中新加入且已到期的动作在同一轮内执行
func (s *Scheduler) Process() int {
	if s.processing {
		return 0
	}
	s.processing = true
	defer func() { s.processing = false }()

	now := s.now()
	dispatched := 0
	for len(s.actions) > 0 && !s.actions[0].deadline.After(now) {
		a := heap.Pop(&s.actions).(*action)
		s.dispatch(a)
		dispatched++
	}
	return dispatched
}

func (s *Scheduler) resolve(id, owner Identity) Actor {
	if id.IsZero() || s.resolver == nil {
		return nil
	}
	actor, ok := s.resolver.Resolve(id, owner)
	if !ok {
		logger.DebugF("Script actor %s is no longer in world", id)
		return nil
	}
	return actor
}

func (s *Scheduler) dispatch(a *action) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorF("Script command %s (step %d) panicked: %v", a.step.Command, a.step.ID, r)
		}
	}()

	source := s.resolve(a.source, a.owner)
	target := s.resolve(a.target, Identity{})
	if s.executor == nil {
		return
	}
	s.executor.Execute(a.step, source, target)
}

func (s *Scheduler) Len() int {
	return len(s.actions)
}

func (s *Scheduler) Empty() bool {
	return len(s.actions) == 0
}

// Next 返回最早的到期时间
func (s *Scheduler) Next() (time.Time, bool) {
	if len(s.actions) == 0 {
		return time.Time{}, false
	}
	return s.actions[0].deadline, true
}
