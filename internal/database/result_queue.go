package database

import (
	"context"
	"errors"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/logger"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/queue"
	"sync"
	"time"
)

var ErrQueueClosed = errors.New("result queue is closed")

type job struct {
	name string
	run  func(ctx context.Context)
}

// ResultQueue 在后台协程按提交顺序执行数据库操作, 完成回调交回主循环执行
type ResultQueue struct {
	jobs      *queue.Queue[job]
	completed *queue.Queue[func()]
	notify    chan struct{}
	timeout   time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	pending   sync.WaitGroup
	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool
}

func NewResultQueue(timeout time.Duration) *ResultQueue {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &ResultQueue{
		jobs:      queue.New[job](),
		completed: queue.New[func()](),
		notify:    make(chan struct{}, 1),
		timeout:   timeout,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go r.worker()
	return r
}

func (r *ResultQueue) worker() {
	defer close(r.done)
	for {
		for {
			j, ok := r.jobs.Pop()
			if !ok {
				break
			}
			r.runJob(j)
		}
		select {
		case <-r.notify:
		case <-r.ctx.Done():
			// 退出前执行完剩余的任务
			for _, j := range r.jobs.Drain() {
				r.runJob(j)
			}
			return
		}
	}
}

func (r *ResultQueue) runJob(j job) {
	defer r.pending.Done()
	defer func() {
		if err := recover(); err != nil {
			logger.ErrorF("Database job %s panicked: %v", j.name, err)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	j.run(ctx)
}

func (r *ResultQueue) submit(j job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrQueueClosed
	}
	r.pending.Add(1)
	r.jobs.Push(j)
	select {
	case r.notify <- struct{}{}:
	default:
	}
	return nil
}

// Execute 提交不需要结果的操作, 失败只记录日志
func (r *ResultQueue) Execute(name string, fn func(ctx context.Context) error) {
	err := r.submit(job{name: name, run: func(ctx context.Context) {
		if err := fn(ctx); err != nil {
			logger.ErrorF("Database job %s failed: %v", name, err)
		}
	}})
	if err != nil {
		logger.WarnF("Database job %s dropped: %v", name, err)
	}
}

// Query 提交需要结果的操作, callback 在主循环调用 Update 时执行
// 操作失败时 callback 收到零值和 false
func Query[T any](r *ResultQueue, name string, fn func(ctx context.Context) (T, error), callback func(result T, ok bool)) {
	err := r.submit(job{name: name, run: func(ctx context.Context) {
		result, err := fn(ctx)
		if err != nil {
			logger.ErrorF("Database query %s failed: %v", name, err)
			var zero T
			r.completed.Push(func() { callback(zero, false) })
			return
		}
		r.completed.Push(func() { callback(result, true) })
	}})
	if err != nil {
		logger.WarnF("Database query %s dropped: %v", name, err)
		var zero T
		r.completed.Push(func() { callback(zero, false) })
	}
}

// QueryErr 与 Query 相同, 但把错误交给 callback 自行判断
func QueryErr[T any](r *ResultQueue, name string, fn func(ctx context.Context) (T, error), callback func(result T, err error)) {
	err := r.submit(job{name: name, run: func(ctx context.Context) {
		result, err := fn(ctx)
		r.completed.Push(func() { callback(result, err) })
	}})
	if err != nil {
		var zero T
		r.completed.Push(func() { callback(zero, err) })
	}
}

// PollCompleted 取出全部已完成的回调
func (r *ResultQueue) PollCompleted() []func() {
	return r.completed.Drain()
}

// Update 在主循环协程执行全部已完成的回调, 返回执行的数量
func (r *ResultQueue) Update() int {
	callbacks := r.PollCompleted()
	for _, callback := range callbacks {
		func() {
			defer func() {
				if err := recover(); err != nil {
					logger.ErrorF("Database callback panicked: %v", err)
				}
			}()
			callback()
		}()
	}
	return len(callbacks)
}

// Wait 等待已提交的任务全部执行完
func (r *ResultQueue) Wait() {
	r.pending.Wait()
}

func (r *ResultQueue) Invoke(ctx context.Context) error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		r.cancel()
	})
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
