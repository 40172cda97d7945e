// Package timer 实现主循环使用的定时器组
package timer

import "time"

// Interval 累积经过的时间, 达到间隔后由调用方 Reset
type Interval struct {
	interval time.Duration
	current  time.Duration
}

func (t *Interval) Update(diff time.Duration) {
	t.current += diff
	if t.current < 0 {
		t.current = 0
	}
}

func (t *Interval) Passed() bool {
	return t.current >= t.interval
}

// Reset 只保留不足一个间隔的部分
func (t *Interval) Reset() {
	if t.current < t.interval {
		return
	}
	if t.interval <= 0 {
		t.current = 0
		return
	}
	t.current %= t.interval
}

func (t *Interval) SetInterval(interval time.Duration) {
	t.interval = interval
}

func (t *Interval) Interval() time.Duration {
	return t.interval
}

func (t *Interval) SetCurrent(current time.Duration) {
	t.current = current
}

func (t *Interval) Current() time.Duration {
	return t.current
}

// Stop 停止的定时器不会被 Bank.Advance 推进, 直到调用 Resume
func (t *Interval) Stop() {
	t.current = -1
}

func (t *Interval) Stopped() bool {
	return t.current < 0
}

func (t *Interval) Resume() {
	if t.current < 0 {
		t.current = 0
	}
}

type ID int

const (
	Auctions ID = iota
	Uptime
	Corpses
	Events
	CleanDB
	AutoBroadcast
	Sessions
	Weathers
	Objects
	Count
)

var idNames = map[ID]string{
	Auctions:      "auctions",
	Uptime:        "uptime",
	Corpses:       "corpses",
	Events:        "events",
	CleanDB:       "clean_db",
	AutoBroadcast: "auto_broadcast",
	Sessions:      "sessions",
	Weathers:      "weathers",
	Objects:       "objects",
}

func (id ID) String() string {
	if name, ok := idNames[id]; ok {
		return name
	}
	return "unknown"
}

// Bank 保存全部主循环定时器
type Bank struct {
	timers [Count]Interval
}

func (b *Bank) Get(id ID) *Interval {
	return &b.timers[id]
}

// Advance 推进所有未停止的定时器
func (b *Bank) Advance(diff time.Duration) {
	for i := range b.timers {
		if b.timers[i].Stopped() {
			continue
		}
		b.timers[i].Update(diff)
	}
}

// Passed 判断定时器是否到期, 到期时自动 Reset
func (b *Bank) Passed(id ID) bool {
	t := &b.timers[id]
	if t.Stopped() || !t.Passed() {
		return false
	}
	t.Reset()
	return true
}
