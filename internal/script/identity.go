// Package script 按时间顺序调度内容脚本产生的延迟动作
package script

import (
	"fmt"
	"github.com/life-stream-dev/life-stream-go-world-server/internal/logger"
)

// Kind 世界对象的类别, 每个类别由独立的 Registry 解析
type Kind uint8

const (
	KindNone Kind = iota
	KindItem
	KindUnit
	KindPet
	KindPlayer
	KindGameObject
	KindCorpse
	KindTransport
)

var kindNames = map[Kind]string{
	KindNone:       "none",
	KindItem:       "item",
	KindUnit:       "unit",
	KindPet:        "pet",
	KindPlayer:     "player",
	KindGameObject: "gameobject",
	KindCorpse:     "corpse",
	KindTransport:  "transport",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Identity 世界对象的持久标识, 调度时只保存标识, 执行时重新解析
type Identity struct {
	Kind Kind
	ID   uint64
}

func (i Identity) IsZero() bool {
	return i.Kind == KindNone && i.ID == 0
}

func (i Identity) String() string {
	return fmt.Sprintf("%s:%d", i.Kind, i.ID)
}

type Actor interface {
	Identity() Identity
}

// Owned 物品类对象需要通过持有者才能重新找到
type Owned interface {
	Actor
	Owner() Identity
}

type Resolver interface {
	// Resolve 找不到对象时返回 false, owner 只在解析物品时使用
	Resolve(id Identity, owner Identity) (Actor, bool)
}

type Registry interface {
	Find(id uint64) (Actor, bool)
}

// ItemContainer 由玩家对象实现, 用于解析背包里的物品
type ItemContainer interface {
	Item(id Identity) (Actor, bool)
}

// Directory 按类别分发到各自的 Registry
type Directory struct {
	registries map[Kind]Registry
}

func NewDirectory() *Directory {
	return &Directory{registries: make(map[Kind]Registry)}
}

func (d *Directory) Register(kind Kind, registry Registry) {
	d.registries[kind] = registry
}

func (d *Directory) Resolve(id Identity, owner Identity) (Actor, bool) {
	if id.IsZero() {
		return nil, false
	}

	if id.Kind == KindItem {
		if owner.IsZero() {
			return nil, false
		}
		holder, ok := d.Resolve(owner, Identity{})
		if !ok {
			return nil, false
		}
		container, ok := holder.(ItemContainer)
		if !ok {
			return nil, false
		}
		return container.Item(id)
	}

	registry, ok := d.registries[id.Kind]
	if !ok {
		logger.ErrorF("Script resolve: unsupported actor kind %s", id.Kind)
		return nil, false
	}
	return registry.Find(id.ID)
}

// MapRegistry 用 map 保存同一类别的对象, 只能在主循环协程使用
type MapRegistry[T Actor] struct {
	actors map[uint64]T
}

func NewMapRegistry[T Actor]() *MapRegistry[T] {
	return &MapRegistry[T]{actors: make(map[uint64]T)}
}

func (r *MapRegistry[T]) Add(actor T) {
	r.actors[actor.Identity().ID] = actor
}

func (r *MapRegistry[T]) Remove(id uint64) {
	delete(r.actors, id)
}

func (r *MapRegistry[T]) Find(id uint64) (Actor, bool) {
	actor, ok := r.actors[id]
	if !ok {
		return nil, false
	}
	return actor, true
}

func (r *MapRegistry[T]) Len() int {
	return len(r.actors)
}
