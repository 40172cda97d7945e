package script

import (
	"fmt"
	"slices"
	"sort"
	"time"
)

type Command uint8

const (
	CommandTalk Command = iota
	CommandEmote
	CommandFieldSet
	CommandMoveTo
	CommandFlagSet
	CommandFlagRemove
	CommandTeleportTo
	CommandQuestExplored
	CommandKillCredit
	CommandRespawnGameObject
	CommandTempSummonCreature
	CommandOpenDoor
	CommandCloseDoor
	CommandActivateObject
	CommandRemoveAura
	CommandCastSpell
	CommandPlaySound
	CommandLoadPath
	CommandCallScriptToUnit
	CommandKill
)

var commandNames = map[Command]string{
	CommandTalk:               "talk",
	CommandEmote:              "emote",
	CommandFieldSet:           "field_set",
	CommandMoveTo:             "move_to",
	CommandFlagSet:            "flag_set",
	CommandFlagRemove:         "flag_remove",
	CommandTeleportTo:         "teleport_to",
	CommandQuestExplored:      "quest_explored",
	CommandKillCredit:         "kill_credit",
	CommandRespawnGameObject:  "respawn_gameobject",
	CommandTempSummonCreature: "temp_summon_creature",
	CommandOpenDoor:           "open_door",
	CommandCloseDoor:          "close_door",
	CommandActivateObject:     "activate_object",
	CommandRemoveAura:         "remove_aura",
	CommandCastSpell:          "cast_spell",
	CommandPlaySound:          "play_sound",
	CommandLoadPath:           "load_path",
	CommandCallScriptToUnit:   "call_script_to_unit",
	CommandKill:               "kill",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("command(%d)", uint8(c))
}

// Step 静态的脚本步骤定义, 加载后不再修改
type Step struct {
	ID        uint32
	Command   Command
	// Delay 按整秒游戏时间计算, 不足一秒的部分可能提前最多一秒到期
	Delay     time.Duration
	DataLong  uint32
	DataLong2 uint32
	DataInt   int32
	X         float32
	Y         float32
	Z         float32
	O         float32
}

// Library 一类脚本 (任务开始、事件、法术等), 按 ID 保存步骤集合
type Library struct {
	name string
	sets map[uint32][]Step
}

func NewLibrary(name string) *Library {
	return &Library{name: name, sets: make(map[uint32][]Step)}
}

func (l *Library) Name() string {
	return l.name
}

// Add 追加步骤, 同一集合内按延迟排序, 延迟相同时保持加入顺序
// 每次都复制集合, 已调度动作持有的步骤不受影响
func (l *Library) Add(id uint32, step Step) {
	steps := append(slices.Clone(l.sets[id]), step)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Delay < steps[j].Delay })
	l.sets[id] = steps
}

func (l *Library) Set(id uint32) ([]Step, bool) {
	steps, ok := l.sets[id]
	return steps, ok
}

func (l *Library) Len() int {
	return len(l.sets)
}
