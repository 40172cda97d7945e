package script

import "github.com/life-stream-dev/life-stream-go-world-server/internal/logger"

type Handler func(step *Step, source, target Actor) error

// Requirement 步骤执行前必须解析成功的对象
type Requirement uint8

const (
	NeedSource Requirement = 1 << iota
	NeedTarget
)

type registration struct {
	requires Requirement
	handler  Handler
}

// Dispatcher 按命令 ID 分发到注册的处理函数
type Dispatcher struct {
	handlers map[Command]registration
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[Command]registration)}
}

func (d *Dispatcher) Handle(command Command, requires Requirement, handler Handler) {
	d.handlers[command] = registration{requires: requires, handler: handler}
}

func (d *Dispatcher) Execute(step *Step, source, target Actor) {
	reg, ok := d.handlers[step.Command]
	if !ok {
		logger.ErrorF("Unknown script command %s called", step.Command)
		return
	}
	if reg.requires&NeedSource != 0 && source == nil {
		logger.ErrorF("Script command %s (step %d) call for nil source, skipped", step.Command, step.ID)
		return
	}
	if reg.requires&NeedTarget != 0 && target == nil {
		logger.ErrorF("Script command %s (step %d) call for nil target, skipped", step.Command, step.ID)
		return
	}
	if err := reg.handler(step, source, target); err != nil {
		logger.ErrorF("Script command %s (step %d) failed: %v", step.Command, step.ID, err)
	}
}
