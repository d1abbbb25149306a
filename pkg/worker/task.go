package worker

import (
	"context"
	"fmt"

	"code.hybscloud.com/atomix"
	"github.com/jzx17/syncore/pkg/types"
)

// taskIDCounter is the global task ID counter
var taskIDCounter atomix.Int64

func nextTaskID() string {
	return fmt.Sprintf("task-%d", taskIDCounter.AddAcqRel(1))
}

// BasicTask is the basic implementation of Task interface
type BasicTask struct {
	id string
	fn func(ctx context.Context) error
}

var _ types.Task = (*BasicTask)(nil)

// NewBasicTask creates a new basic task with a generated ID
func NewBasicTask(fn func(ctx context.Context) error) *BasicTask {
	return &BasicTask{
		id: nextTaskID(),
		fn: fn,
	}
}

// NewBasicTaskWithID creates a basic task with custom ID
func NewBasicTaskWithID(id string, fn func(ctx context.Context) error) *BasicTask {
	return &BasicTask{
		id: id,
		fn: fn,
	}
}

// FuncTask adapts a plain func() to the Task interface
func FuncTask(fn func()) *BasicTask {
	if fn == nil {
		return NewBasicTask(nil)
	}
	return NewBasicTask(func(context.Context) error {
		fn()
		return nil
	})
}

// Execute executes the task
func (t *BasicTask) Execute(ctx context.Context) error {
	if t == nil {
		return types.ErrNilTask
	}
	if t.fn == nil {
		return fmt.Errorf("task %s: %w", t.id, types.ErrNilTask)
	}
	return t.fn(ctx)
}

// ID returns the task ID
func (t *BasicTask) ID() string {
	if t == nil {
		return ""
	}
	return t.id
}
