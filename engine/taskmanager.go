package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/gofrs/uuid"
	"github.com/tradeloop/tradeloop/common"
	"github.com/tradeloop/tradeloop/log"
)

var (
	errTaskNotFound         = errors.New("task not found")
	errTaskAlreadyMonitored = errors.New("task already monitored")
	errAlreadyRan           = errors.New("task already ran")
	errTaskHasNotRan        = errors.New("task hasn't ran yet")
	errTaskIsRunning        = errors.New("task is already running")
	errCannotClear          = errors.New("cannot clear task")
)

// NewTask wraps an engine that has not been started
func NewTask(e *TradingEngine) (*Task, error) {
	if e == nil {
		return nil, fmt.Errorf("%w TradingEngine", common.ErrNilPointer)
	}
	if e.State() != New {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyStarted, e.State())
	}
	return &Task{engine: e, done: make(chan struct{})}, nil
}

// ID returns the engine id the task is tracked by
func (t *Task) ID() uuid.UUID {
	return t.engine.ID()
}

// Engine returns the task's engine
func (t *Task) Engine() *TradingEngine {
	return t.engine
}

// IsRunning reports whether the engine is executing
func (t *Task) IsRunning() bool {
	t.m.Lock()
	defer t.m.Unlock()
	return t.running
}

// HasRan reports whether the task has been started, running or not
func (t *Task) HasRan() bool {
	t.m.Lock()
	defer t.m.Unlock()
	return t.ran
}

// Start runs the engine in its own goroutine
func (t *Task) Start(ctx context.Context) error {
	t.m.Lock()
	defer t.m.Unlock()
	switch {
	case t.running:
		return fmt.Errorf("%w %v", errTaskIsRunning, t.engine.ID())
	case t.ran:
		return fmt.Errorf("%w %v", errAlreadyRan, t.engine.ID())
	}
	ctx, t.cancel = context.WithCancel(ctx)
	t.running, t.ran = true, true
	t.started = time.Now()
	go func() {
		err := t.engine.Run(ctx)
		t.m.Lock()
		t.running = false
		t.finished = time.Now()
		t.err = err
		t.cancel()
		t.m.Unlock()
		if err != nil {
			log.Errorf(log.TaskMgr, "task %s (%s) failed: %v", t.engine.ID(), t.engine.Name(), err)
		} else {
			log.Infof(log.TaskMgr, "task %s (%s) finished", t.engine.ID(), t.engine.Name())
		}
		close(t.done)
	}()
	return nil
}

// Stop stops a running task and waits for it to finish
func (t *Task) Stop() error {
	t.m.Lock()
	if !t.running {
		t.m.Unlock()
		return nil
	}
	t.m.Unlock()
	if err := t.engine.Stop(); err != nil {
		return err
	}
	<-t.done
	return nil
}

// Wait blocks until the task finishes and returns its error
func (t *Task) Wait() error {
	<-t.done
	t.m.Lock()
	defer t.m.Unlock()
	return t.err
}

// Summary describes the task
func (t *Task) Summary() *TaskSummary {
	t.m.Lock()
	defer t.m.Unlock()
	s := &TaskSummary{
		ID:       t.engine.ID(),
		Engine:   t.engine.Summary(),
		Running:  t.running,
		Ran:      t.ran,
		Started:  t.started,
		Finished: t.finished,
	}
	if t.err != nil {
		s.Error = t.err.Error()
	}
	return s
}

// NewTaskManager creates a task manager to run several engines
func NewTaskManager() *TaskManager {
	return &TaskManager{}
}

// AddTask adds a task to the manager
func (r *TaskManager) AddTask(t *Task) error {
	if r == nil {
		return fmt.Errorf("%w TaskManager", common.ErrNilPointer)
	}
	if t == nil {
		return fmt.Errorf("%w Task", common.ErrNilPointer)
	}
	r.m.Lock()
	defer r.m.Unlock()
	for i := range r.tasks {
		if r.tasks[i] == t || r.tasks[i].ID() == t.ID() {
			return fmt.Errorf("%w %s %s", errTaskAlreadyMonitored, t.ID(), t.engine.Name())
		}
	}
	r.tasks = append(r.tasks, t)
	return nil
}

// List details all tasks
func (r *TaskManager) List() ([]*TaskSummary, error) {
	if r == nil {
		return nil, fmt.Errorf("%w TaskManager", common.ErrNilPointer)
	}
	r.m.Lock()
	defer r.m.Unlock()
	resp := make([]*TaskSummary, len(r.tasks))
	for i := range r.tasks {
		resp[i] = r.tasks[i].Summary()
	}
	return resp, nil
}

// GetSummary returns details about a task
func (r *TaskManager) GetSummary(id uuid.UUID) (*TaskSummary, error) {
	t, err := r.task(id)
	if err != nil {
		return nil, err
	}
	return t.Summary(), nil
}

// Wait blocks until the task finishes and returns its error
func (r *TaskManager) Wait(id uuid.UUID) error {
	t, err := r.task(id)
	if err != nil {
		return err
	}
	if !t.HasRan() {
		return fmt.Errorf("%w %v", errTaskHasNotRan, id)
	}
	return t.Wait()
}

func (r *TaskManager) task(id uuid.UUID) (*Task, error) {
	if r == nil {
		return nil, fmt.Errorf("%w TaskManager", common.ErrNilPointer)
	}
	r.m.Lock()
	defer r.m.Unlock()
	for i := range r.tasks {
		if r.tasks[i].ID() == id {
			return r.tasks[i], nil
		}
	}
	return nil, fmt.Errorf("%s %w", id, errTaskNotFound)
}

// StopTask stops a running task
func (r *TaskManager) StopTask(id uuid.UUID) error {
	t, err := r.task(id)
	if err != nil {
		return err
	}
	switch {
	case t.IsRunning():
		return t.Stop()
	case t.HasRan():
		return fmt.Errorf("%w %v", errAlreadyRan, id)
	default:
		return fmt.Errorf("%w %v", errTaskHasNotRan, id)
	}
}

// StopAllTasks stops all running tasks
func (r *TaskManager) StopAllTasks() ([]*TaskSummary, error) {
	if r == nil {
		return nil, fmt.Errorf("%w TaskManager", common.ErrNilPointer)
	}
	r.m.Lock()
	tasks := slices.Clone(r.tasks)
	r.m.Unlock()
	resp := make([]*TaskSummary, 0, len(tasks))
	for i := range tasks {
		if !tasks[i].IsRunning() {
			continue
		}
		if err := tasks[i].Stop(); err != nil {
			return nil, err
		}
		resp = append(resp, tasks[i].Summary())
	}
	return resp, nil
}

// StartTask runs a task if found
func (r *TaskManager) StartTask(ctx context.Context, id uuid.UUID) error {
	t, err := r.task(id)
	if err != nil {
		return err
	}
	return t.Start(ctx)
}

// StartAllTasks runs every task that has not yet ran
func (r *TaskManager) StartAllTasks(ctx context.Context) ([]uuid.UUID, error) {
	if r == nil {
		return nil, fmt.Errorf("%w TaskManager", common.ErrNilPointer)
	}
	r.m.Lock()
	defer r.m.Unlock()
	started := make([]uuid.UUID, 0, len(r.tasks))
	for i := range r.tasks {
		if r.tasks[i].HasRan() {
			continue
		}
		if err := r.tasks[i].Start(ctx); err != nil {
			return nil, err
		}
		started = append(started, r.tasks[i].ID())
	}
	return started, nil
}

// ClearTask removes a task from memory, but only if it is not running
func (r *TaskManager) ClearTask(id uuid.UUID) error {
	if r == nil {
		return fmt.Errorf("%w TaskManager", common.ErrNilPointer)
	}
	r.m.Lock()
	defer r.m.Unlock()
	for i := range r.tasks {
		if r.tasks[i].ID() != id {
			continue
		}
		if r.tasks[i].IsRunning() {
			return fmt.Errorf("%w %v, currently running. Stop it first", errCannotClear, id)
		}
		r.tasks = slices.Delete(r.tasks, i, i+1)
		return nil
	}
	return fmt.Errorf("%s %w", id, errTaskNotFound)
}

// ClearAllTasks removes all tasks that are not running
func (r *TaskManager) ClearAllTasks() (cleared, remaining []*TaskSummary, err error) {
	if r == nil {
		return nil, nil, fmt.Errorf("%w TaskManager", common.ErrNilPointer)
	}
	r.m.Lock()
	defer r.m.Unlock()
	r.tasks = slices.DeleteFunc(r.tasks, func(t *Task) bool {
		if t.IsRunning() {
			remaining = append(remaining, t.Summary())
			return false
		}
		cleared = append(cleared, t.Summary())
		return true
	})
	return cleared, remaining, nil
}
