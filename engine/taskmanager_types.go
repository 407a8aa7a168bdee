package engine

import (
	"context"
	"sync"
	"time"

	"github.com/gofrs/uuid"
)

// TaskManager holds engine runs so several configurations can be executed
// and tracked side by side
type TaskManager struct {
	m     sync.Mutex
	tasks []*Task
}

// Task is one engine run
type Task struct {
	m        sync.Mutex
	engine   *TradingEngine
	cancel   context.CancelFunc
	running  bool
	ran      bool
	started  time.Time
	finished time.Time
	err      error
	done     chan struct{}
}

// TaskSummary describes a task for listings
type TaskSummary struct {
	ID       uuid.UUID
	Engine   *Summary
	Running  bool
	Ran      bool
	Started  time.Time
	Finished time.Time
	Error    string
}
