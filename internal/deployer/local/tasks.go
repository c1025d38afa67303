package local

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/animus-labs/animus-dataflow/internal/domain"
	"github.com/google/uuid"
)

// Execution is one launched task.
type Execution struct {
	ID         string
	Request    domain.DeploymentRequest
	StartedAt  time.Time
	FinishedAt time.Time
}

// TaskLauncher records launches. An execution counts as running until
// Complete is called or its lease expires.
type TaskLauncher struct {
	logger     *slog.Logger
	lease      time.Duration
	now        func() time.Time
	mu         sync.Mutex
	executions map[string]*Execution
}

func NewTaskLauncher(logger *slog.Logger, lease time.Duration) *TaskLauncher {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskLauncher{logger: logger, lease: lease, now: time.Now, executions: map[string]*Execution{}}
}

func (l *TaskLauncher) Launch(_ context.Context, req domain.DeploymentRequest) (string, error) {
	id := uuid.NewString()
	l.mu.Lock()
	l.executions[id] = &Execution{ID: id, Request: req, StartedAt: l.now().UTC()}
	l.mu.Unlock()
	l.logger.Info("task launched", "task", req.Stage, "app", req.App, "execution_id", id)
	return id, nil
}

func (l *TaskLauncher) Complete(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	exec, ok := l.executions[id]
	if !ok || !exec.FinishedAt.IsZero() {
		return false
	}
	exec.FinishedAt = l.now().UTC()
	return true
}

func (l *TaskLauncher) RunningCount(_ context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	n := 0
	for _, exec := range l.executions {
		if l.running(exec, now) {
			n++
		}
	}
	return n, nil
}

func (l *TaskLauncher) running(exec *Execution, now time.Time) bool {
	if !exec.FinishedAt.IsZero() {
		return false
	}
	return l.lease <= 0 || now.Sub(exec.StartedAt) < l.lease
}

func (l *TaskLauncher) Execution(id string) (Execution, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	exec, ok := l.executions[id]
	if !ok {
		return Execution{}, false
	}
	return *exec, true
}
