package proc

import (
	"context"
	"time"

	"grid-keeper/internal/models"
)

// Handle is a spawned child as seen by the code that started it.
type Handle interface {
	Pid() int
	Done() <-chan struct{}
	StopProcess(grace time.Duration) error
	GetDetail() models.ProcessDetail
}

// Runner spawns detached services and runs hook commands with os/exec.
type Runner struct{}

func NewRunner() *Runner {
	return &Runner{}
}

func (r *Runner) Start(ctx context.Context, title, command string, args []string, workDir, logFile string) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pi := NewProcessInstance(title, command, args, workDir, logFile)
	if err := pi.StartProcess(); err != nil {
		return nil, err
	}
	return pi, nil
}

func (r *Runner) Run(ctx context.Context, command string, args []string, workDir string) error {
	return RunCommand(ctx, command, args, workDir)
}
