package proc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"grid-keeper/internal/logger"
	"grid-keeper/internal/models"
	"grid-keeper/internal/utils"
)

var ErrNotStarted = errors.New("process not started")

/**
 * ProcessInstance is one detached child started by the keeper
 * @property {string} title - Display name
 * @property {string} command - Executable, relative paths resolve against workDir
 * @property {[]string} args - Command arguments
 * @property {string} workDir - Working directory, never the keeper's own cwd implicitly
 * @property {string} logFile - stdout/stderr are appended here, empty discards
 */
type ProcessInstance struct {
	Title     string
	Command   string
	Args      []string
	WorkDir   string
	LogFile   string
	StartTime time.Time

	process *os.Process
	done    chan struct{}
	exitErr error
	mutex   sync.Mutex
}

func NewProcessInstance(title, command string, args []string, workDir, logFile string) *ProcessInstance {
	return &ProcessInstance{
		Title:   title,
		Command: command,
		Args:    args,
		WorkDir: workDir,
		LogFile: logFile,
	}
}

func (pi *ProcessInstance) Pid() int {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()
	if pi.process == nil {
		return 0
	}
	return pi.process.Pid
}

// Done is closed once the keeper observed the child exit.
func (pi *ProcessInstance) Done() <-chan struct{} {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()
	if pi.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return pi.done
}

func (pi *ProcessInstance) ExitError() error {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()
	return pi.exitErr
}

func (pi *ProcessInstance) GetDetail() models.ProcessDetail {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()

	detail := models.ProcessDetail{
		Title:     pi.Title,
		Command:   utils.QuoteCommandLine(pi.Command, pi.Args),
		WorkDir:   pi.WorkDir,
		LogFile:   pi.LogFile,
		StartTime: pi.StartTime,
	}
	if pi.process != nil {
		detail.Pid = pi.process.Pid
	}
	return detail
}

/**
 * StartProcess spawns the command detached from the keeper
 * @returns {error} Returns error if the log file cannot be opened or the command cannot be started
 * @description
 * - The child gets its own process group so it survives the keeper and Ctrl-C
 * - Output is appended to LogFile
 * - A goroutine reaps the child while the keeper is alive
 */
func (pi *ProcessInstance) StartProcess() error {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()

	if pi.process != nil {
		return nil
	}
	logger.Infof("Executing command: %s (in %s)", utils.QuoteCommandLine(pi.Command, pi.Args), pi.WorkDir)

	cmd := exec.Command(pi.Command, pi.Args...)
	cmd.Dir = pi.WorkDir
	utils.SetNewPG(cmd)

	var out io.WriteCloser
	if pi.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(pi.LogFile), 0755); err != nil {
			return fmt.Errorf("create log dir for '%s': %w", pi.Title, err)
		}
		f, err := os.OpenFile(pi.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("open log file for '%s': %w", pi.Title, err)
		}
		out = f
		cmd.Stdout = f
		cmd.Stderr = f
	}

	if err := cmd.Start(); err != nil {
		if out != nil {
			out.Close()
		}
		logger.Errorf("Failed to start process '%s', error: %v", pi.Title, err)
		return err
	}
	// the child holds its own descriptor now
	if out != nil {
		out.Close()
	}

	pi.process = cmd.Process
	pi.StartTime = time.Now()
	pi.done = make(chan struct{})
	logger.Infof("Process '%s' started (PID: %d)", pi.Title, cmd.Process.Pid)

	go pi.watchProcess(cmd)
	return nil
}

func (pi *ProcessInstance) watchProcess(cmd *exec.Cmd) {
	err := cmd.Wait()

	pi.mutex.Lock()
	defer pi.mutex.Unlock()
	pi.exitErr = err
	if err != nil {
		logger.Warnf("Process '%s' (PID: %d) exited: %v", pi.Title, cmd.Process.Pid, err)
	} else {
		logger.Infof("Process '%s' (PID: %d) exited normally", pi.Title, cmd.Process.Pid)
	}
	close(pi.done)
}

/**
 * StopProcess terminates the child: SIGTERM, then SIGKILL after grace
 * @param {time.Duration} grace - Time allowed for a clean exit
 */
func (pi *ProcessInstance) StopProcess(grace time.Duration) error {
	pid := pi.Pid()
	if pid == 0 {
		return ErrNotStarted
	}
	done := pi.Done()
	select {
	case <-done:
		return nil
	default:
	}
	if err := utils.TerminateProcess(pid, grace); err != nil {
		logger.Errorf("Failed to stop process '%s' (PID: %d): %v", pi.Title, pid, err)
		return err
	}
	select {
	case <-done:
	case <-time.After(grace + time.Second):
	}
	logger.Infof("Process '%s' (PID: %d) stopped", pi.Title, pid)
	return nil
}

/**
 * RunCommand runs a short administrative command to completion
 * @param {context.Context} ctx - Kills the command when cancelled
 * @param {string} command - Executable
 * @param {[]string} args - Arguments
 * @param {string} workDir - Working directory
 * @returns {error} Exit failure, with the command's combined output attached
 */
func RunCommand(ctx context.Context, command string, args []string, workDir string) error {
	logger.Infof("Running command: %s (in %s)", utils.QuoteCommandLine(command, args), workDir)
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = workDir
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(output.String())
		if len(msg) > 1024 {
			msg = msg[len(msg)-1024:]
		}
		if msg == "" {
			return err
		}
		return fmt.Errorf("%w: %s", err, msg)
	}
	return nil
}
