package services

import (
	"context"
	"fmt"
	"os"
	"time"

	"grid-keeper/internal/config"
	"grid-keeper/internal/logger"
	"grid-keeper/internal/models"
	"grid-keeper/internal/utils"
)

type StopState string

const (
	StopStopped      StopState = "stopped"
	StopNotRunning   StopState = "not-running"
	StopNotStoppable StopState = "not-stoppable"
	StopSkipped      StopState = "skipped"
)

/**
 * Outcome of one service in a shutdown
 * @property {string} name - Service name
 * @property {int} port - Service port
 * @property {StopState} state - stopped/not-running/not-stoppable/skipped
 * @property {int} pid - Signalled process, 0 if none
 * @property {string} source - How the pid was found
 */
type StopOutcome struct {
	Name   string    `json:"name" yaml:"name"`
	Port   int       `json:"port" yaml:"port"`
	State  StopState `json:"state" yaml:"state"`
	Pid    int       `json:"pid,omitempty" yaml:"pid,omitempty"`
	Source string    `json:"source,omitempty" yaml:"source,omitempty"`
	Error  string    `json:"error,omitempty" yaml:"error,omitempty"`
	Err    error     `json:"-" yaml:"-"`
}

type ShutdownReport struct {
	Services []StopOutcome `json:"services"`
}

// NotStoppable lists running services that could not be stopped.
func (r *ShutdownReport) NotStoppable() []StopOutcome {
	var out []StopOutcome
	for _, o := range r.Services {
		if o.State == StopNotStoppable {
			out = append(out, o)
		}
	}
	return out
}

const closePollInterval = 50 * time.Millisecond

type Teardown struct {
	registry  *config.Registry
	probe     PortProbe
	resolver  *Resolver
	grace     time.Duration
	terminate func(pid int, grace time.Duration) error
	selfPid   int
}

func NewTeardown(registry *config.Registry, probe PortProbe, resolver *Resolver, grace time.Duration) *Teardown {
	return &Teardown{
		registry:  registry,
		probe:     probe,
		resolver:  resolver,
		grace:     grace,
		terminate: utils.TerminateProcess,
		selfPid:   os.Getpid(),
	}
}

/**
 * Stop every running registered service
 * @param {context.Context} ctx - Checked between services
 * @returns {*ShutdownReport} Per-service outcome, applications first
 * @returns {error} Non-nil iff a running service could not be stopped, or ctx was cancelled
 * @description
 * - Walks the registry in reverse order so dependents stop before their infrastructure
 * - Only services whose port is open are touched
 * - Never signals the keeper's own process
 * - Sends SIGTERM, waits the grace period, then SIGKILL
 * - A service is stopped only once its port is closed; if the signalled process was a
 *   wrapper, the remaining port owner is terminated as well
 */
func (t *Teardown) Shutdown(ctx context.Context) (*ShutdownReport, error) {
	svcs := t.registry.Services()
	report := &ShutdownReport{}
	for i := len(svcs) - 1; i >= 0; i-- {
		spec := svcs[i]
		if ctx.Err() != nil {
			report.Services = append(report.Services, StopOutcome{Name: spec.Name, Port: spec.Port, State: StopSkipped})
			continue
		}
		report.Services = append(report.Services, t.stop(spec))
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	if failed := report.NotStoppable(); len(failed) > 0 {
		return report, fmt.Errorf("%d service(s) could not be stopped: %w", len(failed), ErrTeardownResolution)
	}
	return report, nil
}

func (t *Teardown) stop(spec models.ServiceSpec) StopOutcome {
	outcome := StopOutcome{Name: spec.Name, Port: spec.Port}
	fail := func(err error) StopOutcome {
		serr := newServiceError(spec.Name, PhaseTeardown, ErrTeardownResolution, err)
		logger.Errorf("%v", serr)
		outcome.State = StopNotStoppable
		outcome.Err = serr
		outcome.Error = serr.Error()
		recordTeardown(spec.Name, outcome.State)
		recordFailure(spec.Name, serr)
		return outcome
	}

	if !t.probe.IsOpen(spec.Port) {
		logger.Debugf("Service '%s' is not running", spec.Name)
		outcome.State = StopNotRunning
		recordTeardown(spec.Name, outcome.State)
		return outcome
	}

	owner, err := t.resolver.Resolve(spec)
	if err != nil {
		return fail(err)
	}
	outcome.Pid = owner.Pid
	outcome.Source = owner.Source
	if owner.Pid == t.selfPid {
		return fail(fmt.Errorf("port %d is served by the keeper itself (PID: %d)", spec.Port, owner.Pid))
	}

	logger.Infof("Stopping service '%s' (PID: %d, found by %s)", spec.Name, owner.Pid, owner.Source)
	start := time.Now()
	if owner.Handle != nil {
		err = owner.Handle.StopProcess(t.grace)
	} else {
		err = t.terminate(owner.Pid, t.grace)
	}
	if err != nil {
		return fail(err)
	}

	// a wrapper (gradlew, a start script) may exit while its child keeps the port
	if !t.waitClosed(spec.Port) && owner.Source != SourcePort {
		pid, ferr := t.resolver.PortOwner(spec.Port)
		switch {
		case ferr != nil:
			logger.Debugf("Service '%s': port %d still open, no owner found: %v", spec.Name, spec.Port, ferr)
		case pid == t.selfPid:
			return fail(fmt.Errorf("port %d is served by the keeper itself (PID: %d)", spec.Port, pid))
		case pid != owner.Pid:
			logger.Infof("Service '%s' still listening after PID %d exited, stopping port owner PID %d", spec.Name, owner.Pid, pid)
			outcome.Pid = pid
			outcome.Source = SourcePort
			if err := t.terminate(pid, t.grace); err != nil {
				return fail(err)
			}
		}
	}
	if !t.waitClosed(spec.Port) {
		return fail(fmt.Errorf("port %d still open after stopping PID %d", spec.Port, outcome.Pid))
	}
	observePhase(spec.Name, "stop", start)
	outcome.State = StopStopped
	recordTeardown(spec.Name, outcome.State)
	return outcome
}

// waitClosed polls the port until it is closed or the grace period is over.
func (t *Teardown) waitClosed(port int) bool {
	deadline := time.Now().Add(t.grace)
	for {
		if !t.probe.IsOpen(port) {
			return true
		}
		if !time.Now().Before(deadline) {
			return false
		}
		time.Sleep(closePollInterval)
	}
}
