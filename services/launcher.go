package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"grid-keeper/internal/config"
	"grid-keeper/internal/logger"
	"grid-keeper/internal/models"
	"grid-keeper/internal/proc"
)

// CommandRunner starts detached services and runs their hooks; proc.Runner is the real one.
type CommandRunner interface {
	Start(ctx context.Context, title, command string, args []string, workDir, logFile string) (proc.Handle, error)
	Run(ctx context.Context, command string, args []string, workDir string) error
}

/**
 * Service brought up by the launcher during one bootstrap
 * @property {models.ServiceSpec} spec - Service definition
 * @property {proc.Handle} process - Spawned child, nil when the port was already open
 * @property {bool} firstRun - The install happened during this bootstrap
 * @property {bool} alreadyRunning - The port was open before the launch
 * @property {bool} ready - Readiness was observed by the launcher
 * @property {bool} hooksRun - Post-start hooks were executed
 */
type RunningService struct {
	Spec           models.ServiceSpec
	Process        proc.Handle
	InstallDir     string
	FirstRun       bool
	AlreadyRunning bool
	Ready          bool
	HooksRun       bool
}

/**
 * Readiness polling policy
 * @property {time.Duration} interval - First delay
 * @property {time.Duration} maxInterval - Delay cap
 * @property {float64} multiplier - Growth factor of the delay, 1 keeps it fixed
 * @property {time.Duration} timeout - Overall bound, 0 disables it
 */
type ReadinessPolicy struct {
	Interval    time.Duration
	MaxInterval time.Duration
	Multiplier  float64
	Timeout     time.Duration
}

func NewReadinessPolicy(cfg config.ReadinessConfig) ReadinessPolicy {
	return ReadinessPolicy{
		Interval:    cfg.Interval,
		MaxInterval: cfg.MaxInterval,
		Multiplier:  cfg.Multiplier,
		Timeout:     cfg.Timeout,
	}
}

func (p ReadinessPolicy) first() time.Duration {
	if p.Interval <= 0 {
		return 100 * time.Millisecond
	}
	return p.Interval
}

func (p ReadinessPolicy) next(d time.Duration) time.Duration {
	if p.Multiplier <= 1 {
		return d
	}
	n := time.Duration(float64(d) * p.Multiplier)
	if p.MaxInterval > 0 && n > p.MaxInterval {
		n = p.MaxInterval
	}
	return n
}

type Launcher struct {
	layout Layout
	probe  PortProbe
	runner CommandRunner
	policy ReadinessPolicy
}

func NewLauncher(layout Layout, probe PortProbe, runner CommandRunner, policy ReadinessPolicy) *Launcher {
	return &Launcher{
		layout: layout,
		probe:  probe,
		runner: runner,
		policy: policy,
	}
}

/**
 * Start a service unless its port is already open
 * @param {context.Context} ctx - Honoured by the readiness wait and between hooks
 * @param {models.ServiceSpec} spec - Service definition
 * @param {string} installDir - Canonical install dir, empty for externally managed services
 * @param {bool} firstRun - Run the post-start hooks once the port is ready
 * @returns {*RunningService} Launch result, also returned together with a hook error
 * @description
 * - An open port makes the call a no-op: nothing spawned, no hooks
 * - The child is detached and keeps running after the keeper exits
 * - Hooks run in order; a failing hook does not stop the next ones
 * @throws
 * - ErrSpawn when the command cannot be prepared or launched
 * - ErrReadinessTimeout when the port stays closed past the policy timeout
 * - ErrHook when at least one hook failed, with a non-nil result
 */
func (l *Launcher) Start(ctx context.Context, spec models.ServiceSpec, installDir string, firstRun bool) (*RunningService, error) {
	rs := &RunningService{Spec: spec, InstallDir: installDir, FirstRun: firstRun}
	if l.probe.IsOpen(spec.Port) {
		logger.Infof("Service '%s' is already listening on port %d", spec.Name, spec.Port)
		rs.AlreadyRunning = true
		rs.Ready = true
		return rs, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, newServiceError(spec.Name, PhaseStart, ErrSpawn, err)
	}

	handle, err := l.spawn(ctx, spec, installDir)
	if err != nil {
		return nil, newServiceError(spec.Name, PhaseStart, ErrSpawn, err)
	}
	rs.Process = handle

	if !firstRun || len(spec.PostStartHooks) == 0 {
		return rs, nil
	}
	if err := l.WaitReady(ctx, spec); err != nil {
		return rs, err
	}
	rs.Ready = true
	rs.HooksRun = true
	return rs, l.runHooks(ctx, spec, installDir)
}

func (l *Launcher) spawn(ctx context.Context, spec models.ServiceSpec, installDir string) (proc.Handle, error) {
	for _, dir := range spec.PrepareDirs {
		p, err := l.layout.Path(spec, installDir, dir)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(p, 0755); err != nil {
			return nil, fmt.Errorf("prepare '%s': %w", p, err)
		}
	}
	workDir, err := l.layout.Path(spec, installDir, spec.Start.WorkDir)
	if err != nil {
		return nil, err
	}
	command, args, err := l.layout.CommandLine(spec, installDir, spec.Start)
	if err != nil {
		return nil, err
	}
	logFile, err := l.layout.LogFile(spec, installDir)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	handle, err := l.runner.Start(ctx, spec.Name, command, args, workDir, logFile)
	if err != nil {
		return nil, err
	}
	observePhase(spec.Name, "spawn", start)
	return handle, nil
}

/**
 * Poll the service port until it accepts connections
 * @param {context.Context} ctx - Cancels the wait
 * @param {models.ServiceSpec} spec - Service whose port is polled
 * @returns {error} ErrReadinessTimeout past the policy timeout
 * @description
 * - A cancelled ctx yields a ServiceError whose kind is ctx.Err(), not ErrReadinessTimeout
 */
func (l *Launcher) WaitReady(ctx context.Context, spec models.ServiceSpec) error {
	if l.probe.IsOpen(spec.Port) {
		return nil
	}
	start := time.Now()
	logger.Infof("Waiting for service '%s' on port %d", spec.Name, spec.Port)

	var deadline <-chan time.Time
	if l.policy.Timeout > 0 {
		timer := time.NewTimer(l.policy.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	delay := l.policy.first()
	for {
		tick := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			tick.Stop()
			return newServiceError(spec.Name, PhaseReadiness, ctx.Err(), fmt.Errorf("waiting for port %d", spec.Port))
		case <-deadline:
			tick.Stop()
			return newServiceError(spec.Name, PhaseReadiness, ErrReadinessTimeout,
				fmt.Errorf("port %d still closed after %s", spec.Port, l.policy.Timeout))
		case <-tick.C:
		}
		if l.probe.IsOpen(spec.Port) {
			observePhase(spec.Name, "readiness", start)
			logger.Infof("Service '%s' is ready on port %d", spec.Name, spec.Port)
			return nil
		}
		logger.Debugf("Service '%s' not ready yet, retry in %s", spec.Name, delay)
		delay = l.policy.next(delay)
	}
}

func (l *Launcher) runHooks(ctx context.Context, spec models.ServiceSpec, installDir string) error {
	var errs []error
	for i, hook := range spec.PostStartHooks {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := l.runHook(ctx, spec, installDir, hook); err != nil {
			logger.Errorf("Service '%s' hook #%d (%s) failed: %v", spec.Name, i+1, hook.String(), err)
			errs = append(errs, fmt.Errorf("hook #%d '%s': %w", i+1, hook.String(), err))
			continue
		}
		logger.Infof("Service '%s' hook #%d (%s) done", spec.Name, i+1, hook.String())
	}
	if len(errs) > 0 {
		return newServiceError(spec.Name, PhaseHook, ErrHook, errors.Join(errs...))
	}
	return nil
}

// runHook runs a hook in its own working directory, defaulting to the start one.
func (l *Launcher) runHook(ctx context.Context, spec models.ServiceSpec, installDir string, hook models.Command) error {
	wd := hook.WorkDir
	if wd == "" {
		wd = spec.Start.WorkDir
	}
	workDir, err := l.layout.Path(spec, installDir, wd)
	if err != nil {
		return err
	}
	command, args, err := l.layout.CommandLine(spec, installDir, hook)
	if err != nil {
		return err
	}
	return l.runner.Run(ctx, command, args, workDir)
}
