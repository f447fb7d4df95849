package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"grid-keeper/internal/config"
	"grid-keeper/internal/logger"
	"grid-keeper/internal/models"
	"grid-keeper/internal/proc"

	"github.com/sourcegraph/conc/pool"
)

type ServiceState string

const (
	StateStarted        ServiceState = "started"
	StateAlreadyRunning ServiceState = "already-running"
	StateFailed         ServiceState = "failed"
	StateSkipped        ServiceState = "skipped"
)

/**
 * Outcome of one service in a bootstrap
 * @property {string} name - Service name
 * @property {models.Tier} tier - Service tier
 * @property {ServiceState} state - started/already-running/failed/skipped
 * @property {bool} firstRun - The service was installed by this bootstrap
 * @property {bool} hooksRun - Post-start hooks were executed
 * @property {int} pid - Pid of the spawned child, 0 if none
 * @property {error} err - Failure, or hook error of a started service
 */
type ServiceOutcome struct {
	Name     string       `json:"name" yaml:"name"`
	Tier     models.Tier  `json:"tier" yaml:"tier"`
	State    ServiceState `json:"state" yaml:"state"`
	FirstRun bool         `json:"firstRun" yaml:"firstRun"`
	HooksRun bool         `json:"hooksRun" yaml:"hooksRun"`
	Pid      int          `json:"pid,omitempty" yaml:"pid,omitempty"`
	Error    string       `json:"error,omitempty" yaml:"error,omitempty"`
	Err      error        `json:"-" yaml:"-"`
}

type BootstrapReport struct {
	Services []ServiceOutcome `json:"services"`
}

// Failed lists the services whose bootstrap failed.
func (r *BootstrapReport) Failed() []ServiceOutcome {
	var failed []ServiceOutcome
	for _, o := range r.Services {
		if o.State == StateFailed {
			failed = append(failed, o)
		}
	}
	return failed
}

func (r *BootstrapReport) Outcome(name string) (ServiceOutcome, bool) {
	for _, o := range r.Services {
		if o.Name == name {
			return o, true
		}
	}
	return ServiceOutcome{}, false
}

type Orchestrator struct {
	registry    *config.Registry
	probe       PortProbe
	installer   Installer
	launcher    *Launcher
	maxParallel int

	mutex   sync.Mutex
	tracked map[string]proc.Handle
}

/**
 * Create an orchestrator
 * @param {*config.Registry} registry - Services to bring up
 * @param {PortProbe} probe - Liveness check
 * @param {Installer} installer - Artifact installer
 * @param {*Launcher} launcher - Service launcher
 * @param {int} maxParallel - Bound of concurrent application starts, <=0 means one per service
 */
func NewOrchestrator(registry *config.Registry, probe PortProbe, installer Installer, launcher *Launcher, maxParallel int) *Orchestrator {
	return &Orchestrator{
		registry:    registry,
		probe:       probe,
		installer:   installer,
		launcher:    launcher,
		maxParallel: maxParallel,
		tracked:     make(map[string]proc.Handle),
	}
}

// Tracked returns the child spawned for a service by this orchestrator, if any.
func (o *Orchestrator) Tracked(name string) proc.Handle {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	return o.tracked[name]
}

func (o *Orchestrator) track(name string, h proc.Handle) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.tracked[name] = h
}

// Forget drops the handle of a stopped service.
func (o *Orchestrator) Forget(name string) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	delete(o.tracked, name)
}

/**
 * Install and start every registered service
 * @param {context.Context} ctx - Cancels downloads, readiness waits and hooks
 * @returns {*BootstrapReport} Per-service outcome in registry order
 * @returns {error} First infrastructure failure, or the context error
 * @description
 * - Infrastructure services are handled one after another, each waited until ready
 * - The first infrastructure failure aborts; application services are then skipped
 * - Application services start concurrently; their failures only show in the report
 * - Started children are never killed by the orchestrator
 */
func (o *Orchestrator) Bootstrap(ctx context.Context) (*BootstrapReport, error) {
	svcs := o.registry.Services()
	report := &BootstrapReport{Services: make([]ServiceOutcome, len(svcs))}
	for i, spec := range svcs {
		report.Services[i] = ServiceOutcome{Name: spec.Name, Tier: spec.Tier, State: StateSkipped}
	}
	start := time.Now()
	defer func() { observePhase("all", "bootstrap", start) }()

	var apps []int
	for i, spec := range svcs {
		if !spec.IsInfrastructure() {
			apps = append(apps, i)
			continue
		}
		outcome, err := o.bringUp(ctx, spec)
		report.Services[i] = outcome
		if outcome.State == StateFailed {
			logger.Errorf("Infrastructure service '%s' failed, aborting bootstrap: %v", spec.Name, err)
			return report, err
		}
	}
	if len(apps) == 0 {
		return report, ctx.Err()
	}

	limit := o.maxParallel
	if limit <= 0 || limit > len(apps) {
		limit = len(apps)
	}
	p := pool.New().WithMaxGoroutines(limit)
	for _, idx := range apps {
		spec := svcs[idx]
		p.Go(func() {
			outcome, err := o.bringUp(ctx, spec)
			if outcome.State == StateFailed {
				logger.Errorf("Application service '%s' failed: %v", spec.Name, err)
			}
			// each task owns its slot
			report.Services[idx] = outcome
		})
	}
	p.Wait()
	return report, ctx.Err()
}

func (o *Orchestrator) bringUp(ctx context.Context, spec models.ServiceSpec) (ServiceOutcome, error) {
	outcome := ServiceOutcome{Name: spec.Name, Tier: spec.Tier}
	fail := func(err error) (ServiceOutcome, error) {
		outcome.State = StateFailed
		outcome.Err = err
		outcome.Error = err.Error()
		recordBootstrap(spec.Name, outcome.State)
		recordFailure(spec.Name, err)
		return outcome, err
	}

	if o.probe.IsOpen(spec.Port) {
		logger.Infof("Service '%s' is already running on port %d", spec.Name, spec.Port)
		outcome.State = StateAlreadyRunning
		recordBootstrap(spec.Name, outcome.State)
		return outcome, nil
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	var installDir string
	if spec.Install != nil {
		res, err := o.installer.EnsureInstalled(ctx, spec.Name, *spec.Install)
		if err != nil {
			return fail(err)
		}
		installDir = res.InstallDir
		outcome.FirstRun = res.FirstRun
	}

	rs, err := o.launcher.Start(ctx, spec, installDir, outcome.FirstRun)
	if rs != nil && rs.Process != nil {
		o.track(spec.Name, rs.Process)
		outcome.Pid = rs.Process.Pid()
	}
	if rs == nil {
		return fail(err)
	}
	outcome.HooksRun = rs.HooksRun
	if err != nil && !errors.Is(err, ErrHook) {
		return fail(err)
	}
	outcome.State = StateStarted
	if rs.AlreadyRunning {
		outcome.State = StateAlreadyRunning
	}
	if err != nil {
		// hook failures leave the service up
		outcome.Err = err
		outcome.Error = err.Error()
		recordFailure(spec.Name, err)
	}

	if spec.IsInfrastructure() && !rs.Ready {
		if werr := o.launcher.WaitReady(ctx, spec); werr != nil {
			return fail(werr)
		}
	}
	recordBootstrap(spec.Name, outcome.State)
	return outcome, nil
}
