package services

import (
	"context"
	"errors"
	"sync"

	"grid-keeper/internal/config"
	"grid-keeper/internal/models"
	"grid-keeper/internal/proc"
	"grid-keeper/internal/utils"
)

// ErrBusy is returned when a bootstrap or shutdown is already in progress.
var ErrBusy = errors.New("another bootstrap or shutdown is in progress")

/**
 * Entry point tying the registry to installer, launcher, orchestrator and teardown
 * @property {*config.AppConfig} cfg - Loaded configuration
 * @property {*config.Registry} registry - Known services
 * @property {Layout} layout - Filesystem layout
 */
type ServiceManager struct {
	cfg          *config.AppConfig
	registry     *config.Registry
	layout       Layout
	probe        PortProbe
	installer    *ArtifactInstaller
	orchestrator *Orchestrator
	resolver     *Resolver
	teardown     *Teardown

	busy sync.Mutex
}

/**
 * Build a service manager from configuration
 * @param {*config.AppConfig} cfg - Loaded configuration
 * @returns {*ServiceManager} Ready to bootstrap/shutdown
 * @description
 * - Uses a TCP probe, the retrying downloader and detached os/exec children
 */
func NewServiceManager(cfg *config.AppConfig) (*ServiceManager, error) {
	downloader := utils.NewDownloader(cfg.Download.Retries, cfg.Download.Timeout)
	return NewServiceManagerWith(cfg, NewTCPProbe(cfg.Probe.Timeout), downloader, proc.NewRunner())
}

// NewServiceManagerWith builds a manager around the given probe, fetcher and runner.
func NewServiceManagerWith(cfg *config.AppConfig, probe PortProbe, fetcher Fetcher, runner CommandRunner) (*ServiceManager, error) {
	registry, err := config.NewRegistry(cfg.Services)
	if err != nil {
		return nil, err
	}
	layout := NewLayout(cfg)
	installer := NewArtifactInstaller(layout, fetcher)
	launcher := NewLauncher(layout, probe, runner, NewReadinessPolicy(cfg.Readiness))
	orchestrator := NewOrchestrator(registry, probe, installer, launcher, cfg.Bootstrap.MaxParallel)
	resolver := NewResolver(layout, orchestrator)
	return &ServiceManager{
		cfg:          cfg,
		registry:     registry,
		layout:       layout,
		probe:        probe,
		installer:    installer,
		orchestrator: orchestrator,
		resolver:     resolver,
		teardown:     NewTeardown(registry, probe, resolver, cfg.Shutdown.Grace),
	}, nil
}

func (sm *ServiceManager) Registry() *config.Registry {
	return sm.registry
}

func (sm *ServiceManager) Bootstrap(ctx context.Context) (*BootstrapReport, error) {
	if !sm.busy.TryLock() {
		return nil, ErrBusy
	}
	defer sm.busy.Unlock()
	return sm.orchestrator.Bootstrap(ctx)
}

func (sm *ServiceManager) Shutdown(ctx context.Context) (*ShutdownReport, error) {
	if !sm.busy.TryLock() {
		return nil, ErrBusy
	}
	defer sm.busy.Unlock()
	report, err := sm.teardown.Shutdown(ctx)
	for _, o := range report.Services {
		if o.State == StopStopped {
			sm.orchestrator.Forget(o.Name)
		}
	}
	return report, err
}

// GetServices reports every registered service in registry order.
func (sm *ServiceManager) GetServices() []models.ServiceDetail {
	var details []models.ServiceDetail
	for _, spec := range sm.registry.Services() {
		details = append(details, sm.detail(spec))
	}
	return details
}

func (sm *ServiceManager) GetService(name string) (models.ServiceDetail, error) {
	spec, err := sm.registry.Get(name)
	if err != nil {
		return models.ServiceDetail{}, err
	}
	return sm.detail(spec), nil
}

func (sm *ServiceManager) detail(spec models.ServiceSpec) models.ServiceDetail {
	d := models.ServiceDetail{
		Name:    spec.Name,
		Tier:    spec.Tier,
		Port:    spec.Port,
		Status:  models.StatusStopped,
		Install: sm.installer.State(spec.Install),
		Spec:    spec,
	}
	if spec.Install != nil {
		d.InstallDir = sm.layout.InstallPath(*spec.Install)
	}
	if sm.probe.IsOpen(spec.Port) {
		d.Status = models.StatusRunning
		if owner, err := sm.resolver.Resolve(spec); err == nil {
			d.Pid = owner.Pid
		}
	}
	return d
}
