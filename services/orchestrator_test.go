package services

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"grid-keeper/internal/models"
	"grid-keeper/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appSpec(name string, port int) models.ServiceSpec {
	return models.ServiceSpec{
		Name:  name,
		Port:  port,
		Tier:  models.TierApplication,
		Start: models.Command{Command: "./gradlew", Args: []string{"run"}, WorkDir: "../" + name},
	}
}

func infraSpec(name string, port int, url string) models.ServiceSpec {
	return models.ServiceSpec{
		Name: name,
		Port: port,
		Tier: models.TierInfrastructure,
		Install: &models.InstallSpec{
			ArtifactURL: url,
			Version:     name + "-1.0",
			InstallDir:  name,
		},
		Start:          models.Command{Command: "./" + name, WorkDir: "bin"},
		PostStartHooks: []models.Command{{Command: "./" + name + "-admin", Args: []string{"init"}}},
	}
}

func newTestOrchestrator(t *testing.T, probe PortProbe, installer Installer, runner CommandRunner, svcs ...models.ServiceSpec) *Orchestrator {
	t.Helper()
	cfg := testConfig(t)
	layout := NewLayout(cfg)
	launcher := NewLauncher(layout, probe, runner, NewReadinessPolicy(cfg.Readiness))
	return NewOrchestrator(testRegistry(t, svcs...), probe, installer, launcher, 0)
}

func TestBootstrapInfrastructureFailureIsFatal(t *testing.T) {
	probe := newFakeProbe()
	runner := newFakeRunner()
	installer := newFakeInstaller()
	installer.err["search"] = errBoom
	o := newTestOrchestrator(t, probe, installer, runner,
		infraSpec("search", 9200, "http://127.0.0.1:1/search.tar.gz"),
		infraSpec("broker", 5672, "http://127.0.0.1:1/broker.tar.gz"),
		appSpec("grid_mcp", 8100),
		appSpec("grid_loader", 8200),
	)

	report, err := o.Bootstrap(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDownload)
	assert.Zero(t, runner.startCount())
	assert.Equal(t, []string{"search"}, installer.calls)

	failed, ok := report.Outcome("search")
	require.True(t, ok)
	assert.Equal(t, StateFailed, failed.State)
	for _, name := range []string{"broker", "grid_mcp", "grid_loader"} {
		o, _ := report.Outcome(name)
		assert.Equal(t, StateSkipped, o.State, name)
	}
}

func TestBootstrapInfrastructureReadinessTimeoutIsFatal(t *testing.T) {
	probe := newFakeProbe()
	runner := newFakeRunner()
	installer := newFakeInstaller()
	installer.result["search"] = InstallResult{InstallDir: t.TempDir()}
	o := newTestOrchestrator(t, probe, installer, runner,
		infraSpec("search", 9200, "http://127.0.0.1:1/search.tar.gz"),
		appSpec("grid_mcp", 8100),
	)
	o.launcher.policy = ReadinessPolicy{Interval: 5 * time.Millisecond, Timeout: 30 * time.Millisecond}

	report, err := o.Bootstrap(context.Background())
	assert.ErrorIs(t, err, ErrReadinessTimeout)
	assert.Equal(t, []string{"search"}, runner.startTitles())
	app, _ := report.Outcome("grid_mcp")
	assert.Equal(t, StateSkipped, app.State)
	// the spawned child is left alone and stays tracked
	assert.NotNil(t, o.Tracked("search"))
}

func TestBootstrapApplicationFailureIsIsolated(t *testing.T) {
	probe := newFakeProbe()
	runner := newFakeRunner()
	runner.startErr["grid_loader"] = errBoom
	o := newTestOrchestrator(t, probe, newFakeInstaller(), runner,
		appSpec("grid_mcp", 8100),
		appSpec("grid_loader", 8200),
		appSpec("grid_crawler", 8300),
	)

	report, err := o.Bootstrap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, runner.startCount())

	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "grid_loader", failed[0].Name)
	assert.ErrorIs(t, failed[0].Err, ErrSpawn)
	assert.Contains(t, failed[0].Error, "grid_loader")

	for _, name := range []string{"grid_mcp", "grid_crawler"} {
		o, _ := report.Outcome(name)
		assert.Equal(t, StateStarted, o.State, name)
	}
}

func TestBootstrapStartsApplicationsAfterInfrastructureIsReady(t *testing.T) {
	probe := newFakeProbe()
	runner := newFakeRunner()
	var mutex sync.Mutex
	var readyAtAppStart []bool
	runner.onStart = func(title string) func() {
		if title == "search" {
			// infrastructure becomes reachable a little later
			go func() {
				time.Sleep(30 * time.Millisecond)
				probe.set(9200, true)
			}()
			return nil
		}
		mutex.Lock()
		readyAtAppStart = append(readyAtAppStart, probe.IsOpen(9200))
		mutex.Unlock()
		return nil
	}
	installer := newFakeInstaller()
	installer.result["search"] = InstallResult{InstallDir: t.TempDir(), FirstRun: false}
	o := newTestOrchestrator(t, probe, installer, runner,
		infraSpec("search", 9200, "http://127.0.0.1:1/search.tar.gz"),
		appSpec("grid_mcp", 8100),
		appSpec("grid_parser", 8500),
	)

	report, err := o.Bootstrap(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Failed())
	assert.Equal(t, []bool{true, true}, readyAtAppStart)
	assert.Zero(t, runner.runCount(), "hooks only run on the install run")
}

func TestBootstrapAlreadyRunningSkipsEverything(t *testing.T) {
	probe := newFakeProbe(9200, 8100)
	runner := newFakeRunner()
	installer := newFakeInstaller()
	o := newTestOrchestrator(t, probe, installer, runner,
		infraSpec("search", 9200, "http://127.0.0.1:1/search.tar.gz"),
		appSpec("grid_mcp", 8100),
	)

	report, err := o.Bootstrap(context.Background())
	require.NoError(t, err)
	assert.Empty(t, installer.calls)
	assert.Zero(t, runner.startCount())
	assert.Zero(t, runner.runCount())
	for _, o := range report.Services {
		assert.Equal(t, StateAlreadyRunning, o.State)
	}
}

func TestBootstrapBoundedParallelism(t *testing.T) {
	probe := newFakeProbe()
	runner := newFakeRunner()
	var mutex sync.Mutex
	running, peak := 0, 0
	runner.onStart = func(string) func() {
		mutex.Lock()
		running++
		if running > peak {
			peak = running
		}
		mutex.Unlock()
		time.Sleep(20 * time.Millisecond)
		mutex.Lock()
		running--
		mutex.Unlock()
		return nil
	}
	o := newTestOrchestrator(t, probe, newFakeInstaller(), runner,
		appSpec("a", 8101), appSpec("b", 8102), appSpec("c", 8103), appSpec("d", 8104))
	o.maxParallel = 2

	_, err := o.Bootstrap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, runner.startCount())
	assert.LessOrEqual(t, peak, 2)
}

// bindingRunner binds the service port on spawn, like a real service would.
func bindingRunner(t *testing.T, ports map[string]int) (*fakeRunner, map[string]net.Listener) {
	runner := newFakeRunner()
	var mutex sync.Mutex
	listeners := make(map[string]net.Listener)
	runner.onStart = func(title string) func() {
		l := listen(t, ports[title])
		mutex.Lock()
		listeners[title] = l
		mutex.Unlock()
		t.Cleanup(func() { l.Close() })
		return func() { l.Close() }
	}
	return runner, listeners
}

func TestBootstrapEndToEnd(t *testing.T) {
	searchPort, appPort := freePort(t), freePort(t)
	srv, hits := artifactServer(t, tarGz(t, map[string]string{"search-1.0/bin/search": "#!/bin/sh\n"}))
	runner, _ := bindingRunner(t, map[string]int{"search": searchPort, "grid_mcp": appPort})

	cfg := testConfig(t,
		infraSpec("search", searchPort, srv.URL+"/search-1.0.tar.gz"),
		appSpec("grid_mcp", appPort),
	)
	probe := NewTCPProbe(cfg.Probe.Timeout)
	fetcher := &countingFetcher{inner: utils.NewDownloader(0, 5*time.Second)}

	// fresh machine: download, extract, start, wait, hooks, then the application
	sm, err := NewServiceManagerWith(cfg, probe, fetcher, runner)
	require.NoError(t, err)
	report, err := sm.Bootstrap(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Failed())
	search, _ := report.Outcome("search")
	assert.Equal(t, StateStarted, search.State)
	assert.True(t, search.FirstRun)
	assert.True(t, search.HooksRun)
	assert.True(t, probe.IsOpen(searchPort))
	assert.True(t, probe.IsOpen(appPort))
	assert.EqualValues(t, 1, hits.Load())
	assert.Equal(t, 2, runner.startCount())
	assert.Equal(t, 1, runner.runCount())

	details := sm.GetServices()
	require.Len(t, details, 2)
	assert.Equal(t, models.StatusRunning, details[0].Status)
	assert.Equal(t, models.InstallInstalled, details[0].Install)

	// rerun with everything up: nothing is downloaded, extracted, spawned or hooked
	sm, err = NewServiceManagerWith(cfg, probe, fetcher, runner)
	require.NoError(t, err)
	report, err = sm.Bootstrap(context.Background())
	require.NoError(t, err)
	for _, o := range report.Services {
		assert.Equal(t, StateAlreadyRunning, o.State)
	}
	assert.EqualValues(t, 1, hits.Load())
	assert.EqualValues(t, 1, fetcher.calls.Load())
	assert.Equal(t, 2, runner.startCount())
	assert.Equal(t, 1, runner.runCount())
}

func TestServiceManagerRejectsConcurrentOperations(t *testing.T) {
	cfg := testConfig(t, appSpec("grid_mcp", 8100))
	sm, err := NewServiceManagerWith(cfg, newFakeProbe(8100), nil, newFakeRunner())
	require.NoError(t, err)

	sm.busy.Lock()
	_, err = sm.Bootstrap(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	_, err = sm.Shutdown(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	sm.busy.Unlock()

	_, err = sm.GetService("nope")
	assert.Error(t, err)
}
