package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"grid-keeper/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
data_dir: state
server:
  address: 127.0.0.1:9999
readiness:
  interval: 200ms
  max_interval: 100ms
  multiplier: 0.5
  timeout: 2s
services:
  - name: search
    port: 9200
    tier: Infrastructure
    install:
      artifact_url: https://example.com/dist/search-7.1.tar.gz?sig=1
      version: search-7.1
    start:
      command: ./search
      working_directory: bin
  - name: web
    port: 8080
    start:
      command: ./run.sh
      args: ["--port", "{{.Port}}"]
      working_directory: ../web
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "grid-keeper.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	base := filepath.Dir(path)
	assert.Equal(t, base, cfg.BaseDir)
	assert.Equal(t, filepath.Join(base, "state"), cfg.DataDir)
	assert.Equal(t, filepath.Join(base, "state", "apps"), cfg.AppsDir())
	assert.Equal(t, filepath.Join(base, "state", "logs"), cfg.LogsDir())
	assert.Equal(t, "127.0.0.1:9999", cfg.Server.Address)

	assert.Equal(t, 200*time.Millisecond, cfg.Readiness.Interval)
	assert.Equal(t, 200*time.Millisecond, cfg.Readiness.MaxInterval, "max interval is raised to the interval")
	assert.Equal(t, 1.0, cfg.Readiness.Multiplier)
	assert.Equal(t, 2*time.Second, cfg.Readiness.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Shutdown.Grace)
	assert.Equal(t, 2, cfg.Download.Retries)

	require.Len(t, cfg.Services, 2)
	search := cfg.Services[0]
	assert.Equal(t, models.TierInfrastructure, search.Tier)
	assert.Equal(t, "search", search.Install.InstallDir)
	assert.Equal(t, "search-7.1.tar.gz", search.Install.ArchiveName())
	format, err := search.Install.Format()
	require.NoError(t, err)
	assert.Equal(t, models.ArchiveTarGz, format)

	web := cfg.Services[1]
	assert.Equal(t, models.TierApplication, web.Tier)
	assert.Nil(t, web.Install)
	assert.Equal(t, []string{"--port", "{{.Port}}"}, web.Start.Args)
	assert.Equal(t, "../web", web.Start.WorkDir)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("GRID_KEEPER_SERVER_ADDRESS", "127.0.0.1:7777")
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7777", cfg.Server.Address)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "log:\n  level: debug\n"))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "127.0.0.1:8090", cfg.Server.Address)
	assert.Len(t, cfg.Services, len(DefaultServices()))
	assert.Equal(t, "elasticsearch", cfg.Services[0].Name)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "services:\n  - name: a\n    port: 0\n    start:\n      command: x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port")
}

func TestValidateServices(t *testing.T) {
	valid := models.ServiceSpec{Name: "a", Port: 1, Tier: models.TierApplication, Start: models.Command{Command: "x"}}

	tests := []struct {
		name    string
		mutate  func(s *models.ServiceSpec)
		wantErr string
	}{
		{"valid", func(s *models.ServiceSpec) {}, ""},
		{"empty name", func(s *models.ServiceSpec) { s.Name = "" }, "name is required"},
		{"port too large", func(s *models.ServiceSpec) { s.Port = 70000 }, "invalid port"},
		{"unknown tier", func(s *models.ServiceSpec) { s.Tier = "middle" }, "unknown tier"},
		{"no command", func(s *models.ServiceSpec) { s.Start.Command = "" }, "start command is required"},
		{"no artifact", func(s *models.ServiceSpec) { s.Install = &models.InstallSpec{InstallDir: "a"} }, "artifact_url is required"},
		{"unknown format", func(s *models.ServiceSpec) {
			s.Install = &models.InstallSpec{ArtifactURL: "https://x/a.rar", InstallDir: "a"}
		}, "cannot infer archive format"},
		{"nested install dir", func(s *models.ServiceSpec) {
			s.Install = &models.InstallSpec{ArtifactURL: "https://x/a.zip", InstallDir: "a/b"}
		}, "plain directory name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := valid
			tt.mutate(&svc)
			err := ValidateServices([]models.ServiceSpec{svc})
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	err := ValidateServices([]models.ServiceSpec{valid, valid})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicated name")
}

func TestRegistry(t *testing.T) {
	reg, err := NewRegistry(DefaultServices())
	require.NoError(t, err)

	infra := reg.ByTier(models.TierInfrastructure)
	require.Len(t, infra, 2)
	assert.Equal(t, "elasticsearch", infra[0].Name)
	assert.Equal(t, "rabbitmq", infra[1].Name)
	assert.Len(t, reg.ByTier(models.TierApplication), 4)

	svc, err := reg.Get("rabbitmq")
	require.NoError(t, err)
	assert.Equal(t, 5672, svc.Port)
	assert.Len(t, svc.PostStartHooks, 4)

	_, err = reg.Get("nope")
	assert.ErrorIs(t, err, ErrServiceNotFound)

	list := reg.Services()
	list[0].Name = "changed"
	assert.Equal(t, "elasticsearch", reg.Services()[0].Name, "Services returns a copy")
}

func TestRegistryDoesNotShareCallerSpecs(t *testing.T) {
	svcs := []models.ServiceSpec{{
		Name:           "search",
		Port:           9200,
		Tier:           models.TierInfrastructure,
		Install:        &models.InstallSpec{ArtifactURL: "https://example.com/search.tar.gz"},
		Start:          models.Command{Command: "./search", Args: []string{"-d"}},
		PostStartHooks: []models.Command{{Command: "./init", Args: []string{"--once"}}},
		PrepareDirs:    []string{"data"},
	}}
	reg, err := NewRegistry(svcs)
	require.NoError(t, err)
	assert.Empty(t, svcs[0].Install.InstallDir, "caller's install spec left untouched")

	got, err := reg.Get("search")
	require.NoError(t, err)
	assert.Equal(t, "search", got.Install.InstallDir)

	svcs[0].Install.ArtifactURL = "https://example.com/other.tar.gz"
	svcs[0].PostStartHooks[0].Args[0] = "--changed"
	svcs[0].PrepareDirs[0] = "changed"
	got.Start.Args[0] = "-x"
	got.Install.Version = "9"

	again, err := reg.Get("search")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/search.tar.gz", again.Install.ArtifactURL)
	assert.Empty(t, again.Install.Version)
	assert.Equal(t, []string{"-d"}, again.Start.Args)
	assert.Equal(t, []string{"--once"}, again.PostStartHooks[0].Args)
	assert.Equal(t, []string{"data"}, again.PrepareDirs)
}
