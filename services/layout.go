package services

import (
	"fmt"
	"path/filepath"

	"grid-keeper/internal/config"
	"grid-keeper/internal/models"
	"grid-keeper/internal/utils"
)

/**
 * Filesystem layout of the keeper
 * @property {string} dataDir - Root of all persisted state
 * @property {string} appsDir - Archives and canonical install dirs
 * @property {string} logsDir - Default location of service logs
 * @property {string} baseDir - Base of relative paths of externally managed services
 */
type Layout struct {
	DataDir string
	AppsDir string
	LogsDir string
	BaseDir string
}

func NewLayout(cfg *config.AppConfig) Layout {
	return Layout{
		DataDir: cfg.DataDir,
		AppsDir: cfg.AppsDir(),
		LogsDir: cfg.LogsDir(),
		BaseDir: cfg.BaseDir,
	}
}

// TemplateData is what command, args and paths of a service may refer to.
type TemplateData struct {
	Name       string
	Port       int
	InstallDir string
	DataDir    string
}

func (l Layout) ArchivePath(spec models.InstallSpec) string {
	return filepath.Join(l.AppsDir, spec.ArchiveName())
}

func (l Layout) InstallPath(spec models.InstallSpec) string {
	return filepath.Join(l.AppsDir, spec.InstallDir)
}

// ServiceRoot is the directory relative paths of a service resolve against.
func (l Layout) ServiceRoot(spec models.ServiceSpec, installDir string) string {
	if installDir != "" {
		return installDir
	}
	if spec.Install != nil {
		return l.InstallPath(*spec.Install)
	}
	return l.BaseDir
}

func (l Layout) templateData(spec models.ServiceSpec, installDir string) TemplateData {
	return TemplateData{
		Name:       spec.Name,
		Port:       spec.Port,
		InstallDir: l.ServiceRoot(spec, installDir),
		DataDir:    l.DataDir,
	}
}

// Path renders p as a template and anchors it at the service root when relative.
func (l Layout) Path(spec models.ServiceSpec, installDir, p string) (string, error) {
	rendered, err := utils.RenderString(p, l.templateData(spec, installDir))
	if err != nil {
		return "", fmt.Errorf("service '%s': %w", spec.Name, err)
	}
	if filepath.IsAbs(rendered) {
		return filepath.Clean(rendered), nil
	}
	return filepath.Join(l.ServiceRoot(spec, installDir), rendered), nil
}

func (l Layout) CommandLine(spec models.ServiceSpec, installDir string, cmd models.Command) (string, []string, error) {
	command, args, err := utils.GetCommandLine(cmd.Command, cmd.Args, l.templateData(spec, installDir))
	if err != nil {
		return "", nil, fmt.Errorf("service '%s': %w", spec.Name, err)
	}
	return command, args, nil
}

func (l Layout) LogFile(spec models.ServiceSpec, installDir string) (string, error) {
	if spec.LogFile == "" {
		return filepath.Join(l.LogsDir, spec.Name+".log"), nil
	}
	return l.Path(spec, installDir, spec.LogFile)
}

// PidFile returns "" when the service declares none.
func (l Layout) PidFile(spec models.ServiceSpec) (string, error) {
	if spec.PidFile == "" {
		return "", nil
	}
	return l.Path(spec, "", spec.PidFile)
}
