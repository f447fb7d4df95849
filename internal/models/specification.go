package models

import (
	"fmt"
	"path"
	"strings"
)

// Tier groups services by what they may assume at start time.
type Tier string

const (
	// TierInfrastructure services are installed and started first, one after another.
	TierInfrastructure Tier = "infrastructure"
	// TierApplication services only depend on the infrastructure tier and start concurrently.
	TierApplication Tier = "application"
)

// ArchiveFormat names a supported distribution archive layout.
type ArchiveFormat string

const (
	ArchiveTarGz ArchiveFormat = "tar.gz"
	ArchiveTarXz ArchiveFormat = "tar.xz"
	ArchiveZip   ArchiveFormat = "zip"
)

/**
 * Command with template-able arguments
 * @property {string} command - Executable, relative to workdir or found on PATH
 * @property {[]string} args - Command arguments
 * @property {string} workdir - Working directory; relative to the install dir for installed services
 */
type Command struct {
	Command string   `mapstructure:"command" json:"command" yaml:"command"`
	Args    []string `mapstructure:"args" json:"args,omitempty" yaml:"args,omitempty"`
	WorkDir string   `mapstructure:"working_directory" json:"workingDirectory,omitempty" yaml:"working_directory,omitempty"`
}

func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Command
	}
	return c.Command + " " + strings.Join(c.Args, " ")
}

/**
 * Install specification of a binary distribution
 * @property {string} url - Artifact download URL
 * @property {ArchiveFormat} format - Archive format, inferred from url when empty
 * @property {string} version - Versioned top-level directory produced by the archive
 * @property {string} installDir - Canonical, version-independent directory name under <data>/apps
 */
type InstallSpec struct {
	ArtifactURL   string        `mapstructure:"artifact_url" json:"artifactUrl" yaml:"artifact_url"`
	ArchiveFormat ArchiveFormat `mapstructure:"archive_format" json:"archiveFormat,omitempty" yaml:"archive_format,omitempty"`
	Version       string        `mapstructure:"version" json:"version,omitempty" yaml:"version,omitempty"`
	InstallDir    string        `mapstructure:"install_dir" json:"installDir,omitempty" yaml:"install_dir,omitempty"`
}

// ArchiveName returns the versioned file name the archive is cached under.
func (is *InstallSpec) ArchiveName() string {
	u := is.ArtifactURL
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	return path.Base(u)
}

// Format returns the declared archive format or the one implied by the URL.
func (is *InstallSpec) Format() (ArchiveFormat, error) {
	if is.ArchiveFormat != "" {
		switch is.ArchiveFormat {
		case ArchiveTarGz, ArchiveTarXz, ArchiveZip:
			return is.ArchiveFormat, nil
		case "tgz":
			return ArchiveTarGz, nil
		case "txz":
			return ArchiveTarXz, nil
		}
		return "", fmt.Errorf("unsupported archive format '%s'", is.ArchiveFormat)
	}
	name := strings.ToLower(is.ArchiveName())
	switch {
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return ArchiveTarGz, nil
	case strings.HasSuffix(name, ".tar.xz"), strings.HasSuffix(name, ".txz"):
		return ArchiveTarXz, nil
	case strings.HasSuffix(name, ".zip"):
		return ArchiveZip, nil
	}
	return "", fmt.Errorf("cannot infer archive format from '%s'", is.ArtifactURL)
}

/**
 * Service definition of the bootstrap registry
 * @property {string} name - Service name, unique within the registry
 * @property {int} port - TCP port used as liveness/readiness signal
 * @property {Tier} tier - Dependency tier: infrastructure/application
 * @property {*InstallSpec} install - Binary distribution, nil for externally managed services
 * @property {Command} start - Start command
 * @property {[]Command} hooks - Commands run once after the first start of a fresh install
 * @property {string} logFile - File receiving stdout/stderr of the detached process
 * @property {string} pidFile - File the service writes its own pid into
 * @property {[]string} prepareDirs - Directories created under the install dir before start
 */
type ServiceSpec struct {
	Name           string       `mapstructure:"name" json:"name" yaml:"name"`
	Port           int          `mapstructure:"port" json:"port" yaml:"port"`
	Tier           Tier         `mapstructure:"tier" json:"tier" yaml:"tier"`
	Install        *InstallSpec `mapstructure:"install" json:"install,omitempty" yaml:"install,omitempty"`
	Start          Command      `mapstructure:"start" json:"start" yaml:"start"`
	PostStartHooks []Command    `mapstructure:"post_start_hooks" json:"postStartHooks,omitempty" yaml:"post_start_hooks,omitempty"`
	LogFile        string       `mapstructure:"log_file" json:"logFile,omitempty" yaml:"log_file,omitempty"`
	PidFile        string       `mapstructure:"pid_file" json:"pidFile,omitempty" yaml:"pid_file,omitempty"`
	PrepareDirs    []string     `mapstructure:"prepare_dirs" json:"prepareDirs,omitempty" yaml:"prepare_dirs,omitempty"`
}

// Clone returns a copy sharing no pointer or slice with s.
func (s ServiceSpec) Clone() ServiceSpec {
	if s.Install != nil {
		install := *s.Install
		s.Install = &install
	}
	s.Start = s.Start.clone()
	if s.PostStartHooks != nil {
		hooks := make([]Command, len(s.PostStartHooks))
		for i, h := range s.PostStartHooks {
			hooks[i] = h.clone()
		}
		s.PostStartHooks = hooks
	}
	if s.PrepareDirs != nil {
		s.PrepareDirs = append([]string(nil), s.PrepareDirs...)
	}
	return s
}

func (c Command) clone() Command {
	if c.Args != nil {
		c.Args = append([]string(nil), c.Args...)
	}
	return c
}

func (s *ServiceSpec) IsInfrastructure() bool {
	return s.Tier == TierInfrastructure
}
