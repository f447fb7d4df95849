package models

type RunStatus string

const (
	// port is accepting connections
	StatusRunning RunStatus = "running"
	// nothing listens on the port
	StatusStopped RunStatus = "stopped"
)

// InstallStatus is derived from the presence of the cached archive and install dir.
type InstallStatus string

const (
	InstallNone       InstallStatus = "-"
	InstallMissing    InstallStatus = "missing"
	InstallDownloaded InstallStatus = "downloaded"
	InstallInstalled  InstallStatus = "installed"
)

type ServiceDetail struct {
	Name       string        `json:"name" yaml:"name"`
	Tier       Tier          `json:"tier" yaml:"tier"`
	Port       int           `json:"port" yaml:"port"`
	Status     RunStatus     `json:"status" yaml:"status"`
	Install    InstallStatus `json:"install" yaml:"install"`
	InstallDir string        `json:"installDir,omitempty" yaml:"installDir,omitempty"`
	Pid        int           `json:"pid,omitempty" yaml:"pid,omitempty"`
	Spec       ServiceSpec   `json:"spec" yaml:"-"`
}

// ErrorResponse defines API error response format
type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}
