package services

import (
	"context"
	"errors"
	"fmt"
)

// Failure kinds. Match them with errors.Is on any error returned by this package.
var (
	ErrDownload           = errors.New("download failed")
	ErrExtraction         = errors.New("extraction failed")
	ErrSpawn              = errors.New("spawn failed")
	ErrReadinessTimeout   = errors.New("service did not become ready")
	ErrHook               = errors.New("post-start hook failed")
	ErrTeardownResolution = errors.New("owning process could not be resolved")
)

const (
	PhaseInstall   = "install"
	PhaseStart     = "start"
	PhaseReadiness = "readiness"
	PhaseHook      = "hook"
	PhaseTeardown  = "teardown"
)

/**
 * Error of one service in one phase
 * @property {string} service - Service name
 * @property {string} phase - install/start/readiness/hook/teardown
 * @property {error} kind - One of the Err* sentinels
 * @property {error} err - Underlying cause
 */
type ServiceError struct {
	Service string
	Phase   string
	Kind    error
	Err     error
}

func newServiceError(service, phase string, kind, err error) *ServiceError {
	return &ServiceError{Service: service, Phase: phase, Kind: kind, Err: err}
}

func (e *ServiceError) Error() string {
	if e.Err == nil || e.Err == e.Kind {
		return fmt.Sprintf("service '%s' %s: %v", e.Service, e.Phase, e.Kind)
	}
	return fmt.Sprintf("service '%s' %s: %v: %v", e.Service, e.Phase, e.Kind, e.Err)
}

func (e *ServiceError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// kindName gives the metrics label of an error.
func kindName(err error) string {
	switch {
	case errors.Is(err, ErrDownload):
		return "download"
	case errors.Is(err, ErrExtraction):
		return "extraction"
	case errors.Is(err, ErrSpawn):
		return "spawn"
	case errors.Is(err, ErrReadinessTimeout):
		return "readiness"
	case errors.Is(err, ErrHook):
		return "hook"
	case errors.Is(err, ErrTeardownResolution):
		return "teardown"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	}
	return "other"
}
