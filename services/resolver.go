package services

import (
	"errors"
	"fmt"

	"grid-keeper/internal/logger"
	"grid-keeper/internal/models"
	"grid-keeper/internal/proc"
	"grid-keeper/internal/utils"
)

const (
	SourceTracked = "tracked"
	SourcePidFile = "pid_file"
	SourcePort    = "port"
)

// Tracker hands out children spawned by this keeper process.
type Tracker interface {
	Tracked(name string) proc.Handle
}

/**
 * Owner of a service port
 * @property {int} pid - Process id
 * @property {string} source - How it was found: tracked/pid_file/port
 * @property {proc.Handle} handle - Set when the keeper spawned the process itself
 */
type Owner struct {
	Pid    int
	Source string
	Handle proc.Handle
}

type Resolver struct {
	layout    Layout
	tracker   Tracker
	findOwner func(port int) (int, error)
	isRunning func(pid int) (bool, error)
}

// NewResolver builds a resolver; tracker may be nil outside server mode.
func NewResolver(layout Layout, tracker Tracker) *Resolver {
	return &Resolver{
		layout:    layout,
		tracker:   tracker,
		findOwner: utils.FindPortOwner,
		isRunning: utils.IsProcessRunning,
	}
}

/**
 * Find the process serving a service
 * @param {models.ServiceSpec} spec - Service to look up
 * @returns {Owner} First match of: tracked child, pid file, port owner
 * @returns {error} Wraps utils.ErrNoPortOwner when nothing matched
 */
func (r *Resolver) Resolve(spec models.ServiceSpec) (Owner, error) {
	if r.tracker != nil {
		if h := r.tracker.Tracked(spec.Name); h != nil {
			select {
			case <-h.Done():
			default:
				return Owner{Pid: h.Pid(), Source: SourceTracked, Handle: h}, nil
			}
		}
	}

	var errs []error
	pidFile, err := r.layout.PidFile(spec)
	if err != nil {
		errs = append(errs, err)
	} else if pidFile != "" {
		if pid, err := utils.ReadPidFile(pidFile); err != nil {
			logger.Debugf("Service '%s': pid file not usable: %v", spec.Name, err)
			errs = append(errs, err)
		} else if running, rerr := r.isRunning(pid); running {
			return Owner{Pid: pid, Source: SourcePidFile}, nil
		} else if rerr != nil {
			errs = append(errs, fmt.Errorf("pid file '%s' (PID: %d): %w", pidFile, pid, rerr))
		} else {
			errs = append(errs, fmt.Errorf("stale pid file '%s' (PID: %d)", pidFile, pid))
		}
	}

	pid, err := r.findOwner(spec.Port)
	if err == nil {
		return Owner{Pid: pid, Source: SourcePort}, nil
	}
	errs = append(errs, err)
	if !errors.Is(err, utils.ErrNoPortOwner) {
		errs = append(errs, utils.ErrNoPortOwner)
	}
	return Owner{}, errors.Join(errs...)
}

// PortOwner looks the port up in the socket table only.
func (r *Resolver) PortOwner(port int) (int, error) {
	return r.findOwner(port)
}
