//go:build linux

package utils

import (
	"fmt"

	"github.com/prometheus/procfs"
)

// tcpListen is TCP_LISTEN in /proc/net/tcp's st column
const tcpListen = 0x0A

/**
 * Find the process listening on a local TCP port
 * @param {int} port - Listening port
 * @returns {int} PID of the owner
 * @description
 * - Collects inodes of listening sockets from /proc/net/tcp and /proc/net/tcp6
 * - Walks /proc/<pid>/fd looking for "socket:[inode]"
 * - Processes of other users are skipped when their fds cannot be read
 */
func FindPortOwner(port int) (int, error) {
	fs, err := procfs.NewFS(procfs.DefaultMountPoint)
	if err != nil {
		return 0, fmt.Errorf("open procfs: %w", err)
	}
	inodes := make(map[string]bool)
	if tcp, err := fs.NetTCP(); err == nil {
		for _, line := range tcp {
			if line.St == tcpListen && line.LocalPort == uint64(port) {
				inodes[fmt.Sprintf("socket:[%d]", line.Inode)] = true
			}
		}
	}
	if tcp6, err := fs.NetTCP6(); err == nil {
		for _, line := range tcp6 {
			if line.St == tcpListen && line.LocalPort == uint64(port) {
				inodes[fmt.Sprintf("socket:[%d]", line.Inode)] = true
			}
		}
	}
	if len(inodes) == 0 {
		return 0, fmt.Errorf("port %d: %w", port, ErrNoPortOwner)
	}

	procs, err := fs.AllProcs()
	if err != nil {
		return 0, fmt.Errorf("list processes: %w", err)
	}
	for _, p := range procs {
		targets, err := p.FileDescriptorTargets()
		if err != nil {
			continue
		}
		for _, t := range targets {
			if inodes[t] {
				return p.PID, nil
			}
		}
	}
	return 0, fmt.Errorf("port %d: %w", port, ErrNoPortOwner)
}
