package server

import (
	"errors"
	"net"
	"os"
	"path/filepath"

	"grid-keeper/internal/logger"
)

type ListenAddr struct {
	Network string
	Address string
}

/**
 * Create the listeners of the HTTP server
 * @param {[]ListenAddr} addrs - Listener addresses
 * @returns {[]net.Listener} Listeners that could be created
 * @returns {error} Last creation error, nil if every listener was created
 * @description
 * - Stale unix socket files are removed before listening
 * - The socket directory is created when missing
 */
func CreateListeners(addrs []ListenAddr) ([]net.Listener, error) {
	var listeners []net.Listener

	var lastErr error
	for _, addr := range addrs {
		if addr.Network == "unix" {
			if err := os.MkdirAll(filepath.Dir(addr.Address), 0755); err != nil {
				lastErr = err
				continue
			}
			if err := os.Remove(addr.Address); err != nil && !errors.Is(err, os.ErrNotExist) {
				logger.Errorf("Failed to remove existing socket file: %v", err)
				lastErr = err
				continue
			}
		}
		l, err := net.Listen(addr.Network, addr.Address)
		if err != nil {
			logger.Errorf("Failed to create listener on %s://%s: %v", addr.Network, addr.Address, err)
			lastErr = err
			continue
		}
		logger.Infof("Listening on %s://%s", addr.Network, addr.Address)
		listeners = append(listeners, l)
	}
	return listeners, lastErr
}
