package services

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

const DefaultTailLines = 100

/**
 * Read the end of a service log file
 * @param {string} name - Service name
 * @param {int} lines - Number of trailing lines, <=0 uses DefaultTailLines
 * @returns {string} Log file path
 * @returns {[]string} Last lines, oldest first
 * @returns {error} Unknown service or unreadable file
 * @description
 * - The log file is the one the launcher appends the service output to
 * - Services already running before the keeper may log elsewhere
 */
func (sm *ServiceManager) TailLog(name string, lines int) (string, []string, error) {
	spec, err := sm.registry.Get(name)
	if err != nil {
		return "", nil, err
	}
	path, err := sm.layout.LogFile(spec, "")
	if err != nil {
		return "", nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return path, nil, fmt.Errorf("open log of '%s': %w", name, err)
	}
	defer f.Close()
	tail, err := tailLines(f, lines)
	return path, tail, err
}

func tailLines(r io.Reader, n int) ([]string, error) {
	if n <= 0 {
		n = DefaultTailLines
	}
	ring := make([]string, 0, n)
	start := 0
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if len(ring) < n {
			ring = append(ring, sc.Text())
			continue
		}
		ring[start] = sc.Text()
		start = (start + 1) % n
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return append(ring[start:], ring[:start]...), nil
}
