package utils

import (
	"net"
	"strconv"
	"time"
)

// DefaultProbeTimeout bounds a single connect attempt.
const DefaultProbeTimeout = time.Second

/**
 * Check whether a TCP endpoint on the loopback interface accepts connections
 * @param {int} port - Port to connect to
 * @param {time.Duration} timeout - Connect timeout, <=0 uses DefaultProbeTimeout
 * @returns {bool} true iff the connect succeeded
 * @description
 * - Refused, timed out and unreachable all report false
 * - The connection is closed immediately, nothing is cached
 */
func CheckPortConnectable(port int, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	conn, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
