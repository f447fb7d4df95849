package services

import (
	"time"

	"grid-keeper/internal/utils"
)

// PortProbe tells whether something accepts connections on a loopback port.
type PortProbe interface {
	IsOpen(port int) bool
}

type TCPProbe struct {
	Timeout time.Duration
}

func NewTCPProbe(timeout time.Duration) *TCPProbe {
	return &TCPProbe{Timeout: timeout}
}

func (p *TCPProbe) IsOpen(port int) bool {
	return utils.CheckPortConnectable(port, p.Timeout)
}
