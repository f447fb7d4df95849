//go:build linux

package utils

import (
	"net"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindPortOwner(t *testing.T) {
	for _, tc := range []struct {
		network string
		address string
	}{
		{"tcp4", "127.0.0.1:0"},
		{"tcp6", "[::1]:0"},
	} {
		t.Run(tc.network, func(t *testing.T) {
			l, err := net.Listen(tc.network, tc.address)
			if err != nil {
				t.Skipf("%s unavailable: %v", tc.network, err)
			}
			port := l.Addr().(*net.TCPAddr).Port

			pid, err := FindPortOwner(port)
			require.NoError(t, err)
			assert.Equal(t, os.Getpid(), pid)

			require.NoError(t, l.Close())
			_, err = FindPortOwner(port)
			assert.ErrorIs(t, err, ErrNoPortOwner)
		})
	}
}
