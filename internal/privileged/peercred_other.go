//go:build !darwin && !linux

package privileged

import (
	"errors"
	"net"
)

func peerUID(net.Conn) (int, error) {
	return -1, errors.New("peer credentials not supported on this platform")
}
