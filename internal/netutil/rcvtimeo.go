// Package netutil holds small socket-option helpers shared by the name
// server and storage server listeners.
package netutil

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// SetAcceptTimeout sets SO_RCVTIMEO on ln's underlying socket so a blocked
// Accept returns an EAGAIN/EWOULDBLOCK timeout error every d, letting the
// accept loop poll its shutdown flag (spec.md §5: "acceptors use a short
// SO_RCVTIMEO so shutdown flags can be polled"). ln must be a *net.TCPListener;
// any other listener type is a no-op.
func SetAcceptTimeout(ln net.Listener, d time.Duration) error {
	tl, ok := ln.(*net.TCPListener)
	if !ok {
		return nil
	}
	raw, err := tl.SyscallConn()
	if err != nil {
		return fmt.Errorf("netutil: syscall conn: %w", err)
	}
	tv := unix.NsecToTimeval(d.Nanoseconds())
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptTimeval(int(fd), unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv)
	})
	if err != nil {
		return fmt.Errorf("netutil: control: %w", err)
	}
	if sockErr != nil {
		return fmt.Errorf("netutil: setsockopt SO_RCVTIMEO: %w", sockErr)
	}
	return nil
}
