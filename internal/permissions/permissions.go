// SPDX-License-Identifier: MPL-2.0

package permissions

import (
	"errors"
	"fmt"
	"net/url"
)

// ErrUnreachable is the sentinel wrapped by UnreachableError.
var ErrUnreachable = errors.New("unreachable: privileged operation while snapshotting")

type (
	// Checker is consulted by capability modules before privileged operations.
	// A nil error grants the operation.
	Checker interface {
		// CheckNetURL gates outbound requests to a URL (fetch, websocket).
		CheckNetURL(u *url.URL) error
		// CheckNet gates raw socket access to host:port.
		CheckNet(host string, port int) error
		// CheckRead gates reading a filesystem path.
		CheckRead(path string) error
		// CheckWrite gates writing a filesystem path.
		CheckWrite(path string) error
		// CheckTimingAllowed reports whether high resolution timers may be used.
		CheckTimingAllowed() (bool, error)
		// CheckUnstable gates APIs that are only available behind the unstable flag.
		CheckUnstable(feature string) error
	}

	// Operation names the permission check that was attempted.
	Operation string

	// UnreachableError is returned by every Snapshotting check. It wraps
	// ErrUnreachable for errors.Is() compatibility.
	UnreachableError struct {
		Op     Operation
		Target string
	}
)

// Operations recognized by Checker implementations.
const (
	OpNetURL   Operation = "net-url"
	OpNet      Operation = "net"
	OpRead     Operation = "read"
	OpWrite    Operation = "write"
	OpTiming   Operation = "hrtime"
	OpUnstable Operation = "unstable"
)

// Error implements the error interface.
func (e *UnreachableError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("%s check reached while snapshotting", e.Op)
	}
	return fmt.Sprintf("%s check reached while snapshotting (%s)", e.Op, e.Target)
}

// Unwrap returns ErrUnreachable.
func (e *UnreachableError) Unwrap() error { return ErrUnreachable }

// IsUnreachable reports whether err carries an unreachable permission check.
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrUnreachable)
}
