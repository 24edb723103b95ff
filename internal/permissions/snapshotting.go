// SPDX-License-Identifier: MPL-2.0

package permissions

import (
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"sync"
)

// Snapshotting is the Checker installed while building a snapshot.
// Every method fails; the first failure is kept for Err.
type Snapshotting struct {
	mu         sync.Mutex
	violations []*UnreachableError
}

var _ Checker = (*Snapshotting)(nil)

// NewSnapshotting creates a Checker that refuses everything.
func NewSnapshotting() *Snapshotting {
	return &Snapshotting{}
}

// CheckNetURL always fails.
func (s *Snapshotting) CheckNetURL(u *url.URL) error {
	target := ""
	if u != nil {
		target = u.String()
	}
	return s.fail(OpNetURL, target)
}

// CheckNet always fails.
func (s *Snapshotting) CheckNet(host string, port int) error {
	return s.fail(OpNet, net.JoinHostPort(host, strconv.Itoa(port)))
}

// CheckRead always fails.
func (s *Snapshotting) CheckRead(path string) error {
	return s.fail(OpRead, path)
}

// CheckWrite always fails.
func (s *Snapshotting) CheckWrite(path string) error {
	return s.fail(OpWrite, path)
}

// CheckTimingAllowed never grants and always fails.
func (s *Snapshotting) CheckTimingAllowed() (bool, error) {
	return false, s.fail(OpTiming, "")
}

// CheckUnstable always fails.
func (s *Snapshotting) CheckUnstable(feature string) error {
	return s.fail(OpUnstable, feature)
}

// Err returns the first violation, or nil if no check was ever reached.
func (s *Snapshotting) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.violations) == 0 {
		return nil
	}
	return s.violations[0]
}

func (s *Snapshotting) fail(op Operation, target string) error {
	err := &UnreachableError{Op: op, Target: target}

	s.mu.Lock()
	s.violations = append(s.violations, err)
	s.mu.Unlock()

	slog.Error("permission check reached while snapshotting", "op", string(op), "target", target)
	return err
}
