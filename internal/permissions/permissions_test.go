// SPDX-License-Identifier: MPL-2.0

package permissions

import (
	"errors"
	"net/url"
	"strings"
	"testing"
)

func TestSnapshotting_EveryCheckIsUnreachable(t *testing.T) {
	t.Parallel()

	u, err := url.Parse("https://example.com/x")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		op     Operation
		invoke func(Checker) error
	}{
		{"CheckNetURL", OpNetURL, func(c Checker) error { return c.CheckNetURL(u) }},
		{"CheckNet", OpNet, func(c Checker) error { return c.CheckNet("localhost", 8080) }},
		{"CheckRead", OpRead, func(c Checker) error { return c.CheckRead("/etc/hosts") }},
		{"CheckWrite", OpWrite, func(c Checker) error { return c.CheckWrite("/tmp/out") }},
		{"CheckTimingAllowed", OpTiming, func(c Checker) error {
			allowed, err := c.CheckTimingAllowed()
			if allowed {
				t.Error("CheckTimingAllowed() granted timing while snapshotting")
			}
			return err
		}},
		{"CheckUnstable", OpUnstable, func(c Checker) error { return c.CheckUnstable("BroadcastChannel") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			perms := NewSnapshotting()
			err := tt.invoke(perms)
			if err == nil {
				t.Fatalf("%s returned nil, want unreachable error", tt.name)
			}
			if !errors.Is(err, ErrUnreachable) {
				t.Errorf("errors.Is(err, ErrUnreachable) = false for %v", err)
			}

			var ue *UnreachableError
			if !errors.As(err, &ue) {
				t.Fatalf("error %T is not *UnreachableError", err)
			}
			if ue.Op != tt.op {
				t.Errorf("Op = %q, want %q", ue.Op, tt.op)
			}
			if !errors.Is(perms.Err(), ErrUnreachable) {
				t.Errorf("Err() = %v, want recorded violation", perms.Err())
			}
		})
	}
}

func TestSnapshotting_ErrKeepsFirstViolation(t *testing.T) {
	t.Parallel()

	perms := NewSnapshotting()
	if perms.Err() != nil {
		t.Fatalf("Err() = %v before any check, want nil", perms.Err())
	}

	_ = perms.CheckRead("/first")
	_ = perms.CheckWrite("/second")

	if got := perms.Err().Error(); !strings.Contains(got, "/first") {
		t.Errorf("Err() = %q, want the first violation", got)
	}
}

func TestUnreachableError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  *UnreachableError
		want string
	}{
		{&UnreachableError{Op: OpTiming}, "hrtime check reached while snapshotting"},
		{&UnreachableError{Op: OpNet, Target: "a:1"}, "net check reached while snapshotting (a:1)"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
	if !IsUnreachable(tests[0].err) {
		t.Error("IsUnreachable() = false, want true")
	}
}
