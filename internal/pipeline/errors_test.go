// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"snapbuild/internal/artifact"
	"snapbuild/internal/capability"
	"snapbuild/internal/engine"
	"snapbuild/internal/issue"
	"snapbuild/internal/permissions"
)

func TestFail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		resource     string
		err          error
		wantIssue    issue.Id
		wantResource string
		wantHint     string
	}{
		{
			name:      "module order with a suggested fix",
			err:       &capability.OrderError{Module: "web", Missing: "url", Suggested: []string{"url", "web"}},
			wantIssue: issue.ModuleOrderId,
			wantHint:  "url, web",
		},
		{
			name:      "duplicate module",
			err:       fmt.Errorf("%w: %q", capability.ErrDuplicateModule, "web"),
			wantIssue: issue.ModuleOrderId,
		},
		{
			name:      "privileged operation",
			err:       &engine.ExecutionError{Unit: "internal:a.sh", Err: &permissions.UnreachableError{Op: permissions.OpNet, Target: "example.com"}},
			wantIssue: issue.PrivilegedOperationId,
			wantHint:  "Remove network",
		},
		{
			name:         "script failure names the unit",
			err:          &engine.ExecutionError{Unit: "internal:bootstrap/20.sh", Err: errors.New("exit status 1")},
			wantIssue:    issue.ScriptExecutionFailedId,
			wantResource: "internal:bootstrap/20.sh",
		},
		{
			name:      "corrupt artifact",
			resource:  "out/CLI_SNAPSHOT.bin",
			err:       &artifact.FormatError{Reason: "missing length prefix"},
			wantIssue: issue.ArtifactCorruptId,
		},
		{
			name:      "snapshot version",
			err:       fmt.Errorf("%w: expected 1, got 2", engine.ErrVersionMismatch),
			wantIssue: issue.ArtifactCorruptId,
		},
		{
			name:      "manifest mismatch",
			err:       &engine.ManifestError{Want: []string{"a"}, Got: []string{"b"}},
			wantIssue: issue.ManifestMismatchId,
		},
		{
			name:      "unclassified",
			err:       errors.New("disk on fire"),
			wantIssue: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := Fail("build snapshot", tt.resource, tt.err)
			var ae *issue.ActionableError
			if !errors.As(err, &ae) {
				t.Fatalf("Fail() returned %T", err)
			}
			if !errors.Is(err, tt.err) {
				t.Error("Fail() does not wrap its cause")
			}
			if ae.Issue != tt.wantIssue {
				t.Errorf("Issue = %d, want %d", ae.Issue, tt.wantIssue)
			}
			if tt.wantResource != "" && ae.Resource != tt.wantResource {
				t.Errorf("Resource = %q, want %q", ae.Resource, tt.wantResource)
			}
			if tt.wantHint != "" && !strings.Contains(strings.Join(ae.Suggestions, "\n"), tt.wantHint) {
				t.Errorf("Suggestions = %q, want one containing %q", ae.Suggestions, tt.wantHint)
			}
		})
	}
}
