// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"errors"
	"strings"

	"snapbuild/internal/artifact"
	"snapbuild/internal/capability"
	"snapbuild/internal/engine"
	"snapbuild/internal/issue"
	"snapbuild/internal/permissions"
	"snapbuild/internal/provenance"
	"snapbuild/internal/sources"
)

// Fail wraps err as an ActionableError and links the catalog entry that
// matches the underlying cause.
func Fail(op, resource string, err error) error {
	ec := issue.NewErrorContext().WithOperation(op).WithResource(resource).Wrap(err)

	switch {
	case errors.Is(err, provenance.ErrMissingTarget), errors.Is(err, provenance.ErrMissingProfile):
		ec.WithIssue(issue.ProvenanceMissingId).
			WithSuggestion("Set TARGET and PROFILE, or pass --target and --profile")
	case errors.Is(err, ErrMissingOutDir):
		ec.WithIssue(issue.OutputWriteFailedId).
			WithSuggestion("Set OUT_DIR or pass --out-dir")
	case errors.Is(err, ErrInvalidLevel):
		ec.WithIssue(issue.ConfigLoadFailedId).
			WithSuggestion("Use a compression level from 1 to 9, or LevelFast")
	case errors.Is(err, sources.ErrSourceDir), errors.Is(err, sources.ErrOutsideRoot):
		ec.WithIssue(issue.SourceDirNotFoundId).
			WithSuggestion("Check --source-dir and --project-root")
	case errors.Is(err, capability.ErrModuleOrder), errors.Is(err, capability.ErrDuplicateModule):
		ec.WithIssue(issue.ModuleOrderId)
		var oe *capability.OrderError
		if errors.As(err, &oe) && len(oe.Suggested) > 0 {
			ec.WithSuggestion("Register the modules in this order: " + strings.Join(oe.Suggested, ", "))
		}
	case errors.Is(err, engine.ErrUnknownCommand):
		ec.WithIssue(issue.UnknownCommandId)
	case errors.Is(err, permissions.ErrUnreachable):
		ec.WithIssue(issue.PrivilegedOperationId).
			WithSuggestion("Remove network, filesystem and timing access from bootstrap scripts")
	case errors.Is(err, artifact.ErrFormat), errors.Is(err, engine.ErrInvalidMagic),
		errors.Is(err, engine.ErrVersionMismatch), errors.Is(err, engine.ErrTruncated):
		ec.WithIssue(issue.ArtifactCorruptId)
	case errors.Is(err, engine.ErrManifestMismatch):
		ec.WithIssue(issue.ManifestMismatchId)
	default:
		var ee *engine.ExecutionError
		if errors.As(err, &ee) {
			ec.WithIssue(issue.ScriptExecutionFailedId).WithResource(ee.Unit)
		}
	}
	return ec.BuildError()
}

// failOutput reports a failed write of a build output.
func failOutput(op, path string, err error) error {
	return issue.NewErrorContext().
		WithOperation(op).
		WithResource(path).
		WithIssue(issue.OutputWriteFailedId).
		Wrap(err).
		BuildError()
}
