// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConsumed is returned when an environment is used after Capture.
	ErrConsumed = errors.New("environment already captured")
	// ErrUnknownCommand is returned when a script calls a command no module registered.
	ErrUnknownCommand = errors.New("command not found")
	// ErrInvalidMagic is returned when snapshot bytes do not start with "SNAP".
	ErrInvalidMagic = errors.New("invalid snapshot magic: expected SNAP")
	// ErrVersionMismatch is returned for snapshots written by another format version.
	ErrVersionMismatch = errors.New("snapshot version mismatch")
	// ErrTruncated is returned when snapshot bytes are shorter than the header.
	ErrTruncated = errors.New("snapshot truncated")
	// ErrManifestMismatch is returned when restoring with a different module list.
	ErrManifestMismatch = errors.New("module manifest mismatch")
)

type (
	// ExecutionError reports a script unit that failed to parse or run.
	ExecutionError struct {
		Unit string
		Err  error
	}

	// UnknownCommandError reports a command that is neither a shell builtin,
	// a script function, nor a registered host command.
	// It wraps ErrUnknownCommand for errors.Is() compatibility.
	UnknownCommandError struct {
		Name string
	}

	// ManifestError reports the module lists of a snapshot and a restore target.
	// It wraps ErrManifestMismatch for errors.Is() compatibility.
	ManifestError struct {
		Want []string
		Got  []string
	}
)

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execute %s: %v", e.Unit, e.Err)
}

// Unwrap returns the underlying error.
func (e *ExecutionError) Unwrap() error { return e.Err }

// Error implements the error interface.
func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("%s: command not found", e.Name)
}

// Unwrap returns ErrUnknownCommand.
func (e *UnknownCommandError) Unwrap() error { return ErrUnknownCommand }

// Error implements the error interface.
func (e *ManifestError) Error() string {
	return fmt.Sprintf("snapshot was built with modules [%s], environment has [%s]",
		strings.Join(e.Want, " "), strings.Join(e.Got, " "))
}

// Unwrap returns ErrManifestMismatch.
func (e *ManifestError) Unwrap() error { return ErrManifestMismatch }
