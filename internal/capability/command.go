// SPDX-License-Identifier: MPL-2.0

package capability

import (
	"context"
	"errors"
	"fmt"
)

// ErrUsage is wrapped by errors caused by wrong command arguments.
var ErrUsage = errors.New("usage")

type (
	// Command is a host command callable from scripts.
	Command interface {
		// Name returns the command name as typed in scripts (e.g. "console.log").
		Name() string

		// Run executes the command. args[0] is the command name, args[1:] the
		// operands. The HandlerContext carries stdin/stdout/stderr.
		Run(ctx context.Context, args []string) error
	}

	// commandFunc adapts a function into a Command.
	commandFunc struct {
		name string
		run  func(ctx context.Context, args []string) error
	}
)

func newCommand(name string, run func(ctx context.Context, args []string) error) Command {
	return &commandFunc{name: name, run: run}
}

// Name returns the command name.
func (c *commandFunc) Name() string { return c.name }

// Run executes the command.
func (c *commandFunc) Run(ctx context.Context, args []string) error {
	return wrapError(c.name, c.run(ctx, args))
}

// wrapError prefixes err with the command name. Returns nil if err is nil.
func wrapError(cmdName string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", cmdName, err)
}

// requireArgs checks that exactly n operands follow the command name.
func requireArgs(args []string, n int, usage string) error {
	if len(args)-1 != n {
		return fmt.Errorf("%w: %s %s", ErrUsage, args[0], usage)
	}
	return nil
}

// requireMinArgs checks that at least n operands follow the command name.
func requireMinArgs(args []string, n int, usage string) error {
	if len(args)-1 < n {
		return fmt.Errorf("%w: %s %s", ErrUsage, args[0], usage)
	}
	return nil
}
