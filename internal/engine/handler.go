// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"snapbuild/internal/permissions"
)

// captureCommand names the internal command that reads the variable table.
// It contains a NUL byte, which no shell word can, so scripts cannot call it.
const captureCommand = "\x00snapbuild-capture"

// writeFlags are the open flags that need the write permission.
const writeFlags = os.O_WRONLY | os.O_RDWR | os.O_APPEND | os.O_CREATE | os.O_TRUNC

func captureCall() *syntax.CallExpr {
	return &syntax.CallExpr{Args: []*syntax.Word{{
		Parts: []syntax.WordPart{&syntax.Lit{Value: captureCommand}},
	}}}
}

// execHandler dispatches commands to the registry. There is no fallback to
// host binaries, so the next handler is never called.
func (e *Environment) execHandler(interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(ctx context.Context, args []string) error {
		name := args[0]
		if name == captureCommand {
			e.captured = snapshotEnv(interp.HandlerCtx(ctx).Env)
			return nil
		}

		cmd, ok := e.registry.Lookup(name)
		if !ok {
			slog.Debug("unknown command", "command", name)
			return &UnknownCommandError{Name: name}
		}

		err := cmd.Run(ctx, args)
		if err == nil {
			return nil
		}
		// Permission violations abort the script.
		if permissions.IsUnreachable(err) {
			return err
		}
		var status interp.ExitStatus
		if errors.As(err, &status) {
			return err
		}

		fmt.Fprintln(interp.HandlerCtx(ctx).Stderr, err)
		module, _ := e.registry.Owner(name)
		slog.Debug("host command failed", "module", module, "command", name, "error", err)
		return interp.ExitStatus(1)
	}
}

// openHandler gates redirections and source through the read and write checks.
func (e *Environment) openHandler(ctx context.Context, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	if path != os.DevNull {
		abs := absPath(ctx, path)
		if flag&writeFlags != 0 {
			if err := e.perms.CheckWrite(abs); err != nil {
				return nil, err
			}
		}
		if flag&os.O_WRONLY == 0 {
			if err := e.perms.CheckRead(abs); err != nil {
				return nil, err
			}
		}
	}
	return interp.DefaultOpenHandler()(ctx, path, flag, perm)
}

// statHandler gates file tests and cd through the read check.
func (e *Environment) statHandler(ctx context.Context, path string, followSymlinks bool) (fs.FileInfo, error) {
	if path != os.DevNull {
		if err := e.perms.CheckRead(absPath(ctx, path)); err != nil {
			return nil, err
		}
	}
	return interp.DefaultStatHandler()(ctx, path, followSymlinks)
}

// absPath resolves path against the interpreter's working directory.
func absPath(ctx context.Context, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(interp.HandlerCtx(ctx).Dir, path)
}

// snapshotEnv copies every set variable out of env. Later entries win, which
// matches the overlay order of the interpreter's environment.
func snapshotEnv(env expand.Environ) map[string]expand.Variable {
	vars := make(map[string]expand.Variable)
	env.Each(func(name string, vr expand.Variable) bool {
		if vr.IsSet() {
			vars[name] = vr
		} else {
			delete(vars, name)
		}
		return true
	})
	return vars
}
