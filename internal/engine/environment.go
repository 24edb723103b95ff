// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"snapbuild/internal/capability"
	"snapbuild/internal/permissions"
)

type (
	// Environment is a composed script environment. It is not reusable
	// after Capture.
	Environment struct {
		mu sync.Mutex

		modules  []capability.Module
		perms    permissions.Checker
		registry *capability.Registry
		runner   *interp.Runner
		dir      string

		// baseline holds the variables present right after composition.
		baseline map[string]expand.Variable
		// captured is filled by the internal capture command.
		captured map[string]expand.Variable

		units    []string
		consumed bool
	}

	// Option configures Compose and Restore.
	Option func(*options)

	options struct {
		dir    string
		stdin  io.Reader
		stdout io.Writer
		stderr io.Writer
	}

	// violationRecorder is implemented by checkers that remember denied
	// operations, such as permissions.Snapshotting.
	violationRecorder interface {
		Err() error
	}
)

// WithDir sets the working directory scripts run in. Defaults to the
// process working directory.
func WithDir(dir string) Option {
	return func(o *options) { o.dir = dir }
}

// WithStdIO sets the streams scripts read from and write to. Both output
// streams default to os.Stderr so that script output never mixes with
// machine-readable CLI output.
func WithStdIO(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(o *options) {
		o.stdin = stdin
		o.stdout = stdout
		o.stderr = stderr
	}
}

// Compose registers modules in order and creates the interpreter.
// A module listed before one of its dependencies fails with
// capability.ErrModuleOrder.
func Compose(ctx context.Context, modules []capability.Module, perms permissions.Checker, opts ...Option) (*Environment, error) {
	o := options{stdout: os.Stderr, stderr: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}
	if o.dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		o.dir = wd
	}
	dir, err := filepath.Abs(o.dir)
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}

	registry := capability.NewRegistry()
	if err := capability.Install(registry, modules, perms); err != nil {
		return nil, fmt.Errorf("compose environment: %w", err)
	}

	env := &Environment{
		modules:  slices.Clone(modules),
		perms:    perms,
		registry: registry,
		dir:      dir,
	}

	runner, err := interp.New(
		interp.Env(expand.ListEnviron()),
		interp.Dir(dir),
		interp.Params("-e", "-f"),
		interp.StdIO(o.stdin, o.stdout, o.stderr),
		interp.ExecHandlers(env.execHandler),
		interp.OpenHandler(env.openHandler),
		interp.StatHandler(env.statHandler),
	)
	if err != nil {
		return nil, fmt.Errorf("create interpreter: %w", err)
	}
	env.runner = runner

	baseline, err := env.collectVars(ctx)
	if err != nil {
		return nil, fmt.Errorf("compose environment: %w", err)
	}
	env.baseline = baseline

	slog.Debug("environment composed",
		"modules", capability.Names(modules),
		"commands", len(registry.Names()),
		"dir", dir)
	return env, nil
}

// Execute parses source as the unit name and runs it in the environment.
// Parse errors, a non-zero exit, fatal handler errors and permission
// violations are returned as *ExecutionError.
func (e *Environment) Execute(ctx context.Context, name, source string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.consumed {
		return &ExecutionError{Unit: name, Err: ErrConsumed}
	}

	file, err := syntax.NewParser().Parse(strings.NewReader(source), name)
	if err != nil {
		return &ExecutionError{Unit: name, Err: fmt.Errorf("parse: %w", err)}
	}

	runErr := e.runner.Run(ctx, file)
	// A violation wins over the exit status: the script may have swallowed it.
	if err := e.violation(); err != nil {
		return &ExecutionError{Unit: name, Err: err}
	}
	if runErr != nil {
		return &ExecutionError{Unit: name, Err: runErr}
	}

	e.units = append(e.units, name)
	return nil
}

// Capture records the environment into a snapshot. It can be called once;
// afterwards the environment is consumed.
func (e *Environment) Capture(ctx context.Context) (*Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.consumed {
		return nil, ErrConsumed
	}
	e.consumed = true

	current, err := e.collectVars(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture variables: %w", err)
	}

	snap := &Snapshot{
		Vars:  diffVars(e.baseline, current),
		Units: slices.Clone(e.units),
	}

	for _, m := range e.modules {
		ms := ModuleState{Name: m.Name()}
		if st, ok := m.(capability.Stateful); ok {
			data, err := st.MarshalState()
			if err != nil {
				return nil, fmt.Errorf("capture module %s: %w", m.Name(), err)
			}
			ms.State = data
		}
		snap.Modules = append(snap.Modules, ms)
	}

	snap.Funcs, err = captureFuncs(e.runner.Funcs)
	if err != nil {
		return nil, fmt.Errorf("capture functions: %w", err)
	}

	slog.Debug("environment captured",
		"vars", len(snap.Vars),
		"funcs", len(snap.Funcs),
		"units", len(snap.Units))
	return snap, nil
}

// Units returns the names of the units executed so far, in order.
func (e *Environment) Units() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.units)
}

// Modules returns the composed modules in registration order.
func (e *Environment) Modules() []capability.Module {
	return slices.Clone(e.modules)
}

// Commands returns the registered host command names, sorted.
func (e *Environment) Commands() []string {
	return e.registry.Names()
}

// Dir returns the directory scripts run in.
func (e *Environment) Dir() string { return e.dir }

// Consumed reports whether Capture was called.
func (e *Environment) Consumed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.consumed
}

func (e *Environment) violation() error {
	if rec, ok := e.perms.(violationRecorder); ok {
		return rec.Err()
	}
	return nil
}

// collectVars runs the internal capture command and returns every set variable.
func (e *Environment) collectVars(ctx context.Context) (map[string]expand.Variable, error) {
	e.captured = nil
	if err := e.runner.Run(ctx, captureCall()); err != nil {
		return nil, err
	}
	if e.captured == nil {
		return nil, errors.New("capture command did not run")
	}
	vars := e.captured
	e.captured = nil
	return vars, nil
}
