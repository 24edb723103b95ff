// SPDX-License-Identifier: MPL-2.0

package capability

import (
	"errors"
	"fmt"
	"io"

	"snapbuild/internal/dag"
	"snapbuild/internal/permissions"
)

var (
	// ErrModuleOrder is returned when a module is listed before one of its dependencies.
	ErrModuleOrder = errors.New("module registered before its dependency")
	// ErrDuplicateModule is returned when two modules share a name.
	ErrDuplicateModule = errors.New("duplicate module")
)

type (
	// Module is a unit of host functionality registered into the environment.
	Module interface {
		// Name identifies the module in the snapshot manifest.
		Name() string
		// Requires lists modules that must be registered earlier.
		Requires() []string
		// Commands returns the host commands, bound to perms.
		Commands(perms permissions.Checker) []Command
	}

	// Stateful is implemented by modules whose state is part of the snapshot.
	Stateful interface {
		Module
		MarshalState() ([]byte, error)
		UnmarshalState(data []byte) error
	}

	// OrderError reports a dependency listed after its dependent.
	// It wraps ErrModuleOrder for errors.Is() compatibility.
	OrderError struct {
		Module  string
		Missing string
		// Suggested is a valid order of the same modules, or nil when the
		// dependency is absent or the dependencies form a cycle.
		Suggested []string
	}
)

// Error implements the error interface.
func (e *OrderError) Error() string {
	return fmt.Sprintf("module %q requires %q to be registered first", e.Module, e.Missing)
}

// Unwrap returns ErrModuleOrder.
func (e *OrderError) Unwrap() error { return ErrModuleOrder }

// Validate checks that names are unique and every dependency precedes its dependent.
func Validate(modules []Module) error {
	seen := make(map[string]bool, len(modules))
	for _, m := range modules {
		name := m.Name()
		if seen[name] {
			return fmt.Errorf("%w: %q", ErrDuplicateModule, name)
		}
		for _, dep := range m.Requires() {
			if !seen[dep] {
				return &OrderError{Module: name, Missing: dep, Suggested: suggestOrder(modules)}
			}
		}
		seen[name] = true
	}
	return nil
}

// suggestOrder sorts modules by their dependencies. It returns nil when a
// dependency is not in the list or the dependencies are cyclic.
func suggestOrder(modules []Module) []string {
	g := dag.New()
	for _, m := range modules {
		g.AddNode(m.Name())
	}
	for _, m := range modules {
		for _, dep := range m.Requires() {
			if !g.Has(dep) {
				return nil
			}
			g.AddEdge(dep, m.Name())
		}
	}
	order, err := g.Sort()
	if err != nil {
		return nil
	}
	return order
}

// Names returns the module names in registration order.
func Names(modules []Module) []string {
	names := make([]string, len(modules))
	for i, m := range modules {
		names[i] = m.Name()
	}
	return names
}

// base carries the identity shared by all built-in modules.
type base struct {
	name     string
	requires []string
}

func (b base) Name() string       { return b.name }
func (b base) Requires() []string { return b.requires }

// Install validates modules and registers their commands into r in order.
func Install(r *Registry, modules []Module, perms permissions.Checker) error {
	if err := Validate(modules); err != nil {
		return err
	}
	for _, m := range modules {
		r.Register(m.Name(), m.Commands(perms)...)
	}
	return nil
}

// Close releases resources held by modules that implement io.Closer, such as
// a persistent webstorage backend. All modules are closed; errors are joined.
func Close(modules []Module) error {
	var errs []error
	for _, m := range modules {
		if c, ok := m.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", m.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}
