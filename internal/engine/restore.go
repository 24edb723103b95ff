// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"snapbuild/internal/capability"
	"snapbuild/internal/permissions"
)

// restoreUnit is the file name the replayed declarations are parsed under.
const restoreUnit = "snapshot:restore"

// Restore composes a fresh environment from modules and replays the
// snapshot into it. Bootstrap scripts are not run again. modules must match
// the snapshot's manifest exactly.
func Restore(ctx context.Context, snap *Snapshot, modules []capability.Module, perms permissions.Checker, opts ...Option) (*Environment, error) {
	if want, got := snap.ModuleNames(), capability.Names(modules); !slices.Equal(want, got) {
		return nil, &ManifestError{Want: want, Got: got}
	}

	env, err := Compose(ctx, modules, perms, opts...)
	if err != nil {
		return nil, err
	}

	script, err := snap.Script()
	if err != nil {
		return nil, err
	}
	file, err := syntax.NewParser().Parse(strings.NewReader(script), restoreUnit)
	if err != nil {
		return nil, fmt.Errorf("parse restore script: %w", err)
	}
	if err := env.runner.Run(ctx, file); err != nil {
		return nil, &ExecutionError{Unit: restoreUnit, Err: err}
	}
	if err := env.violation(); err != nil {
		return nil, &ExecutionError{Unit: restoreUnit, Err: err}
	}

	for i, m := range modules {
		st, ok := m.(capability.Stateful)
		if !ok {
			continue
		}
		if err := st.UnmarshalState(snap.Modules[i].State); err != nil {
			return nil, fmt.Errorf("restore module %s: %w", m.Name(), err)
		}
	}

	env.units = slices.Clone(snap.Units)
	slog.Debug("environment restored", "vars", len(snap.Vars), "funcs", len(snap.Funcs))
	return env, nil
}

// Script renders the declarations and function definitions that recreate
// the snapshot's shell state.
func (s *Snapshot) Script() (string, error) {
	var b strings.Builder
	for _, v := range s.Vars {
		decl, err := v.Declaration()
		if err != nil {
			return "", err
		}
		b.WriteString(decl)
		b.WriteByte('\n')
	}
	for _, f := range s.Funcs {
		b.WriteString(f.Source)
		b.WriteByte('\n')
	}
	return b.String(), nil
}
