// SPDX-License-Identifier: MPL-2.0

package capability

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"slices"
	"strings"
	"testing"

	"snapbuild/internal/permissions"
)

type (
	// allowAll is a Checker that grants every operation.
	allowAll struct{}

	// stubModule is a Module with configurable identity and no commands.
	stubModule struct {
		name     string
		requires []string
	}
)

func (allowAll) CheckNetURL(*url.URL) error { return nil }
func (allowAll) CheckNet(string, int) error { return nil }
func (allowAll) CheckRead(string) error { return nil }
func (allowAll) CheckWrite(string) error { return nil }
func (allowAll) CheckTimingAllowed() (bool, error) { return true, nil }
func (allowAll) CheckUnstable(string) error { return nil }
func (m stubModule) Name() string { return m.name }
func (m stubModule) Requires() []string { return m.requires }
func (stubModule) Commands(permissions.Checker) []Command { return nil }

// newTestRegistry installs the default modules bound to perms.
func newTestRegistry(t *testing.T, perms permissions.Checker, opts Options) *Registry {
	t.Helper()

	modules, err := DefaultModules(opts)
	if err != nil {
		t.Fatalf("DefaultModules() error: %v", err)
	}
	reg := NewRegistry()
	if err := Install(reg, modules, perms); err != nil {
		t.Fatalf("Install() error: %v", err)
	}
	return reg
}

// runCommand runs args[0] with the given stdin and returns what it wrote.
func runCommand(t *testing.T, reg *Registry, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	var out, errOut bytes.Buffer
	ctx := WithHandlerContext(t.Context(), &HandlerContext{
		Stdin:  strings.NewReader(stdin),
		Stdout: &out,
		Stderr: &errOut,
	})
	cmd, ok := reg.Lookup(args[0])
	if !ok {
		t.Fatalf("command %q not registered", args[0])
	}
	err = cmd.Run(ctx, args)
	return out.String(), errOut.String(), err
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	var called []string
	r.Register("mod", newCommand("b.cmd", func(_ context.Context, args []string) error {
		called = args
		return nil
	}), newCommand("a.cmd", func(context.Context, []string) error { return nil }))

	if got := r.Names(); !slices.Equal(got, []string{"a.cmd", "b.cmd"}) {
		t.Errorf("Names() = %v, want sorted [a.cmd b.cmd]", got)
	}
	if owner, ok := r.Owner("b.cmd"); !ok || owner != "mod" {
		t.Errorf("Owner(b.cmd) = %q, %v; want mod, true", owner, ok)
	}
	if _, ok := r.Lookup("missing"); ok {
		t.Error("Lookup(missing) should fail")
	}
	if _, ok := r.Owner("missing"); ok {
		t.Error("Owner(missing) should fail")
	}
	cmd, ok := r.Lookup("b.cmd")
	if !ok {
		t.Fatal("Lookup(b.cmd) failed")
	}
	if err := cmd.Run(t.Context(), []string{"b.cmd", "x"}); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !slices.Equal(called, []string{"b.cmd", "x"}) {
		t.Errorf("command received %v", called)
	}
}

func TestRegistry_RegisterDuplicatePanics(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register("first", newCommand("dup", func(context.Context, []string) error { return nil }))

	defer func() {
		rec := recover()
		if rec == nil {
			t.Fatal("duplicate registration did not panic")
		}
		if msg, _ := rec.(string); !strings.Contains(msg, `"first"`) {
			t.Errorf("panic message %q should name the first owner", msg)
		}
	}()
	r.Register("second", newCommand("dup", func(context.Context, []string) error { return nil }))
}

func TestCommand_ErrorsArePrefixed(t *testing.T) {
	t.Parallel()

	cmd := newCommand("x.fail", func(context.Context, []string) error { return errors.New("boom") })
	err := cmd.Run(t.Context(), []string{"x.fail"})
	if err == nil || err.Error() != "x.fail: boom" {
		t.Errorf("Run() error = %v, want %q", err, "x.fail: boom")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		modules   []Module
		wantErr   error
		wantOrder *OrderError
	}{
		{
			name:    "empty",
			modules: nil,
		},
		{
			name: "dependencies first",
			modules: []Module{
				stubModule{name: "a"},
				stubModule{name: "b", requires: []string{"a"}},
			},
		},
		{
			name: "dependency listed later",
			modules: []Module{
				stubModule{name: "b", requires: []string{"a"}},
				stubModule{name: "a"},
			},
			wantErr:   ErrModuleOrder,
			wantOrder: &OrderError{Module: "b", Missing: "a", Suggested: []string{"a", "b"}},
		},
		{
			name: "dependency missing",
			modules: []Module{
				stubModule{name: "b", requires: []string{"ghost"}},
			},
			wantErr:   ErrModuleOrder,
			wantOrder: &OrderError{Module: "b", Missing: "ghost"},
		},
		{
			name: "self dependency",
			modules: []Module{
				stubModule{name: "a", requires: []string{"a"}},
			},
			wantErr:   ErrModuleOrder,
			wantOrder: &OrderError{Module: "a", Missing: "a"},
		},
		{
			name: "duplicate",
			modules: []Module{
				stubModule{name: "a"},
				stubModule{name: "a"},
			},
			wantErr: ErrDuplicateModule,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := Validate(tt.modules)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantOrder != nil {
				var oe *OrderError
				if !errors.As(err, &oe) {
					t.Fatalf("error %T is not *OrderError", err)
				}
				if oe.Module != tt.wantOrder.Module || oe.Missing != tt.wantOrder.Missing ||
					!slices.Equal(oe.Suggested, tt.wantOrder.Suggested) {
					t.Errorf("OrderError = %+v, want %+v", *oe, *tt.wantOrder)
				}
			}
		})
	}
}

func TestDefaultModules_Order(t *testing.T) {
	t.Parallel()

	modules, err := DefaultModules(Options{})
	if err != nil {
		t.Fatalf("DefaultModules() error: %v", err)
	}

	want := []string{
		ModuleWebIDL, ModuleConsole, ModuleURL, ModuleTLS, ModuleWeb, ModuleFetch,
		ModuleWebSocket, ModuleWebStorage, ModuleCrypto, ModuleBroadcastChannel, ModuleNet, ModuleHTTP,
	}
	if got := Names(modules); !slices.Equal(got, want) {
		t.Errorf("module order = %v, want %v", got, want)
	}
	if err := Validate(modules); err != nil {
		t.Errorf("default order does not validate: %v", err)
	}

	var stateful []string
	for _, m := range modules {
		if _, ok := m.(Stateful); ok {
			stateful = append(stateful, m.Name())
		}
	}
	if !slices.Equal(stateful, []string{ModuleWebStorage}) {
		t.Errorf("stateful modules = %v, want [webstorage]", stateful)
	}
}

func TestDefaultModules_SQLiteOrigin(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	modules, err := DefaultModules(Options{OriginStorageDir: dir})
	if err != nil {
		t.Fatalf("DefaultModules() error: %v", err)
	}
	for _, m := range modules {
		if ws, ok := m.(*WebStorage); ok {
			t.Cleanup(func() { _ = ws.Store().Close() })
			if err := ws.Store().Set("k", "v"); err != nil {
				t.Fatalf("Set() error: %v", err)
			}
			return
		}
	}
	t.Fatal("webstorage module not found")
}
