// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"snapbuild/internal/issue"
)

// clearEnv neutralizes overrides the host environment may carry.
// Viper ignores empty variables, so setting them to "" is enough.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"TARGET", "PROFILE", "OUT_DIR",
		"SNAPBUILD_TARGET", "SNAPBUILD_PROFILE", "SNAPBUILD_OUT_DIR",
		"SNAPBUILD_LEVEL", "SNAPBUILD_EXT", "SNAPBUILD_SOURCE_DIR",
		"SNAPBUILD_GO_PACKAGE", "SNAPBUILD_MODULES_UNSTABLE",
	} {
		t.Setenv(name, "")
	}
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.SourceDir != "bootstrap" || cfg.Ext != "sh" || cfg.Output != "CLI_SNAPSHOT.bin" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Level != 9 {
		t.Errorf("Level = %d, want 9", cfg.Level)
	}
	if cfg.NamePrefix != "internal:" {
		t.Errorf("NamePrefix = %q", cfg.NamePrefix)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	clearEnv(t)

	cfg, path, err := loadWithOptions(t.Context(), LoadOptions{ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if path != "" {
		t.Errorf("path = %q, want empty", path)
	}
	if *cfg != *DefaultConfig() {
		t.Errorf("got %+v, want defaults", cfg)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	want := writeConfig(t, dir, `
source_dir: "js"
ext:        "js"
level:      4
go: package: "snapshot"
modules: {
	user_agent: "snapbuild/1.0"
	unstable:   true
}
`)

	cfg, path, err := loadWithOptions(t.Context(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	if cfg.SourceDir != "js" || cfg.Ext != "js" || cfg.Level != 4 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Output != DefaultOutput {
		t.Errorf("Output = %q, want default", cfg.Output)
	}
	if cfg.Go.Package != "snapshot" || cfg.Modules.UserAgent != "snapbuild/1.0" || !cfg.Modules.Unstable {
		t.Errorf("nested values not applied: %+v", cfg)
	}
}

func TestLoad_EnvironmentPrecedence(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeConfig(t, dir, `target: "from-file"
profile: "from-file"
level: 2
`)
	t.Setenv("TARGET", "x86_64-unknown-linux-gnu")
	t.Setenv("PROFILE", "release")
	t.Setenv("SNAPBUILD_PROFILE", "debug")
	t.Setenv("OUT_DIR", "/tmp/out")
	t.Setenv("SNAPBUILD_LEVEL", "7")
	t.Setenv("SNAPBUILD_GO_PACKAGE", "stamp")

	cfg, _, err := loadWithOptions(t.Context(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Target != "x86_64-unknown-linux-gnu" {
		t.Errorf("Target = %q, want TARGET value", cfg.Target)
	}
	if cfg.Profile != "debug" {
		t.Errorf("Profile = %q, SNAPBUILD_PROFILE should win over PROFILE", cfg.Profile)
	}
	if cfg.OutDir != "/tmp/out" {
		t.Errorf("OutDir = %q", cfg.OutDir)
	}
	if cfg.Level != 7 {
		t.Errorf("Level = %d, want 7", cfg.Level)
	}
	if cfg.Go.Package != "stamp" {
		t.Errorf("Go.Package = %q", cfg.Go.Package)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		env     map[string]string
		explicit string
		want    error
		substr  string
	}{
		{name: "unknown key", body: `colour: "red"`, substr: "colour"},
		{name: "level out of range", body: `level: 10`, substr: "level"},
		{name: "bad package", body: `go: package: "a-b"`, substr: "package"},
		{name: "syntax", body: `target: "x`, substr: ConfigFileName},
		{name: "env level", env: map[string]string{"SNAPBUILD_LEVEL": "12"}, want: ErrInvalidLevel},
		{name: "env ext", env: map[string]string{"SNAPBUILD_EXT": "a/b"}, want: ErrInvalidExt},
		{name: "missing explicit file", explicit: "nope.cue", substr: "config file not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			dir := t.TempDir()
			if tt.body != "" {
				writeConfig(t, dir, tt.body)
			}
			opts := LoadOptions{ConfigDirPath: dir}
			if tt.explicit != "" {
				opts.ConfigFilePath = filepath.Join(dir, tt.explicit)
			}

			_, err := NewProvider().Load(t.Context(), opts)
			if err == nil {
				t.Fatal("expected error")
			}
			var ae *issue.ActionableError
			if !errors.As(err, &ae) || ae.Issue != issue.ConfigLoadFailedId {
				t.Errorf("error %T should be an ActionableError linked to the config issue", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.want)
			}
			if tt.substr != "" && !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("error %q should contain %q", err, tt.substr)
			}
		})
	}
}

func TestLoad_ExplicitFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "ci.cue")
	if err := os.WriteFile(path, []byte(`output: "ci.bin"`), 0o644); err != nil {
		t.Fatal(err)
	}
	// A snapbuild.cue in the search directory is ignored when a path is given.
	dir := t.TempDir()
	writeConfig(t, dir, `output: "other.bin"`)

	cfg, err := NewProvider().Load(t.Context(), LoadOptions{ConfigFilePath: path, ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Output != "ci.bin" {
		t.Errorf("Output = %q, want ci.bin", cfg.Output)
	}
}

func TestLoad_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if _, err := NewProvider().Load(ctx, LoadOptions{ConfigDirPath: t.TempDir()}); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestGenerateCUE_RoundTrip(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	path, created, err := WriteDefault(dir)
	if err != nil || !created {
		t.Fatalf("WriteDefault() = %q, %v, %v", path, created, err)
	}
	if _, created, err := WriteDefault(dir); err != nil || created {
		t.Errorf("second WriteDefault() created=%v err=%v, want untouched", created, err)
	}

	cfg, got, err := loadWithOptions(t.Context(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("generated file must load: %v", err)
	}
	if got != path {
		t.Errorf("loaded %q, want %q", got, path)
	}
	if *cfg != *DefaultConfig() {
		t.Errorf("round trip changed values: %+v", cfg)
	}

	full := DefaultConfig()
	full.Go = GoConfig{Package: "snap", Out: "gen/provenance.go", ImportPath: "example.com/cli/snap"}
	full.Modules.UserAgent = "snap/1.0"
	out := GenerateCUE(full)
	for _, s := range []string{`package: "snap"`, `import_path: "example.com/cli/snap"`, `user_agent: "snap/1.0"`} {
		if !strings.Contains(out, s) {
			t.Errorf("GenerateCUE() missing %s:\n%s", s, out)
		}
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   []error
	}{
		{name: "dotted ext", mutate: func(c *Config) { c.Ext = ".js" }},
		{name: "fast level", mutate: func(c *Config) { c.Level = 0 }},
		{name: "negative level", mutate: func(c *Config) { c.Level = -1 }, want: []error{ErrInvalidLevel}},
		{name: "empty ext", mutate: func(c *Config) { c.Ext = "" }, want: []error{ErrInvalidExt}},
		{name: "double ext", mutate: func(c *Config) { c.Ext = "tar.gz" }, want: []error{ErrInvalidExt}},
		{name: "empty output", mutate: func(c *Config) { c.Output = "" }, want: []error{ErrInvalidOutput}},
		{name: "reserved output", mutate: func(c *Config) { c.Output = "con.bin" }, want: []error{ErrInvalidOutput}},
		{name: "nested output", mutate: func(c *Config) { c.Output = "x86_64/snap.bin" }},
		{
			name:   "several",
			mutate: func(c *Config) { c.Level = 10; c.Go.Package = "1pkg" },
			want:   []error{ErrInvalidLevel, ErrInvalidGoPackage},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if len(tt.want) == 0 {
				if err != nil {
					t.Fatalf("Validate() = %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Validate() = %v, want ErrInvalidConfig", err)
			}
			for _, w := range tt.want {
				if !errors.Is(err, w) {
					t.Errorf("missing %v in %v", w, err)
				}
			}
			var ice *InvalidConfigError
			if errors.As(err, &ice) && len(ice.FieldErrors) != len(tt.want) {
				t.Errorf("got %d field errors, want %d", len(ice.FieldErrors), len(tt.want))
			}
		})
	}
}
