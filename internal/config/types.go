// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"go/token"
	"path/filepath"
	"strings"

	"snapbuild/internal/platform"
	"snapbuild/internal/sources"
)

const (
	// DefaultSourceDir holds the bootstrap scripts, relative to the project root.
	DefaultSourceDir = "bootstrap"
	// DefaultExt selects bootstrap scripts by extension.
	DefaultExt = "sh"
	// DefaultOutput is the artifact file name inside the output directory.
	DefaultOutput = "CLI_SNAPSHOT.bin"
	// DefaultLevel is the LZ4-HC compression level.
	DefaultLevel = 9
	// MaxLevel is the highest accepted compression level. Zero selects the fast compressor.
	MaxLevel = 9
)

var (
	// ErrInvalidConfig is the sentinel wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrInvalidLevel is returned for a compression level outside 0..9.
	ErrInvalidLevel = errors.New("invalid compression level")
	// ErrInvalidExt is returned for an extension containing a path separator or a second dot.
	ErrInvalidExt = errors.New("invalid source extension")
	// ErrInvalidGoPackage is returned when go.package is not a Go identifier.
	ErrInvalidGoPackage = errors.New("invalid Go package name")
	// ErrInvalidOutput is returned for an empty or non-portable artifact name.
	ErrInvalidOutput = errors.New("invalid artifact name")
)

type (
	// Config holds snapbuild settings. JSON tags must match config_schema.cue.
	Config struct {
		// SourceDir holds the bootstrap scripts. Relative paths resolve against ProjectRoot.
		SourceDir string `json:"source_dir" mapstructure:"source_dir"`
		// Ext selects bootstrap scripts by file extension.
		Ext string `json:"ext" mapstructure:"ext"`
		// ProjectRoot is the working directory of the scripts and the base of logical unit names.
		// Empty means the current directory.
		ProjectRoot string `json:"project_root" mapstructure:"project_root"`
		// OutDir receives the artifact and its side files.
		OutDir string `json:"out_dir" mapstructure:"out_dir"`
		// Output is the artifact file name, relative to OutDir.
		Output string `json:"output" mapstructure:"output"`
		// Target is the platform triple being built.
		Target string `json:"target" mapstructure:"target"`
		// Profile is the build profile (for example debug or release).
		Profile string `json:"profile" mapstructure:"profile"`
		// NamePrefix prefixes logical unit names.
		NamePrefix string `json:"name_prefix" mapstructure:"name_prefix"`
		// Level is the compression level, 0 (fast) through 9.
		Level int `json:"level" mapstructure:"level"`
		// Go configures the generated provenance constants.
		Go GoConfig `json:"go" mapstructure:"go"`
		// Modules configures the capability modules.
		Modules ModulesConfig `json:"modules" mapstructure:"modules"`
	}

	// GoConfig controls the generated Go file and -ldflags output.
	GoConfig struct {
		// Package names the generated file's package. Empty disables generation.
		Package string `json:"package" mapstructure:"package"`
		// Out is the generated file path. Empty places provenance.go in OutDir.
		Out string `json:"out" mapstructure:"out"`
		// ImportPath is the package receiving -X flags from "snapbuild provenance --ldflags".
		ImportPath string `json:"import_path" mapstructure:"import_path"`
	}

	// ModulesConfig mirrors the tunable parts of capability.Options.
	ModulesConfig struct {
		UserAgent string `json:"user_agent" mapstructure:"user_agent"`
		// Unstable enables features gated behind the unstable flag.
		Unstable bool `json:"unstable" mapstructure:"unstable"`
	}

	// InvalidConfigError collects every field error found by Validate.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// FieldError names the offending key.
	FieldError struct {
		Key   string
		Value any
		Err   error
	}
)

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		SourceDir:  DefaultSourceDir,
		Ext:        DefaultExt,
		Output:     DefaultOutput,
		NamePrefix: sources.DefaultNamePrefix,
		Level:      DefaultLevel,
	}
}

// Validate checks constraints that the decoded values must satisfy
// regardless of where they came from. Environment values bypass the CUE
// schema, so the checks overlap with it.
func (c *Config) Validate() error {
	var errs []error
	if c.Level < 0 || c.Level > MaxLevel {
		errs = append(errs, &FieldError{Key: "level", Value: c.Level, Err: ErrInvalidLevel})
	}
	if ext := strings.TrimPrefix(c.Ext, "."); ext == "" || strings.ContainsAny(ext, `./\`) {
		errs = append(errs, &FieldError{Key: "ext", Value: c.Ext, Err: ErrInvalidExt})
	}
	if c.Output == "" || filepath.IsAbs(c.Output) || platform.CheckPortablePath(c.Output) != nil {
		errs = append(errs, &FieldError{Key: "output", Value: c.Output, Err: ErrInvalidOutput})
	}
	if c.Go.Package != "" && !token.IsIdentifier(c.Go.Package) {
		errs = append(errs, &FieldError{Key: "go.package", Value: c.Go.Package, Err: ErrInvalidGoPackage})
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap exposes ErrInvalidConfig and every field error to errors.Is.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v: %q", e.Key, e.Err, fmt.Sprint(e.Value))
}

func (e *FieldError) Unwrap() error { return e.Err }
