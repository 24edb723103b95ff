// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"

	"snapbuild/internal/config"
	"snapbuild/internal/pipeline"
)

type (
	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	// BuildFunc runs one snapshot build.
	BuildFunc func(ctx context.Context, opts pipeline.Options) (*pipeline.Result, error)

	// App wires the CLI to its services. Command handlers receive it instead
	// of reading package-level state.
	App struct {
		Config ConfigProvider
		Build  BuildFunc
		stdout io.Writer
		stderr io.Writer

		configPath string
		verbose    bool
	}

	// Dependencies are the injection points for NewApp. Nil fields get production defaults.
	Dependencies struct {
		Config ConfigProvider
		Build  BuildFunc
		Stdout io.Writer
		Stderr io.Writer
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Build == nil {
		deps.Build = pipeline.Run
	}
	return &App{
		Config: deps.Config,
		Build:  deps.Build,
		stdout: deps.Stdout,
		stderr: deps.Stderr,
	}
}

// loadConfig loads the configuration for the current invocation. dir is
// searched for snapbuild.cue unless --config named a file.
func (a *App) loadConfig(ctx context.Context, dir string) (*config.Config, error) {
	return a.Config.Load(ctx, config.LoadOptions{
		ConfigFilePath: a.configPath,
		ConfigDirPath:  dir,
	})
}
