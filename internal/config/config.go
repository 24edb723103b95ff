// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"snapbuild/internal/cueutil"
	"snapbuild/internal/issue"

	"github.com/spf13/viper"
)

const (
	// AppName is the application name and the environment variable prefix.
	AppName = "snapbuild"
	// ConfigFileName is the project config file looked up in the config directory.
	ConfigFileName = "snapbuild.cue"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "SNAPBUILD"
)

//go:embed config_schema.cue
var configSchema []byte

// ambientEnv lists keys that also read an unprefixed variable set by build drivers.
var ambientEnv = map[string]string{
	"target":  "TARGET",
	"profile": "PROFILE",
	"out_dir": "OUT_DIR",
}

// loadWithOptions returns the merged configuration and the config file path
// used, which is empty when only defaults and environment applied.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", fmt.Errorf("load config canceled: %w", err)
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, name := range ambientEnv {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(key), name); err != nil {
			return nil, "", fmt.Errorf("bind %s: %w", name, err)
		}
	}

	path, err := resolvePath(opts)
	if err != nil {
		return nil, "", err
	}
	if path != "" {
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithSuggestion("Check that the file contains valid CUE").
				WithSuggestion("Compare the keys with 'snapbuild config show'").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(err).
				BuildError()
		}
		slog.Debug("loaded configuration", "path", path)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(path).
			WithSuggestion("Environment overrides (" + EnvPrefix + "_*) are checked as well as the file").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(err).
			BuildError()
	}
	return &cfg, path, nil
}

// resolvePath picks the explicit file, then ConfigFileName in the config
// directory (the working directory when unset). A missing implicit file is not an error.
func resolvePath(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the --config path").
				WithSuggestion("Run 'snapbuild config init' to write a default file").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}
	path := filepath.Join(opts.ConfigDirPath, ConfigFileName)
	if fileExists(path) {
		return path, nil
	}
	return "", nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("source_dir", d.SourceDir)
	v.SetDefault("ext", d.Ext)
	v.SetDefault("project_root", d.ProjectRoot)
	v.SetDefault("out_dir", d.OutDir)
	v.SetDefault("output", d.Output)
	v.SetDefault("target", d.Target)
	v.SetDefault("profile", d.Profile)
	v.SetDefault("name_prefix", d.NamePrefix)
	v.SetDefault("level", d.Level)
	v.SetDefault("go.package", d.Go.Package)
	v.SetDefault("go.out", d.Go.Out)
	v.SetDefault("go.import_path", d.Go.ImportPath)
	v.SetDefault("modules.user_agent", d.Modules.UserAgent)
	v.SetDefault("modules.unstable", d.Modules.Unstable)
}

// loadCUEIntoViper validates the file against #Config and merges it over the defaults.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	m, err := cueutil.DecodeMap(configSchema, data, "#Config", cueutil.WithFilename(path))
	if err != nil {
		return err
	}
	if err := v.MergeConfigMap(m); err != nil {
		return fmt.Errorf("merge config: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// GenerateCUE renders cfg as a snapbuild.cue document. Empty optional values are omitted.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder
	sb.WriteString("// snapbuild configuration\n\n")

	str := func(indent, key, val string) {
		if val != "" {
			fmt.Fprintf(&sb, "%s%s: %q\n", indent, key, val)
		}
	}

	str("", "source_dir", cfg.SourceDir)
	str("", "ext", cfg.Ext)
	str("", "project_root", cfg.ProjectRoot)
	str("", "out_dir", cfg.OutDir)
	str("", "output", cfg.Output)
	str("", "target", cfg.Target)
	str("", "profile", cfg.Profile)
	str("", "name_prefix", cfg.NamePrefix)
	fmt.Fprintf(&sb, "level: %d\n", cfg.Level)

	if cfg.Go != (GoConfig{}) {
		sb.WriteString("\ngo: {\n")
		str("\t", "package", cfg.Go.Package)
		str("\t", "out", cfg.Go.Out)
		str("\t", "import_path", cfg.Go.ImportPath)
		sb.WriteString("}\n")
	}

	sb.WriteString("\nmodules: {\n")
	str("\t", "user_agent", cfg.Modules.UserAgent)
	fmt.Fprintf(&sb, "\tunstable: %v\n", cfg.Modules.Unstable)
	sb.WriteString("}\n")

	return sb.String()
}

// WriteDefault writes the default configuration to dir/ConfigFileName.
// An existing file is left untouched and reported with created=false.
func WriteDefault(dir string) (path string, created bool, err error) {
	path = filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(path); err == nil {
		return path, false, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", false, fmt.Errorf("write config file: %w", err)
	}
	return path, true, nil
}
