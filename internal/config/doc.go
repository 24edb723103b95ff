// SPDX-License-Identifier: MPL-2.0

// Package config loads snapbuild settings with Viper.
//
// Values come, in increasing precedence, from built-in defaults, an optional
// snapbuild.cue file validated against the embedded schema (config_schema.cue),
// and the environment. Every key can be set as SNAPBUILD_<KEY> with dots
// replaced by underscores; target, profile and out_dir also honor the plain
// TARGET, PROFILE and OUT_DIR variables exported by build drivers. Command
// line flags are applied on top by the CLI.
package config
