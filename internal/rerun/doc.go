// SPDX-License-Identifier: MPL-2.0

// Package rerun records what a build read so the surrounding build system
// knows when to run it again: the files it executed and the environment
// variables it consulted. The declarations are written as a Make-style
// depfile and as a TOML build manifest.
package rerun
