// SPDX-License-Identifier: MPL-2.0

// Package cmd implements the snapbuild command line.
//
// The root command is executed through fang. Subcommands share an App that
// carries the configuration provider and the output streams, so tests can
// run the full command tree against buffers.
package cmd
