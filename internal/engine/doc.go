// SPDX-License-Identifier: MPL-2.0

// Package engine hosts the script environment that bootstrap scripts run in
// and turns it into a snapshot.
//
// An Environment wraps a mvdan.cc/sh interpreter configured for snapshotting:
// an empty environment, errexit and noglob enabled, and an exec handler that
// only dispatches to the host commands registered by capability modules.
// Scripts can never reach host binaries. File access through redirections and
// test builtins is routed through the permissions checker.
//
// Capture is one-shot. After it succeeds or fails the environment rejects
// further Execute and Capture calls with ErrConsumed.
//
// A Snapshot serializes as the magic "SNAP", a little-endian uint32 format
// version, and a canonical CBOR body, so identical inputs produce identical
// bytes.
package engine
