// SPDX-License-Identifier: MPL-2.0

// Package capability provides the host modules composed into the snapshot
// environment.
//
// A Module contributes a named set of host commands that bootstrap scripts call
// like ordinary commands (console.log, fetch, crypto.digest, ...). Commands that
// touch the network, the filesystem, precise timers or unstable APIs consult a
// permissions.Checker first.
//
// # Registration order
//
// Modules are registered in a fixed order and each module declares the modules
// it depends on. Validate rejects any list where a dependency is registered
// after its dependent:
//
//	webidl → console → url → tls → web → fetch → websocket →
//	webstorage → crypto → broadcast_channel → net → http
//
// # Errors
//
// Command failures are prefixed with the command name:
//
//	url.parse: parse "::": missing protocol scheme
//
// Errors that wrap permissions.ErrUnreachable must never be downgraded to an
// exit status by callers; they abort the build.
package capability
