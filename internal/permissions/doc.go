// SPDX-License-Identifier: MPL-2.0

// Package permissions defines the capability-check contract that host commands
// consult before performing privileged work (network, filesystem, high
// resolution timing, unstable APIs).
//
// While a snapshot is being built there is no real caller to grant or deny
// anything, so the only implementation shipped here is Snapshotting: every
// check fails with an UnreachableError and the violation is remembered, so the
// build fails even if a bootstrap script ignores the failed command.
package permissions
