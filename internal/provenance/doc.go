// SPDX-License-Identifier: MPL-2.0

// Package provenance stamps build metadata into the host binary: the target
// triple, the build profile, the source revision and the TypeScript version
// of the embedded toolchain.
//
// The revision comes from the GIT_COMMIT_HASH environment variable when set,
// and from `git rev-list -1 HEAD` otherwise. A revision that cannot be
// determined is recorded as "UNKNOWN" and never fails the build.
package provenance
