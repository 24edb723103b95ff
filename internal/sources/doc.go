// SPDX-License-Identifier: MPL-2.0

// Package sources enumerates and loads bootstrap scripts.
//
// Bootstrap order is part of the snapshot contract: later scripts may depend on
// globals defined by earlier ones, so Enumerate always returns paths sorted by
// their full path string and never depends on directory iteration order.
package sources
