// SPDX-License-Identifier: MPL-2.0

// Package kvstore provides the string key/value stores behind the webstorage
// capability. Memory is used while snapshotting; SQLite backs persistent
// origin storage when the host runtime configures a storage directory.
package kvstore
