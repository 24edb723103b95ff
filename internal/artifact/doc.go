// SPDX-License-Identifier: MPL-2.0

// Package artifact encodes snapshots into the on-disk artifact embedded in
// the host binary.
//
// Layout:
//
//	offset 0: uint32, little-endian, uncompressed snapshot length
//	offset 4: one LZ4 block holding the compressed snapshot
//
// There is no frame header, checksum or magic. Readers allocate the length
// from the prefix and decompress the block in one call.
package artifact
