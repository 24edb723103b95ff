// SPDX-License-Identifier: MPL-2.0

package artifact

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/pierrec/lz4/v4"
)

const (
	// PrefixSize is the size of the length prefix.
	PrefixSize = 4

	// DefaultLevel is the LZ4-HC search depth used by builds.
	DefaultLevel = lz4.Level9

	// maxExpansion bounds how much one LZ4 block byte can decompress to.
	maxExpansion = 255
)

// emptyBlock is the LZ4 block of an empty input: a single token with no
// literals and no match.
var emptyBlock = []byte{0x00}

var (
	// ErrFormat is wrapped by every decoding failure.
	ErrFormat = errors.New("malformed artifact")
	// ErrTooLarge is returned for snapshots whose length does not fit the prefix.
	ErrTooLarge = errors.New("snapshot exceeds 4 GiB")
)

// FormatError describes a malformed artifact.
// It wraps ErrFormat for errors.Is() compatibility.
type FormatError struct {
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed artifact: %s: %v", e.Reason, e.Err)
	}
	return "malformed artifact: " + e.Reason
}

// Unwrap returns ErrFormat and the underlying cause.
func (e *FormatError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrFormat, e.Err}
	}
	return []error{ErrFormat}
}

// Encode compresses snapshot into an artifact. A level of lz4.Fast uses the
// fast compressor; any other level uses LZ4-HC with that search depth.
func Encode(snapshot []byte, level lz4.CompressionLevel) ([]byte, error) {
	if uint64(len(snapshot)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(snapshot))
	}
	if len(snapshot) == 0 {
		return append(make([]byte, PrefixSize), emptyBlock...), nil
	}

	out := make([]byte, PrefixSize+lz4.CompressBlockBound(len(snapshot)))
	binary.LittleEndian.PutUint32(out, uint32(len(snapshot)))

	var (
		n   int
		err error
	)
	if level == lz4.Fast {
		var c lz4.Compressor
		n, err = c.CompressBlock(snapshot, out[PrefixSize:])
	} else {
		c := lz4.CompressorHC{Level: level}
		n, err = c.CompressBlock(snapshot, out[PrefixSize:])
	}
	if err != nil {
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}
	if n == 0 {
		return nil, errors.New("compress snapshot: empty block")
	}
	return out[:PrefixSize+n], nil
}

// Decode returns the snapshot stored in an artifact.
func Decode(data []byte) ([]byte, error) {
	if len(data) < PrefixSize+1 {
		return nil, &FormatError{Reason: fmt.Sprintf("%d bytes is shorter than the minimum of %d", len(data), PrefixSize+1)}
	}
	size := binary.LittleEndian.Uint32(data)
	block := data[PrefixSize:]

	if size == 0 {
		if len(block) != len(emptyBlock) || block[0] != emptyBlock[0] {
			return nil, &FormatError{Reason: "non-empty block for an empty snapshot"}
		}
		return []byte{}, nil
	}
	if uint64(size) > uint64(len(block))*maxExpansion {
		return nil, &FormatError{Reason: fmt.Sprintf("length prefix %d exceeds the maximum expansion of a %d byte block", size, len(block))}
	}

	out := make([]byte, size)
	n, err := lz4.UncompressBlock(block, out)
	if err != nil {
		return nil, &FormatError{Reason: "decompress block", Err: err}
	}
	if n != int(size) {
		return nil, &FormatError{Reason: fmt.Sprintf("length prefix says %d bytes, block holds %d", size, n)}
	}
	return out, nil
}

// LevelOf maps 0 to lz4.Fast and 1..9 to lz4.Level1..lz4.Level9.
func LevelOf(n int) lz4.CompressionLevel {
	if n <= 0 {
		return lz4.Fast
	}
	return lz4.CompressionLevel(1 << (8 + min(n, 9)))
}
