// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"encoding/binary"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Magic identifies snapshot bytes.
var Magic = [4]byte{'S', 'N', 'A', 'P'}

// Version is the snapshot format version written by Bytes.
const Version uint32 = 1

// headerSize is the magic plus the version.
const headerSize = len(Magic) + 4

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("engine: failed to create CBOR enc mode: %v", err))
	}
	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("engine: failed to create CBOR dec mode: %v", err))
	}
}

type (
	// Snapshot is the captured state of an Environment.
	Snapshot struct {
		// Modules is the module manifest in registration order.
		Modules []ModuleState `cbor:"1,keyasint"`
		// Vars are the script-defined variables, sorted by name.
		Vars []Variable `cbor:"2,keyasint,omitempty"`
		// Funcs are the script-defined functions, sorted by name.
		Funcs []Function `cbor:"3,keyasint,omitempty"`
		// Units are the executed unit names in execution order.
		Units []string `cbor:"4,keyasint,omitempty"`
	}

	// ModuleState is one manifest entry.
	ModuleState struct {
		Name  string `cbor:"1,keyasint"`
		State []byte `cbor:"2,keyasint,omitempty"`
	}

	// Variable is a captured shell variable.
	Variable struct {
		Name     string            `cbor:"1,keyasint"`
		Kind     VarKind           `cbor:"2,keyasint"`
		Exported bool              `cbor:"3,keyasint,omitempty"`
		ReadOnly bool              `cbor:"4,keyasint,omitempty"`
		Value    string            `cbor:"5,keyasint,omitempty"`
		List     []string          `cbor:"6,keyasint,omitempty"`
		Map      map[string]string `cbor:"7,keyasint,omitempty"`
	}

	// Function is a captured shell function in minified source form.
	Function struct {
		Name   string `cbor:"1,keyasint"`
		Source string `cbor:"2,keyasint"`
	}
)

// Bytes serializes the snapshot. The output is deterministic.
func (s *Snapshot) Bytes() ([]byte, error) {
	body, err := encMode.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	buf := make([]byte, 0, headerSize+len(body))
	buf = append(buf, Magic[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, Version)
	return append(buf, body...), nil
}

// ModuleNames returns the manifest's module names in order.
func (s *Snapshot) ModuleNames() []string {
	names := make([]string, len(s.Modules))
	for i, m := range s.Modules {
		names[i] = m.Name
	}
	return names
}

// DecodeSnapshot parses bytes produced by Snapshot.Bytes.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTruncated, len(data))
	}
	if magic := string(data[:len(Magic)]); magic != string(Magic[:]) {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidMagic, magic)
	}
	if version := binary.LittleEndian.Uint32(data[len(Magic):headerSize]); version != Version {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrVersionMismatch, Version, version)
	}

	var s Snapshot
	if err := decMode.Unmarshal(data[headerSize:], &s); err != nil {
		return nil, fmt.Errorf("decode snapshot body: %w", err)
	}
	return &s, nil
}
