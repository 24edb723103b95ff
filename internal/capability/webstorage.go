// SPDX-License-Identifier: MPL-2.0

package capability

import (
	"context"
	"fmt"
	"strconv"

	"github.com/fxamacker/cbor/v2"

	"snapbuild/internal/kvstore"
	"snapbuild/internal/permissions"
)

var stateEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("capability: failed to create CBOR enc mode: %v", err))
	}
	stateEncMode = em
}

// WebStorage provides localStorage. Its contents are captured in the snapshot.
type WebStorage struct {
	base
	store kvstore.Store
}

var _ Stateful = (*WebStorage)(nil)

// NewWebStorage creates the webstorage module backed by store.
func NewWebStorage(store kvstore.Store) *WebStorage {
	return &WebStorage{
		base:  base{name: ModuleWebStorage, requires: []string{ModuleWebIDL}},
		store: store,
	}
}

// Store returns the backing store.
func (m *WebStorage) Store() kvstore.Store { return m.store }

// Close closes the backing store.
func (m *WebStorage) Close() error { return m.store.Close() }

// Commands returns the localStorage.* commands.
func (m *WebStorage) Commands(permissions.Checker) []Command {
	return []Command{
		newCommand("localStorage.getItem", func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 1, "KEY"); err != nil {
				return err
			}
			v, ok, err := m.store.Get(args[1])
			if err != nil || !ok {
				return err
			}
			return printLine(ctx, v)
		}),
		newCommand("localStorage.setItem", func(_ context.Context, args []string) error {
			if err := requireArgs(args, 2, "KEY VALUE"); err != nil {
				return err
			}
			return m.store.Set(args[1], args[2])
		}),
		newCommand("localStorage.removeItem", func(_ context.Context, args []string) error {
			if err := requireArgs(args, 1, "KEY"); err != nil {
				return err
			}
			return m.store.Remove(args[1])
		}),
		newCommand("localStorage.clear", func(_ context.Context, args []string) error {
			if err := requireArgs(args, 0, ""); err != nil {
				return err
			}
			return m.store.Clear()
		}),
		newCommand("localStorage.length", func(ctx context.Context, _ []string) error {
			n, err := m.store.Len()
			if err != nil {
				return err
			}
			return printLine(ctx, strconv.Itoa(n))
		}),
		newCommand("localStorage.key", func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 1, "INDEX"); err != nil {
				return err
			}
			i, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid index %q", args[1])
			}
			keys, err := m.store.Keys()
			if err != nil {
				return err
			}
			if i < 0 || i >= len(keys) {
				return nil
			}
			return printLine(ctx, keys[i])
		}),
	}
}

// MarshalState encodes the store contents as canonical CBOR.
func (m *WebStorage) MarshalState() ([]byte, error) {
	entries, err := kvstore.Dump(m.store)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return stateEncMode.Marshal(entries)
}

// UnmarshalState replaces the store contents with a MarshalState result.
func (m *WebStorage) UnmarshalState(data []byte) error {
	var entries []kvstore.Entry
	if len(data) > 0 {
		if err := cbor.Unmarshal(data, &entries); err != nil {
			return fmt.Errorf("webstorage: decode state: %w", err)
		}
	}
	return kvstore.Fill(m.store, entries)
}
