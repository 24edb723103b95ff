// SPDX-License-Identifier: MPL-2.0

package kvstore

import (
	"errors"
	"slices"
	"sync"
)

// ErrQuotaExceeded is returned by Set when the store would exceed its quota.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// DefaultQuota is the maximum combined size of keys and values in bytes.
const DefaultQuota = 10 << 20

// Store is a string key/value store with web storage semantics.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
	Clear() error
	// Keys returns all keys in ascending order.
	Keys() ([]string, error)
	Len() (int, error)
	Close() error
}

// Memory is an in-process Store. The zero value is not usable; call NewMemory.
type Memory struct {
	mu    sync.RWMutex
	data  map[string]string
	size  int
	quota int
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store with the default quota.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string), quota: DefaultQuota}
}

// Get returns the value for key and whether it was present.
func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	return v, ok, nil
}

// Set stores value under key.
func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	size := m.size + len(key) + len(value)
	if old, ok := m.data[key]; ok {
		size -= len(key) + len(old)
	}
	if size > m.quota {
		return ErrQuotaExceeded
	}
	m.data[key] = value
	m.size = size
	return nil
}

// Remove deletes key if present.
func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.data[key]; ok {
		m.size -= len(key) + len(old)
		delete(m.data, key)
	}
	return nil
}

// Clear removes every entry.
func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clear(m.data)
	m.size = 0
	return nil
}

// Keys returns the keys in ascending order.
func (m *Memory) Keys() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, nil
}

// Len returns the number of entries.
func (m *Memory) Len() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.data), nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

// Entry is one key/value pair, used to move store contents in and out of snapshots.
type Entry struct {
	Key   string `cbor:"1,keyasint"`
	Value string `cbor:"2,keyasint"`
}

// Dump returns every entry of s ordered by key.
func Dump(s Store) ([]Entry, error) {
	keys, err := s.Keys()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		v, ok, err := s.Get(k)
		if err != nil {
			return nil, err
		}
		if ok {
			entries = append(entries, Entry{Key: k, Value: v})
		}
	}
	return entries, nil
}

// Fill replaces the contents of s with entries.
func Fill(s Store, entries []Entry) error {
	if err := s.Clear(); err != nil {
		return err
	}
	for _, e := range entries {
		if err := s.Set(e.Key, e.Value); err != nil {
			return err
		}
	}
	return nil
}
