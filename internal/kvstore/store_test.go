// SPDX-License-Identifier: MPL-2.0

package kvstore

import (
	"errors"
	"slices"
	"strings"
	"testing"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()

	if err := s.Set("b", "2"); err != nil {
		t.Fatalf("Set(b) error: %v", err)
	}
	if err := s.Set("a", "1"); err != nil {
		t.Fatalf("Set(a) error: %v", err)
	}
	if err := s.Set("a", "one"); err != nil {
		t.Fatalf("Set(a) overwrite error: %v", err)
	}

	v, ok, err := s.Get("a")
	if err != nil || !ok || v != "one" {
		t.Errorf("Get(a) = %q, %v, %v; want one, true, nil", v, ok, err)
	}
	if _, ok, _ := s.Get("missing"); ok {
		t.Error("Get(missing) reported present")
	}

	keys, err := s.Keys()
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(keys, []string{"a", "b"}) {
		t.Errorf("Keys() = %v, want [a b]", keys)
	}

	if err := s.Remove("b"); err != nil {
		t.Fatal(err)
	}
	if n, _ := s.Len(); n != 1 {
		t.Errorf("Len() after Remove = %d, want 1", n)
	}

	dumped, err := Dump(s)
	if err != nil {
		t.Fatal(err)
	}
	if len(dumped) != 1 || dumped[0] != (Entry{Key: "a", Value: "one"}) {
		t.Errorf("Dump() = %v", dumped)
	}

	if err := Fill(s, []Entry{{Key: "x", Value: "1"}, {Key: "y", Value: "2"}}); err != nil {
		t.Fatal(err)
	}
	keys, _ = s.Keys()
	if !slices.Equal(keys, []string{"x", "y"}) {
		t.Errorf("Keys() after Fill = %v, want [x y]", keys)
	}

	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}
	if n, _ := s.Len(); n != 0 {
		t.Errorf("Len() after Clear = %d, want 0", n)
	}
}

func TestMemory(t *testing.T) {
	t.Parallel()

	exerciseStore(t, NewMemory())
}

func TestMemory_Quota(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	m.quota = 8
	if err := m.Set("k", "1234567"); err != nil {
		t.Fatalf("Set within quota: %v", err)
	}
	if err := m.Set("j", "x"); !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("Set over quota error = %v, want ErrQuotaExceeded", err)
	}
	// replacing a value reuses its space
	if err := m.Set("k", "7654321"); err != nil {
		t.Errorf("overwrite within quota: %v", err)
	}
}

func TestSQLite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := OpenSQLite(dir)
	if err != nil {
		t.Fatalf("OpenSQLite() error: %v", err)
	}
	defer s.Close()

	exerciseStore(t, s)
}

func TestSQLite_Persists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := OpenSQLite(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set("greeting", "hello"); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenSQLite(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	v, ok, err := reopened.Get("greeting")
	if err != nil || !ok || v != "hello" {
		t.Errorf("Get after reopen = %q, %v, %v", v, ok, err)
	}

	reopened.quota = 10
	if err := reopened.Set("big", strings.Repeat("x", 20)); !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("Set over quota error = %v, want ErrQuotaExceeded", err)
	}
}
