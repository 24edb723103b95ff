// SPDX-License-Identifier: MPL-2.0

package capability

import (
	"context"
	"crypto/rand"
	"crypto/sha1" //nolint:gosec // SHA-1 is part of the digest API surface
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	mrand "math/rand/v2"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"

	"snapbuild/internal/permissions"
)

// maxRandomBytes mirrors the getRandomValues quota.
const maxRandomBytes = 65536

// Crypto provides digests and random values.
type Crypto struct {
	base
	mu     sync.Mutex
	random io.Reader
}

// NewCrypto creates the crypto module. A non-nil seed makes random output reproducible.
func NewCrypto(seed *uint64) *Crypto {
	var random io.Reader = rand.Reader
	if seed != nil {
		var key [32]byte
		binary.LittleEndian.PutUint64(key[:], *seed)
		random = mrand.NewChaCha8(key)
	}
	return &Crypto{
		base:   base{name: ModuleCrypto, requires: []string{ModuleWebIDL, ModuleWeb}},
		random: random,
	}
}

// Commands returns crypto.digest, crypto.randomUUID, crypto.getRandomValues and crypto.hash64.
func (m *Crypto) Commands(permissions.Checker) []Command {
	return []Command{
		newCommand("crypto.digest", runDigest),
		newCommand("crypto.randomUUID", func(ctx context.Context, _ []string) error {
			m.mu.Lock()
			id, err := uuid.NewRandomFromReader(m.random)
			m.mu.Unlock()
			if err != nil {
				return err
			}
			return printLine(ctx, id.String())
		}),
		newCommand("crypto.getRandomValues", func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 1, "LENGTH"); err != nil {
				return err
			}
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 0 {
				return fmt.Errorf("invalid length %q", args[1])
			}
			if n > maxRandomBytes {
				return fmt.Errorf("length %d exceeds %d bytes", n, maxRandomBytes)
			}
			buf := make([]byte, n)
			m.mu.Lock()
			_, err = io.ReadFull(m.random, buf)
			m.mu.Unlock()
			if err != nil {
				return err
			}
			return printLine(ctx, hex.EncodeToString(buf))
		}),
		newCommand("crypto.hash64", func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 1, "TEXT"); err != nil {
				return err
			}
			return printLine(ctx, fmt.Sprintf("%016x", xxh3.HashString(args[1])))
		}),
	}
}

// runDigest prints the hex digest of TEXT.
// Usage: crypto.digest SHA-1|SHA-256|SHA-384|SHA-512 TEXT
func runDigest(ctx context.Context, args []string) error {
	if err := requireArgs(args, 2, "ALGORITHM TEXT"); err != nil {
		return err
	}
	h, err := newDigest(args[1])
	if err != nil {
		return err
	}
	h.Write([]byte(args[2]))
	return printLine(ctx, hex.EncodeToString(h.Sum(nil)))
}

func newDigest(name string) (hash.Hash, error) {
	switch strings.ToUpper(name) {
	case "SHA-1":
		return sha1.New(), nil //nolint:gosec // see import
	case "SHA-256":
		return sha256.New(), nil
	case "SHA-384":
		return sha512.New384(), nil
	case "SHA-512":
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("unrecognized algorithm name %q", name)
	}
}
