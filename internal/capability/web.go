// SPDX-License-Identifier: MPL-2.0

package capability

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf16"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"

	"snapbuild/internal/permissions"
)

// blobURLPrefix is the prefix of URLs handed out by blob.create.
const blobURLPrefix = "blob:null/"

// Web provides the generic web platform APIs: base64, text encoding, timers,
// blobs and compression streams.
type Web struct {
	base
	blobs *BlobStore
	start time.Time
}

// NewWeb creates the web module backed by blobs.
func NewWeb(blobs *BlobStore) *Web {
	return &Web{
		base:  base{name: ModuleWeb, requires: []string{ModuleWebIDL, ModuleConsole, ModuleURL}},
		blobs: blobs,
		start: time.Now(),
	}
}

// Commands returns the web platform commands.
func (m *Web) Commands(perms permissions.Checker) []Command {
	return []Command{
		newCommand("btoa", func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 1, "TEXT"); err != nil {
				return err
			}
			if err := convertIDL("ByteString", args[1]); err != nil {
				return err
			}
			return printLine(ctx, base64.StdEncoding.EncodeToString(latin1Bytes(args[1])))
		}),
		newCommand("atob", func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 1, "BASE64"); err != nil {
				return err
			}
			data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(args[1]))
			if err != nil {
				return fmt.Errorf("invalid character: %w", err)
			}
			return printLine(ctx, latin1String(data))
		}),
		newCommand("text.encode", func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 1, "TEXT"); err != nil {
				return err
			}
			return printLine(ctx, hex.EncodeToString([]byte(args[1])))
		}),
		newCommand("text.length", func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 1, "TEXT"); err != nil {
				return err
			}
			return printLine(ctx, strconv.Itoa(len(utf16.Encode([]rune(args[1])))))
		}),
		newCommand("timers.sleep", func(ctx context.Context, args []string) error {
			return m.sleep(ctx, perms, args)
		}),
		newCommand("performance.now", func(ctx context.Context, _ []string) error {
			return m.now(ctx, perms)
		}),
		newCommand("blob.create", func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 1, "DATA"); err != nil {
				return err
			}
			return printLine(ctx, m.blobs.Put([]byte(args[1])))
		}),
		newCommand("blob.get", func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 1, "URL"); err != nil {
				return err
			}
			data, ok := m.blobs.Get(args[1])
			if !ok {
				return fmt.Errorf("no blob registered for %s", args[1])
			}
			_, err := GetHandlerContext(ctx).Stdout.Write(data)
			return err
		}),
		newCommand("compression.compress", runCompress),
		newCommand("compression.decompress", runDecompress),
	}
}

// sleep waits for MS milliseconds. Sub-millisecond precision needs the timing permission.
// Usage: timers.sleep MS
func (m *Web) sleep(ctx context.Context, perms permissions.Checker, args []string) error {
	if err := requireArgs(args, 1, "MS"); err != nil {
		return err
	}
	ms, err := strconv.ParseFloat(args[1], 64)
	if err != nil || ms < 0 {
		return fmt.Errorf("invalid delay %q", args[1])
	}
	if ms != math.Trunc(ms) {
		allowed, err := perms.CheckTimingAllowed()
		if err != nil {
			return err
		}
		if !allowed {
			ms = math.Trunc(ms)
		}
	}

	timer := time.NewTimer(time.Duration(ms * float64(time.Millisecond)))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// now prints milliseconds since the module was created.
func (m *Web) now(ctx context.Context, perms permissions.Checker) error {
	allowed, err := perms.CheckTimingAllowed()
	if err != nil {
		return err
	}
	elapsed := float64(time.Since(m.start)) / float64(time.Millisecond)
	if !allowed {
		elapsed = math.Floor(elapsed)
	}
	return printLine(ctx, strconv.FormatFloat(elapsed, 'f', 3, 64))
}

// runCompress compresses stdin to stdout.
// Usage: compression.compress gzip|deflate|deflate-raw
func runCompress(ctx context.Context, args []string) error {
	if err := requireArgs(args, 1, "gzip|deflate|deflate-raw"); err != nil {
		return err
	}
	hc := GetHandlerContext(ctx)

	var w io.WriteCloser
	switch args[1] {
	case "gzip":
		w = gzip.NewWriter(hc.Stdout)
	case "deflate":
		w = zlib.NewWriter(hc.Stdout)
	case "deflate-raw":
		fw, err := flate.NewWriter(hc.Stdout, flate.DefaultCompression)
		if err != nil {
			return err
		}
		w = fw
	default:
		return fmt.Errorf("unsupported format %q", args[1])
	}

	if _, err := io.Copy(w, hc.stdin()); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// runDecompress decompresses stdin to stdout.
// Usage: compression.decompress gzip|deflate|deflate-raw
func runDecompress(ctx context.Context, args []string) error {
	if err := requireArgs(args, 1, "gzip|deflate|deflate-raw"); err != nil {
		return err
	}
	hc := GetHandlerContext(ctx)

	var r io.ReadCloser
	switch args[1] {
	case "gzip":
		gr, err := gzip.NewReader(hc.stdin())
		if err != nil {
			return err
		}
		r = gr
	case "deflate":
		zr, err := zlib.NewReader(hc.stdin())
		if err != nil {
			return err
		}
		r = zr
	case "deflate-raw":
		r = flate.NewReader(hc.stdin())
	default:
		return fmt.Errorf("unsupported format %q", args[1])
	}
	defer r.Close()

	_, err := io.Copy(hc.Stdout, r)
	return err
}

// BlobStore holds the contents behind blob: URLs. Identical content yields the same URL.
type BlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewBlobStore creates an empty BlobStore.
func NewBlobStore() *BlobStore {
	return &BlobStore{blobs: make(map[string][]byte)}
}

// Put stores data and returns its blob URL.
func (s *BlobStore) Put(data []byte) string {
	sum := sha256.Sum256(data)
	u := blobURLPrefix + hex.EncodeToString(sum[:16])

	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[u] = append([]byte(nil), data...)
	return u
}

// Get returns the data registered for u.
func (s *BlobStore) Get(u string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.blobs[u]
	return data, ok
}

// Len returns the number of stored blobs.
func (s *BlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

func printLine(ctx context.Context, s string) error {
	_, err := fmt.Fprintln(GetHandlerContext(ctx).Stdout, s)
	return err
}

func latin1Bytes(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		out = append(out, byte(r))
	}
	return out
}

func latin1String(b []byte) string {
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}
