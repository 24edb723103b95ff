// SPDX-License-Identifier: MPL-2.0

package capability

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"snapbuild/internal/kvstore"
	"snapbuild/internal/permissions"
)

func TestCommands_Output(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		args       []string
		wantStdout string
		wantStderr string
	}{
		{"console.log joins args", []string{"console.log", "hello", "world"}, "hello world\n", ""},
		{"console.error to stderr", []string{"console.error", "bad"}, "", "bad\n"},
		{"url href", []string{"url.parse", "https://user@example.com:8080/a/b?x=1#frag"}, "https://user@example.com:8080/a/b?x=1#frag\n", ""},
		{"url protocol", []string{"url.parse", "https://example.com/", "protocol"}, "https:\n", ""},
		{"url hostname", []string{"url.parse", "https://example.com:8080/", "hostname"}, "example.com\n", ""},
		{"url port", []string{"url.parse", "https://example.com:8080/", "port"}, "8080\n", ""},
		{"url pathname default", []string{"url.parse", "https://example.com", "pathname"}, "/\n", ""},
		{"url search", []string{"url.parse", "https://example.com/?x=1", "search"}, "?x=1\n", ""},
		{"url origin", []string{"url.parse", "https://example.com:8080/a", "origin"}, "https://example.com:8080\n", ""},
		{"url encode", []string{"url.encode", "a b&c"}, "a+b%26c\n", ""},
		{"url decode", []string{"url.decode", "a+b%26c"}, "a b&c\n", ""},
		{"url join", []string{"url.join", "https://example.com/a/b", "../c"}, "https://example.com/c\n", ""},
		{"btoa", []string{"btoa", "hello"}, "aGVsbG8=\n", ""},
		{"atob", []string{"atob", "aGVsbG8="}, "hello\n", ""},
		{"text encode", []string{"text.encode", "hi"}, "6869\n", ""},
		{"text length surrogate pair", []string{"text.length", "a😀"}, "3\n", ""},
		{"sha-1", []string{"crypto.digest", "SHA-1", "abc"}, "a9993e364706816aba3e25717850c26c9cd0d89d\n", ""},
		{"sha-256", []string{"crypto.digest", "sha-256", "abc"}, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad\n", ""},
		{"status text", []string{"http.statusText", "404"}, "Not Found\n", ""},
		{"canonical header", []string{"http.canonicalHeader", "x-request-id"}, "X-Request-Id\n", ""},
		{"tls versions", []string{"tls.versions"}, "TLS 1.2\nTLS 1.3\n", ""},
		{"webidl long", []string{"webidl.assert", "long", "42"}, "", ""},
	}

	reg := newTestRegistry(t, allowAll{}, Options{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			stdout, stderr, err := runCommand(t, reg, "", tt.args...)
			if err != nil {
				t.Fatalf("%s error: %v", tt.args[0], err)
			}
			if stdout != tt.wantStdout {
				t.Errorf("stdout = %q, want %q", stdout, tt.wantStdout)
			}
			if stderr != tt.wantStderr {
				t.Errorf("stderr = %q, want %q", stderr, tt.wantStderr)
			}
		})
	}
}

func TestCommands_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		args      []string
		wantUsage bool
	}{
		{"missing operand", []string{"btoa"}, true},
		{"extra operand", []string{"crypto.digest", "SHA-1", "a", "b"}, true},
		{"btoa outside latin1", []string{"btoa", "☃"}, false},
		{"webidl bad long", []string{"webidl.assert", "long", "4.2"}, false},
		{"webidl unknown type", []string{"webidl.assert", "object", "x"}, false},
		{"relative url", []string{"url.parse", "/relative"}, false},
		{"unknown component", []string{"url.parse", "https://example.com", "nope"}, false},
		{"unknown digest", []string{"crypto.digest", "MD5", "x"}, false},
		{"unknown status", []string{"http.statusText", "799"}, false},
		{"random quota", []string{"crypto.getRandomValues", "65537"}, false},
		{"websocket wrong scheme", []string{"websocket.send", "http://example.com", "hi"}, false},
		{"fetch unsupported scheme", []string{"fetch", "ftp://example.com/x"}, false},
		{"missing blob", []string{"blob.get", "blob:null/none"}, false},
	}

	reg := newTestRegistry(t, allowAll{}, Options{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, _, err := runCommand(t, reg, "", tt.args...)
			if err == nil {
				t.Fatalf("%v should fail", tt.args)
			}
			if !strings.HasPrefix(err.Error(), tt.args[0]+": ") {
				t.Errorf("error %q is not prefixed with the command name", err)
			}
			if got := errors.Is(err, ErrUsage); got != tt.wantUsage {
				t.Errorf("errors.Is(err, ErrUsage) = %v, want %v", got, tt.wantUsage)
			}
		})
	}
}

func TestCommands_PermissionGated(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		args   []string
		wantOp permissions.Operation
	}{
		{"fetch http", []string{"fetch", "https://example.com/"}, permissions.OpNetURL},
		{"fetch file", []string{"fetch", "file:///etc/hosts"}, permissions.OpRead},
		{"websocket", []string{"websocket.send", "wss://example.com/", "hi"}, permissions.OpNetURL},
		{"net connect", []string{"net.connect", "example.com", "80"}, permissions.OpNet},
		{"net listen", []string{"net.listen", "127.0.0.1", "0"}, permissions.OpNet},
		{"net resolve", []string{"net.resolve", "example.com"}, permissions.OpNet},
		{"net unix", []string{"net.connectUnix", "/tmp/snapbuild.sock"}, permissions.OpUnstable},
		{"http serve", []string{"http.serve", "127.0.0.1", "0", "ok"}, permissions.OpNet},
		{"broadcast post", []string{"broadcast.post", "chan", "msg"}, permissions.OpUnstable},
		{"broadcast receive", []string{"broadcast.receive", "chan"}, permissions.OpUnstable},
		{"performance now", []string{"performance.now"}, permissions.OpTiming},
		{"fractional sleep", []string{"timers.sleep", "0.5"}, permissions.OpTiming},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			perms := permissions.NewSnapshotting()
			reg := newTestRegistry(t, perms, Options{})

			_, _, err := runCommand(t, reg, "", tt.args...)
			if !errors.Is(err, permissions.ErrUnreachable) {
				t.Fatalf("%v error = %v, want ErrUnreachable", tt.args, err)
			}
			var ue *permissions.UnreachableError
			if !errors.As(err, &ue) || ue.Op != tt.wantOp {
				t.Errorf("violation = %+v, want op %v", ue, tt.wantOp)
			}
			if perms.Err() == nil {
				t.Error("violation was not recorded")
			}
		})
	}
}

func TestCommands_UngatedDuringSnapshot(t *testing.T) {
	t.Parallel()

	perms := permissions.NewSnapshotting()
	reg := newTestRegistry(t, perms, Options{})

	for _, args := range [][]string{
		{"timers.sleep", "1"},
		{"localStorage.setItem", "k", "v"},
		{"crypto.randomUUID"},
		{"blob.create", "data"},
	} {
		if _, _, err := runCommand(t, reg, "", args...); err != nil {
			t.Errorf("%v error: %v", args, err)
		}
	}
	if err := perms.Err(); err != nil {
		t.Errorf("unexpected violation: %v", err)
	}
}

func TestCompression_RoundTrip(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t, allowAll{}, Options{})
	input := strings.Repeat("snapshot ", 64)

	for _, format := range []string{"gzip", "deflate", "deflate-raw"} {
		t.Run(format, func(t *testing.T) {
			t.Parallel()

			compressed, _, err := runCommand(t, reg, input, "compression.compress", format)
			if err != nil {
				t.Fatalf("compress error: %v", err)
			}
			if len(compressed) >= len(input) {
				t.Errorf("compressed %d bytes into %d", len(input), len(compressed))
			}
			plain, _, err := runCommand(t, reg, compressed, "compression.decompress", format)
			if err != nil {
				t.Fatalf("decompress error: %v", err)
			}
			if plain != input {
				t.Errorf("round trip mismatch: got %q", plain)
			}
		})
	}
}

func TestBlob_CreateGet(t *testing.T) {
	t.Parallel()

	blobs := NewBlobStore()
	reg := newTestRegistry(t, allowAll{}, Options{Blobs: blobs})

	out, _, err := runCommand(t, reg, "", "blob.create", "payload")
	if err != nil {
		t.Fatalf("blob.create error: %v", err)
	}
	u := strings.TrimSpace(out)
	if !strings.HasPrefix(u, blobURLPrefix) {
		t.Errorf("blob URL %q lacks prefix %q", u, blobURLPrefix)
	}
	data, _, err := runCommand(t, reg, "", "blob.get", u)
	if err != nil {
		t.Fatalf("blob.get error: %v", err)
	}
	if data != "payload" {
		t.Errorf("blob.get = %q, want payload", data)
	}
	if blobs.Len() != 1 {
		t.Errorf("BlobStore.Len() = %d, want 1", blobs.Len())
	}
}

func TestCrypto_SeededIsReproducible(t *testing.T) {
	t.Parallel()

	seed := uint64(42)
	var ids [2]string
	for i := range ids {
		reg := newTestRegistry(t, allowAll{}, Options{CryptoSeed: &seed})
		out, _, err := runCommand(t, reg, "", "crypto.randomUUID")
		if err != nil {
			t.Fatalf("crypto.randomUUID error: %v", err)
		}
		ids[i] = strings.TrimSpace(out)
	}

	if ids[0] != ids[1] {
		t.Errorf("seeded UUIDs differ: %s vs %s", ids[0], ids[1])
	}
	id, err := uuid.Parse(ids[0])
	if err != nil {
		t.Fatalf("uuid.Parse(%q) error: %v", ids[0], err)
	}
	if id.Version() != 4 {
		t.Errorf("UUID version = %d, want 4", id.Version())
	}
}

func TestCrypto_RandomValuesAndHash(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t, allowAll{}, Options{})

	out, _, err := runCommand(t, reg, "", "crypto.getRandomValues", "8")
	if err != nil {
		t.Fatalf("crypto.getRandomValues error: %v", err)
	}
	if got := len(strings.TrimSpace(out)); got != 16 {
		t.Errorf("8 random bytes printed as %d hex digits", got)
	}

	first, _, err := runCommand(t, reg, "", "crypto.hash64", "abc")
	if err != nil {
		t.Fatalf("crypto.hash64 error: %v", err)
	}
	second, _, _ := runCommand(t, reg, "", "crypto.hash64", "abc")
	if first != second || len(strings.TrimSpace(first)) != 16 {
		t.Errorf("crypto.hash64 not stable: %q vs %q", first, second)
	}
}

func TestWebStorage_StateRoundTrip(t *testing.T) {
	t.Parallel()

	src := NewWebStorage(kvstore.NewMemory())
	reg := NewRegistry()
	reg.Register(src.Name(), src.Commands(allowAll{})...)

	if state, err := src.MarshalState(); err != nil || state != nil {
		t.Fatalf("empty MarshalState() = %v, %v; want nil, nil", state, err)
	}

	for _, kv := range [][2]string{{"b", "2"}, {"a", "1"}} {
		if _, _, err := runCommand(t, reg, "", "localStorage.setItem", kv[0], kv[1]); err != nil {
			t.Fatalf("setItem error: %v", err)
		}
	}
	out, _, err := runCommand(t, reg, "", "localStorage.key", "0")
	if err != nil || out != "a\n" {
		t.Errorf("localStorage.key 0 = %q, %v; want a", out, err)
	}
	out, _, err = runCommand(t, reg, "", "localStorage.getItem", "missing")
	if err != nil || out != "" {
		t.Errorf("getItem(missing) = %q, %v; want empty, nil", out, err)
	}

	state, err := src.MarshalState()
	if err != nil {
		t.Fatalf("MarshalState() error: %v", err)
	}
	again, _ := src.MarshalState()
	if string(state) != string(again) {
		t.Error("MarshalState() is not deterministic")
	}

	dst := NewWebStorage(kvstore.NewMemory())
	if err := dst.UnmarshalState(state); err != nil {
		t.Fatalf("UnmarshalState() error: %v", err)
	}
	if v, ok, _ := dst.Store().Get("b"); !ok || v != "2" {
		t.Errorf("restored b = %q, %v; want 2", v, ok)
	}
	if n, _ := dst.Store().Len(); n != 2 {
		t.Errorf("restored length = %d, want 2", n)
	}
}

func TestBroadcast_PostReceive(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t, allowAll{}, Options{Unstable: true})
	for _, msg := range []string{"one", "two"} {
		if _, _, err := runCommand(t, reg, "", "broadcast.post", "news", msg); err != nil {
			t.Fatalf("broadcast.post error: %v", err)
		}
	}

	for _, want := range []string{"one\n", "two\n", ""} {
		got, _, err := runCommand(t, reg, "", "broadcast.receive", "news")
		if err != nil {
			t.Fatalf("broadcast.receive error: %v", err)
		}
		if got != want {
			t.Errorf("broadcast.receive = %q, want %q", got, want)
		}
	}
}

func TestFetch_HTTP(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, "ua=%s", r.UserAgent())
	}))
	t.Cleanup(srv.Close)

	reg := newTestRegistry(t, allowAll{}, Options{UserAgent: "snapbuild-test", HTTPClient: srv.Client()})

	out, _, err := runCommand(t, reg, "", "fetch", srv.URL+"/")
	if err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	if out != "ua=snapbuild-test" {
		t.Errorf("fetch body = %q", out)
	}

	if _, _, err := runCommand(t, reg, "", "fetch", srv.URL+"/missing"); err == nil {
		t.Error("fetch of a 404 should fail")
	}
}

func TestFetch_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data.txt")
	if err := os.WriteFile(path, []byte("from disk"), 0o644); err != nil {
		t.Fatal(err)
	}

	reg := newTestRegistry(t, allowAll{}, Options{})
	out, _, err := runCommand(t, reg, "", "fetch", "file://"+filepath.ToSlash(path))
	if err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	if out != "from disk" {
		t.Errorf("fetch body = %q", out)
	}
}

func TestWebSocket_Send(t *testing.T) {
	t.Parallel()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte("echo:"+string(msg)))
	}))
	t.Cleanup(srv.Close)

	reg := newTestRegistry(t, allowAll{}, Options{})
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	out, _, err := runCommand(t, reg, "", "websocket.send", wsURL, "ping")
	if err != nil {
		t.Fatalf("websocket.send error: %v", err)
	}
	if out != "echo:ping\n" {
		t.Errorf("websocket.send = %q, want echo:ping", out)
	}
}

func TestNet_Listen(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t, allowAll{}, Options{})
	out, _, err := runCommand(t, reg, "", "net.listen", "127.0.0.1", "0")
	if err != nil {
		t.Fatalf("net.listen error: %v", err)
	}
	if !strings.HasPrefix(out, "127.0.0.1:") {
		t.Errorf("net.listen printed %q", out)
	}
}
