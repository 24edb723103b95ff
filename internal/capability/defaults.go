// SPDX-License-Identifier: MPL-2.0

package capability

import (
	"fmt"
	"net/http"

	"snapbuild/internal/kvstore"
)

// Module names, in registration order.
const (
	ModuleWebIDL           = "webidl"
	ModuleConsole          = "console"
	ModuleURL              = "url"
	ModuleTLS              = "tls"
	ModuleWeb              = "web"
	ModuleFetch            = "fetch"
	ModuleWebSocket        = "websocket"
	ModuleWebStorage       = "webstorage"
	ModuleCrypto           = "crypto"
	ModuleBroadcastChannel = "broadcast_channel"
	ModuleNet              = "net"
	ModuleHTTP             = "http"
)

// Options holds the compile-time parameters of the built-in modules.
// The zero value is the conservative configuration used while snapshotting.
type Options struct {
	// UserAgent is sent by fetch and websocket. Empty sends no header.
	UserAgent string
	// HTTPClient is used by fetch; nil uses a default client.
	HTTPClient *http.Client
	// Blobs backs blob URLs; nil creates an empty store.
	Blobs *BlobStore
	// Broadcast backs broadcast channels; nil creates an in-memory hub.
	Broadcast *BroadcastHub
	// OriginStorageDir persists webstorage in SQLite for a restored runtime;
	// empty keeps it in memory. Snapshot builds never set it.
	OriginStorageDir string
	// CryptoSeed makes random values reproducible when set.
	CryptoSeed *uint64
	// Unstable enables APIs gated behind the unstable flag.
	Unstable bool
}

// DefaultModules returns the built-in modules in their fixed registration order.
func DefaultModules(opts Options) ([]Module, error) {
	var store kvstore.Store = kvstore.NewMemory()
	if opts.OriginStorageDir != "" {
		s, err := kvstore.OpenSQLite(opts.OriginStorageDir)
		if err != nil {
			return nil, fmt.Errorf("webstorage: %w", err)
		}
		store = s
	}

	blobs := opts.Blobs
	if blobs == nil {
		blobs = NewBlobStore()
	}
	hub := opts.Broadcast
	if hub == nil {
		hub = NewBroadcastHub()
	}

	return []Module{
		NewWebIDL(),
		NewConsole(),
		NewURL(),
		NewTLS(),
		NewWeb(blobs),
		NewFetch(opts.UserAgent, opts.HTTPClient),
		NewWebSocket(opts.UserAgent),
		NewWebStorage(store),
		NewCrypto(opts.CryptoSeed),
		NewBroadcastChannel(hub, opts.Unstable),
		NewNet(opts.Unstable),
		NewHTTP(),
	}, nil
}
