// SPDX-License-Identifier: MPL-2.0

package capability

import (
	"context"
	"crypto/tls"
	"fmt"

	"snapbuild/internal/permissions"
)

// TLS exposes the TLS primitives shared by fetch, websocket and net.
type TLS struct{ base }

// NewTLS creates the tls module.
func NewTLS() *TLS {
	return &TLS{base{name: ModuleTLS}}
}

// Commands returns tls.ciphers and tls.versions.
func (m *TLS) Commands(permissions.Checker) []Command {
	return []Command{
		newCommand("tls.ciphers", func(ctx context.Context, _ []string) error {
			out := GetHandlerContext(ctx).Stdout
			for _, suite := range tls.CipherSuites() {
				if _, err := fmt.Fprintln(out, suite.Name); err != nil {
					return err
				}
			}
			return nil
		}),
		newCommand("tls.versions", func(ctx context.Context, _ []string) error {
			out := GetHandlerContext(ctx).Stdout
			for _, v := range []uint16{tls.VersionTLS12, tls.VersionTLS13} {
				if _, err := fmt.Fprintln(out, tls.VersionName(v)); err != nil {
					return err
				}
			}
			return nil
		}),
	}
}

// clientTLSConfig is the TLS configuration used by outbound connections.
func clientTLSConfig() *tls.Config {
	return &tls.Config{MinVersion: tls.VersionTLS12}
}
