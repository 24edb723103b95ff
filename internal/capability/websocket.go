// SPDX-License-Identifier: MPL-2.0

package capability

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"snapbuild/internal/permissions"
)

// WebSocket provides a request/response style websocket command.
type WebSocket struct {
	base
	userAgent string
	dialer    *websocket.Dialer
}

// NewWebSocket creates the websocket module.
func NewWebSocket(userAgent string) *WebSocket {
	return &WebSocket{
		base:      base{name: ModuleWebSocket, requires: []string{ModuleWebIDL, ModuleURL, ModuleWeb}},
		userAgent: userAgent,
		dialer: &websocket.Dialer{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: clientTLSConfig(),
		},
	}
}

// Commands returns websocket.send.
func (m *WebSocket) Commands(perms permissions.Checker) []Command {
	return []Command{newCommand("websocket.send", func(ctx context.Context, args []string) error {
		return m.send(ctx, perms, args)
	})}
}

// send opens a connection, sends MESSAGE as text, prints the first reply and closes.
// Usage: websocket.send URL MESSAGE
func (m *WebSocket) send(ctx context.Context, perms permissions.Checker, args []string) error {
	if err := requireArgs(args, 2, "URL MESSAGE"); err != nil {
		return err
	}
	u, err := parseAbsoluteURL(args[1])
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("scheme %q not supported, expected ws or wss", u.Scheme)
	}
	if err := perms.CheckNetURL(u); err != nil {
		return err
	}

	header := http.Header{}
	if m.userAgent != "" {
		header.Set("User-Agent", m.userAgent)
	}
	conn, resp, err := m.dialer.DialContext(ctx, u.String(), header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(args[2])); err != nil {
		return err
	}
	_, reply, err := conn.ReadMessage()
	if err != nil {
		return err
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

	return printLine(ctx, string(reply))
}
