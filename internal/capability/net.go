// SPDX-License-Identifier: MPL-2.0

package capability

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"

	"snapbuild/internal/permissions"
)

const unstableUnixSockets = "Deno.connect (unix)"

// Net provides raw TCP and unix socket access.
type Net struct {
	base
	unstable bool
	dialer   net.Dialer
}

// NewNet creates the net module.
func NewNet(unstable bool) *Net {
	return &Net{
		base:     base{name: ModuleNet, requires: []string{ModuleWebIDL, ModuleWeb}},
		unstable: unstable,
	}
}

// Commands returns net.connect, net.connectUnix, net.listen and net.resolve.
func (m *Net) Commands(perms permissions.Checker) []Command {
	return []Command{
		newCommand("net.connect", func(ctx context.Context, args []string) error {
			if err := requireMinArgs(args, 2, "HOST PORT [DATA]"); err != nil {
				return err
			}
			host, port, err := hostPort(args[1], args[2])
			if err != nil {
				return err
			}
			if err := perms.CheckNet(host, port); err != nil {
				return err
			}
			return m.exchange(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)), args[3:])
		}),
		newCommand("net.connectUnix", func(ctx context.Context, args []string) error {
			if err := requireMinArgs(args, 1, "PATH [DATA]"); err != nil {
				return err
			}
			if !m.unstable {
				if err := perms.CheckUnstable(unstableUnixSockets); err != nil {
					return err
				}
			}
			if err := perms.CheckRead(args[1]); err != nil {
				return err
			}
			if err := perms.CheckWrite(args[1]); err != nil {
				return err
			}
			return m.exchange(ctx, "unix", args[1], args[2:])
		}),
		newCommand("net.listen", func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 2, "HOST PORT"); err != nil {
				return err
			}
			host, port, err := hostPort(args[1], args[2])
			if err != nil {
				return err
			}
			if err := perms.CheckNet(host, port); err != nil {
				return err
			}
			var lc net.ListenConfig
			ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
			if err != nil {
				return err
			}
			defer ln.Close()
			return printLine(ctx, ln.Addr().String())
		}),
		newCommand("net.resolve", func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 1, "HOST"); err != nil {
				return err
			}
			if err := perms.CheckNet(args[1], 0); err != nil {
				return err
			}
			addrs, err := net.DefaultResolver.LookupHost(ctx, args[1])
			if err != nil {
				return err
			}
			for _, a := range addrs {
				if err := printLine(ctx, a); err != nil {
					return err
				}
			}
			return nil
		}),
	}
}

// exchange dials addr, writes data (joined by spaces) and copies the reply to stdout.
func (m *Net) exchange(ctx context.Context, network, addr string, data []string) error {
	conn, err := m.dialer.DialContext(ctx, network, addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	if len(data) > 0 {
		for i, part := range data {
			if i > 0 {
				part = " " + part
			}
			if _, err := io.WriteString(conn, part); err != nil {
				return err
			}
		}
		if cw, ok := conn.(interface{ CloseWrite() error }); ok {
			_ = cw.CloseWrite()
		}
	}

	_, err = io.Copy(GetHandlerContext(ctx).Stdout, conn)
	return err
}

func hostPort(host, rawPort string) (string, int, error) {
	port, err := strconv.Atoi(rawPort)
	if err != nil || port < 0 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port %q", rawPort)
	}
	return host, port, nil
}
