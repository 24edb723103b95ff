// SPDX-License-Identifier: MPL-2.0

package capability

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/textproto"
	"strconv"
	"time"

	"snapbuild/internal/permissions"
)

// HTTP provides the server side HTTP helpers.
type HTTP struct{ base }

// NewHTTP creates the http module.
func NewHTTP() *HTTP {
	return &HTTP{base{name: ModuleHTTP, requires: []string{ModuleWeb, ModuleNet}}}
}

// Commands returns http.statusText, http.canonicalHeader and http.serve.
func (m *HTTP) Commands(perms permissions.Checker) []Command {
	return []Command{
		newCommand("http.statusText", func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 1, "CODE"); err != nil {
				return err
			}
			code, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid status code %q", args[1])
			}
			text := http.StatusText(code)
			if text == "" {
				return fmt.Errorf("unknown status code %d", code)
			}
			return printLine(ctx, text)
		}),
		newCommand("http.canonicalHeader", func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 1, "NAME"); err != nil {
				return err
			}
			return printLine(ctx, textproto.CanonicalMIMEHeaderKey(args[1]))
		}),
		newCommand("http.serve", func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 3, "HOST PORT BODY"); err != nil {
				return err
			}
			host, port, err := hostPort(args[1], args[2])
			if err != nil {
				return err
			}
			if err := perms.CheckNet(host, port); err != nil {
				return err
			}
			return serveStatic(ctx, net.JoinHostPort(host, strconv.Itoa(port)), args[3])
		}),
	}
}

// serveStatic answers every request with body until ctx is done.
func serveStatic(ctx context.Context, addr, body string) error {
	srv := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = w.Write([]byte(body))
		}),
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
