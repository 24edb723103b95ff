// SPDX-License-Identifier: MPL-2.0

package capability

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"snapbuild/internal/permissions"
)

// maxFetchBody bounds the response body copied to the script.
const maxFetchBody = 16 << 20

// Fetch provides the fetch command.
type Fetch struct {
	base
	userAgent string
	client    *http.Client
}

// NewFetch creates the fetch module. A nil client uses a default client.
func NewFetch(userAgent string, client *http.Client) *Fetch {
	if client == nil {
		client = &http.Client{Transport: &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: clientTLSConfig(),
		}}
	}
	return &Fetch{
		base:      base{name: ModuleFetch, requires: []string{ModuleWebIDL, ModuleURL, ModuleWeb}},
		userAgent: userAgent,
		client:    client,
	}
}

// Commands returns fetch.
func (m *Fetch) Commands(perms permissions.Checker) []Command {
	return []Command{newCommand("fetch", func(ctx context.Context, args []string) error {
		return m.fetch(ctx, perms, args)
	})}
}

// fetch writes the body of URL to stdout. file: URLs need the read permission,
// everything else the net permission.
// Usage: fetch URL
func (m *Fetch) fetch(ctx context.Context, perms permissions.Checker, args []string) error {
	if err := requireArgs(args, 1, "URL"); err != nil {
		return err
	}
	u, err := parseAbsoluteURL(args[1])
	if err != nil {
		return err
	}
	hc := GetHandlerContext(ctx)

	switch u.Scheme {
	case "file":
		if err := perms.CheckRead(u.Path); err != nil {
			return err
		}
		f, err := os.Open(u.Path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(hc.Stdout, io.LimitReader(f, maxFetchBody))
		return err
	case "http", "https":
		if err := perms.CheckNetURL(u); err != nil {
			return err
		}
		return m.get(ctx, u, hc.Stdout)
	default:
		return fmt.Errorf("scheme %q not supported", u.Scheme)
	}
}

func (m *Fetch) get(ctx context.Context, u *url.URL, out io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return err
	}
	if m.userAgent != "" {
		req.Header.Set("User-Agent", m.userAgent)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s: %s", u.Redacted(), resp.Status)
	}
	_, err = io.Copy(out, io.LimitReader(resp.Body, maxFetchBody))
	return err
}
