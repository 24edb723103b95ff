// SPDX-License-Identifier: MPL-2.0

package capability

import (
	"context"
	"fmt"
	"net/url"

	"snapbuild/internal/permissions"
)

// URL provides WHATWG-style URL parsing helpers.
type URL struct{ base }

// NewURL creates the url module.
func NewURL() *URL {
	return &URL{base{name: ModuleURL, requires: []string{ModuleWebIDL}}}
}

// Commands returns url.parse, url.encode, url.decode and url.join.
func (m *URL) Commands(permissions.Checker) []Command {
	return []Command{
		newCommand("url.parse", runURLParse),
		newCommand("url.encode", func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 1, "TEXT"); err != nil {
				return err
			}
			_, err := fmt.Fprintln(GetHandlerContext(ctx).Stdout, url.QueryEscape(args[1]))
			return err
		}),
		newCommand("url.decode", func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 1, "TEXT"); err != nil {
				return err
			}
			s, err := url.QueryUnescape(args[1])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(GetHandlerContext(ctx).Stdout, s)
			return err
		}),
		newCommand("url.join", func(ctx context.Context, args []string) error {
			if err := requireArgs(args, 2, "BASE REF"); err != nil {
				return err
			}
			baseURL, err := parseAbsoluteURL(args[1])
			if err != nil {
				return err
			}
			ref, err := url.Parse(args[2])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(GetHandlerContext(ctx).Stdout, baseURL.ResolveReference(ref).String())
			return err
		}),
	}
}

// runURLParse prints one component of an absolute URL (href by default).
// Usage: url.parse URL [COMPONENT]
func runURLParse(ctx context.Context, args []string) error {
	if err := requireMinArgs(args, 1, "URL [COMPONENT]"); err != nil {
		return err
	}
	u, err := parseAbsoluteURL(args[1])
	if err != nil {
		return err
	}

	component := "href"
	if len(args) > 2 {
		component = args[2]
	}
	value, err := urlComponent(u, component)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(GetHandlerContext(ctx).Stdout, value)
	return err
}

func parseAbsoluteURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" {
		return nil, fmt.Errorf("invalid URL %q: missing scheme", raw)
	}
	return u, nil
}

func urlComponent(u *url.URL, component string) (string, error) {
	switch component {
	case "href":
		return u.String(), nil
	case "protocol":
		return u.Scheme + ":", nil
	case "host":
		return u.Host, nil
	case "hostname":
		return u.Hostname(), nil
	case "port":
		return u.Port(), nil
	case "pathname":
		if u.Opaque != "" {
			return u.Opaque, nil
		}
		if u.Path == "" {
			return "/", nil
		}
		return u.EscapedPath(), nil
	case "search":
		if u.RawQuery == "" {
			return "", nil
		}
		return "?" + u.RawQuery, nil
	case "hash":
		if u.Fragment == "" {
			return "", nil
		}
		return "#" + u.EscapedFragment(), nil
	case "username":
		return u.User.Username(), nil
	case "origin":
		return u.Scheme + "://" + u.Host, nil
	default:
		return "", fmt.Errorf("unknown URL component %q", component)
	}
}
