// SPDX-License-Identifier: MPL-2.0

package capability

import (
	"context"
	"fmt"
	"strconv"
	"unicode/utf8"

	"snapbuild/internal/permissions"
)

// WebIDL provides argument conversion checks used by the other web modules.
type WebIDL struct{ base }

// NewWebIDL creates the webidl module.
func NewWebIDL() *WebIDL {
	return &WebIDL{base{name: ModuleWebIDL}}
}

// Commands returns webidl.assert.
func (m *WebIDL) Commands(permissions.Checker) []Command {
	return []Command{newCommand("webidl.assert", runWebIDLAssert)}
}

// runWebIDLAssert checks that a value converts to the named IDL type.
// Usage: webidl.assert TYPE VALUE
func runWebIDLAssert(_ context.Context, args []string) error {
	if err := requireArgs(args, 2, "TYPE VALUE"); err != nil {
		return err
	}
	return convertIDL(args[1], args[2])
}

func convertIDL(typ, value string) error {
	switch typ {
	case "DOMString":
		return nil
	case "USVString":
		if !utf8.ValidString(value) {
			return fmt.Errorf("value is not a valid USVString")
		}
	case "ByteString":
		for _, r := range value {
			if r > 0xFF {
				return fmt.Errorf("value is not a valid ByteString: contains %U", r)
			}
		}
	case "boolean":
		if value != "true" && value != "false" {
			return fmt.Errorf("value %q is not a boolean", value)
		}
	case "long":
		if _, err := strconv.ParseInt(value, 10, 32); err != nil {
			return fmt.Errorf("value %q is not a long", value)
		}
	case "unsigned long":
		if _, err := strconv.ParseUint(value, 10, 32); err != nil {
			return fmt.Errorf("value %q is not an unsigned long", value)
		}
	case "double":
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return fmt.Errorf("value %q is not a double", value)
		}
	default:
		return fmt.Errorf("unknown IDL type %q", typ)
	}
	return nil
}
