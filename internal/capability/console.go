// SPDX-License-Identifier: MPL-2.0

package capability

import (
	"context"
	"fmt"
	"io"
	"strings"

	"snapbuild/internal/permissions"
)

// Console provides console.* logging to the script's stdout and stderr.
type Console struct{ base }

// NewConsole creates the console module.
func NewConsole() *Console {
	return &Console{base{name: ModuleConsole}}
}

// Commands returns console.log, info, debug, warn and error.
func (m *Console) Commands(permissions.Checker) []Command {
	toStdout := func(hc *HandlerContext) io.Writer { return hc.Stdout }
	toStderr := func(hc *HandlerContext) io.Writer { return hc.Stderr }

	return []Command{
		consoleCommand("console.log", toStdout),
		consoleCommand("console.info", toStdout),
		consoleCommand("console.debug", toStdout),
		consoleCommand("console.warn", toStderr),
		consoleCommand("console.error", toStderr),
	}
}

func consoleCommand(name string, stream func(*HandlerContext) io.Writer) Command {
	return newCommand(name, func(ctx context.Context, args []string) error {
		w := stream(GetHandlerContext(ctx))
		if w == nil {
			return nil
		}
		_, err := fmt.Fprintln(w, strings.Join(args[1:], " "))
		return err
	})
}
