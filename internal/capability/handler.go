// SPDX-License-Identifier: MPL-2.0

package capability

import (
	"context"
	"io"

	"mvdan.cc/sh/v3/interp"
)

type (
	// HandlerContext provides the I/O of the calling script to a command.
	// It is extracted from mvdan/sh's interp.HandlerCtx.
	HandlerContext struct {
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
		// Dir is the script's current working directory.
		Dir string
	}

	handlerContextKey struct{}
)

// ExtractHandlerContext bridges the interpreter's handler context to commands.
func ExtractHandlerContext(ctx context.Context) *HandlerContext {
	hc := interp.HandlerCtx(ctx)
	return &HandlerContext{
		Stdin:  hc.Stdin,
		Stdout: hc.Stdout,
		Stderr: hc.Stderr,
		Dir:    hc.Dir,
	}
}

// WithHandlerContext stores a HandlerContext in ctx. Tests use it to run
// commands outside the interpreter.
func WithHandlerContext(ctx context.Context, hc *HandlerContext) context.Context {
	return context.WithValue(ctx, handlerContextKey{}, hc)
}

// GetHandlerContext returns the HandlerContext injected with WithHandlerContext,
// or the one of the running interpreter.
func GetHandlerContext(ctx context.Context) *HandlerContext {
	if hc, ok := ctx.Value(handlerContextKey{}).(*HandlerContext); ok {
		return hc
	}
	return ExtractHandlerContext(ctx)
}

// stdin returns the command's stdin, never nil.
func (hc *HandlerContext) stdin() io.Reader {
	if hc.Stdin == nil {
		return eofReader{}
	}
	return hc.Stdin
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }
