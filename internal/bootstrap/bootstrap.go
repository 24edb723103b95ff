// SPDX-License-Identifier: MPL-2.0

// Package bootstrap runs the bootstrap scripts of a build in order.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"snapbuild/internal/sources"
)

type (
	// Executor runs one named unit of script source.
	Executor interface {
		Execute(ctx context.Context, name, source string) error
	}

	// Tracker receives the path of every unit before it runs.
	Tracker interface {
		RerunIfChanged(path string)
	}
)

// Run registers each unit with tracker and executes it in order under its
// logical name. It stops at the first failure; later units are not
// registered or run.
func Run(ctx context.Context, exec Executor, units []sources.Unit, tracker Tracker) error {
	for i, u := range units {
		if err := ctx.Err(); err != nil {
			return err
		}
		if tracker != nil {
			tracker.RerunIfChanged(u.Path)
		}

		start := time.Now()
		if err := exec.Execute(ctx, u.Name, u.Source); err != nil {
			slog.Error("bootstrap script failed", "unit", u.Name, "error", err)
			return fmt.Errorf("bootstrap %s (%d of %d): %w", u.Name, i+1, len(units), err)
		}
		slog.Debug("bootstrap script executed",
			"unit", u.Name,
			"bytes", len(u.Source),
			"duration", time.Since(start))
	}
	slog.Info("bootstrap complete", "units", len(units))
	return nil
}
