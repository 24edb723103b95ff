// SPDX-License-Identifier: MPL-2.0

package provenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

const (
	// Unknown is recorded when the revision cannot be determined.
	Unknown = "UNKNOWN"
	// TSVersion is the TypeScript version bundled with the toolchain.
	TSVersion = "4.3.0"

	// EnvGitCommitHash overrides the revision query when set.
	EnvGitCommitHash = "GIT_COMMIT_HASH"
	// EnvTSVersion is the name TSVersion is published under.
	EnvTSVersion = "TS_VERSION"

	// Binding names, in emission order.
	NameTarget        = "TARGET"
	NameProfile       = "PROFILE"
	NameGitCommitHash = EnvGitCommitHash
	NameTSVersion     = EnvTSVersion

	// revisionLen is the length of a full SHA-1 object name.
	revisionLen = 40
)

var (
	// ErrMissingTarget is returned when no target triple was supplied.
	ErrMissingTarget = errors.New("build target is required")
	// ErrMissingProfile is returned when no build profile was supplied.
	ErrMissingProfile = errors.New("build profile is required")
)

type (
	// Inputs are the build-system supplied values and the lookups Stamp uses.
	Inputs struct {
		// Target is the target triple, e.g. x86_64-unknown-linux-gnu.
		Target string
		// Profile is the build profile, e.g. release.
		Profile string
		// ProjectRoot is where the revision query runs.
		ProjectRoot string

		// LookupEnv defaults to os.LookupEnv.
		LookupEnv func(string) (string, bool)
		// Revision defaults to GitRevision.
		Revision func(ctx context.Context, dir string) (string, error)
	}

	// Provenance is the stamped metadata.
	Provenance struct {
		Target        string `toml:"target"`
		Profile       string `toml:"profile"`
		GitCommitHash string `toml:"git_commit_hash"`
		TSVersion     string `toml:"ts_version"`
	}

	// Binding is a single name/value pair published to the host binary.
	Binding struct {
		Name  string
		Value string
	}
)

// Stamp resolves the provenance values. Only a missing target or profile is
// an error; revision lookup failures degrade to Unknown.
func Stamp(ctx context.Context, in Inputs) (*Provenance, error) {
	if in.Target == "" {
		return nil, ErrMissingTarget
	}
	if in.Profile == "" {
		return nil, ErrMissingProfile
	}
	if in.LookupEnv == nil {
		in.LookupEnv = os.LookupEnv
	}
	if in.Revision == nil {
		in.Revision = GitRevision
	}

	p := &Provenance{
		Target:    in.Target,
		Profile:   in.Profile,
		TSVersion: TSVersion,
	}

	if hash, ok := in.LookupEnv(EnvGitCommitHash); ok {
		p.GitCommitHash = hash
		slog.Debug("revision from environment", "hash", hash)
	} else {
		p.GitCommitHash = resolveRevision(ctx, in.Revision, in.ProjectRoot)
	}

	slog.Info("provenance stamped",
		"target", p.Target,
		"profile", p.Profile,
		"revision", p.GitCommitHash)
	return p, nil
}

func resolveRevision(ctx context.Context, query func(context.Context, string) (string, error), dir string) string {
	out, err := query(ctx, dir)
	if err != nil {
		slog.Debug("revision query failed", "error", err)
		return Unknown
	}
	if len(out) < revisionLen {
		slog.Debug("revision query returned a short hash", "output", out)
		return Unknown
	}
	return out[:revisionLen]
}

// GitRevision returns the stdout of `git rev-list -1 HEAD` run in dir.
func GitRevision(ctx context.Context, dir string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "rev-list", "-1", "HEAD")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git rev-list -1 HEAD in %s: %w", dir, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Bindings returns the published name/value pairs in a fixed order.
func (p *Provenance) Bindings() []Binding {
	return []Binding{
		{Name: NameTarget, Value: p.Target},
		{Name: NameProfile, Value: p.Profile},
		{Name: NameGitCommitHash, Value: p.GitCommitHash},
		{Name: NameTSVersion, Value: p.TSVersion},
	}
}

// Known reports whether the revision was determined.
func (p *Provenance) Known() bool { return p.GitCommitHash != Unknown }
