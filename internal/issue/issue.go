// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Id int

const (
	SourceDirNotFoundId Id = iota + 1
	ScriptExecutionFailedId
	UnknownCommandId
	PrivilegedOperationId
	ModuleOrderId
	ProvenanceMissingId
	ArtifactCorruptId
	ManifestMismatchId
	ConfigLoadFailedId
	OutputWriteFailedId
)

type MarkdownMsg string

type HttpLink string

// Issue is a catalog entry: long-form markdown guidance for one failure class.
type Issue struct {
	id       Id
	mdMsg    MarkdownMsg
	extLinks []HttpLink
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render formats the entry for a terminal. An empty stylePath selects glamour's
// automatic style.
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range i.extLinks {
			md.WriteString("\n- <")
			md.WriteString(string(link))
			md.WriteString(">")
		}
	}
	if stylePath == "" {
		stylePath = "auto"
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	sourceDirNotFoundIssue = &Issue{
		id: SourceDirNotFoundId,
		mdMsg: `
# Bootstrap source directory is missing

snapbuild could not list the bootstrap scripts.

## Things you can try
- Check the ` + "`--source-dir`" + ` flag or the ` + "`source_dir`" + ` key in ` + "`snapbuild.cue`" + `
- Relative paths are resolved against the project root, not the current directory
- Make sure the directory is readable by the build user`,
	}

	scriptExecutionFailedIssue = &Issue{
		id: ScriptExecutionFailedId,
		mdMsg: `
# A bootstrap script failed

Scripts run with ` + "`errexit`" + ` enabled. The first command that exits non-zero
aborts the build and no snapshot is written.

## Things you can try
- The error names the unit (for example ` + "`internal:bootstrap/10_env.sh`" + `)
- Re-run with ` + "`--verbose`" + ` to see every unit as it starts
- Use ` + "`cmd || true`" + ` only for commands that are allowed to fail`,
		extLinks: []HttpLink{"https://pkg.go.dev/mvdan.cc/sh/v3/interp"},
	}

	unknownCommandIssue = &Issue{
		id: UnknownCommandId,
		mdMsg: `
# Unknown command in a bootstrap script

Only shell builtins and the host commands of the composed modules can run.
Host binaries on ` + "`PATH`" + ` are never executed.

## Things you can try
- List the available commands with ` + "`snapbuild build --verbose`" + `
- Replace external tools with the module commands (` + "`fetch`" + `, ` + "`crypto.digest`" + `, ...)`,
	}

	privilegedOperationIssue = &Issue{
		id: PrivilegedOperationId,
		mdMsg: `
# Privileged operation during snapshotting

Network, filesystem, timing and unstable features are unavailable while the
snapshot is built. This is the case even when the failing command is guarded
with ` + "`|| true`" + `.

## Things you can try
- Move the operation to runtime, after the snapshot is restored
- Embed the data in the bootstrap script instead of reading it from disk`,
	}

	moduleOrderIssue = &Issue{
		id: ModuleOrderId,
		mdMsg: `
# Capability modules are out of order

Each module must be registered after every module it depends on, and module
names must be unique. The snapshot manifest records this order.`,
	}

	provenanceMissingIssue = &Issue{
		id: ProvenanceMissingId,
		mdMsg: `
# Build target or profile is not set

The snapshot is stamped with the target triple and the build profile.

## Things you can try
- Export ` + "`TARGET`" + ` and ` + "`PROFILE`" + ` in the build environment
- Or pass ` + "`--target`" + ` and ` + "`--profile`" + ` to ` + "`snapbuild build`" + `

The revision is optional: ` + "`GIT_COMMIT_HASH`" + ` overrides it and a missing
git checkout falls back to ` + "`UNKNOWN`" + `.`,
		extLinks: []HttpLink{"https://git-scm.com/docs/git-rev-list"},
	}

	artifactCorruptIssue = &Issue{
		id: ArtifactCorruptId,
		mdMsg: `
# Snapshot artifact is corrupt

An artifact is a 4-byte little-endian length followed by one LZ4 block.
The decoded block must be exactly that long and start with the snapshot header.

## Things you can try
- Rebuild the artifact with ` + "`snapbuild build`" + `
- Check that the file was not truncated while copying`,
		extLinks: []HttpLink{"https://github.com/lz4/lz4/blob/dev/doc/lz4_Block_format.md"},
	}

	manifestMismatchIssue = &Issue{
		id: ManifestMismatchId,
		mdMsg: `
# Module manifest mismatch

A snapshot can only be restored into an environment composed from the same
modules, in the same order, that produced it. Rebuild the snapshot after
changing the module list.`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration

` + "`snapbuild.cue`" + ` is validated against the built-in schema before use.

## Things you can try
- Run ` + "`cue vet snapbuild.cue`" + ` to locate syntax errors
- Remove unknown keys; the schema is closed
- Environment variables (` + "`SNAPBUILD_*`" + `) override file values`,
		extLinks: []HttpLink{"https://cuelang.org/docs/"},
	}

	outputWriteFailedIssue = &Issue{
		id: OutputWriteFailedId,
		mdMsg: `
# Failed to write build outputs

The artifact is written to a temporary file and renamed into place, so a
failed write never leaves a partial artifact behind.

## Things you can try
- Check that ` + "`OUT_DIR`" + ` (or ` + "`--out-dir`" + `) is writable
- Check the free space on the output volume`,
		extLinks: []HttpLink{"https://www.gnu.org/software/make/manual/html_node/Automatic-Prerequisites.html"},
	}

	issues = map[Id]*Issue{
		sourceDirNotFoundIssue.Id():     sourceDirNotFoundIssue,
		scriptExecutionFailedIssue.Id(): scriptExecutionFailedIssue,
		unknownCommandIssue.Id():        unknownCommandIssue,
		privilegedOperationIssue.Id():   privilegedOperationIssue,
		moduleOrderIssue.Id():           moduleOrderIssue,
		provenanceMissingIssue.Id():     provenanceMissingIssue,
		artifactCorruptIssue.Id():       artifactCorruptIssue,
		manifestMismatchIssue.Id():      manifestMismatchIssue,
		configLoadFailedIssue.Id():      configLoadFailedIssue,
		outputWriteFailedIssue.Id():     outputWriteFailedIssue,
	}
)

// Values returns every catalog entry ordered by id.
func Values() []*Issue {
	ids := maps.Keys(issues)
	slices.Sort(ids)
	out := make([]*Issue, 0, len(ids))
	for _, id := range ids {
		out = append(out, issues[id])
	}
	return out
}

// Get returns nil for an unknown id.
func Get(id Id) *Issue {
	return issues[id]
}
