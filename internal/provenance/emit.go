// SPDX-License-Identifier: MPL-2.0

package provenance

import (
	"bytes"
	"fmt"
	"go/format"
	"go/token"
	"os"
	"path/filepath"
	"strconv"
)

// GoSource renders the bindings as a gofmt'd Go file declaring one string
// constant per binding in package pkg.
func (p *Provenance) GoSource(pkg string) ([]byte, error) {
	if !token.IsIdentifier(pkg) {
		return nil, fmt.Errorf("invalid Go package name %q", pkg)
	}

	var buf bytes.Buffer
	buf.WriteString("// Code generated by snapbuild. DO NOT EDIT.\n\n")
	fmt.Fprintf(&buf, "package %s\n\n", pkg)
	buf.WriteString("// Build provenance.\nconst (\n")
	for _, b := range p.Bindings() {
		fmt.Fprintf(&buf, "%s = %s\n", b.Name, strconv.Quote(b.Value))
	}
	buf.WriteString(")\n")

	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format generated source: %w", err)
	}
	return src, nil
}

// WriteGoFile writes GoSource(pkg) to path, creating the parent directory.
func (p *Provenance) WriteGoFile(path, pkg string) error {
	src, err := p.GoSource(pkg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, src, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// LDFlags returns linker arguments that set the string variables named
// after the bindings in importPath, e.g. -X main.TARGET=...
func (p *Provenance) LDFlags(importPath string) []string {
	bindings := p.Bindings()
	flags := make([]string, 0, 2*len(bindings))
	for _, b := range bindings {
		flags = append(flags, "-X", importPath+"."+b.Name+"="+b.Value)
	}
	return flags
}
