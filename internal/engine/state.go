// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"
)

// VarKind is the value shape of a captured variable.
type VarKind uint8

const (
	// VarString is a plain string variable.
	VarString VarKind = iota + 1
	// VarIndexed is an indexed array.
	VarIndexed
	// VarAssociative is an associative array.
	VarAssociative
	// VarNameRef is a reference to another variable by name.
	VarNameRef
)

// volatileVars depend on the machine, the process or the clock and are never
// captured, even if a script assigns them.
var volatileVars = map[string]bool{
	"HOME":          true,
	"PWD":           true,
	"OLDPWD":        true,
	"UID":           true,
	"EUID":          true,
	"GID":           true,
	"PPID":          true,
	"BASHPID":       true,
	"RANDOM":        true,
	"SRANDOM":       true,
	"SECONDS":       true,
	"EPOCHSECONDS":  true,
	"EPOCHREALTIME": true,
	"LINENO":        true,
	"IFS":           true,
	"OPTIND":        true,
	"OPTARG":        true,
	"DIRSTACK":      true,
	"PIPESTATUS":    true,
	"TMPDIR":        true,
	"_":             true,
}

// String returns the declare flag for the kind.
func (k VarKind) String() string {
	switch k {
	case VarString:
		return "string"
	case VarIndexed:
		return "indexed"
	case VarAssociative:
		return "associative"
	case VarNameRef:
		return "nameref"
	default:
		return fmt.Sprintf("VarKind(%d)", uint8(k))
	}
}

// diffVars returns the variables of current that are new or changed since
// baseline, sorted by name.
func diffVars(baseline, current map[string]expand.Variable) []Variable {
	var out []Variable
	for _, name := range slices.Sorted(maps.Keys(current)) {
		if volatileVars[name] {
			continue
		}
		vr := current[name]
		if prev, ok := baseline[name]; ok && sameVar(prev, vr) {
			continue
		}
		if v, ok := fromExpand(name, vr); ok {
			out = append(out, v)
		}
	}
	return out
}

func sameVar(a, b expand.Variable) bool {
	return a.Kind == b.Kind &&
		a.Exported == b.Exported &&
		a.ReadOnly == b.ReadOnly &&
		a.Str == b.Str &&
		slices.Equal(a.List, b.List) &&
		maps.Equal(a.Map, b.Map)
}

func fromExpand(name string, vr expand.Variable) (Variable, bool) {
	v := Variable{Name: name, Exported: vr.Exported, ReadOnly: vr.ReadOnly}
	switch vr.Kind {
	case expand.String:
		v.Kind = VarString
		v.Value = vr.Str
	case expand.NameRef:
		v.Kind = VarNameRef
		v.Value = vr.Str
	case expand.Indexed:
		v.Kind = VarIndexed
		v.List = slices.Clone(vr.List)
	case expand.Associative:
		v.Kind = VarAssociative
		v.Map = maps.Clone(vr.Map)
	default:
		return Variable{}, false
	}
	return v, true
}

// Declaration renders v as a declare statement that recreates it.
func (v Variable) Declaration() (string, error) {
	if !syntax.ValidName(v.Name) {
		return "", fmt.Errorf("invalid variable name %q", v.Name)
	}

	var b strings.Builder
	b.WriteString("declare")
	if v.Exported {
		b.WriteString(" -x")
	}
	if v.ReadOnly {
		b.WriteString(" -r")
	}

	switch v.Kind {
	case VarString, VarNameRef:
		if v.Kind == VarNameRef {
			b.WriteString(" -n")
		}
		q, err := syntax.Quote(v.Value, syntax.LangBash)
		if err != nil {
			return "", fmt.Errorf("quote %s: %w", v.Name, err)
		}
		fmt.Fprintf(&b, " %s=%s", v.Name, q)
	case VarIndexed:
		fmt.Fprintf(&b, " -a %s=(", v.Name)
		for i, elem := range v.List {
			q, err := syntax.Quote(elem, syntax.LangBash)
			if err != nil {
				return "", fmt.Errorf("quote %s[%d]: %w", v.Name, i, err)
			}
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(q)
		}
		b.WriteByte(')')
	case VarAssociative:
		fmt.Fprintf(&b, " -A %s=(", v.Name)
		for i, key := range slices.Sorted(maps.Keys(v.Map)) {
			q, err := syntax.Quote(v.Map[key], syntax.LangBash)
			if err != nil {
				return "", fmt.Errorf("quote %s[%s]: %w", v.Name, key, err)
			}
			if i > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "[%s]=%s", doubleQuote(key), q)
		}
		b.WriteByte(')')
	default:
		return "", fmt.Errorf("variable %s has unknown kind %v", v.Name, v.Kind)
	}
	return b.String(), nil
}

// doubleQuote quotes s for use as an associative array key. Keys are always
// quoted so they are never parsed as arithmetic.
func doubleQuote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\', '"', '$', '`':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}

// captureFuncs prints every function definition in minified form, sorted by name.
func captureFuncs(funcs map[string]*syntax.Stmt) ([]Function, error) {
	printer := syntax.NewPrinter(syntax.Minify(true))
	var out []Function
	for _, name := range slices.Sorted(maps.Keys(funcs)) {
		body := funcs[name]
		if body == nil {
			continue
		}
		decl := &syntax.File{Stmts: []*syntax.Stmt{{
			Cmd: &syntax.FuncDecl{Name: &syntax.Lit{Value: name}, Body: body},
		}}}
		var buf bytes.Buffer
		if err := printer.Print(&buf, decl); err != nil {
			return nil, fmt.Errorf("print function %s: %w", name, err)
		}
		out = append(out, Function{Name: name, Source: strings.TrimSpace(buf.String())})
	}
	return out, nil
}
