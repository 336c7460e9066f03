// Package runtime holds the fixed library of freestanding x86_64
// assembly support routines EC programs link against (spec.md §4.5,
// "Runtime Contract"). There is no libc: every routine here talks to
// the kernel directly via the `syscall` instruction using the Linux
// x86_64 syscall-number convention, the way a freestanding program
// must (spec.md §1: "no OS runtime").
//
// Each module is a named assembly-text constant. Assemble concatenates
// the modules a compilation actually needs, in the fixed order below;
// inclusion is additive and monotonic (spec.md §4.5: "once included,
// always included") - Assemble never conditionally omits core, and
// never reorders modules relative to one another, so two compilations
// that need the same feature set always produce byte-identical runtime
// text.
package runtime

import "strings"

// ModuleSet mirrors semantic.Features one-for-one; codegen builds one
// of these from the analyzer's feature flags after analysis completes,
// keeping this package free of a dependency on internal/semantic.
type ModuleSet struct {
	IO      bool
	Format  bool
	Floats  bool
	Files   bool
	Buffers bool
	Lists   bool
	Strings bool
	Time    bool
	Args    bool
	Env     bool
	Math    bool
	Binary  bool
	Heap    bool
}

// Assemble returns the assembly text of every runtime module the given
// feature set requires, core always first.
func Assemble(m ModuleSet) string {
	var sb strings.Builder
	sb.WriteString(coreModule)

	if m.IO {
		sb.WriteString(ioModule)
	}
	if m.Buffers {
		sb.WriteString(resourceModule)
	}
	if m.Heap {
		sb.WriteString(heapModule)
	}
	if m.Strings {
		sb.WriteString(stringModule)
	}
	if m.Binary {
		sb.WriteString(binaryModule)
	}
	if m.Lists {
		sb.WriteString(listModule)
	}
	if m.Math {
		sb.WriteString(mathModule)
	}
	if m.Floats {
		sb.WriteString(floatModule)
	}
	if m.Args || m.Env {
		sb.WriteString(argsModule)
	}
	if m.Time {
		sb.WriteString(timeModule)
	}
	if m.Files {
		sb.WriteString(fileModule)
	}
	if m.Format {
		sb.WriteString(formatModule)
	}
	return sb.String()
}
