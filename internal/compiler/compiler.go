// Package compiler orchestrates EC's four pipeline stages - lex, parse,
// analyze, generate - into the single Compile entry point cmd/ec calls,
// the way the teacher's compiler.Compiler.Compile method walked
// tokenize -> makeinternalform -> output for a flat mathematical
// expression (spec.md §2 "System Overview").
package compiler

import (
	"fmt"

	"github.com/ec-lang/ec/internal/ast"
	"github.com/ec-lang/ec/internal/codegen"
	"github.com/ec-lang/ec/internal/diagnostics"
	"github.com/ec-lang/ec/internal/lexer"
	"github.com/ec-lang/ec/internal/parser"
	"github.com/ec-lang/ec/internal/semantic"
)

// Options configures one compilation. Shared mirrors the --shared CLI
// flag (SPEC_FULL.md "CLI (cmd/ec)").
type Options struct {
	File   string
	Source string
	Shared bool
}

// Result is everything a driver needs after a compilation attempt: the
// generated assembly text (empty on a hard failure), the accumulated
// feature set (useful for --dump-ir), and the diagnostic sink, which the
// caller renders (human-readable or --json-diagnostics) and uses to pick
// the process exit code.
type Result struct {
	Assembly string
	Program  *ast.Program
	Features semantic.Features
	Diags    *diagnostics.Sink
}

// Compile runs the full pipeline once. It never panics on malformed
// source: every stage reports through the diagnostic sink and Compile
// stops advancing once a stage that cannot safely continue (parse,
// analyze) has produced at least one error, matching spec.md §7's "a
// later stage never runs over the output of a failed earlier stage".
func Compile(opts Options) *Result {
	sink := diagnostics.NewSink(opts.File, opts.Source)
	res := &Result{Diags: sink}

	lex := lexer.New(opts.Source)
	p := parser.New(lex)
	prog := p.ParseProgram()

	for _, e := range lex.Errors() {
		sink.Error(diagnostics.StageLex, ast.NewPosition(e.Line, e.Column), "", "%s", e.Message)
	}
	for _, e := range p.Errors() {
		sink.Error(diagnostics.StageParse, e.Pos, "", "%s", e.Message)
	}
	if sink.HasErrors() {
		return res
	}
	res.Program = prog

	an := semantic.New(sink)
	an.Analyze(prog)
	if sink.HasErrors() {
		return res
	}
	res.Features = an.Features

	var (
		out string
		err error
	)
	if opts.Shared {
		out, err = codegen.GenerateShared(prog, an.Features)
	} else {
		out, err = codegen.Generate(prog, an.Features)
	}
	if err != nil {
		sink.Error(diagnostics.StageCodegen, ast.Position{}, "", "%s", err.Error())
		return res
	}
	res.Assembly = out
	return res
}

// Err returns a plain error summarizing the sink's first error-severity
// diagnostic, for callers (tests, --run's pre-flight check) that just
// need a go error rather than the full rendered diagnostic list.
func (r *Result) Err() error {
	if !r.Diags.HasErrors() {
		return nil
	}
	for _, d := range r.Diags.All() {
		if d.Severity == diagnostics.Error {
			return fmt.Errorf("%s:%d:%d: %s", "source", d.Pos.Line, d.Pos.Column, d.Message)
		}
	}
	return nil
}
