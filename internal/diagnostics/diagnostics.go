// Package diagnostics formats the errors and warnings produced by every
// compiler stage. Rendering follows go-dws's internal/errors package
// (source-line extract, caret, optional color) but uses fatih/color for
// the terminal coloring instead of hand-rolled ANSI escapes.
package diagnostics

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/ec-lang/ec/internal/ast"
)

// Severity distinguishes a hard error (aborts code generation, spec.md
// §7) from a warning (reported but compilation proceeds).
type Severity int

const (
	Warning Severity = iota
	Error
)

func (s Severity) String() string {
	if s == Error {
		return "error"
	}
	return "warning"
}

// Stage names the pipeline stage that raised a Diagnostic.
type Stage string

const (
	StageLex      Stage = "lex"
	StageParse    Stage = "parse"
	StageAnalyze  Stage = "analyze"
	StageCodegen  Stage = "codegen"
)

// Diagnostic is one compiler message: severity, message, an optional
// actionable hint, and the source position it refers to (spec.md §4.3,
// §7: "Every diagnostic has severity, message, hint, and source
// position").
type Diagnostic struct {
	Severity Severity
	Stage    Stage
	Message  string
	Hint     string
	Pos      ast.Position
}

// Sink collects diagnostics for a single compilation. It is created once
// per Compile call (spec.md §9: "must be created per invocation, not per
// process, to keep compilations independent") - never a package-level
// global.
type Sink struct {
	source string
	file   string
	diags  []Diagnostic
}

// NewSink creates an empty diagnostic sink for one compilation of the
// given source text, used to pull the offending line for rendering.
func NewSink(file, source string) *Sink {
	return &Sink{file: file, source: source}
}

// Error records an error-severity diagnostic.
func (s *Sink) Error(stage Stage, pos ast.Position, hint, format string, args ...any) {
	s.diags = append(s.diags, Diagnostic{
		Severity: Error,
		Stage:    stage,
		Message:  fmt.Sprintf(format, args...),
		Hint:     hint,
		Pos:      pos,
	})
}

// Warn records a warning-severity diagnostic.
func (s *Sink) Warn(stage Stage, pos ast.Position, hint, format string, args ...any) {
	s.diags = append(s.diags, Diagnostic{
		Severity: Warning,
		Stage:    stage,
		Message:  fmt.Sprintf(format, args...),
		Hint:     hint,
		Pos:      pos,
	})
}

// HasErrors reports whether any error-severity diagnostic was recorded.
// spec.md §7: "The compiler aborts code generation if any error was
// reported."
func (s *Sink) HasErrors() bool {
	for _, d := range s.diags {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// All returns every diagnostic recorded so far, in report order.
func (s *Sink) All() []Diagnostic {
	return s.diags
}

// Render formats every diagnostic as source-context text, colorized when
// useColor is true.
func (s *Sink) Render(useColor bool) string {
	var sb strings.Builder
	for i, d := range s.diags {
		sb.WriteString(s.render(d, useColor))
		if i < len(s.diags)-1 {
			sb.WriteString("\n\n")
		}
	}
	return sb.String()
}

func (s *Sink) render(d Diagnostic, useColor bool) string {
	var sb strings.Builder

	var header string
	if s.file != "" {
		header = fmt.Sprintf("%s in %s:%d:%d", d.Severity, s.file, d.Pos.Line, d.Pos.Column)
	} else {
		header = fmt.Sprintf("%s at %d:%d", d.Severity, d.Pos.Line, d.Pos.Column)
	}
	if useColor {
		if d.Severity == Error {
			header = color.New(color.FgRed, color.Bold).Sprint(header)
		} else {
			header = color.New(color.FgYellow, color.Bold).Sprint(header)
		}
	}
	sb.WriteString(header)
	sb.WriteString("\n")

	if line := s.sourceLine(d.Pos.Line); line != "" {
		prefix := fmt.Sprintf("%4d | ", d.Pos.Line)
		sb.WriteString(prefix)
		sb.WriteString(line)
		sb.WriteString("\n")
		caret := strings.Repeat(" ", len(prefix)+max0(d.Pos.Column-1)) + "^"
		if useColor {
			caret = color.New(color.FgRed, color.Bold).Sprint(caret)
		}
		sb.WriteString(caret)
		sb.WriteString("\n")
	}

	sb.WriteString(d.Message)
	if d.Hint != "" {
		hint := "hint: " + d.Hint
		if useColor {
			hint = color.New(color.Faint).Sprint(hint)
		}
		sb.WriteString("\n")
		sb.WriteString(hint)
	}

	return sb.String()
}

func (s *Sink) sourceLine(line int) string {
	if s.source == "" || line < 1 {
		return ""
	}
	lines := strings.Split(s.source, "\n")
	if line > len(lines) {
		return ""
	}
	return lines[line-1]
}

func max0(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

// jsonDiagnostic is the wire shape for --json-diagnostics, consumed by
// the editor syntax-highlighting extension named as an external
// collaborator in spec.md §1. There is no query/patch library in the
// pack suited to emitting a fixed, already-typed struct as JSON, so this
// uses encoding/json directly; see DESIGN.md.
type jsonDiagnostic struct {
	Severity string `json:"severity"`
	Stage    string `json:"stage"`
	Message  string `json:"message"`
	Hint     string `json:"hint,omitempty"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
}

// RenderJSON marshals every diagnostic as a JSON array.
func (s *Sink) RenderJSON() ([]byte, error) {
	out := make([]jsonDiagnostic, 0, len(s.diags))
	for _, d := range s.diags {
		out = append(out, jsonDiagnostic{
			Severity: d.Severity.String(),
			Stage:    string(d.Stage),
			Message:  d.Message,
			Hint:     d.Hint,
			Line:     d.Pos.Line,
			Column:   d.Pos.Column,
		})
	}
	return json.MarshalIndent(out, "", "  ")
}
