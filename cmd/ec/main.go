// Command ec is the EC compiler driver: a single cobra.Command (spec.md
// §6 describes one flat flag surface, not a subcommand tree) that runs
// the lex/parse/analyze/generate pipeline and, when asked, shells out to
// an external assembler/linker the way skx/math-compiler's main.go shells
// out to gcc.
package main

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ec-lang/ec/internal/compiler"
)

var (
	runAfterBuild bool
	emitAsm       bool
	shared        bool
	linkNames     []string
	libPaths      []string
	output        string
	verbose       bool
	jsonDiags     bool
	dumpIR        bool
)

var rootCmd = &cobra.Command{
	Use:           "ec [file]",
	Short:         "Compile an EC source file to freestanding x86_64 assembly",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runCompile,
}

func init() {
	rootCmd.Flags().BoolVar(&runAfterBuild, "run", false, "assemble, link, and execute the result")
	rootCmd.Flags().BoolVar(&emitAsm, "emit-asm", false, "write assembly text only, skip assembling")
	rootCmd.Flags().BoolVar(&shared, "shared", false, "emit a shared-object-flavored unit with exported function symbols")
	rootCmd.Flags().StringArrayVar(&linkNames, "link", nil, "library name to link against (repeatable, partial support)")
	rootCmd.Flags().StringArrayVar(&libPaths, "lib-path", nil, "library search path (repeatable, partial support)")
	rootCmd.Flags().StringVarP(&output, "output", "o", "", "output path (assembly text, or the linked binary)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print the total compile time to stderr (stages are not timed separately)")
	rootCmd.Flags().BoolVar(&jsonDiags, "json-diagnostics", false, "emit diagnostics as JSON instead of source-context text")
	rootCmd.Flags().BoolVar(&dumpIR, "dump-ir", false, "print the inferred feature set and the statement/function counts to stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCompile(_ *cobra.Command, args []string) error {
	path := args[0]
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	start := time.Now()
	res := compiler.Compile(compiler.Options{File: path, Source: string(src), Shared: shared})
	if verbose {
		fmt.Fprintf(os.Stderr, "compile: %s (%s)\n", path, time.Since(start))
	}

	if len(res.Diags.All()) > 0 {
		if jsonDiags {
			out, jerr := res.Diags.RenderJSON()
			if jerr != nil {
				return fmt.Errorf("rendering diagnostics: %w", jerr)
			}
			fmt.Fprintln(os.Stderr, string(out))
		} else {
			fmt.Fprintln(os.Stderr, res.Diags.Render(isTerminalStderr()))
		}
	}
	if res.Diags.HasErrors() {
		return fmt.Errorf("%s: compilation failed", path)
	}

	if dumpIR {
		fmt.Fprintf(os.Stderr, "features: %+v\n", res.Features)
		fmt.Fprintf(os.Stderr, "top-level statements: %d, functions: %d\n", len(res.Program.TopLevel), len(res.Program.Functions))
	}

	if len(linkNames) > 0 || len(libPaths) > 0 {
		fmt.Fprintf(os.Stderr, "note: --link/--lib-path recorded (%v, %v) but full shared-library linking is partial/future work\n", linkNames, libPaths)
	}

	if emitAsm || shared {
		// Shared-object output has no _start and no linked binary in
		// this driver yet (spec.md §6: shared-library linking is
		// partial/future work) — just hand back the assembly text.
		return writeAssembly(res.Assembly)
	}

	binPath := output
	if binPath == "" {
		binPath = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := assembleAndLink(res.Assembly, binPath); err != nil {
		return err
	}

	if runAfterBuild {
		return runBinary(binPath)
	}
	return nil
}

func writeAssembly(asm string) error {
	if output == "" {
		fmt.Print(asm)
		return nil
	}
	return os.WriteFile(output, []byte(asm), 0o644)
}

// assembleAndLink shells out to as/ld the way skx/math-compiler's main.go
// shells out to gcc, piping the generated text in over stdin rather than
// writing a temporary .s file. This external-toolchain boundary is out of
// scope for the core compiler (spec.md §1); the driver stays a thin
// wrapper around it.
func assembleAndLink(asm, binPath string) error {
	objPath := binPath + ".o"

	as := exec.Command("as", "-o", objPath, "-")
	as.Stdin = bytes.NewBufferString(asm)
	as.Stdout = os.Stdout
	as.Stderr = os.Stderr
	if err := as.Run(); err != nil {
		return fmt.Errorf("assembling: %w", err)
	}
	defer os.Remove(objPath)

	ldArgs := []string{"-static", "-o", binPath, objPath, "-e", "_start"}
	for _, p := range libPaths {
		ldArgs = append(ldArgs, "-L"+p)
	}
	for _, l := range linkNames {
		ldArgs = append(ldArgs, "-l"+l)
	}
	ld := exec.Command("ld", ldArgs...)
	ld.Stdout = os.Stdout
	ld.Stderr = os.Stderr
	if err := ld.Run(); err != nil {
		return fmt.Errorf("linking: %w", err)
	}
	return nil
}

func runBinary(binPath string) error {
	abs := binPath
	if !strings.Contains(binPath, "/") {
		abs = "./" + binPath
	}
	cmd := exec.Command(abs)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func isTerminalStderr() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
