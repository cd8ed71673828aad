// Package knitscript adapts the external KnitScript compiler. The compiler
// is reachable only as an installed command-line interpreter; the Adapter
// validates inputs before any invocation and translates compiler failures
// into tagged errors instead of letting them crash the host process.
package knitscript

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/dotSlashJack/knitscript-mcp-runner/internal/toolerr"
)

// SourceExt is the required extension for KnitScript source files.
const SourceExt = ".ks"

// KnitoutExt is the extension of compiled Knitout output.
const KnitoutExt = ".k"

// Invoker is the external compiler's two entry points: source to Knitout,
// and source to Knitout plus DAT. Implementations report success through a
// nil error only; the dual-output entry point may succeed without having
// produced the DAT file, so callers must stat the DAT path themselves.
type Invoker interface {
	Knitout(ctx context.Context, sourcePath, knitoutPath string) error
	KnitoutAndDat(ctx context.Context, sourcePath, knitoutPath, datPath string) error
}

// Output describes the paths a compile run targeted.
type Output struct {
	SourcePath  string
	KnitoutPath string
	DatPath     string // empty when DAT output was not requested
}

// Adapter validates and dispatches compile requests to an Invoker.
type Adapter struct {
	Invoker Invoker
}

// NewAdapter returns an Adapter backed by the given invoker.
func NewAdapter(inv Invoker) *Adapter {
	return &Adapter{Invoker: inv}
}

// Compile translates sourcePath to Knitout, and to DAT as well when
// datPath is non-empty. knitoutPath defaults to the source path with its
// extension replaced. Validation failures are reported without touching
// the external compiler.
func (a *Adapter) Compile(ctx context.Context, sourcePath, knitoutPath, datPath string) (Output, *toolerr.Error) {
	abs, err := filepath.Abs(sourcePath)
	if err != nil {
		return Output{}, toolerr.New(toolerr.Validation, "resolve %s: %v", sourcePath, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return Output{}, toolerr.New(toolerr.Validation, "input file not found: %s", sourcePath)
	}
	if ext := filepath.Ext(abs); ext != SourceExt {
		return Output{}, toolerr.New(toolerr.Validation,
			"input file must be a %s KnitScript file, got: %s", SourceExt, ext)
	}

	if knitoutPath == "" {
		knitoutPath = strings.TrimSuffix(abs, SourceExt) + KnitoutExt
	}

	out := Output{SourcePath: abs, KnitoutPath: knitoutPath, DatPath: datPath}

	var invokeErr error
	if datPath != "" {
		invokeErr = a.Invoker.KnitoutAndDat(ctx, abs, knitoutPath, datPath)
	} else {
		invokeErr = a.Invoker.Knitout(ctx, abs, knitoutPath)
	}
	if invokeErr != nil {
		if te, ok := invokeErr.(*toolerr.Error); ok {
			return out, te
		}
		// Preserve the compiler's message verbatim.
		return out, toolerr.New(toolerr.External, "KnitScript compilation error: %v", invokeErr)
	}
	return out, nil
}
