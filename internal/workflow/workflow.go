// Package workflow chains the save, compile, convert, and staging steps
// into one orchestrated run with partial-success semantics. Every path
// through the workflow terminates in a populated outcome; advisory
// failures accumulate without ever being promoted to fatal ones.
package workflow

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/dotSlashJack/knitscript-mcp-runner/internal/filestore"
	"github.com/dotSlashJack/knitscript-mcp-runner/internal/knitout"
	"github.com/dotSlashJack/knitscript-mcp-runner/internal/knitscript"
	"github.com/dotSlashJack/knitscript-mcp-runner/internal/staging"
	"github.com/dotSlashJack/knitscript-mcp-runner/internal/toolerr"
)

// Orchestrator composes the workflow collaborators. All fields must be
// non-nil except Log.
type Orchestrator struct {
	Staging   *staging.Cache
	Compiler  *knitscript.Adapter
	Converter *knitout.Converter
	Log       *zap.Logger
}

// New returns an Orchestrator over the given collaborators.
func New(cache *staging.Cache, compiler *knitscript.Adapter, converter *knitout.Converter, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{Staging: cache, Compiler: compiler, Converter: converter, Log: log}
}

// CompileRequest names the source and optional output paths for one
// compile run. An empty KnitoutPath is derived from the source; an empty
// DatPath means DAT output is not requested from the compiler.
type CompileRequest struct {
	SourcePath  string
	KnitoutPath string
	DatPath     string
}

// CompileOutcome is the terminal record of a compile run. DatPath is
// populated only when the DAT file actually exists on disk; the
// compiler's own success report is not trusted for that.
type CompileOutcome struct {
	SourcePath    string
	KnitoutPath   string
	DatPath       string
	KnitoutStaged string
	DatStaged     string
	Advisories    []string
	Err           *toolerr.Error
}

// Compile runs the compiler and stages whatever outputs exist afterwards.
// Staging failures are advisory.
func (o *Orchestrator) Compile(ctx context.Context, req CompileRequest) CompileOutcome {
	out, cerr := o.Compiler.Compile(ctx, req.SourcePath, req.KnitoutPath, req.DatPath)
	res := CompileOutcome{SourcePath: out.SourcePath, KnitoutPath: out.KnitoutPath}
	if cerr != nil {
		res.Err = cerr
		return res
	}

	if exists(out.KnitoutPath) {
		o.stage(out.KnitoutPath, &res.KnitoutStaged, &res.Advisories)
	}
	if out.DatPath != "" && exists(out.DatPath) {
		res.DatPath = out.DatPath
		o.stage(out.DatPath, &res.DatStaged, &res.Advisories)
	}
	return res
}

// SaveCompileRequest is the combined save-and-compile input.
type SaveCompileRequest struct {
	Path        string
	Content     string
	GenerateDat bool
}

// SaveCompileOutcome is the terminal record of the combined workflow.
// Converter streams are populated whenever the DAT fallback ran,
// regardless of its outcome.
type SaveCompileOutcome struct {
	SourcePath      string
	SourceStaged    string
	Compile         CompileOutcome
	ConverterStdout string
	ConverterStderr string
	Advisories      []string
	Err             *toolerr.Error
}

// SaveAndCompile writes the source, stages a copy, compiles, and falls
// back to the external converter when DAT output was requested but the
// compiler did not produce the file. Transition rules:
//
//   - save failure is terminal, nothing further is attempted
//   - source staging failure is advisory
//   - compile failure is terminal, no conversion attempted
//   - the converter runs only when GenerateDat is set and no DAT file
//     exists on disk after the compile
//   - converter failure keeps the compile outputs but makes the combined
//     outcome unsuccessful; a zero exit without a DAT file on disk counts
//     as converter failure
func (o *Orchestrator) SaveAndCompile(ctx context.Context, req SaveCompileRequest) SaveCompileOutcome {
	var res SaveCompileOutcome

	abs, werr := filestore.Write(req.Path, req.Content)
	if werr != nil {
		o.Log.Warn("save failed", zap.String("path", req.Path), zap.Error(werr))
		res.Err = werr
		return res
	}
	res.SourcePath = abs
	o.stage(abs, &res.SourceStaged, &res.Advisories)

	datPath := ""
	if req.GenerateDat {
		datPath = strings.TrimSuffix(abs, knitscript.SourceExt) + ".dat"
	}

	res.Compile = o.Compile(ctx, CompileRequest{SourcePath: abs, DatPath: datPath})
	res.Advisories = append(res.Advisories, res.Compile.Advisories...)
	res.Compile.Advisories = nil
	if res.Compile.Err != nil {
		res.Err = res.Compile.Err
		return res
	}

	if req.GenerateDat && res.Compile.DatPath == "" {
		o.Log.Debug("compiler produced no DAT file, falling back to converter",
			zap.String("knitout", res.Compile.KnitoutPath))
		out, cerr := o.Converter.Convert(ctx, res.Compile.KnitoutPath, knitout.DefaultFormat)
		res.ConverterStdout = out.Stdout
		res.ConverterStderr = out.Stderr
		if cerr != nil {
			res.Err = cerr
			return res
		}
		// A zero exit is not proof the file was written.
		if !exists(out.OutputPath) {
			res.Err = toolerr.New(toolerr.External,
				"converter reported success but no DAT file was produced at %s", out.OutputPath)
			return res
		}
		res.Compile.DatPath = out.OutputPath
		o.stage(out.OutputPath, &res.Compile.DatStaged, &res.Advisories)
	}
	return res
}

// stage copies path into the staging cache, recording a failure as an
// advisory instead of an error.
func (o *Orchestrator) stage(path string, staged *string, advisories *[]string) {
	s, err := o.Staging.Stage(path)
	if err != nil {
		o.Log.Warn("staging copy failed", zap.String("path", path), zap.Error(err))
		*advisories = append(*advisories, fmt.Sprintf("staging copy failed: %v", err))
		return
	}
	*staged = s
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
