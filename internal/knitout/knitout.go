// Package knitout adapts the external Node-based knitout-to-dat converter.
// The converter is a script launched under an interpreter; the Adapter-side
// contract is exit code 0 for success with both output streams captured
// either way.
package knitout

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/dotSlashJack/knitscript-mcp-runner/internal/knitscript"
	"github.com/dotSlashJack/knitscript-mcp-runner/internal/toolerr"
)

// DefaultFormat is the output format when the caller does not name one.
const DefaultFormat = "dat"

// Converter runs the knitout-to-dat script. ScriptPaths is probed in
// order (primary install location first, then fallback); the first
// existing path wins.
type Converter struct {
	Interpreter string
	ScriptPaths []string
}

// NewConverter returns a Converter for the given interpreter command and
// script candidates.
func NewConverter(interpreter string, scriptPaths []string) *Converter {
	return &Converter{Interpreter: interpreter, ScriptPaths: scriptPaths}
}

// Output carries the converter's results. Stdout and Stderr are populated
// whenever the process ran, including on nonzero exit.
type Output struct {
	OutputPath string
	Stdout     string
	Stderr     string
}

// Convert translates knitoutPath into `<knitoutPath with .format ext>`.
// Validation failures and a missing script or interpreter are reported
// without spawning a process.
func (c *Converter) Convert(ctx context.Context, knitoutPath, format string) (Output, *toolerr.Error) {
	if format == "" {
		format = DefaultFormat
	}

	abs, err := filepath.Abs(knitoutPath)
	if err != nil {
		return Output{}, toolerr.New(toolerr.Validation, "resolve %s: %v", knitoutPath, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return Output{}, toolerr.New(toolerr.Validation, "input file not found: %s", knitoutPath)
	}
	if ext := filepath.Ext(abs); ext != knitscript.KnitoutExt {
		return Output{}, toolerr.New(toolerr.Validation,
			"input file must be a %s Knitout file, got: %s", knitscript.KnitoutExt, ext)
	}

	script, serr := c.resolveScript()
	if serr != nil {
		return Output{}, serr
	}
	bin, err := exec.LookPath(c.Interpreter)
	if err != nil {
		return Output{}, toolerr.New(toolerr.Dependency,
			"%s not found. Make sure it is installed: %v", c.Interpreter, err)
	}

	outputPath := strings.TrimSuffix(abs, knitscript.KnitoutExt) + "." + format

	cmd := exec.CommandContext(ctx, bin, script, abs, outputPath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	out := Output{
		OutputPath: outputPath,
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
	}
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			return out, toolerr.New(toolerr.External,
				"execution failed with return code %d", exitErr.ExitCode())
		}
		return out, toolerr.New(toolerr.Dependency, "launch %s: %v", c.Interpreter, runErr)
	}
	return out, nil
}

// resolveScript returns the first existing script candidate.
func (c *Converter) resolveScript() (string, *toolerr.Error) {
	for _, candidate := range c.ScriptPaths {
		if candidate == "" {
			continue
		}
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", toolerr.New(toolerr.Dependency,
		"knitout-to-dat.js not found in any of: %s", strings.Join(c.ScriptPaths, ", "))
}
