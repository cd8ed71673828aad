// Package envcheck probes the external toolchain the server depends on.
// The probe is purely diagnostic and has no side effects.
package envcheck

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
)

// Report is the MCP-facing environment status payload.
type Report struct {
	NodeAvailable       bool   `json:"node_available"`
	NodeVersion         string `json:"node_version,omitempty"`
	KnitoutScriptExists bool   `json:"knitout_script_exists"`
	KnitoutScriptPath   string `json:"knitout_script_path"`
	KnitScriptAvailable bool   `json:"knitscript_available"`
	KnitScriptVersion   string `json:"knitscript_version,omitempty"`
	Error               string `json:"error,omitempty"`
}

// Probe inspects interpreter, converter script, and compiler availability.
type Probe struct {
	NodeCommand     string
	CompilerCommand string
	ScriptPaths     []string
}

// New returns a Probe over the given commands and script candidates.
func New(nodeCommand, compilerCommand string, scriptPaths []string) *Probe {
	return &Probe{NodeCommand: nodeCommand, CompilerCommand: compilerCommand, ScriptPaths: scriptPaths}
}

// Check reports availability and versions of the Node interpreter, the
// knitout-to-dat script (primary location first, then fallback), and the
// knit-script compiler command.
func (p *Probe) Check(ctx context.Context) Report {
	report := Report{KnitoutScriptPath: "knitout-to-dat.js"}

	if version, ok := commandVersion(ctx, p.NodeCommand); ok {
		report.NodeAvailable = true
		report.NodeVersion = version
	}

	for _, candidate := range p.ScriptPaths {
		if candidate == "" {
			continue
		}
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			report.KnitoutScriptExists = true
			report.KnitoutScriptPath = candidate
			break
		}
	}

	if _, err := exec.LookPath(p.CompilerCommand); err == nil {
		report.KnitScriptAvailable = true
		if version, ok := commandVersion(ctx, p.CompilerCommand); ok {
			report.KnitScriptVersion = version
		}
	}

	return report
}

// commandVersion runs `<command> --version` and returns the trimmed first
// line of output.
func commandVersion(ctx context.Context, command string) (string, bool) {
	bin, err := exec.LookPath(command)
	if err != nil {
		return "", false
	}
	cmd := exec.CommandContext(ctx, bin, "--version")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", false
	}
	version, _, _ := strings.Cut(strings.TrimSpace(out.String()), "\n")
	return version, true
}
