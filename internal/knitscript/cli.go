package knitscript

import (
	"context"
	"os/exec"
	"strings"

	"github.com/dotSlashJack/knitscript-mcp-runner/internal/toolerr"
)

// CLI invokes the knit-script interpreter as a subprocess. The interpreter
// exposes both entry points behind one command: `-k` names the Knitout
// output and `-d` additionally requests DAT output.
type CLI struct {
	Command string
}

// NewCLI returns a CLI invoker for the given compiler command.
func NewCLI(command string) *CLI {
	return &CLI{Command: command}
}

// Knitout compiles sourcePath to knitoutPath.
func (c *CLI) Knitout(ctx context.Context, sourcePath, knitoutPath string) error {
	return c.run(ctx, "-k", knitoutPath, sourcePath)
}

// KnitoutAndDat compiles sourcePath to both output paths. A nil return
// does not guarantee the DAT file exists; the compiler is known to report
// success without producing it.
func (c *CLI) KnitoutAndDat(ctx context.Context, sourcePath, knitoutPath, datPath string) error {
	return c.run(ctx, "-k", knitoutPath, "-d", datPath, sourcePath)
}

func (c *CLI) run(ctx context.Context, args ...string) error {
	bin, err := exec.LookPath(c.Command)
	if err != nil {
		return toolerr.New(toolerr.Dependency,
			"KnitScript compiler not found. Make sure knit-script is installed: %v", err)
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	combined, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(combined))
		if msg == "" {
			msg = err.Error()
		}
		return toolerr.New(toolerr.External, "KnitScript compilation error: %s", msg)
	}
	return nil
}
