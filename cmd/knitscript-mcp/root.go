package main

import (
	"github.com/spf13/cobra"
)

// version is set at build time via ldflags.
var version = "0.1.0"

func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "knitscript-mcp",
		Short: "KnitScript Runner MCP server",
		Long: `knitscript-mcp exposes KnitScript compilation as MCP tools over stdio:
write files, compile .ks source to Knitout, and convert Knitout to the
machine-specific DAT format via the external knitout-to-dat.js converter.

Configure in your agent's MCP settings:
  {
    "mcpServers": {
      "knitscript": {
        "command": "knitscript-mcp"
      }
    }
  }

Available tools: write_file, compile_knitscript, convert_knitout_to_dat,
check_knitscript_environment, save_and_compile_knitscript`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, cfgFile)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: knitscript-mcp.yaml in the working directory)")
	flags.String("staging-dir", "", "directory for staged artifact copies (default: <install dir>/tmp)")
	flags.String("compiler-command", "", "knit-script compiler command (default: knit-script)")
	flags.String("node-command", "", "Node.js interpreter command (default: node)")
	flags.String("converter-script", "", "explicit path to knitout-to-dat.js")
	flags.String("log-level", "", "log level: debug, info, warn, or error (default: info)")

	cmd.AddCommand(newServeCmd(&cfgFile), newDoctorCmd(&cfgFile))
	return cmd
}
