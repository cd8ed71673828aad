package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dotSlashJack/knitscript-mcp-runner/internal/config"
	"github.com/dotSlashJack/knitscript-mcp-runner/internal/envcheck"
)

func newDoctorCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that node, the DAT converter script, and the KnitScript compiler are reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			probe := envcheck.New(cfg.NodeCommand, cfg.CompilerCommand, cfg.ScriptPaths())
			report := probe.Check(cmd.Context())
			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
