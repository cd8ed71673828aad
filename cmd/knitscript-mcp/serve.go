package main

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dotSlashJack/knitscript-mcp-runner/internal/config"
	"github.com/dotSlashJack/knitscript-mcp-runner/internal/envcheck"
	"github.com/dotSlashJack/knitscript-mcp-runner/internal/knitout"
	"github.com/dotSlashJack/knitscript-mcp-runner/internal/knitscript"
	"github.com/dotSlashJack/knitscript-mcp-runner/internal/logging"
	"github.com/dotSlashJack/knitscript-mcp-runner/internal/staging"
	"github.com/dotSlashJack/knitscript-mcp-runner/internal/tools"
	"github.com/dotSlashJack/knitscript-mcp-runner/internal/workflow"
)

func newServeCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, *cfgFile)
		},
	}
}

func runServe(cmd *cobra.Command, cfgFile string) error {
	cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	orch := workflow.New(
		staging.New(cfg.StagingDir),
		knitscript.NewAdapter(knitscript.NewCLI(cfg.CompilerCommand)),
		knitout.NewConverter(cfg.NodeCommand, cfg.ScriptPaths()),
		log,
	)
	probe := envcheck.New(cfg.NodeCommand, cfg.CompilerCommand, cfg.ScriptPaths())

	s := server.NewMCPServer(
		"KnitScript Runner",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithRecovery(),
	)
	tools.RegisterAll(s, orch, probe)

	log.Info("serving MCP over stdio",
		zap.String("staging_dir", cfg.StagingDir),
		zap.String("compiler_command", cfg.CompilerCommand),
	)
	return server.ServeStdio(s)
}
