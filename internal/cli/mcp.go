package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	termmcp "github.com/ppiankov/termwatch/internal/mcp"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long:  "Runs termwatch as an MCP (Model Context Protocol) server over stdio.\nExposes tools: termwatch_evaluate, termwatch_terms, termwatch_allowed.",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg := currentSettings()
	eval, err := buildEvaluator(cfg)
	if err != nil {
		return err
	}

	srv, err := termmcp.New(termmcp.Config{
		Evaluator:    eval,
		AuditLogPath: cfg.AuditLog,
		Version:      version,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down MCP server...")
		cancel()
	}()

	fmt.Fprintln(os.Stderr, "termwatch MCP server running on stdio")
	fmt.Fprintf(os.Stderr, "Mode: %s, taxonomy %s\n", eval.Mode(), eval.Taxonomy().Hash())
	if cfg.AuditLog != "" {
		fmt.Fprintf(os.Stderr, "Audit log: %s\n", cfg.AuditLog)
	}
	fmt.Fprintln(os.Stderr)

	return srv.Run(ctx)
}
