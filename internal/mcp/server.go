// Package mcp exposes the evaluator as Model Context Protocol tools over
// stdio.
package mcp

import (
	"context"
	"fmt"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/termwatch/internal/audit"
	"github.com/ppiankov/termwatch/internal/policy"
)

// Config holds MCP server configuration.
type Config struct {
	Evaluator    *policy.Evaluator
	AuditLogPath string
	Version      string
}

// Server wraps the MCP SDK server with the termwatch evaluator.
type Server struct {
	mcpServer *mcpsdk.Server
	eval      *policy.Evaluator
	auditLog  *audit.Log
	mu        sync.Mutex
}

// New creates an MCP server and registers its tools.
func New(cfg Config) (*Server, error) {
	eval := cfg.Evaluator
	if eval == nil {
		eval = policy.New(nil, nil)
	}

	var auditLog *audit.Log
	if cfg.AuditLogPath != "" {
		var err error
		auditLog, err = audit.Open(cfg.AuditLogPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
	}

	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		eval:     eval,
		auditLog: auditLog,
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "termwatch",
			Version: version,
		},
		nil,
	)

	s.registerTools()
	return s, nil
}

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// Close closes the audit log if configured.
func (s *Server) Close() error {
	if s.auditLog != nil {
		return s.auditLog.Close()
	}
	return nil
}

// recordAudit appends one evaluation to the audit log, if one is configured.
func (s *Server) recordAudit(entry audit.AuditEntry) error {
	if s.auditLog == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.auditLog.Record(entry)
}

// registerTools adds all termwatch tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "termwatch_evaluate",
		Description: "Evaluate a call transcript for address-term compliance. Pass the transcript text (Speaker 1: agent, Speaker 2: caller) or a file path. Returns PASS/FAIL with violations.",
	}, s.handleEvaluate)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "termwatch_terms",
		Description: "List the policy terms by category, the honorific prefixes and the negation marker.",
	}, s.handleTerms)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "termwatch_allowed",
		Description: "Show which address terms an agent may use once the caller has disclosed the given self-reference terms.",
	}, s.handleAllowed)
}
