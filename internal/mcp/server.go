// Package mcp serves the rule catalogue and compliance runs over the Model
// Context Protocol on stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/girste/hardenspec/internal/config"
	"github.com/girste/hardenspec/internal/host"
	"github.com/girste/hardenspec/internal/output"
	"github.com/girste/hardenspec/internal/rules"
	"github.com/girste/hardenspec/internal/runner"
	"github.com/girste/hardenspec/internal/util"
)

// OpenFunc connects to the configured target
type OpenFunc func(ctx context.Context, cfg *config.Config) (*host.Host, error)

// Server is the MCP front end of hardenspec
type Server struct {
	cfg       *config.Config
	open      OpenFunc
	catalogue []rules.Rule
	logger    *zap.Logger
	mcpServer *server.MCPServer
}

// ruleInfo is the catalogue entry returned by list_rules
type ruleInfo struct {
	ID          string `json:"id"`
	Domain      string `json:"domain"`
	Description string `json:"description"`
	Path        string `json:"path,omitempty"`
	SkipReason  string `json:"skipReason,omitempty"`
}

// NewServer creates an MCP server that runs rules against cfg's target
func NewServer(cfg *config.Config, version string) *Server {
	s := &Server{
		cfg:       cfg,
		open:      host.Open,
		catalogue: rules.Catalogue(),
		logger:    util.GetLogger().Named("mcp"),
	}

	s.mcpServer = server.NewMCPServer(
		"hardenspec",
		version,
		server.WithToolCapabilities(false),
	)
	s.registerTools()
	return s
}

// WithOpener replaces how the target is reached
func (s *Server) WithOpener(open OpenFunc) *Server {
	s.open = open
	return s
}

func (s *Server) registerTools() {
	listTool := mcp.NewTool("list_rules",
		mcp.WithDescription("List the hardening rules in the catalogue"),
		mcp.WithString("domain",
			mcp.Description("Only list rules of this domain, e.g. ssh or kernel"),
		),
	)
	s.mcpServer.AddTool(listTool, s.handleListRules)

	runTool := mcp.NewTool("run_rules",
		mcp.WithDescription("Evaluate hardening rules against the configured target and return the run report"),
		mcp.WithString("domain",
			mcp.Description("Only evaluate rules of this domain"),
		),
		mcp.WithString("rule",
			mcp.Description("Only evaluate rules whose ID matches this glob, e.g. ssh.*"),
		),
		mcp.WithBoolean("compact",
			mcp.Description("Return the compact summary instead of the full report"),
		),
	)
	s.mcpServer.AddTool(runTool, s.handleRunRules)
}

// Serve blocks serving MCP over stdin/stdout
func (s *Server) Serve() error {
	s.logger.Info("Serving MCP on stdio", zap.String("target", s.cfg.Target.String()))
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) handleListRules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	selected, err := rules.Select(s.catalogue, optional(req.GetString("domain", "")), nil)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	infos := make([]ruleInfo, 0, len(selected))
	for _, r := range selected {
		infos = append(infos, ruleInfo{
			ID:          r.ID,
			Domain:      r.Domain,
			Description: r.Description,
			Path:        r.Path,
			SkipReason:  r.SkipReason,
		})
	}
	return jsonResult(infos)
}

func (s *Server) handleRunRules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	selected, err := rules.Select(s.catalogue,
		optional(req.GetString("domain", "")),
		optional(req.GetString("rule", "")))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	h, err := s.open(ctx, s.cfg)
	if err != nil {
		s.logger.Warn("Could not reach target", zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("could not reach target: %v", err)), nil
	}
	defer func() { _ = h.Close() }()

	report, err := runner.New(s.cfg).WithLogger(s.logger).Run(ctx, h, selected)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("run aborted: %v", err)), nil
	}

	if req.GetBool("compact", false) {
		return jsonResult(output.ConvertToCompact(report))
	}
	return jsonResult(report)
}

func optional(value string) []string {
	if value == "" {
		return nil
	}
	return []string{value}
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
