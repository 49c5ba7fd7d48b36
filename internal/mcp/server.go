// Package mcp exposes review state to agent tooling over the Model
// Context Protocol. All mutation goes through the lifecycle controller so
// agent-side tools share the single merge protocol.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/reviewloop/reviewloop/internal/lifecycle"
	"github.com/reviewloop/reviewloop/internal/models"
	"github.com/reviewloop/reviewloop/internal/report"
	"github.com/reviewloop/reviewloop/internal/store"
)

// Server wraps the review state layer and exposes it as MCP tools.
type Server struct {
	store store.Store
	ctrl  *lifecycle.Controller
}

// NewServer creates the MCP server wrapper.
func NewServer(s store.Store, ctrl *lifecycle.Controller) *Server {
	return &Server{store: s, ctrl: ctrl}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("reviewloop", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.listSubjectsTool())
	srv.AddTool(s.getReportTool())
	srv.AddTool(s.listFindingsTool())
	srv.AddTool(s.dismissFindingTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// reviewloop_list_subjects
func (s *Server) listSubjectsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("reviewloop_list_subjects",
		mcp.WithDescription("List all review subjects with persisted state. Returns a JSON array of subjects in provider/owner/repo#number form."),
	)
	return tool, s.handleListSubjects
}

func (s *Server) handleListSubjects(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	subjects, err := s.store.ListSubjects(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list subjects: %v", err)), nil
	}

	out := make([]string, len(subjects))
	for i, sub := range subjects {
		out[i] = sub.String()
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal subjects: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// reviewloop_get_report
func (s *Server) getReportTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("reviewloop_get_report",
		mcp.WithDescription("Get the current review report for a subject: summary counts, sorted active findings, and collapsed resolved findings."),
		mcp.WithString("subject", mcp.Required(), mcp.Description("Subject in [provider/]owner/repo#number form")),
	)
	return tool, s.handleGetReport
}

func (s *Server) handleGetReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	subject, result := s.requireSubject(request)
	if result != nil {
		return result, nil
	}

	state, err := s.store.Load(ctx, subject)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load state: %v", err)), nil
	}

	rep := report.Project(state)
	data, err := json.Marshal(rep)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal report: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// reviewloop_list_findings
func (s *Server) listFindingsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("reviewloop_list_findings",
		mcp.WithDescription("List findings for a subject, optionally filtered by status (open, resolved, invalidated, dismissed)."),
		mcp.WithString("subject", mcp.Required(), mcp.Description("Subject in [provider/]owner/repo#number form")),
		mcp.WithString("status", mcp.Description("Filter by finding status")),
	)
	return tool, s.handleListFindings
}

func (s *Server) handleListFindings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	subject, result := s.requireSubject(request)
	if result != nil {
		return result, nil
	}
	status := models.FindingStatus(request.GetString("status", ""))

	state, err := s.store.Load(ctx, subject)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load state: %v", err)), nil
	}

	var findings []*models.Finding
	for _, f := range state.Findings {
		if status != "" && f.Status != status {
			continue
		}
		findings = append(findings, f)
	}

	data, err := json.Marshal(findings)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal findings: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// reviewloop_dismiss_finding
func (s *Server) dismissFindingTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("reviewloop_dismiss_finding",
		mcp.WithDescription("Dismiss a finding. Dismissal is sticky: the finding will never be auto-reopened by re-detection."),
		mcp.WithString("subject", mcp.Required(), mcp.Description("Subject in [provider/]owner/repo#number form")),
		mcp.WithString("finding", mcp.Required(), mcp.Description("Finding id (full or unique prefix)")),
	)
	return tool, s.handleDismissFinding
}

func (s *Server) handleDismissFinding(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	subject, result := s.requireSubject(request)
	if result != nil {
		return result, nil
	}
	findingID, err := request.RequireString("finding")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: finding"), nil
	}

	f, err := s.ctrl.Dismiss(ctx, subject, findingID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("dismiss finding: %v", err)), nil
	}

	data, err := json.Marshal(f)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal finding: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// requireSubject parses the subject parameter common to most tools.
func (s *Server) requireSubject(request mcp.CallToolRequest) (models.ReviewSubject, *mcp.CallToolResult) {
	raw, err := request.RequireString("subject")
	if err != nil {
		return models.ReviewSubject{}, mcp.NewToolResultError("missing required parameter: subject")
	}
	subject, err := models.ParseSubject(raw)
	if err != nil {
		return models.ReviewSubject{}, mcp.NewToolResultError(err.Error())
	}
	return subject, nil
}
