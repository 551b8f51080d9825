// Package mcpserver exposes the report generator over the Model Context
// Protocol so assistants can request incident reports as a tool call.
package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/teranos/threatbrief/evidence"
	"github.com/teranos/threatbrief/generator"
	"github.com/teranos/threatbrief/stages"
	"github.com/teranos/threatbrief/version"
)

// MCPServer wraps a generator.Service and exposes it via Model Context Protocol
type MCPServer struct {
	service *generator.Service
	logger  *zap.SugaredLogger
	server  *server.MCPServer
}

// NewMCPServer creates an MCP server with the report tools registered
func NewMCPServer(service *generator.Service, log *zap.SugaredLogger) *MCPServer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &MCPServer{
		service: service,
		logger:  log,
		server: server.NewMCPServer(
			"threatbrief",
			version.Version,
			server.WithToolCapabilities(true),
		),
	}
	s.registerTools()
	return s
}

func (s *MCPServer) registerTools() {
	generateTool := mcp.NewTool("generate_incident_report",
		mcp.WithDescription("Run the multi-role analysis pipeline on a detected threat and return the Markdown incident report"),
		mcp.WithString("threat",
			mcp.Description("Detected threat label (default: Safe)"),
		),
		mcp.WithString("threat_data",
			mcp.Required(),
			mcp.Description("Evidence for the threat: a JSON object, CSV or YAML text"),
		),
		mcp.WithString("format",
			mcp.Description("Evidence format: json (default), csv or yaml"),
		),
		mcp.WithBoolean("render",
			mcp.Description("Also render the report document and return its path (default: false)"),
		),
	)
	s.server.AddTool(generateTool, s.handleGenerate)

	rolesTool := mcp.NewTool("list_roles",
		mcp.WithDescription("List the expert roles the pipeline assigns to stages"),
	)
	s.server.AddTool(rolesTool, s.handleListRoles)

	describeTool := mcp.NewTool("describe_pipeline",
		mcp.WithDescription("Show the stages, roles and dependencies a run would execute"),
		mcp.WithString("threat",
			mcp.Description("Threat label to plan for (default: Safe)"),
		),
		mcp.WithBoolean("dot",
			mcp.Description("Return the dependency graph in Graphviz DOT instead of a list"),
		),
	)
	s.server.AddTool(describeTool, s.handleDescribe)
}

// handleGenerate handles generate_incident_report tool calls
func (s *MCPServer) handleGenerate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := request.RequireString("threat_data")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	format, err := evidence.ParseFormat(request.GetString("format", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	req := generator.Request{
		Threat:   request.GetString("threat", ""),
		Evidence: []byte(data),
		Format:   format,
	}

	var out *generator.Outcome
	if request.GetBool("render", false) {
		out, err = s.service.GenerateReport(ctx, req)
	} else {
		out, err = s.service.Run(ctx, req)
	}
	if err != nil {
		s.logger.Warnw("MCP report generation failed", "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("Failed to generate report: %v", err)), nil
	}

	result := out.Report()
	if out.Artifact != nil {
		// Artifacts are left on disk for the caller
		result += fmt.Sprintf("\n\n---\nRendered %s (%d bytes): %s\n", out.Artifact.ContentType, out.Artifact.Size, out.Artifact.Path)
	}
	return mcp.NewToolResultText(result), nil
}

// handleListRoles handles list_roles tool calls
func (s *MCPServer) handleListRoles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reg := s.service.Registry()
	list := reg.List()

	var b strings.Builder
	fmt.Fprintf(&b, "Role registry %s, %d role(s):\n", reg.Version(), len(list))
	for i, r := range list {
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, r.DisplayName(), r.Goal)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// handleDescribe handles describe_pipeline tool calls
func (s *MCPServer) handleDescribe(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	plan, err := s.service.Plan(request.GetString("threat", ""), []byte("{}"), evidence.JSON)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to plan stages: %v", err)), nil
	}

	name := s.service.Blueprint().Name
	if request.GetBool("dot", false) {
		dot, err := stages.DOT(name, plan)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to render graph: %v", err)), nil
		}
		return mcp.NewToolResultText(dot), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Blueprint %s, %d stage(s):\n", name, len(plan))
	for i, st := range plan {
		fmt.Fprintf(&b, "%d. %s (%s)", i+1, st.ID, st.Role.DisplayName())
		if len(st.DependsOn) > 0 {
			deps := make([]string, len(st.DependsOn))
			for j, d := range st.DependsOn {
				deps[j] = string(d)
			}
			fmt.Fprintf(&b, " after %s", strings.Join(deps, ", "))
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

// Serve starts the MCP server using stdio transport
func (s *MCPServer) Serve() error {
	return server.ServeStdio(s.server)
}
