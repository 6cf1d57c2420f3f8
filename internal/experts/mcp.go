package experts

import (
	"bytes"
	"context"

	"github.com/steveyegge/clewcrew/internal/artifact"
	"github.com/steveyegge/clewcrew/internal/scoring"
	"github.com/steveyegge/clewcrew/internal/types"
)

var mcpConfigs = []string{"mcp_config.json", "mcp.yaml", "mcp.toml", ".mcp", "mcp_server.json", "mcp_client.json"}

var mcpLogDirs = []string{"logs", "mcp_logs", ".mcp_logs"}

var mcpLogs = []string{"mcp.log", "mcp_server.log", "mcp_client.log"}

// NewMCPExpert creates the expert for Model Context Protocol server and
// client setup.
func NewMCPExpert(opts ...Option) Expert {
	return newRuleExpert(profile{
		name:   MCP,
		metric: "mcp_quality",
		weight: 1.1,
		curve:  scoring.NewCurve(87, 73, 53, 23),
		discover: func(s *scan) []string {
			return append(s.existing(mcpConfigs...), s.existing(mcpLogDirs...)...)
		},
		rules: []rule{
			{name: "mcp_config", run: checkMCPConfig},
			{name: "mcp_logs", run: checkLogsFor(mcpLogs, types.Finding{
				Kind:        types.KindMCPFailure,
				Description: "MCP log contains error or failure messages",
				Priority:    types.PriorityHigh,
				Origin:      types.Origin{Tool: "mcp_logs", Source: types.SourceLogs},
			})},
		},
		fixes: map[types.FindingKind]fixTemplate{
			types.KindMCPConfigIssue: {
				remedy: "Fix MCP configuration",
				source: types.SourceConfig,
			},
			types.KindMCPFailure: {
				remedy: "Fix MCP failures",
				source: types.SourceLogs,
				detail: func(types.Finding) string { return "Review and fix the MCP failures identified in logs" },
			},
		},
		impact: impactProfile{
			tag:          "mcp_quality_assessment",
			riskTypes:    []types.ChangeType{"mcp_config_change", "server_change", "client_change"},
			benefitTypes: []types.ChangeType{"mcp_improvement", "config_improvement"},
			affects:      "affect MCP connectivity",
			improves:     "MCP quality",
			advice: []string{
				"Review changes for MCP connectivity impact",
				"Ensure MCP configuration remains stable",
				"Test MCP changes in isolated environment",
				"Maintain MCP monitoring and health checks",
			},
		},
		noEvidenceAdvice: []string{
			"No existing MCP configuration found",
			"Consider setting up MCP server configuration",
			"Implement MCP client integration",
			"Set up MCP logging and monitoring",
		},
		issueAdvice: []string{
			"Review and fix MCP configuration issues",
			"Address MCP connection issues identified in logs",
			"Improve MCP error handling and logging",
			"Consider implementing MCP health checks",
		},
		cleanAdvice: []string{
			"MCP configuration appears sound based on existing files",
			"Continue monitoring MCP performance",
			"Consider implementing advanced MCP strategies",
			"Add comprehensive MCP monitoring and alerting",
		},
	}, opts)
}

// checkMCPConfig looks for a server or client section in configs that
// mention MCP at all. The section names are matched case-sensitively.
func checkMCPConfig(ctx context.Context, s *scan) {
	for _, rel := range s.files("mcp_config.json", "mcp.yaml") {
		data, ok := s.read(ctx, rel)
		if !ok || !artifact.ContainsFold(data, "mcp") {
			continue
		}
		if !bytes.Contains(data, []byte("server")) && !bytes.Contains(data, []byte("client")) {
			s.add(types.Finding{
				Kind:        types.KindMCPConfigIssue,
				Location:    types.Location{Path: rel},
				Description: "MCP configuration missing server/client specification",
				Priority:    types.PriorityMedium,
				Origin:      types.Origin{Tool: "mcp_config", Source: types.SourceConfig},
			})
		}
	}
}
