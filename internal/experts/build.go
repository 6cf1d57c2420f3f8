package experts

import (
	"context"

	"golang.org/x/mod/modfile"

	"github.com/steveyegge/clewcrew/internal/artifact"
	"github.com/steveyegge/clewcrew/internal/scoring"
	"github.com/steveyegge/clewcrew/internal/types"
)

var buildConfigs = []string{
	"pyproject.toml",
	"setup.py",
	"setup.cfg",
	"build.py",
	"Makefile",
	"dockerfile",
	"Dockerfile",
	"go.mod",
}

var buildOutputs = []string{"build", "dist", "target"}

var buildLogs = []string{"build.log", "make.log", "docker.log"}

// NewBuildExpert creates the expert for build configuration and build logs.
func NewBuildExpert(opts ...Option) Expert {
	return newRuleExpert(profile{
		name:   Build,
		metric: "build_quality",
		weight: 1.2,
		curve:  scoring.NewCurve(88, 72, 52, 22),
		discover: func(s *scan) []string {
			found := s.existing(buildConfigs...)
			found = append(found, s.existing(buildOutputs...)...)
			return append(found, s.glob("*.egg-info")...)
		},
		rules: []rule{
			{name: "pyproject_build_system", run: checkPyprojectBuildSystem},
			{name: "go_module", run: checkGoModule},
			{name: "build_logs", run: checkLogsFor(buildLogs, types.Finding{
				Kind:        types.KindBuildFailure,
				Description: "Build log contains error or failure messages",
				Priority:    types.PriorityHigh,
				Origin:      types.Origin{Tool: "build_logs", Source: types.SourceLogs},
			})},
		},
		fixes: map[types.FindingKind]fixTemplate{
			types.KindBuildConfigIssue: {
				remedy: "Fix build configuration",
				source: types.SourceConfig,
			},
			types.KindBuildFailure: {
				remedy: "Fix build failures",
				source: types.SourceLogs,
				detail: func(types.Finding) string { return "Review and fix the build failures identified in logs" },
			},
		},
		impact: impactProfile{
			tag:          "build_quality_assessment",
			riskTypes:    []types.ChangeType{"build_config_change", "dependency_change", "tool_change"},
			benefitTypes: []types.ChangeType{"build_improvement", "tool_improvement"},
			affects:      "affect build stability",
			improves:     "build quality",
			advice: []string{
				"Review changes for build pipeline impact",
				"Ensure build configuration remains stable",
				"Test build changes in isolated environment",
				"Maintain build automation and monitoring",
			},
		},
		noEvidenceAdvice: []string{
			"No existing build configuration found",
			"Consider setting up proper build tools (poetry, pip, etc.)",
			"Implement automated build pipelines",
			"Set up build artifact management",
		},
		issueAdvice: []string{
			"Review and fix build configuration issues",
			"Address build failures identified in logs",
			"Improve build automation and pipelines",
			"Consider implementing build caching strategies",
		},
		cleanAdvice: []string{
			"Build configuration appears sound based on existing files",
			"Continue monitoring build performance",
			"Consider implementing advanced build strategies",
			"Add build metrics and monitoring",
		},
	}, opts)
}

func checkPyprojectBuildSystem(ctx context.Context, s *scan) {
	if len(s.files("pyproject.toml")) == 0 {
		return
	}
	cfg, ok := s.config(ctx, "pyproject.toml")
	if !ok {
		return
	}
	if _, ok := cfg["build-system"]; !ok {
		s.add(types.Finding{
			Kind:        types.KindBuildConfigIssue,
			Location:    types.Location{Path: "pyproject.toml"},
			Description: "Missing build-system configuration",
			Priority:    types.PriorityMedium,
			Origin:      types.Origin{Tool: "pyproject", Source: types.SourceConfig},
		})
	}
}

func checkGoModule(ctx context.Context, s *scan) {
	if len(s.files("go.mod")) == 0 {
		return
	}
	data, ok := s.read(ctx, "go.mod")
	if !ok {
		return
	}
	mf, err := modfile.ParseLax("go.mod", data, nil)
	if err != nil {
		s.ignore("go.mod", artifact.Unparsable("go.mod", err))
		return
	}
	if mf.Go == nil {
		s.add(types.Finding{
			Kind:        types.KindBuildConfigIssue,
			Location:    types.Location{Path: "go.mod"},
			Description: "Missing go directive in go.mod",
			Priority:    types.PriorityMedium,
			Origin:      types.Origin{Tool: "go_modules", Source: types.SourceConfig},
		})
	}
}
