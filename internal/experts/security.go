package experts

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/steveyegge/clewcrew/internal/artifact"
	"github.com/steveyegge/clewcrew/internal/scoring"
	"github.com/steveyegge/clewcrew/internal/types"
)

// credentialPatterns match well-known API key and token formats.
var credentialPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-[a-zA-Z0-9]{48}`),
	regexp.MustCompile(`pk_[a-zA-Z0-9]{48}`),
	regexp.MustCompile(`AKIA[a-zA-Z0-9]{16}`),
	regexp.MustCompile(`ghp_[a-zA-Z0-9]{36}`),
	regexp.MustCompile(`gho_[a-zA-Z0-9]{36}`),
}

// processPatterns match Python shell-out calls.
var processPatterns = []*regexp.Regexp{
	regexp.MustCompile(`import subprocess`),
	regexp.MustCompile(`subprocess\.run`),
	regexp.MustCompile(`subprocess\.Popen`),
	regexp.MustCompile(`subprocess\.call`),
	regexp.MustCompile(`os\.system`),
	regexp.MustCompile(`os\.popen`),
}

// securitySources are scanned for credentials. Process patterns only
// apply to Python.
var securitySources = []string{
	"**/*.py",
	"**/*.go",
	"**/*.js",
	"**/*.ts",
	"**/*.sh",
	"**/*.env",
	"**/.env",
	"**/*.yml",
	"**/*.yaml",
	"**/*.json",
	"**/*.toml",
	"**/*.cfg",
	"**/*.ini",
	"**/*.txt",
	"**/*.md",
}

// NewSecurityExpert creates the expert that scans source and config files
// for hardcoded credentials and shell-out calls.
func NewSecurityExpert(opts ...Option) Expert {
	return newRuleExpert(profile{
		name:   Security,
		metric: "security",
		weight: 3.0,
		curve:  scoring.NewCurve(100, 80, 55, 25),
		discover: func(s *scan) []string {
			return artifact.Files(s.fsys, s.glob(securitySources...))
		},
		rules: []rule{
			{name: "source_patterns", run: scanSecurityPatterns},
		},
		fixes: map[types.FindingKind]fixTemplate{
			types.KindSecurityVulnerability: {
				remedy:   "Replace hardcoded credential with environment variable",
				priority: types.PriorityHigh,
				source:   types.SourceCode,
				detail: func(f types.Finding) string {
					return fmt.Sprintf("# Replace: %s\n# With: os.getenv('CREDENTIAL_KEY')", f.Pattern)
				},
			},
			types.KindSubprocessVulnerability: {
				remedy:   "Replace subprocess call with native Python operation",
				priority: types.PriorityCritical,
				source:   types.SourceCode,
				detail: func(types.Finding) string {
					return "# Replace subprocess.call with native Python libraries"
				},
			},
		},
		impact: impactProfile{
			tag:          "security_assessment",
			riskTypes:    []types.ChangeType{"security_config_change", "dependency_change", "permission_change"},
			benefitTypes: []types.ChangeType{"security_improvement"},
			affects:      "weaken security posture",
			improves:     "security posture",
			contentChecks: []contentCheck{
				{
					matches:   containsAnyFold("password", "secret", "key", "token"),
					statement: "Potential credential exposure in changes",
					level:     types.RiskHigh,
				},
				{
					matches:   containsAnyFold("subprocess", "os.system", "eval", "exec"),
					statement: "Potential command injection risk in changes",
					level:     types.RiskCritical,
				},
			},
			advice: []string{
				"Review all changes for security implications",
				"Implement security code review process",
				"Use automated security scanning tools",
			},
		},
		noEvidenceAdvice: []string{
			"No existing source files found for security analysis",
			"Consider adding secret scanning to the repository",
			"Set up environment-based credential management",
			"Implement automated security scanning in CI/CD",
		},
		issueAdvice: []string{
			"Use environment variables for credentials",
			"Implement secret management",
			"Replace subprocess calls with native Python operations",
			"Use Go/Rust for performance-critical shell operations",
			"Implement gRPC shell service for secure command execution",
		},
		cleanAdvice: []string{
			"No security issues detected",
			"Continue monitoring for security vulnerabilities",
			"Implement automated security scanning in CI/CD",
		},
	}, opts)
}

// scanSecurityPatterns reports one finding per (file, credential pattern)
// pair and at most one process-execution finding per Python file, placed at
// the first matching pattern's line.
func scanSecurityPatterns(ctx context.Context, s *scan) {
	for _, rel := range artifact.Files(s.fsys, s.glob(securitySources...)) {
		if ctx.Err() != nil {
			return
		}
		data, ok := s.read(ctx, rel)
		if !ok || !artifact.IsLikelyText(data) {
			continue
		}

		for _, re := range credentialPatterns {
			if !re.Match(data) {
				continue
			}
			s.add(types.Finding{
				Kind:        types.KindSecurityVulnerability,
				Location:    types.Location{Path: rel, Line: artifact.FirstMatchLine(data, re)},
				Description: fmt.Sprintf("Potential hardcoded credential found: %s", re),
				Priority:    types.PriorityHigh,
				Origin:      types.Origin{Tool: "credential_scan", Source: types.SourceCode},
				Pattern:     re.String(),
			})
		}

		if path.Ext(rel) != ".py" {
			continue
		}
		var matched []string
		line := 0
		for _, re := range processPatterns {
			if !re.Match(data) {
				continue
			}
			if matched == nil {
				line = artifact.FirstMatchLine(data, re)
			}
			matched = append(matched, re.String())
		}
		if len(matched) == 0 {
			continue
		}
		desc := fmt.Sprintf("Subprocess usage detected: %s - Security risk for command injection", matched[0])
		if len(matched) > 1 {
			desc += fmt.Sprintf(" (also matched: %s)", strings.Join(matched[1:], ", "))
		}
		s.add(types.Finding{
			Kind:        types.KindSubprocessVulnerability,
			Location:    types.Location{Path: rel, Line: line},
			Description: desc,
			Priority:    types.PriorityCritical,
			Origin:      types.Origin{Tool: "process_scan", Source: types.SourceCode},
			Pattern:     matched[0],
		})
	}
}
