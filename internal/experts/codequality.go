package experts

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/steveyegge/clewcrew/internal/artifact"
	"github.com/steveyegge/clewcrew/internal/scoring"
	"github.com/steveyegge/clewcrew/internal/types"
)

var ciDirs = []string{".github", ".gitlab-ci", ".circleci", "ci", "jenkins"}

var qualityToolOutputs = []string{
	"pyproject.toml",
	".ruff.toml",
	"pytest.ini",
	"setup.cfg",
	".flake8",
	"tox.ini",
	"coverage.xml",
	"htmlcov",
	"logs",
	".github/workflows",
	".gitlab-ci.yml",
	".golangci.yml",
	".golangci.yaml",
	"flake8_report.json",
	"flake8_report.txt",
}

// flake8Line matches "path:line:col: CODE message".
var flake8Line = regexp.MustCompile(`^(.+?):(\d+):(\d+):\s*([A-Z]+\d+)\s*(.*)$`)

// flake8Entry is one record of flake8's JSON output.
type flake8Entry struct {
	Filename     string `json:"filename"`
	LineNumber   int    `json:"line_number"`
	ColumnNumber int    `json:"column_number"`
	Code         string `json:"code"`
	Text         string `json:"text"`
}

// NewCodeQualityExpert creates the expert that reads saved lint/formatter
// output and quality tool configuration.
func NewCodeQualityExpert(opts ...Option) Expert {
	return newRuleExpert(profile{
		name:   CodeQuality,
		metric: "code_quality",
		weight: 2.0,
		curve:  scoring.NewCurve(100, 82, 60, 30),
		discover: func(s *scan) []string {
			found := s.existing(qualityToolOutputs...)
			return append(found, s.under(ciDirs, "*.yml", "*.yaml", "*.json")...)
		},
		rules: []rule{
			{name: "flake8_output", run: checkFlake8Output},
			{name: "black_config", run: checkBlackConfig},
			{name: "mypy_config", run: checkMypyConfig},
			{name: "ci_quality_tools", run: checkCIQualityTools},
		},
		fixes: map[types.FindingKind]fixTemplate{
			types.KindCodeQualityIssue: {
				remedy:   "Fix code quality issue",
				priority: types.PriorityMedium,
				source:   types.SourceOutput,
				detail: func(f types.Finding) string {
					return fmt.Sprintf("Address %s: %s", f.Code, f.Description)
				},
			},
			types.KindFormattingConfig: {
				remedy:   "Configure Black formatter",
				priority: types.PriorityLow,
				source:   types.SourceConfig,
				detail:   func(types.Finding) string { return "Set up Black formatting rules in pyproject.toml" },
			},
			types.KindTypeCheckingConfig: {
				remedy:   "Configure MyPy type checker",
				priority: types.PriorityLow,
				source:   types.SourceConfig,
				detail:   func(types.Finding) string { return "Set up MyPy type checking rules" },
			},
		},
		impact: impactProfile{
			tag:          "code_quality_assessment",
			riskTypes:    []types.ChangeType{"lint_config_change", "formatter_change"},
			benefitTypes: []types.ChangeType{"refactor", "quality_improvement"},
			affects:      "lower code quality standards",
			improves:     "code quality",
			contentChecks: []contentCheck{
				{
					matches:   func(c string) bool { return len(strings.Split(c, "\n")) > 10 },
					statement: "Large change that may introduce complexity",
					level:     types.RiskMedium,
				},
				{
					matches:   func(c string) bool { return strings.Contains(c, "TODO") || strings.Contains(c, "FIXME") },
					statement: "Change contains TODO/FIXME comments",
					level:     types.RiskMedium,
				},
				{
					matches:   func(c string) bool { return strings.Contains(c, "import *") },
					statement: "Change uses wildcard imports",
					level:     types.RiskMedium,
				},
			},
			advice: []string{
				"Review changes for code quality implications",
				"Ensure changes follow project coding standards",
				"Consider breaking large changes into smaller commits",
			},
		},
		noEvidenceAdvice: []string{
			"No existing code quality tool outputs found",
			"Consider running quality tools and saving outputs for analysis",
			"Set up CI/CD pipeline to capture tool outputs",
			"Use pre-commit hooks to generate quality reports",
		},
		issueAdvice: []string{
			"Address code quality issues found in existing tool outputs",
			"Review and fix flake8 violations",
			"Run black formatter to fix formatting issues",
			"Add proper type annotations based on mypy findings",
			"Consider implementing pre-commit hooks for automated quality checks",
			"Set up quality gates in CI/CD pipeline",
		},
		cleanAdvice: []string{
			"Code quality checks passed based on existing tool outputs",
			"Continue monitoring with automated quality checks",
			"Consider adding more comprehensive quality analysis tools",
		},
	}, opts)
}

func checkFlake8Output(ctx context.Context, s *scan) {
	for _, rel := range s.files("flake8_report.json", "flake8_report.txt") {
		data, ok := s.read(ctx, rel)
		if !ok {
			continue
		}

		var entries []flake8Entry
		if strings.HasSuffix(rel, ".json") {
			var err error
			entries, err = parseFlake8JSON(data)
			if err != nil {
				s.ignore(rel, artifact.Unparsable(rel, err))
				continue
			}
		} else {
			entries = parseFlake8Text(data)
		}

		for _, e := range entries {
			path := e.Filename
			if path == "" {
				path = "unknown"
			}
			s.add(types.Finding{
				Kind:        types.KindCodeQualityIssue,
				Location:    types.Location{Path: path, Line: e.LineNumber, Column: e.ColumnNumber},
				Description: strings.TrimSpace(e.Text),
				Priority:    types.PriorityMedium,
				Origin:      types.Origin{Tool: "flake8", Source: types.SourceOutput},
				Code:        e.Code,
			})
		}
	}
}

// parseFlake8JSON accepts both a flat list of records and flake8-json's
// map of filename to records.
func parseFlake8JSON(data []byte) ([]flake8Entry, error) {
	var list []flake8Entry
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var byFile map[string][]flake8Entry
	if err := json.Unmarshal(data, &byFile); err != nil {
		return nil, err
	}
	files := make([]string, 0, len(byFile))
	for f := range byFile {
		files = append(files, f)
	}
	sort.Strings(files)
	for _, f := range files {
		for _, e := range byFile[f] {
			if e.Filename == "" {
				e.Filename = f
			}
			list = append(list, e)
		}
	}
	return list, nil
}

func parseFlake8Text(data []byte) []flake8Entry {
	var entries []flake8Entry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		m := flake8Line.FindStringSubmatch(strings.TrimSpace(scanner.Text()))
		if m == nil {
			continue
		}
		line, _ := strconv.Atoi(m[2])
		col, _ := strconv.Atoi(m[3])
		entries = append(entries, flake8Entry{
			Filename:     m[1],
			LineNumber:   line,
			ColumnNumber: col,
			Code:         m[4],
			Text:         strings.TrimSpace(m[4] + " " + m[5]),
		})
	}
	return entries
}

func checkBlackConfig(ctx context.Context, s *scan) {
	for _, rel := range s.files("black_report.txt", "pyproject.toml") {
		data, ok := s.read(ctx, rel)
		if !ok || !artifact.ContainsFold(data, "black") {
			continue
		}
		if bytes.Contains(data, []byte("line-length")) || bytes.Contains(data, []byte("target-version")) {
			s.add(types.Finding{
				Kind:        types.KindFormattingConfig,
				Location:    types.Location{Path: rel},
				Description: "Black formatter configuration found",
				Priority:    types.PriorityLow,
				Origin:      types.Origin{Tool: "black", Source: types.SourceConfig},
			})
		}
	}
}

func checkMypyConfig(ctx context.Context, s *scan) {
	for _, rel := range s.files("mypy_report.txt", "pyproject.toml", "setup.cfg") {
		data, ok := s.read(ctx, rel)
		if !ok || !artifact.ContainsFold(data, "mypy") {
			continue
		}
		if bytes.Contains(data, []byte("warn_return_any")) || bytes.Contains(data, []byte("disallow_untyped_defs")) {
			s.add(types.Finding{
				Kind:        types.KindTypeCheckingConfig,
				Location:    types.Location{Path: rel},
				Description: "MyPy type checker configuration found",
				Priority:    types.PriorityLow,
				Origin:      types.Origin{Tool: "mypy", Source: types.SourceConfig},
			})
		}
	}
}

func checkCIQualityTools(ctx context.Context, s *scan) {
	for _, rel := range s.under(ciDirs, "*.yml") {
		data, ok := s.read(ctx, rel)
		if !ok {
			continue
		}
		if bytes.Contains(data, []byte("flake8")) || bytes.Contains(data, []byte("black")) || bytes.Contains(data, []byte("mypy")) {
			s.add(types.Finding{
				Kind:        types.KindCIQualityIntegration,
				Location:    types.Location{Path: rel},
				Description: "Quality tools integrated in CI/CD pipeline",
				Priority:    types.PriorityLow,
				Origin:      types.Origin{Tool: "ci_cd", Source: types.SourceConfig},
			})
		}
	}
}
