package experts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/steveyegge/clewcrew/internal/artifact"
	"github.com/steveyegge/clewcrew/internal/scoring"
	"github.com/steveyegge/clewcrew/internal/types"
)

// writeTree creates files (relative path -> content) under a fresh temp dir.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	}
	return root
}

func kinds(findings []types.Finding) []types.FindingKind {
	out := make([]types.FindingKind, 0, len(findings))
	for _, f := range findings {
		out = append(out, f.Kind)
	}
	return out
}

func fakeKey(prefix string, n int) string {
	return prefix + strings.Repeat("a1B2", n/4)
}

func TestEmptyProject(t *testing.T) {
	root := t.TempDir()
	for _, e := range Roster() {
		t.Run(e.Name(), func(t *testing.T) {
			result := e.Detect(context.Background(), root)
			assert.Empty(t, result.Findings)
			assert.NotNil(t, result.Findings)
			assert.Equal(t, scoring.NoEvidenceConfidence, result.Confidence)
			require.NotEmpty(t, result.Recommendations)
			assert.True(t, strings.HasPrefix(result.Recommendations[0], "No existing"), result.Recommendations[0])

			metrics := e.QualityMetrics(context.Background(), root)
			assert.Equal(t, 0.0, metrics.QualityScore)
			assert.Equal(t, 0, metrics.ArtifactsFound)
			assert.Equal(t, e.MetricName(), metrics.Metric)
			assert.Equal(t, e.MetricWeight(), metrics.Weight)
		})
	}
}

func TestCleanProjectScoresCeiling(t *testing.T) {
	fixtures := map[string]map[string]string{
		Security:     {"app.py": "print('hello')\n"},
		CodeQuality:  {".flake8": "[flake8]\nmax-line-length = 100\n"},
		Test:         {"pytest.ini": "[pytest]\ntestpaths = tests\naddopts = --cov=app\n"},
		DevOps:       {"docker-compose.yml": "services:\n  web:\n    image: nginx\n"},
		Model:        {"model_config.json": `{"model": "bert-base", "version": "1.0"}`},
		Build:        {"pyproject.toml": "[build-system]\nrequires = [\"hatchling\"]\n"},
		MCP:          {"mcp_config.json": `{"mcp": {"server": {"command": "tools"}}}`},
		Architecture: {"ARCHITECTURE.md": "# Architecture\n"},
	}

	for _, e := range Roster() {
		t.Run(e.Name(), func(t *testing.T) {
			files, ok := fixtures[e.Name()]
			require.True(t, ok, "no fixture for %s", e.Name())
			root := writeTree(t, files)

			metrics := e.QualityMetrics(context.Background(), root)
			assert.Equal(t, 0, metrics.IssuesFound)
			assert.Greater(t, metrics.ArtifactsFound, 0)
			assert.Equal(t, e.(*ruleExpert).Curve().Ceiling, metrics.QualityScore)
			assert.Equal(t, scoring.CleanConfidence, metrics.Confidence)
			assert.Equal(t, 0.9, metrics.Confidence)
		})
	}
}

func TestMissingRootIsNoEvidence(t *testing.T) {
	result := NewSecurityExpert().Detect(context.Background(), filepath.Join(t.TempDir(), "gone"))
	assert.Empty(t, result.Findings)
	assert.Equal(t, scoring.NoEvidenceConfidence, result.Confidence)
}

func TestSecurityCredential(t *testing.T) {
	root := writeTree(t, map[string]string{
		"app/settings.py": "DEBUG = True\nOPENAI_KEY = \"" + fakeKey("sk-", 48) + "\"\n",
	})

	result := NewSecurityExpert().Detect(context.Background(), root)
	require.Len(t, result.Findings, 1)
	f := result.Findings[0]
	assert.Equal(t, types.KindSecurityVulnerability, f.Kind)
	assert.Equal(t, types.PriorityHigh, f.Priority)
	assert.Equal(t, "app/settings.py", f.Location.Path)
	assert.Equal(t, 2, f.Location.Line)
	assert.InDelta(t, 0.7, result.Confidence, 1e-9)
}

func TestSecurityCredentialInConfig(t *testing.T) {
	root := writeTree(t, map[string]string{
		".env": "GITHUB_TOKEN=" + fakeKey("ghp_", 36) + "\n",
	})

	result := NewSecurityExpert().Detect(context.Background(), root)
	assert.Equal(t, []types.FindingKind{types.KindSecurityVulnerability}, kinds(result.Findings))
}

func TestSecuritySubprocess(t *testing.T) {
	root := writeTree(t, map[string]string{
		"tools/run.py": "subprocess.run(['ls', '-la'])\n",
	})

	result := NewSecurityExpert().Detect(context.Background(), root)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, types.KindSubprocessVulnerability, result.Findings[0].Kind)
	assert.Equal(t, types.PriorityCritical, result.Findings[0].Priority)
	assert.Less(t, result.Confidence, scoring.CleanConfidence)
}

func TestSecuritySubprocessOneFindingPerFile(t *testing.T) {
	root := writeTree(t, map[string]string{
		"tools/run.py": "import subprocess\n\ndef list_files():\n    return subprocess.run(['ls', '-la'], capture_output=True)\n",
	})

	result := NewSecurityExpert().Detect(context.Background(), root)
	require.Len(t, result.Findings, 1)
	f := result.Findings[0]
	assert.Equal(t, types.KindSubprocessVulnerability, f.Kind)
	assert.Equal(t, types.PriorityCritical, f.Priority)
	assert.Equal(t, 1, f.Location.Line)
	assert.Equal(t, "import subprocess", f.Pattern)
	assert.Contains(t, f.Description, `also matched: subprocess\.run`)
	assert.Less(t, result.Confidence, scoring.CleanConfidence)
}

func TestSecurityScansTextAndMarkdown(t *testing.T) {
	root := writeTree(t, map[string]string{
		"notes.txt": "staging key: " + fakeKey("sk-", 48) + "\n",
		"README.md": "# Demo\n\nexport OPENAI_KEY=" + fakeKey("sk-", 48) + "\n",
	})

	result := NewSecurityExpert().Detect(context.Background(), root)
	assert.Equal(t, 2, result.ArtifactsFound)
	require.Len(t, result.Findings, 2)
	lines := map[string]int{}
	for _, f := range result.Findings {
		assert.Equal(t, types.KindSecurityVulnerability, f.Kind)
		lines[f.Location.Path] = f.Location.Line
	}
	assert.Equal(t, map[string]int{"notes.txt": 1, "README.md": 3}, lines)
}

func TestSecurityProcessPatternsOnlyInPython(t *testing.T) {
	root := writeTree(t, map[string]string{
		"deploy.sh": "# subprocess.run is not used here\n",
	})

	result := NewSecurityExpert().Detect(context.Background(), root)
	assert.Empty(t, result.Findings)
	assert.Equal(t, scoring.CleanConfidence, result.Confidence)
	assert.Equal(t, 1, result.ArtifactsFound)
}

func TestSecurityRiskScore(t *testing.T) {
	root := writeTree(t, map[string]string{
		"run.py": "import subprocess\n",
	})

	metrics := NewSecurityExpert().QualityMetrics(context.Background(), root)
	assert.Equal(t, 10.0, metrics.RiskScore)
	assert.Equal(t, 1, metrics.SeverityCounts[types.PriorityCritical])
	assert.Equal(t, 80.0, metrics.QualityScore)
}

func TestTestCoverageLow(t *testing.T) {
	root := writeTree(t, map[string]string{
		"coverage.xml": `<?xml version="1.0" ?><coverage line-rate="0.5" branch-rate="0"><packages/></coverage>`,
	})

	result := NewTestExpert().Detect(context.Background(), root)
	require.Len(t, result.Findings, 1)
	f := result.Findings[0]
	assert.Equal(t, types.KindCoverageLow, f.Kind)
	assert.Equal(t, types.PriorityMedium, f.Priority)
	assert.Equal(t, "Test coverage is 50.0%, below recommended 80%", f.Description)
}

func TestTestCoverageSufficient(t *testing.T) {
	root := writeTree(t, map[string]string{
		"coverage.xml": `<coverage line-rate="0.92"></coverage>`,
	})

	result := NewTestExpert().Detect(context.Background(), root)
	assert.Empty(t, result.Findings)
	assert.Equal(t, scoring.CleanConfidence, result.Confidence)
}

func TestTestJUnitResults(t *testing.T) {
	root := writeTree(t, map[string]string{
		"junit.xml": `<testsuites>
  <testsuite name="unit" tests="4">
    <testcase name="a"><failure message="boom"/></testcase>
    <testcase name="b"><error message="crash"/></testcase>
    <testcase name="c"><skipped/></testcase>
    <testcase name="d"/>
  </testsuite>
</testsuites>`,
	})

	result := NewTestExpert().Detect(context.Background(), root)
	require.Len(t, result.Findings, 2)
	assert.Equal(t, "Found 2 test failures in results", result.Findings[0].Description)
	assert.Equal(t, types.PriorityHigh, result.Findings[0].Priority)
	assert.Equal(t, "Found 1 skipped tests", result.Findings[1].Description)
}

func TestTestPytestConfig(t *testing.T) {
	root := writeTree(t, map[string]string{
		"pytest.ini": "[pytest]\naddopts = -q\n",
	})

	result := NewTestExpert().Detect(context.Background(), root)
	require.Len(t, result.Findings, 2)
	assert.Equal(t, "Pytest configuration missing test discovery settings", result.Findings[0].Description)
	assert.Equal(t, "Pytest configuration missing coverage settings", result.Findings[1].Description)
	assert.Equal(t, types.PriorityLow, result.Findings[1].Priority)
}

func TestTestCoverageHTML(t *testing.T) {
	root := writeTree(t, map[string]string{
		"htmlcov/index.html": `<html><head><title>Coverage report</title></head>
<body><h1>Coverage report: <span class="pc_cov">64%</span></h1></body></html>`,
	})

	result := NewTestExpert().Detect(context.Background(), root)
	assert.Equal(t, []types.FindingKind{types.KindCoverageReport, types.KindCoverageLow}, kinds(result.Findings))
}

func TestCodeQualityFlake8Text(t *testing.T) {
	root := writeTree(t, map[string]string{
		"flake8_report.txt": "src/app.py:10:5: E501 line too long (90 > 79 characters)\nnot a flake8 line\n",
	})

	e := NewCodeQualityExpert()
	result := e.Detect(context.Background(), root)
	require.Len(t, result.Findings, 1)
	f := result.Findings[0]
	assert.Equal(t, types.Location{Path: "src/app.py", Line: 10, Column: 5}, f.Location)
	assert.Equal(t, "E501", f.Code)

	fixes := e.SuggestFixes(result.Findings)
	require.Len(t, fixes, 1)
	assert.Equal(t, "Address E501: E501 line too long (90 > 79 characters)", fixes[0].Detail)
}

func TestCodeQualityFlake8JSON(t *testing.T) {
	root := writeTree(t, map[string]string{
		"flake8_report.json": `{"b.py": [{"line_number": 2, "column_number": 1, "code": "F401", "text": "unused import"}],
"a.py": [{"line_number": 7, "column_number": 3, "code": "W291", "text": "trailing whitespace"}]}`,
	})

	result := NewCodeQualityExpert().Detect(context.Background(), root)
	require.Len(t, result.Findings, 2)
	assert.Equal(t, "a.py", result.Findings[0].Location.Path)
	assert.Equal(t, "b.py", result.Findings[1].Location.Path)
}

func TestUnparsableArtifactIsLoggedAndSkipped(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	root := writeTree(t, map[string]string{
		"flake8_report.json": "{not json",
	})

	result := NewCodeQualityExpert(WithLogger(zap.New(core).Sugar())).Detect(context.Background(), root)
	assert.Empty(t, result.Findings)
	assert.Equal(t, 1, result.Stats.ErrorsIgnored)
	assert.Equal(t, scoring.CleanConfidence, result.Confidence)

	entries := logs.FilterMessage("skipping artifact").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, CodeQuality, fields["expert"])
	assert.Equal(t, "flake8_report.json", fields["path"])
}

// brokenFS fails every read of the listed paths.
type brokenFS struct {
	artifact.FS
	broken map[string]bool
}

func (b brokenFS) Read(ctx context.Context, rel string) ([]byte, error) {
	if b.broken[rel] {
		return nil, artifact.Unreadable(rel, os.ErrPermission)
	}
	return b.FS.Read(ctx, rel)
}

func TestUnreadableArtifactIsSkipped(t *testing.T) {
	root := writeTree(t, map[string]string{
		"model_config.json": `{"model": "bert"}`,
		"training.log":      "epoch 3 failed\n",
	})
	open := func(root string) (artifact.FS, error) {
		fsys, err := artifact.NewOSFS(root)
		if err != nil {
			return nil, err
		}
		return brokenFS{FS: fsys, broken: map[string]bool{"model_config.json": true}}, nil
	}

	result := NewModelExpert(WithFS(open)).Detect(context.Background(), root)
	assert.Equal(t, []types.FindingKind{types.KindModelFailure}, kinds(result.Findings))
	assert.Equal(t, 1, result.Stats.ErrorsIgnored)
	assert.Equal(t, 1, result.Stats.ArtifactsRead)
}

func TestBuildRules(t *testing.T) {
	root := writeTree(t, map[string]string{
		"pyproject.toml": "[project]\nname = \"demo\"\n",
		"go.mod":         "module example.com/demo\n",
		"build.log":      "step 2: ERROR compiling module\n",
	})

	result := NewBuildExpert().Detect(context.Background(), root)
	assert.ElementsMatch(t, []string{
		"Missing build-system configuration",
		"Missing go directive in go.mod",
		"Build log contains error or failure messages",
	}, descriptions(result.Findings))
	assert.InDelta(t, 0.7, result.Confidence, 1e-9)
}

func TestBuildCleanProject(t *testing.T) {
	root := writeTree(t, map[string]string{
		"pyproject.toml": "[build-system]\nrequires = [\"hatchling\"]\n",
		"go.mod":         "module example.com/demo\n\ngo 1.22\n",
	})

	e := NewBuildExpert()
	metrics := e.QualityMetrics(context.Background(), root)
	assert.Equal(t, 0, metrics.IssuesFound)
	assert.Equal(t, 88.0, metrics.QualityScore)
	assert.Equal(t, "Build configuration appears sound based on existing files", metrics.Recommendations[0])
}

func TestDevOpsRules(t *testing.T) {
	root := writeTree(t, map[string]string{
		".github/workflows/ci.yml": "name: ci\npermissions:\n  contents: write\njobs: {}\n",
		".github/workflows/ok.yml": "name: ok\non: push\njobs: {}\n",
		"docker-compose.yml":       "services:\n  web:\n    image: nginx\n  agent:\n    image: agent\n    privileged: true\n",
		"k8s.yaml": `apiVersion: v1
kind: ConfigMap
---
apiVersion: apps/v1
kind: Deployment
spec:
  template:
    spec:
      containers:
        - name: api
          image: api:1
        - name: sidecar
          image: proxy:1
          resources:
            limits:
              cpu: "1"
`,
		"terraform.tf":        "provider \"aws\" {}\n",
		"cloudformation.yaml": "AWSTemplateFormatVersion: '2010-09-09'\n",
		"deployment.log":      "rollout failed\n",
	})

	result := NewDevOpsExpert().Detect(context.Background(), root)
	assert.ElementsMatch(t, []string{
		"Missing trigger configuration in GitHub Actions workflow",
		"Workflow has write permissions to repository contents",
		"Service 'agent' runs in privileged mode",
		"Container 'api' missing resource limits",
		"Terraform configuration missing region specification",
		"CloudFormation template missing Resources section",
		"Log file contains error or failure messages",
	}, descriptions(result.Findings))
}

func TestArchitectureRules(t *testing.T) {
	root := writeTree(t, map[string]string{
		"README.md":        "# Demo\n\nUsage: run it.\n",
		"docs/usage.md":    "how to use\n",
		"requirements.txt": "requests>=2.0\n",
		"go.mod":           "module example.com/demo\n\ngo 1.22\n\nreplace example.com/lib => ../lib\n",
	})

	result := NewArchitectureExpert().Detect(context.Background(), root)
	assert.ElementsMatch(t, []string{
		"README missing architecture/design section",
		"Docs directory missing architecture/design documentation",
		"Consider pinning dependency versions for reproducibility",
		"Replace directive points example.com/lib at local path ../lib",
	}, descriptions(result.Findings))

	for _, f := range result.Findings {
		if f.Location.Path == "go.mod" {
			assert.Equal(t, 5, f.Location.Line)
		}
	}
}

func TestArchitectureLocalReplace(t *testing.T) {
	root := writeTree(t, map[string]string{
		"go.mod": "module example.com/demo\n\ngo 1.22\n\nrequire example.com/lib v1.2.0\n\nreplace example.com/lib => ../lib\n\nreplace example.com/pinned => example.com/fork v1.0.0\n",
	})

	result := NewArchitectureExpert().Detect(context.Background(), root)
	require.Len(t, result.Findings, 1)
	f := result.Findings[0]
	assert.Equal(t, types.KindDependencyIssue, f.Kind)
	assert.Equal(t, types.PriorityMedium, f.Priority)
	assert.Equal(t, "Replace directive points example.com/lib at local path ../lib", f.Description)
	assert.Equal(t, types.Location{Path: "go.mod", Line: 7}, f.Location)
}

func TestArchitectureMissingInitFiles(t *testing.T) {
	root := writeTree(t, map[string]string{
		"src/pkg/__init__.py": "",
		"src/pkg/a.py":        "x = 1\n",
		"src/other/b.py":      "y = 2\n",
	})

	result := NewArchitectureExpert().Detect(context.Background(), root)
	assert.Equal(t, []string{"Some Python packages missing __init__.py files"}, descriptions(result.Findings))
}

func TestModelRules(t *testing.T) {
	root := writeTree(t, map[string]string{
		"model_config.json": `{"model": "bert-base", "layers": 12}`,
		"evaluation.log":    "eval error: nan loss\n",
	})

	e := NewModelExpert()
	result := e.Detect(context.Background(), root)
	assert.Equal(t, []types.FindingKind{types.KindModelConfigIssue, types.KindModelFailure}, kinds(result.Findings))

	fixes := e.SuggestFixes(result.Findings)
	require.Len(t, fixes, 2)
	assert.Equal(t, "Review and fix the model failures identified in logs", fixes[1].Detail)
	assert.Equal(t, types.PriorityHigh, fixes[1].Priority)
}

func TestMCPRules(t *testing.T) {
	root := writeTree(t, map[string]string{
		"mcp.yaml":       "mcp:\n  name: tools\n",
		"logs/app.log":   "ok\n",
		"mcp_server.log": "connection failed\n",
	})

	result := NewMCPExpert().Detect(context.Background(), root)
	assert.Equal(t, []string{
		"MCP configuration missing server/client specification",
		"MCP log contains error or failure messages",
	}, descriptions(result.Findings))
}

func TestMCPConfigWithServer(t *testing.T) {
	root := writeTree(t, map[string]string{
		"mcp_config.json": `{"mcp": {"server": {"command": "tools"}}}`,
	})

	result := NewMCPExpert().Detect(context.Background(), root)
	assert.Empty(t, result.Findings)
	assert.Equal(t, scoring.CleanConfidence, result.Confidence)
}

func descriptions(findings []types.Finding) []string {
	out := make([]string, 0, len(findings))
	for _, f := range findings {
		out = append(out, f.Description)
	}
	return out
}

func TestSuggestFixes(t *testing.T) {
	findings := []types.Finding{
		{Kind: types.KindSecurityVulnerability, Description: "key", Priority: types.PriorityLow, Pattern: "sk-x"},
		{Kind: types.KindSubprocessVulnerability, Description: "proc", Priority: types.PriorityMedium},
		{Kind: types.KindCoverageLow, Description: "not mine"},
	}

	fixes := NewSecurityExpert().SuggestFixes(findings)
	require.Len(t, fixes, 2)
	assert.Equal(t, types.PriorityHigh, fixes[0].Priority)
	assert.Equal(t, "# Replace: sk-x\n# With: os.getenv('CREDENTIAL_KEY')", fixes[0].Detail)
	assert.Equal(t, types.PriorityCritical, fixes[1].Priority)
	assert.Equal(t, findings[1], fixes[1].Finding)

	assert.Empty(t, NewSecurityExpert().SuggestFixes(nil))
	assert.NotNil(t, NewSecurityExpert().SuggestFixes(nil))
}

func TestSuggestFixesKeepsFindingPriority(t *testing.T) {
	fixes := NewArchitectureExpert().SuggestFixes([]types.Finding{
		{Kind: types.KindStructureIssue, Description: "layout", Priority: types.PriorityLow},
		{Kind: types.KindDependencyIssue, Description: "pins"},
	})
	require.Len(t, fixes, 2)
	assert.Equal(t, types.PriorityLow, fixes[0].Priority)
	assert.Equal(t, types.PriorityMedium, fixes[1].Priority)
	assert.Equal(t, "Fix dependency management", fixes[1].Remedy)
}

func TestAssessImpactRiskTypesAreNeverLow(t *testing.T) {
	for _, e := range Roster() {
		re := e.(*ruleExpert)
		for _, rt := range re.p.impact.riskTypes {
			t.Run(fmt.Sprintf("%s/%s", e.Name(), rt), func(t *testing.T) {
				report := e.AssessImpact([]types.Change{{Type: rt}})
				assert.GreaterOrEqual(t, report.RiskLevel.Rank(), types.RiskHigh.Rank())
				require.NotEmpty(t, report.Risks)
				assert.True(t, strings.HasPrefix(report.Risks[0], "Risk: "+string(rt)+" may "))
				assert.Equal(t, e.Name(), report.Domain)
				assert.NotEmpty(t, report.Recommendations)
			})
		}
	}
}

func TestAssessImpactBenefitsStayLow(t *testing.T) {
	report := NewTestExpert().AssessImpact([]types.Change{{Type: "test_addition"}, {Type: "unrelated"}})
	assert.Equal(t, types.RiskLow, report.RiskLevel)
	assert.Empty(t, report.Risks)
	assert.Equal(t, []string{"Benefit: test_addition improves test quality"}, report.Benefits)
	assert.Equal(t, "test_quality_assessment", report.QualityImpact)
}

func TestAssessImpactContent(t *testing.T) {
	tests := []struct {
		name   string
		expert Expert
		change types.Change
		want   types.RiskLevel
	}{
		{"credential", NewSecurityExpert(), types.Change{Content: "API_TOKEN = 'abc'"}, types.RiskHigh},
		{"exec", NewSecurityExpert(), types.Change{Content: "os.system('rm')"}, types.RiskCritical},
		{"typed and exec", NewSecurityExpert(), types.Change{Type: "dependency_change", Content: "eval(x)"}, types.RiskCritical},
		{"todo", NewCodeQualityExpert(), types.Change{Content: "# TODO: remove"}, types.RiskMedium},
		{"wildcard", NewCodeQualityExpert(), types.Change{Content: "from os import *"}, types.RiskMedium},
		{"large", NewCodeQualityExpert(), types.Change{Content: strings.Repeat("x = 1\n", 12)}, types.RiskMedium},
		{"plain", NewCodeQualityExpert(), types.Change{Content: "x = 1"}, types.RiskLow},
		{"empty", NewBuildExpert(), types.Change{}, types.RiskLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := tt.expert.AssessImpact([]types.Change{tt.change})
			assert.Equal(t, tt.want, report.RiskLevel)
			if tt.want != types.RiskLow {
				assert.NotEmpty(t, report.Risks)
			}
		})
	}
}

func TestScoreBuckets(t *testing.T) {
	e := NewSecurityExpert().(Scorer)
	withFindings := func(n int) types.ExpertResult {
		r := types.ExpertResult{ArtifactsFound: 3}
		for i := 0; i < n; i++ {
			r.Findings = append(r.Findings, types.Finding{Kind: types.KindSecurityVulnerability, Priority: types.PriorityLow})
		}
		return r
	}

	tests := []struct {
		name   string
		result types.ExpertResult
		want   float64
	}{
		{"no evidence", types.ExpertResult{}, 0},
		{"clean", withFindings(0), 100},
		{"minor", withFindings(3), 80},
		{"moderate", withFindings(7), 55},
		{"major", withFindings(8), 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := e.ScoreResult(tt.result)
			assert.Equal(t, tt.want, m.QualityScore)
			assert.Equal(t, len(tt.result.Findings), m.TotalIssues)
		})
	}
}

func TestOverrides(t *testing.T) {
	curve := scoring.NewCurve(50, 40, 30, 10)
	e := NewMCPExpert(WithCurve(curve), WithWeight(4))
	assert.Equal(t, 4.0, e.MetricWeight())
	assert.Equal(t, curve, e.(*ruleExpert).Curve())

	assert.Equal(t, 1.1, NewMCPExpert(WithWeight(0)).MetricWeight())
}

func TestRuleIsolation(t *testing.T) {
	p := profile{
		name:     "isolated",
		metric:   "isolated_quality",
		weight:   1,
		curve:    scoring.NewCurve(100, 80, 60, 40),
		discover: func(*scan) []string { return []string{"x"} },
		rules: []rule{
			{name: "boom", run: func(context.Context, *scan) { panic("bad rule") }},
			{name: "ok", run: func(_ context.Context, s *scan) {
				s.add(types.Finding{Kind: types.KindLogAnalysis, Description: "found"})
			}},
		},
	}
	e := newRuleExpert(p, nil)

	result := e.Detect(context.Background(), t.TempDir())
	require.Len(t, result.Findings, 1)
	assert.Equal(t, types.PriorityMedium, result.Findings[0].Priority)
	assert.Equal(t, 1, result.Stats.ErrorsIgnored)
}

func TestCancelledContextStopsRules(t *testing.T) {
	root := writeTree(t, map[string]string{"run.py": "import subprocess\n"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := NewSecurityExpert().Detect(ctx, root)
	assert.Empty(t, result.Findings)
}

func TestRecommendations(t *testing.T) {
	recs := Recommendations(context.Background(), NewDevOpsExpert(), t.TempDir())
	assert.Equal(t, "No existing CI/CD configuration found", recs[0])
}

func TestRoster(t *testing.T) {
	roster := Roster()
	require.Len(t, roster, 8)

	seen := map[string]bool{}
	for _, e := range roster {
		assert.False(t, seen[e.Name()], "duplicate expert %s", e.Name())
		seen[e.Name()] = true
		assert.Greater(t, e.MetricWeight(), 0.0)
		assert.NoError(t, e.(*ruleExpert).Curve().Validate())
	}
	assert.Equal(t, Names(), func() []string {
		var out []string
		for _, e := range roster {
			out = append(out, e.Name())
		}
		return out
	}())

	e, err := New(DevOps)
	require.NoError(t, err)
	assert.Equal(t, "operational_quality", e.MetricName())

	_, err = New("frontend")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown expert "frontend"`)
}

func TestValidateFindings(t *testing.T) {
	v := ValidateFindings([]types.Finding{
		{Kind: types.KindBuildFailure, Description: "ok", Priority: types.PriorityHigh},
		{Description: "no kind"},
		{Kind: types.KindBuildFailure, Description: "bad priority", Priority: "urgent"},
		{Kind: types.KindBuildFailure, Description: "bad line", Location: types.Location{Path: "a", Line: -1}},
	})
	assert.False(t, v.OK())
	require.Len(t, v.Valid, 1)
	require.Len(t, v.Invalid, 3)
	assert.Contains(t, v.Invalid[0].Error(), "finding 1")

	assert.True(t, ValidateFindings(nil).OK())
}
