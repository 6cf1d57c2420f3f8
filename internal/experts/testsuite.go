package experts

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/steveyegge/clewcrew/internal/artifact"
	"github.com/steveyegge/clewcrew/internal/scoring"
	"github.com/steveyegge/clewcrew/internal/types"
)

const coverageTarget = 0.8

var testConfigs = []string{"pytest.ini", "pyproject.toml", "setup.cfg", "tox.ini", ".coveragerc", "coverage.ini"}

var testOutputs = []string{"coverage.xml", "htmlcov", ".coverage", "test-results.xml", "junit.xml", "test-report.xml"}

var junitReports = []string{"test-results.xml", "junit.xml", "test-report.xml"}

// NewTestExpert creates the expert for test configuration, test results
// and coverage reports.
func NewTestExpert(opts ...Option) Expert {
	return newRuleExpert(profile{
		name:   Test,
		metric: "test_coverage",
		weight: 1.5,
		curve:  scoring.NewCurve(95, 80, 60, 30),
		discover: func(s *scan) []string {
			found := s.existing(testConfigs...)
			found = append(found, s.existing(testOutputs...)...)
			return append(found, s.glob("tests/**/*.py", "test/**/*.py", "**/*_test.go")...)
		},
		rules: []rule{
			{name: "pytest_config", run: checkPytestConfig},
			{name: "junit_results", run: checkJUnitResults},
			{name: "coverage_xml", run: checkCoverageXML},
			{name: "coverage_html", run: checkCoverageHTML},
		},
		fixes: map[types.FindingKind]fixTemplate{
			types.KindTestConfigIssue: {
				remedy: "Fix test configuration",
				source: types.SourceConfig,
			},
			types.KindTestFailure: {
				remedy: "Fix failing tests",
				source: types.SourceOutput,
				detail: func(types.Finding) string { return "Review and fix the failing tests identified in results" },
			},
			types.KindCoverageLow: {
				remedy: "Improve test coverage",
				source: types.SourceOutput,
				detail: func(f types.Finding) string { return "Add more tests to reach " + f.Description },
			},
		},
		impact: impactProfile{
			tag:          "test_quality_assessment",
			riskTypes:    []types.ChangeType{"test_removal", "test_config_change", "coverage_threshold_change"},
			benefitTypes: []types.ChangeType{"test_addition", "test_improvement"},
			affects:      "reduce test coverage",
			improves:     "test quality",
			advice: []string{
				"Review changes for test coverage impact",
				"Ensure tests remain comprehensive after changes",
				"Consider adding tests for new functionality",
				"Maintain test configuration consistency",
			},
		},
		noEvidenceAdvice: []string{
			"No existing test configuration found",
			"Consider setting up pytest with proper configuration",
			"Implement test coverage reporting",
			"Set up automated testing in CI/CD pipeline",
		},
		issueAdvice: []string{
			"Review and fix test configuration issues",
			"Address failing tests identified in outputs",
			"Improve test coverage based on reports",
			"Ensure tests are properly integrated in CI/CD",
			"Consider adding more comprehensive test suites",
		},
		cleanAdvice: []string{
			"Test configuration appears sound based on existing files",
			"Continue monitoring test performance and coverage",
			"Consider implementing advanced testing strategies",
			"Add performance and load testing if applicable",
		},
	}, opts)
}

func checkPytestConfig(ctx context.Context, s *scan) {
	for _, rel := range s.files("pytest.ini", "pyproject.toml") {
		data, ok := s.read(ctx, rel)
		if !ok || !artifact.ContainsFold(data, "pytest") {
			continue
		}
		if !bytes.Contains(data, []byte("testpaths")) && !bytes.Contains(data, []byte("python_files")) {
			s.add(types.Finding{
				Kind:        types.KindTestConfigIssue,
				Location:    types.Location{Path: rel},
				Description: "Pytest configuration missing test discovery settings",
				Priority:    types.PriorityMedium,
				Origin:      types.Origin{Tool: "pytest", Source: types.SourceConfig},
			})
		}
		if !bytes.Contains(data, []byte("cov")) && !bytes.Contains(data, []byte("coverage")) {
			s.add(types.Finding{
				Kind:        types.KindTestConfigIssue,
				Location:    types.Location{Path: rel},
				Description: "Pytest configuration missing coverage settings",
				Priority:    types.PriorityLow,
				Origin:      types.Origin{Tool: "pytest", Source: types.SourceConfig},
			})
		}
	}
}

func checkJUnitResults(ctx context.Context, s *scan) {
	for _, rel := range s.files(junitReports...) {
		data, ok := s.read(ctx, rel)
		if !ok {
			continue
		}
		counts, err := countElements(data, "failure", "error", "skipped")
		if err != nil {
			s.ignore(rel, artifact.Unparsable(rel, err))
			continue
		}

		if failed := counts["failure"] + counts["error"]; failed > 0 {
			s.add(types.Finding{
				Kind:        types.KindTestFailure,
				Location:    types.Location{Path: rel},
				Description: fmt.Sprintf("Found %d test failures in results", failed),
				Priority:    types.PriorityHigh,
				Origin:      types.Origin{Tool: "test_results", Source: types.SourceOutput},
			})
		}
		if skipped := counts["skipped"]; skipped > 0 {
			s.add(types.Finding{
				Kind:        types.KindTestSkipped,
				Location:    types.Location{Path: rel},
				Description: fmt.Sprintf("Found %d skipped tests", skipped),
				Priority:    types.PriorityMedium,
				Origin:      types.Origin{Tool: "test_results", Source: types.SourceOutput},
			})
		}
	}
}

// countElements tallies start elements by local name anywhere in the document.
func countElements(data []byte, names ...string) (map[string]int, error) {
	counts := make(map[string]int, len(names))
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	dec := xml.NewDecoder(bytes.NewReader(data))
	sawRoot := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if se, ok := tok.(xml.StartElement); ok {
			sawRoot = true
			if want[se.Name.Local] {
				counts[se.Name.Local]++
			}
		}
	}
	if !sawRoot {
		return nil, fmt.Errorf("no root element")
	}
	return counts, nil
}

func checkCoverageXML(ctx context.Context, s *scan) {
	if len(s.files("coverage.xml")) == 0 {
		return
	}
	data, ok := s.read(ctx, "coverage.xml")
	if !ok {
		return
	}
	rate, found, err := coverageLineRate(data)
	if err != nil {
		s.ignore("coverage.xml", artifact.Unparsable("coverage.xml", err))
		return
	}
	if found && rate < coverageTarget {
		s.add(lowCoverage("coverage.xml", rate))
	}
}

// coverageLineRate returns the line-rate of the first <coverage> element,
// whether it is the document root or nested.
func coverageLineRate(data []byte) (float64, bool, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return 0, false, nil
		}
		if err != nil {
			return 0, false, err
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "coverage" {
			continue
		}
		for _, attr := range se.Attr {
			if attr.Name.Local == "line-rate" {
				rate, err := strconv.ParseFloat(strings.TrimSpace(attr.Value), 64)
				if err != nil {
					return 0, false, fmt.Errorf("invalid line-rate %q: %w", attr.Value, err)
				}
				return rate, true, nil
			}
		}
		return 0, true, nil
	}
}

func lowCoverage(rel string, rate float64) types.Finding {
	return types.Finding{
		Kind:        types.KindCoverageLow,
		Location:    types.Location{Path: rel},
		Description: fmt.Sprintf("Test coverage is %.1f%%, below recommended %d%%", rate*100, int(coverageTarget*100)),
		Priority:    types.PriorityMedium,
		Origin:      types.Origin{Tool: "coverage", Source: types.SourceOutput},
	}
}

func checkCoverageHTML(ctx context.Context, s *scan) {
	const index = "htmlcov/index.html"
	if len(s.files(index)) == 0 {
		return
	}
	data, ok := s.read(ctx, index)
	if !ok || !artifact.ContainsFold(data, "coverage") {
		return
	}

	s.add(types.Finding{
		Kind:        types.KindCoverageReport,
		Location:    types.Location{Path: index},
		Description: "HTML coverage report available for review",
		Priority:    types.PriorityLow,
		Origin:      types.Origin{Tool: "coverage", Source: types.SourceOutput},
	})

	if pct, ok := htmlCoveragePercent(data); ok && pct/100 < coverageTarget {
		s.add(lowCoverage(index, pct/100))
	}
}

// htmlCoveragePercent reads the total from coverage.py's report, which
// renders it as <span class="pc_cov">NN%</span>.
func htmlCoveragePercent(data []byte) (float64, bool) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return 0, false
	}

	var text string
	var find func(*html.Node) bool
	find = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "span" && hasClass(n, "pc_cov") {
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				text = n.FirstChild.Data
			}
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if find(c) {
				return true
			}
		}
		return false
	}
	if !find(doc) {
		return 0, false
	}

	pct, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(text), "%"), 64)
	if err != nil {
		return 0, false
	}
	return pct, true
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key == "class" {
			for _, c := range strings.Fields(a.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}
