package types

import (
	"fmt"
	"strings"
)

// Priority ranks how urgently a finding needs attention.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// IsValid checks if the priority value is valid
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Normalize returns the priority used for scoring. A missing or
// unrecognized priority counts as medium.
func (p Priority) Normalize() Priority {
	if p.IsValid() {
		return p
	}
	return PriorityMedium
}

// Rank orders priorities from 1 (low) to 4 (critical).
func (p Priority) Rank() int {
	switch p.Normalize() {
	case PriorityLow:
		return 1
	case PriorityHigh:
		return 3
	case PriorityCritical:
		return 4
	}
	return 2
}

// ParsePriority converts user input such as "HIGH" into a Priority.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("invalid priority: %q", s)
	}
	return p, nil
}

// Priorities lists every priority from most to least severe.
func Priorities() []Priority {
	return []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}
}

// FindingKind is the category tag of a finding. Each expert owns a
// fixed vocabulary of kinds.
type FindingKind string

const (
	// security
	KindSecurityVulnerability   FindingKind = "security_vulnerability"
	KindSubprocessVulnerability FindingKind = "subprocess_vulnerability"

	// code quality
	KindCodeQualityIssue     FindingKind = "code_quality_issue"
	KindFormattingConfig     FindingKind = "formatting_config"
	KindTypeCheckingConfig   FindingKind = "type_checking_config"
	KindCIQualityIntegration FindingKind = "ci_quality_integration"

	// build
	KindBuildConfigIssue FindingKind = "build_config_issue"
	KindBuildFailure     FindingKind = "build_failure"

	// tests
	KindTestConfigIssue FindingKind = "test_config_issue"
	KindTestFailure     FindingKind = "test_failure"
	KindTestSkipped     FindingKind = "test_skipped"
	KindCoverageLow     FindingKind = "coverage_low"
	KindCoverageReport  FindingKind = "coverage_report"

	// devops
	KindCIConfigIssue       FindingKind = "ci_config_issue"
	KindSecurityIssue       FindingKind = "security_issue"
	KindDeploymentIssue     FindingKind = "deployment_issue"
	KindInfrastructureIssue FindingKind = "infrastructure_issue"
	KindLogAnalysis         FindingKind = "log_analysis"

	// architecture
	KindDocumentationIssue FindingKind = "documentation_issue"
	KindStructureIssue     FindingKind = "structure_issue"
	KindDependencyIssue    FindingKind = "dependency_issue"

	// model
	KindModelConfigIssue FindingKind = "model_config_issue"
	KindModelFailure     FindingKind = "model_failure"

	// mcp
	KindMCPConfigIssue FindingKind = "mcp_config_issue"
	KindMCPFailure     FindingKind = "mcp_failure"
)

// SourceKind records what sort of artifact produced a finding.
type SourceKind string

const (
	SourceConfig    SourceKind = "config"
	SourceLogs      SourceKind = "logs"
	SourceOutput    SourceKind = "output"
	SourceStructure SourceKind = "structure"
	SourceDocs      SourceKind = "docs"
	SourceCode      SourceKind = "source"
)

// Location points into an artifact. Line and Column are 1-based; zero
// means unknown.
type Location struct {
	Path   string `json:"path"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

// String renders the location as path[:line[:column]].
func (l Location) String() string {
	switch {
	case l.Line > 0 && l.Column > 0:
		return fmt.Sprintf("%s:%d:%d", l.Path, l.Line, l.Column)
	case l.Line > 0:
		return fmt.Sprintf("%s:%d", l.Path, l.Line)
	}
	return l.Path
}

// Origin identifies the tool and artifact type that produced a finding.
type Origin struct {
	Tool   string     `json:"tool,omitempty"`
	Source SourceKind `json:"source"`
}

// Finding is a single detected issue.
type Finding struct {
	Kind        FindingKind `json:"kind"`
	Location    Location    `json:"location"`
	Description string      `json:"description"`
	Priority    Priority    `json:"priority"`
	Origin      Origin      `json:"origin"`
	Pattern     string      `json:"pattern,omitempty"` // rule or regex that matched
	Code        string      `json:"code,omitempty"`    // tool rule code, e.g. E501
}

// Validate checks if the finding has valid field values
func (f *Finding) Validate() error {
	if f.Kind == "" {
		return fmt.Errorf("kind is required")
	}
	if f.Priority != "" && !f.Priority.IsValid() {
		return fmt.Errorf("invalid priority: %s", f.Priority)
	}
	if f.Location.Line < 0 || f.Location.Column < 0 {
		return fmt.Errorf("location %s has negative position", f.Location.Path)
	}
	if strings.TrimSpace(f.Description) == "" {
		return fmt.Errorf("description is required")
	}
	return nil
}

// Fix is a suggested remediation for one finding.
type Fix struct {
	Finding  Finding    `json:"finding"`
	Remedy   string     `json:"remedy"`
	Detail   string     `json:"detail,omitempty"`
	Priority Priority   `json:"priority"`
	Source   SourceKind `json:"source"`
}

// CheckStats tracks what happened during one detection pass.
type CheckStats struct {
	ArtifactsRead int `json:"artifacts_read"`
	ErrorsIgnored int `json:"errors_ignored"`
}

// ExpertResult is the output of one detection pass.
type ExpertResult struct {
	Findings        []Finding  `json:"findings"`
	Confidence      float64    `json:"confidence"`
	Recommendations []string   `json:"recommendations"`
	ArtifactsFound  int        `json:"artifacts_found"`
	Stats           CheckStats `json:"stats"`
}

// HasEvidence reports whether any artifacts were discovered.
func (r ExpertResult) HasEvidence() bool {
	return r.ArtifactsFound > 0
}

// SeverityCounts tallies findings by normalized priority.
func SeverityCounts(findings []Finding) map[Priority]int {
	counts := make(map[Priority]int, 4)
	for _, f := range findings {
		counts[f.Priority.Normalize()]++
	}
	return counts
}

// QualityMetrics is an expert's scored view of a project.
// The field set is identical for every expert.
type QualityMetrics struct {
	Metric          string           `json:"metric"`
	Weight          float64          `json:"weight"`
	QualityScore    float64          `json:"quality_score"`
	IssuesFound     int              `json:"issues_found"`
	TotalIssues     int              `json:"total_issues"`
	Confidence      float64          `json:"confidence"`
	Recommendations []string         `json:"recommendations"`
	ArtifactsFound  int              `json:"artifacts_found"`
	SeverityCounts  map[Priority]int `json:"severity_counts"`
	RiskScore       float64          `json:"risk_score"`
}
