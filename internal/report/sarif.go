package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/steveyegge/clewcrew/internal/types"
)

// ToolName and ToolVersion identify the SARIF driver. The CLI overrides
// ToolVersion at build time.
var (
	ToolName    = "clewcrew"
	ToolVersion = "dev"
)

const sarifSchema = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"

type Log struct {
	Version string `json:"version"`
	Schema  string `json:"$schema"`
	Runs    []Run  `json:"runs"`
}

type Run struct {
	Tool    Tool     `json:"tool"`
	Results []Result `json:"results"`
}

type Tool struct {
	Driver Driver `json:"driver"`
}

type Driver struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Rules   []Rule `json:"rules,omitempty"`
}

type Rule struct {
	ID               string  `json:"id"`
	ShortDescription Message `json:"shortDescription"`
}

type Result struct {
	RuleID     string         `json:"ruleId"`
	Message    Message        `json:"message"`
	Level      string         `json:"level"` // error, warning, note
	Locations  []Location     `json:"locations"`
	Properties map[string]any `json:"properties,omitempty"`
}

type Message struct {
	Text string `json:"text"`
}

type Location struct {
	PhysicalLocation PhysicalLocation `json:"physicalLocation"`
}

type PhysicalLocation struct {
	ArtifactLocation ArtifactLocation `json:"artifactLocation"`
	Region           Region           `json:"region"`
}

type ArtifactLocation struct {
	URI string `json:"uri"`
}

type Region struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn,omitempty"`
}

// BuildSARIF converts every finding in the report into a single SARIF run.
// Rule IDs are "<expert>/<kind>".
func BuildSARIF(r *types.Report) Log {
	results := []Result{}
	var rules []Rule
	seen := map[string]bool{}

	for _, d := range r.Domains {
		findings := append([]types.Finding(nil), d.Findings...)
		types.SortFindings(findings)
		for _, f := range findings {
			ruleID := d.Expert + "/" + string(f.Kind)
			if !seen[ruleID] {
				seen[ruleID] = true
				rules = append(rules, Rule{
					ID:               ruleID,
					ShortDescription: Message{Text: strings.ReplaceAll(string(f.Kind), "_", " ")},
				})
			}

			uri := toURI(f.Location.Path)
			if uri == "" {
				uri = "UNKNOWN"
			}
			start := f.Location.Line
			if start <= 0 {
				start = 1
			}

			props := map[string]any{"priority": string(f.Priority.Normalize())}
			if f.Code != "" {
				props["code"] = f.Code
			}
			if f.Origin.Tool != "" {
				props["tool"] = f.Origin.Tool
			}

			results = append(results, Result{
				RuleID:  ruleID,
				Level:   priorityToLevel(f.Priority),
				Message: Message{Text: strings.TrimSpace(f.Description)},
				Locations: []Location{{
					PhysicalLocation: PhysicalLocation{
						ArtifactLocation: ArtifactLocation{URI: uri},
						Region:           Region{StartLine: start, StartColumn: f.Location.Column},
					},
				}},
				Properties: props,
			})
		}
	}

	return Log{
		Version: "2.1.0",
		Schema:  sarifSchema,
		Runs: []Run{{
			Tool:    Tool{Driver: Driver{Name: ToolName, Version: ToolVersion, Rules: rules}},
			Results: results,
		}},
	}
}

// SARIF renders a report as a SARIF 2.1.0 document.
func SARIF(r *types.Report) ([]byte, error) {
	data, err := JSON(BuildSARIF(r))
	if err != nil {
		return nil, fmt.Errorf("marshal sarif: %w", err)
	}
	return data, nil
}

// WriteFile writes rendered output, creating parent directories.
func WriteFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func priorityToLevel(p types.Priority) string {
	switch p.Normalize() {
	case types.PriorityCritical, types.PriorityHigh:
		return "error"
	case types.PriorityMedium:
		return "warning"
	default:
		return "note"
	}
}

func toURI(p string) string {
	p = strings.TrimSpace(p)
	p = filepath.ToSlash(p)
	for strings.HasPrefix(p, "../") {
		p = strings.TrimPrefix(p, "../")
	}
	return strings.TrimPrefix(p, "./")
}
