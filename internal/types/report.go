package types

import (
	"sort"
	"time"
)

// DomainReport is one expert's section of a full-project report.
type DomainReport struct {
	Expert   string         `json:"expert"`
	Metrics  QualityMetrics `json:"metrics"`
	Findings []Finding      `json:"findings"`
	Fixes    []Fix          `json:"fixes"`
	Stats    CheckStats     `json:"stats"`
	TimedOut bool           `json:"timed_out,omitempty"`
	Duration time.Duration  `json:"duration_ns"`
}

// Report is the aggregated result of running the expert roster once.
type Report struct {
	RunID        string         `json:"run_id"`
	Root         string         `json:"root"`
	GeneratedAt  time.Time      `json:"generated_at"`
	Domains      []DomainReport `json:"domains"`
	Composite    float64        `json:"composite_score"`
	HasComposite bool           `json:"has_composite"`
	Notes        []string       `json:"notes,omitempty"`
}

// Findings returns every finding in the report in a stable order.
func (r *Report) Findings() []Finding {
	var all []Finding
	for _, d := range r.Domains {
		all = append(all, d.Findings...)
	}
	SortFindings(all)
	return all
}

// TotalIssues sums issue counts across domains.
func (r *Report) TotalIssues() int {
	total := 0
	for _, d := range r.Domains {
		total += d.Metrics.IssuesFound
	}
	return total
}

// SortFindings orders findings by path, line, then kind.
func SortFindings(fs []Finding) {
	sort.SliceStable(fs, func(i, j int) bool {
		if fs[i].Location.Path == fs[j].Location.Path {
			if fs[i].Location.Line == fs[j].Location.Line {
				return fs[i].Kind < fs[j].Kind
			}
			return fs[i].Location.Line < fs[j].Location.Line
		}
		return fs[i].Location.Path < fs[j].Location.Path
	})
}
