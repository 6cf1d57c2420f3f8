// Package report renders coordinator output for people and tools.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/steveyegge/clewcrew/internal/types"
)

// Format names an output encoding.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatSARIF    Format = "sarif"
)

// ParseFormat validates a user-supplied format name. "md" is accepted
// as shorthand for markdown.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatMarkdown, FormatSARIF:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	case "":
		return FormatText, nil
	}
	return "", fmt.Errorf("unknown format %q (want text, json, markdown or sarif)", s)
}

// Render writes r to w in a machine format. Text output is produced by
// the CLI, which owns terminal styling.
func Render(w io.Writer, f Format, r *types.Report) error {
	var data []byte
	var err error
	switch f {
	case FormatJSON:
		data, err = JSON(r)
	case FormatMarkdown:
		data = []byte(Markdown(r))
	case FormatSARIF:
		data, err = SARIF(r)
	default:
		return fmt.Errorf("format %q cannot be rendered here", f)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// JSON renders any report value as indented JSON with a trailing newline.
func JSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding json: %w", err)
	}
	return append(data, '\n'), nil
}

// Markdown renders a report as a summary table followed by findings
// grouped by priority.
func Markdown(r *types.Report) string {
	var b strings.Builder
	b.WriteString("# Quality Report\n\n")
	fmt.Fprintf(&b, "- Root: `%s`\n", r.Root)
	fmt.Fprintf(&b, "- Run: `%s`\n", r.RunID)
	if !r.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "- Generated: %s\n", r.GeneratedAt.Format("2006-01-02 15:04:05 UTC"))
	}
	if r.HasComposite {
		fmt.Fprintf(&b, "- Composite score: **%.1f**\n", r.Composite)
	} else {
		b.WriteString("- Composite score: n/a\n")
	}
	fmt.Fprintf(&b, "- Issues: %d\n\n", r.TotalIssues())

	b.WriteString("| Expert | Score | Weight | Issues | Confidence |\n")
	b.WriteString("|---|---:|---:|---:|---:|\n")
	for _, d := range r.Domains {
		name := d.Expert
		if d.TimedOut {
			name += " (incomplete)"
		}
		fmt.Fprintf(&b, "| %s | %.1f | %.1f | %d | %.2f |\n",
			name, d.Metrics.QualityScore, d.Metrics.Weight, d.Metrics.IssuesFound, d.Metrics.Confidence)
	}

	findings := byPriority(r)
	if len(findings) == 0 {
		b.WriteString("\nNo findings.\n")
	}
	for _, p := range types.Priorities() {
		group := findings[p]
		if len(group) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n## %s (%d)\n\n", strings.ToUpper(string(p)), len(group))
		for _, f := range group {
			fmt.Fprintf(&b, "- **%s** `%s`: %s\n", f.expert, f.Location, escapePipes(f.Description))
		}
	}

	if fixes := allFixes(r); len(fixes) > 0 {
		b.WriteString("\n## Suggested fixes\n\n")
		for _, fx := range fixes {
			fmt.Fprintf(&b, "- [%s] %s (`%s`)", fx.Priority, fx.Remedy, fx.Finding.Location)
			if fx.Detail != "" {
				fmt.Fprintf(&b, ": %s", fx.Detail)
			}
			b.WriteString("\n")
		}
	}

	if len(r.Notes) > 0 {
		b.WriteString("\n## Notes\n\n")
		for _, n := range r.Notes {
			fmt.Fprintf(&b, "- %s\n", n)
		}
	}
	return b.String()
}

// ImpactMarkdown renders a composite impact assessment.
func ImpactMarkdown(c types.CompositeImpact) string {
	var b strings.Builder
	b.WriteString("# Change Impact\n\n")
	fmt.Fprintf(&b, "Overall risk: **%s**\n", c.Overall)

	writeList := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&b, "\n## %s\n\n", title)
		for _, item := range items {
			fmt.Fprintf(&b, "- %s\n", item)
		}
	}
	writeList("Risks", c.Risks)
	writeList("Benefits", c.Benefits)

	b.WriteString("\n| Domain | Risk | Impact |\n|---|---|---|\n")
	for _, ir := range c.Reports {
		fmt.Fprintf(&b, "| %s | %s | %s |\n", ir.Domain, ir.RiskLevel, escapePipes(ir.QualityImpact))
	}
	return b.String()
}

type attributed struct {
	types.Finding
	expert string
}

func byPriority(r *types.Report) map[types.Priority][]attributed {
	out := make(map[types.Priority][]attributed)
	for _, d := range r.Domains {
		for _, f := range d.Findings {
			p := f.Priority.Normalize()
			out[p] = append(out[p], attributed{Finding: f, expert: d.Expert})
		}
	}
	for _, group := range out {
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].Location.Path != group[j].Location.Path {
				return group[i].Location.Path < group[j].Location.Path
			}
			return group[i].Location.Line < group[j].Location.Line
		})
	}
	return out
}

func allFixes(r *types.Report) []types.Fix {
	var fixes []types.Fix
	for _, d := range r.Domains {
		fixes = append(fixes, d.Fixes...)
	}
	sort.SliceStable(fixes, func(i, j int) bool {
		return fixes[i].Priority.Rank() > fixes[j].Priority.Rank()
	})
	return fixes
}

func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
