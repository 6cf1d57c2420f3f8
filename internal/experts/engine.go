package experts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/steveyegge/clewcrew/internal/artifact"
	"github.com/steveyegge/clewcrew/internal/scoring"
	"github.com/steveyegge/clewcrew/internal/types"
)

// profile holds everything that distinguishes one domain from another.
// The engine itself is shared by every expert.
type profile struct {
	name   string
	metric string
	weight float64
	curve  scoring.Curve

	// discover lists the artifacts that count as evidence for the domain.
	discover func(s *scan) []string
	rules    []rule
	fixes    map[types.FindingKind]fixTemplate

	impact impactProfile

	noEvidenceAdvice []string
	issueAdvice      []string
	cleanAdvice      []string
}

// rule is one detection pass over the project's artifacts.
type rule struct {
	name string
	run  func(ctx context.Context, s *scan)
}

type fixTemplate struct {
	remedy string
	source types.SourceKind

	// priority overrides the finding's own priority when set.
	priority types.Priority

	// detail renders the long description; nil reuses the finding's description.
	detail func(f types.Finding) string
}

// scan is the per-invocation state threaded through rules.
type scan struct {
	expert   string
	fsys     artifact.FS
	logger   *zap.SugaredLogger
	findings []types.Finding
	stats    types.CheckStats
}

// read returns an artifact's contents. Failures are logged and counted.
func (s *scan) read(ctx context.Context, rel string) ([]byte, bool) {
	data, err := s.fsys.Read(ctx, rel)
	if err != nil {
		s.ignore(rel, err)
		return nil, false
	}
	s.stats.ArtifactsRead++
	return data, true
}

// config reads and decodes a structured artifact.
func (s *scan) config(ctx context.Context, rel string) (map[string]any, bool) {
	data, ok := s.read(ctx, rel)
	if !ok {
		return nil, false
	}
	m, err := artifact.ParseConfig(rel, data)
	if err != nil {
		s.ignore(rel, err)
		return nil, false
	}
	return m, true
}

func (s *scan) ignore(rel string, err error) {
	s.stats.ErrorsIgnored++
	s.logger.Warnw("skipping artifact", "expert", s.expert, "path", rel, "error", err)
}

// existing filters candidate paths down to those present on disk.
func (s *scan) existing(candidates ...string) []string {
	var out []string
	for _, c := range candidates {
		if s.fsys.Exists(c) {
			out = append(out, c)
		}
	}
	return out
}

// files returns regular files among the candidates.
func (s *scan) files(candidates ...string) []string {
	return artifact.Files(s.fsys, s.existing(candidates...))
}

// glob expands patterns, logging bad ones.
func (s *scan) glob(patterns ...string) []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range patterns {
		matches, err := s.fsys.Glob(p)
		if err != nil {
			s.logger.Warnw("glob failed", "expert", s.expert, "pattern", p, "error", err)
			continue
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out
}

// under expands dirs that exist with the given file globs ("*.yml" etc.).
func (s *scan) under(dirs []string, exts ...string) []string {
	var patterns []string
	for _, d := range dirs {
		if !s.fsys.IsDir(d) {
			continue
		}
		for _, ext := range exts {
			patterns = append(patterns, strings.TrimSuffix(d, "/")+"/**/"+ext)
		}
	}
	return artifact.Files(s.fsys, s.glob(patterns...))
}

func (s *scan) add(f types.Finding) {
	if f.Priority == "" {
		f.Priority = types.PriorityMedium
	}
	s.findings = append(s.findings, f)
}

// checkLogsFor builds a rule that reports template once for every listed log
// that mentions an error or failure.
func checkLogsFor(logs []string, template types.Finding) func(context.Context, *scan) {
	return func(ctx context.Context, s *scan) {
		for _, rel := range s.files(logs...) {
			data, ok := s.read(ctx, rel)
			if !ok || !artifact.MentionsFailure(data) {
				continue
			}
			f := template
			f.Location = types.Location{Path: rel}
			s.add(f)
		}
	}
}

// ruleExpert is the Expert implementation shared by every domain.
type ruleExpert struct {
	p        profile
	settings settings
}

func newRuleExpert(p profile, opts []Option) *ruleExpert {
	st := newSettings(opts)
	if st.curve != nil {
		p.curve = *st.curve
	}
	if st.weight > 0 {
		p.weight = st.weight
	}
	return &ruleExpert{p: p, settings: st}
}

// Name implements Expert.
func (e *ruleExpert) Name() string {
	return e.p.name
}

// MetricName implements Expert.
func (e *ruleExpert) MetricName() string {
	return e.p.metric
}

// MetricWeight implements Expert.
func (e *ruleExpert) MetricWeight() float64 {
	return e.p.weight
}

// Curve returns the score curve in effect.
func (e *ruleExpert) Curve() scoring.Curve {
	return e.p.curve
}

// Detect implements Expert.
func (e *ruleExpert) Detect(ctx context.Context, root string) types.ExpertResult {
	fsys, err := e.settings.openFS(root)
	if err != nil {
		e.settings.logger.Warnw("cannot open project root", "expert", e.p.name, "root", root, "error", err)
		return e.noEvidence()
	}
	return e.detect(ctx, fsys)
}

func (e *ruleExpert) detect(ctx context.Context, fsys artifact.FS) types.ExpertResult {
	start := time.Now()
	s := &scan{expert: e.p.name, fsys: fsys, logger: e.settings.logger}

	artifacts := e.p.discover(s)
	if len(artifacts) == 0 {
		return e.noEvidence()
	}

	for _, r := range e.p.rules {
		if ctx.Err() != nil {
			e.settings.logger.Warnw("detection interrupted", "expert", e.p.name, "rule", r.name, "error", ctx.Err())
			break
		}
		e.runRule(ctx, r, s)
	}

	findings := s.findings
	if findings == nil {
		findings = []types.Finding{}
	}

	advice := e.p.cleanAdvice
	if len(findings) > 0 {
		advice = e.p.issueAdvice
	}

	e.settings.logger.Debugw("detection complete",
		"expert", e.p.name,
		"artifacts", len(artifacts),
		"findings", len(findings),
		"errors_ignored", s.stats.ErrorsIgnored,
		"duration", time.Since(start))

	return types.ExpertResult{
		Findings:        findings,
		Confidence:      scoring.Confidence(findings),
		Recommendations: append([]string(nil), advice...),
		ArtifactsFound:  len(artifacts),
		Stats:           s.stats,
	}
}

// runRule isolates a rule so a bug in one cannot abort the others.
func (e *ruleExpert) runRule(ctx context.Context, r rule, s *scan) {
	defer func() {
		if rec := recover(); rec != nil {
			s.stats.ErrorsIgnored++
			e.settings.logger.Errorw("detection rule panicked", "expert", e.p.name, "rule", r.name, "panic", fmt.Sprint(rec))
		}
	}()
	r.run(ctx, s)
}

func (e *ruleExpert) noEvidence() types.ExpertResult {
	return types.ExpertResult{
		Findings:        []types.Finding{},
		Confidence:      scoring.NoEvidenceConfidence,
		Recommendations: append([]string(nil), e.p.noEvidenceAdvice...),
	}
}

// SuggestFixes implements Expert.
func (e *ruleExpert) SuggestFixes(findings []types.Finding) []types.Fix {
	fixes := []types.Fix{}
	for _, f := range findings {
		tmpl, ok := e.p.fixes[f.Kind]
		if !ok {
			continue
		}
		priority := tmpl.priority
		if priority == "" {
			priority = f.Priority.Normalize()
		}
		detail := f.Description
		if tmpl.detail != nil {
			detail = tmpl.detail(f)
		}
		fixes = append(fixes, types.Fix{
			Finding:  f,
			Remedy:   tmpl.remedy,
			Detail:   detail,
			Priority: priority,
			Source:   tmpl.source,
		})
	}
	return fixes
}

// QualityMetrics implements Expert.
func (e *ruleExpert) QualityMetrics(ctx context.Context, root string) types.QualityMetrics {
	return e.ScoreResult(e.Detect(ctx, root))
}

// ScoreResult implements Scorer.
func (e *ruleExpert) ScoreResult(result types.ExpertResult) types.QualityMetrics {
	n := len(result.Findings)
	return types.QualityMetrics{
		Metric:          e.p.metric,
		Weight:          e.p.weight,
		QualityScore:    e.p.curve.Score(result.HasEvidence(), n),
		IssuesFound:     n,
		TotalIssues:     n,
		Confidence:      result.Confidence,
		Recommendations: result.Recommendations,
		ArtifactsFound:  result.ArtifactsFound,
		SeverityCounts:  types.SeverityCounts(result.Findings),
		RiskScore:       scoring.RiskScore(result.Findings),
	}
}

// AssessImpact implements Expert.
func (e *ruleExpert) AssessImpact(changes []types.Change) types.ImpactReport {
	return e.p.impact.assess(e.p.name, changes)
}
