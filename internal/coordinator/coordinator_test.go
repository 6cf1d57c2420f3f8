package coordinator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/clewcrew/internal/experts"
	"github.com/steveyegge/clewcrew/internal/scoring"
	"github.com/steveyegge/clewcrew/internal/types"
)

// mockExpert implements experts.Expert for testing
type mockExpert struct {
	name       string
	weight     float64
	score      float64
	detectFunc func(ctx context.Context, root string) types.ExpertResult
	impact     types.ImpactReport
}

func (m *mockExpert) Name() string {
	return m.name
}

func (m *mockExpert) MetricName() string {
	return m.name + "_quality"
}

func (m *mockExpert) MetricWeight() float64 {
	return m.weight
}

func (m *mockExpert) Detect(ctx context.Context, root string) types.ExpertResult {
	if m.detectFunc != nil {
		return m.detectFunc(ctx, root)
	}
	return types.ExpertResult{Findings: []types.Finding{}, Confidence: scoring.CleanConfidence, ArtifactsFound: 1}
}

func (m *mockExpert) SuggestFixes(findings []types.Finding) []types.Fix {
	fixes := []types.Fix{}
	for _, f := range findings {
		fixes = append(fixes, types.Fix{Finding: f, Remedy: "fix " + f.Description, Priority: f.Priority})
	}
	return fixes
}

func (m *mockExpert) QualityMetrics(ctx context.Context, root string) types.QualityMetrics {
	result := m.Detect(ctx, root)
	return types.QualityMetrics{
		Metric:       m.MetricName(),
		Weight:       m.weight,
		QualityScore: m.score,
		IssuesFound:  len(result.Findings),
		TotalIssues:  len(result.Findings),
		Confidence:   result.Confidence,
	}
}

func (m *mockExpert) AssessImpact(changes []types.Change) types.ImpactReport {
	report := m.impact
	report.Domain = m.name
	return report
}

func newTestCoordinator(t *testing.T, list []experts.Expert, opts ...Option) *Coordinator {
	t.Helper()
	c, err := New(list, opts...)
	require.NoError(t, err)
	c.newID = func() string { return "run-1" }
	return c
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&mockExpert{name: "b"}))
	require.NoError(t, r.Register(&mockExpert{name: "a"}))

	err := r.Register(&mockExpert{name: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `expert "b" already registered`)
	assert.Error(t, r.Register(&mockExpert{}))

	assert.Equal(t, []string{"b", "a"}, r.Names())
	e, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", e.Name())
	_, ok = r.Get("c")
	assert.False(t, ok)
	assert.Len(t, r.List(), 2)
}

func TestNewRejectsDuplicates(t *testing.T) {
	_, err := New([]experts.Expert{&mockExpert{name: "x"}, &mockExpert{name: "x"}})
	assert.Error(t, err)
}

func TestReportCompositeAndOrder(t *testing.T) {
	finding := types.Finding{Kind: types.KindBuildFailure, Description: "broken", Priority: types.PriorityHigh}
	slow := &mockExpert{name: "slow", weight: 3, score: 80, detectFunc: func(ctx context.Context, root string) types.ExpertResult {
		time.Sleep(10 * time.Millisecond)
		return types.ExpertResult{Findings: []types.Finding{finding}, Confidence: 0.7, ArtifactsFound: 2}
	}}
	fast := &mockExpert{name: "fast", weight: 1, score: 40}

	c := newTestCoordinator(t, []experts.Expert{slow, fast})
	report := c.Report(context.Background(), "/project")

	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, "/project", report.Root)
	require.Len(t, report.Domains, 2)
	assert.Equal(t, "slow", report.Domains[0].Expert)
	assert.Equal(t, "fast", report.Domains[1].Expert)
	assert.True(t, report.HasComposite)
	assert.InDelta(t, 70.0, report.Composite, 1e-9)
	assert.Empty(t, report.Notes)

	require.Len(t, report.Domains[0].Fixes, 1)
	assert.Equal(t, "fix broken", report.Domains[0].Fixes[0].Remedy)
	assert.Equal(t, 1, report.TotalIssues())
}

func TestReportWithoutWeightsHasNoComposite(t *testing.T) {
	c := newTestCoordinator(t, []experts.Expert{&mockExpert{name: "zero", score: 50}})
	report := c.Report(context.Background(), t.TempDir())
	assert.False(t, report.HasComposite)
}

func TestExpertTimeout(t *testing.T) {
	stuck := &mockExpert{name: "stuck", weight: 1, score: 90, detectFunc: func(ctx context.Context, root string) types.ExpertResult {
		<-ctx.Done()
		return types.ExpertResult{Findings: []types.Finding{{Kind: types.KindLogAnalysis, Description: "partial"}}, ArtifactsFound: 1}
	}}
	quick := &mockExpert{name: "quick", weight: 1, score: 60}

	c := newTestCoordinator(t, []experts.Expert{stuck, quick}, WithExpertTimeout(20*time.Millisecond))
	report := c.Report(context.Background(), t.TempDir())

	require.Len(t, report.Domains, 2)
	d := report.Domains[0]
	assert.True(t, d.TimedOut)
	assert.Empty(t, d.Findings)
	assert.Equal(t, scoring.NoEvidenceConfidence, d.Metrics.Confidence)
	assert.Equal(t, 0.0, d.Metrics.QualityScore)
	require.Len(t, report.Notes, 1)
	assert.Contains(t, report.Notes[0], "stuck: timed out after 20ms")

	assert.False(t, report.Domains[1].TimedOut)
	assert.InDelta(t, 30.0, report.Composite, 1e-9)
}

func TestTimeoutOnlyAffectsSlowExpert(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "app.py"), []byte("x = 1\n"), 0644))

	sec, err := experts.New(experts.Security)
	require.NoError(t, err)
	blocker := &mockExpert{name: "blocker", weight: 1, detectFunc: func(ctx context.Context, root string) types.ExpertResult {
		<-ctx.Done()
		return types.ExpertResult{}
	}}

	c := newTestCoordinator(t, []experts.Expert{sec, blocker}, WithExpertTimeout(200*time.Millisecond))
	report := c.Report(context.Background(), root)
	assert.False(t, report.Domains[0].TimedOut)
	assert.Equal(t, 100.0, report.Domains[0].Metrics.QualityScore)
	assert.True(t, report.Domains[1].TimedOut)
}

func TestExpertPanicIsContained(t *testing.T) {
	bad := &mockExpert{name: "bad", weight: 1, detectFunc: func(context.Context, string) types.ExpertResult {
		panic("boom")
	}}
	good := &mockExpert{name: "good", weight: 1, score: 100}

	c := newTestCoordinator(t, []experts.Expert{bad, good})
	report := c.Report(context.Background(), t.TempDir())
	require.Len(t, report.Notes, 1)
	assert.Contains(t, report.Notes[0], "bad: failed: boom")
	assert.Equal(t, 100.0, report.Domains[1].Metrics.QualityScore)
}

func TestConcurrencyLimit(t *testing.T) {
	var active, peak int32
	var list []experts.Expert
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		list = append(list, &mockExpert{name: name, weight: 1, detectFunc: func(context.Context, string) types.ExpertResult {
			n := atomic.AddInt32(&active, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(15 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			return types.ExpertResult{Findings: []types.Finding{}}
		}})
	}

	c := newTestCoordinator(t, list, WithConcurrency(2))
	results := c.Detect(context.Background(), t.TempDir())
	assert.Len(t, results, 6)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestCoordinator(t, []experts.Expert{&mockExpert{name: "a", weight: 1}, &mockExpert{name: "b", weight: 1}})
	report := c.Report(ctx, t.TempDir())
	assert.Len(t, report.Notes, 2)
	for _, d := range report.Domains {
		assert.True(t, d.TimedOut)
		assert.Equal(t, scoring.NoEvidenceConfidence, d.Metrics.Confidence)
	}
}

func TestSelect(t *testing.T) {
	c := NewDefault(nil)
	assert.Len(t, c.Experts(), len(experts.Names()))

	sub, err := c.Select(experts.Test, experts.Security)
	require.NoError(t, err)
	var names []string
	for _, e := range sub.Experts() {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{experts.Security, experts.Test}, names)
	assert.Len(t, c.Experts(), len(experts.Names()))

	_, err = c.Select("security", "frontend")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown expert "frontend"`)
}

func TestDefaultReportEndToEnd(t *testing.T) {
	root := t.TempDir()
	key := "sk-" + strings.Repeat("Ab3x", 12)
	require.NoError(t, os.WriteFile(filepath.Join(root, "settings.py"), []byte("KEY = '"+key+"'\n"), 0644))

	c := NewDefault(nil, WithConcurrency(3))
	report := c.Report(context.Background(), root)
	require.Len(t, report.Domains, len(experts.Names()))
	assert.True(t, report.HasComposite)
	assert.NotEmpty(t, report.RunID)

	sec := report.Domains[0]
	assert.Equal(t, experts.Security, sec.Expert)
	require.Len(t, sec.Findings, 1)
	assert.Equal(t, types.KindSecurityVulnerability, sec.Findings[0].Kind)
	assert.Len(t, sec.Fixes, 1)
	assert.Equal(t, 80.0, sec.Metrics.QualityScore)

	for _, d := range report.Domains[1:] {
		assert.Empty(t, d.Findings, d.Expert)
	}

	results := c.Detect(context.Background(), root)
	assert.Len(t, results[experts.Security].Findings, 1)
	assert.Equal(t, scoring.NoEvidenceConfidence, results[experts.MCP].Confidence)
}

func TestAssessImpact(t *testing.T) {
	c := NewDefault(nil)

	impact := c.AssessImpact([]types.Change{{Type: "dependency_change"}})
	assert.Equal(t, types.RiskHigh, impact.Overall)
	assert.Len(t, impact.Reports, len(experts.Names()))
	assert.Contains(t, impact.Risks, "Risk: dependency_change may affect build stability")
	assert.Contains(t, impact.Risks, "Risk: dependency_change may affect system architecture")

	impact = c.AssessImpact([]types.Change{{Type: "config_improvement"}})
	assert.Equal(t, types.RiskLow, impact.Overall)
	assert.Empty(t, impact.Risks)
	assert.Len(t, impact.Benefits, 2)

	impact = c.AssessImpact([]types.Change{{Content: "subprocess.call(cmd, shell=True)"}})
	assert.Equal(t, types.RiskCritical, impact.Overall)
}

func TestAssessImpactDeduplicatesRisks(t *testing.T) {
	shared := types.ImpactReport{RiskLevel: types.RiskMedium, Risks: []string{"same"}, Benefits: []string{"good"}}
	c := newTestCoordinator(t, []experts.Expert{
		&mockExpert{name: "a", impact: shared},
		&mockExpert{name: "b", impact: shared},
	})

	impact := c.AssessImpact(nil)
	assert.Equal(t, types.RiskMedium, impact.Overall)
	assert.Equal(t, []string{"same"}, impact.Risks)
	assert.Equal(t, []string{"good"}, impact.Benefits)
	assert.Len(t, impact.Reports, 2)
}
