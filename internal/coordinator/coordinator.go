package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/steveyegge/clewcrew/internal/experts"
	"github.com/steveyegge/clewcrew/internal/scoring"
	"github.com/steveyegge/clewcrew/internal/types"
)

// DefaultConcurrency is the number of experts run at once when no
// limit is configured.
const DefaultConcurrency = 4

// Coordinator runs a set of experts against one project and aggregates
// their output.
type Coordinator struct {
	registry    *Registry
	logger      *zap.SugaredLogger
	concurrency int
	timeout     time.Duration
	now         func() time.Time
	newID       func() string
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the coordinator's logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithConcurrency bounds how many experts run at once.
func WithConcurrency(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithExpertTimeout limits each expert invocation. Zero means no limit.
func WithExpertTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d >= 0 {
			c.timeout = d
		}
	}
}

// New creates a coordinator over the given experts. Names must be unique.
func New(list []experts.Expert, opts ...Option) (*Coordinator, error) {
	c := &Coordinator{
		registry:    NewRegistry(),
		logger:      zap.NewNop().Sugar(),
		concurrency: DefaultConcurrency,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	for _, e := range list {
		if err := c.registry.Register(e); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// NewDefault creates a coordinator over the full expert roster.
func NewDefault(expertOpts []experts.Option, opts ...Option) *Coordinator {
	c, err := New(experts.Roster(expertOpts...), opts...)
	if err != nil {
		// Roster names are fixed and unique.
		panic(err)
	}
	return c
}

// Experts lists the coordinated experts in reporting order.
func (c *Coordinator) Experts() []experts.Expert {
	return c.registry.List()
}

// Select returns a coordinator restricted to the named experts, keeping
// the current reporting order. Unknown names are an error.
func (c *Coordinator) Select(names ...string) (*Coordinator, error) {
	want := make(map[string]bool, len(names))
	var unknown []string
	for _, name := range names {
		if _, ok := c.registry.Get(name); !ok {
			unknown = append(unknown, name)
			continue
		}
		want[name] = true
	}
	if len(unknown) > 0 {
		valid := c.registry.Names()
		sort.Strings(valid)
		return nil, fmt.Errorf("unknown expert %q. Valid experts: %s", strings.Join(unknown, ", "), strings.Join(valid, ", "))
	}

	sub := *c
	sub.registry = NewRegistry()
	for _, e := range c.registry.List() {
		if want[e.Name()] {
			// Names come from a registry, so they are unique.
			_ = sub.registry.Register(e)
		}
	}
	return &sub, nil
}

// outcome is one expert's raw result within a run.
type outcome struct {
	result   types.ExpertResult
	duration time.Duration
	note     string
}

func (o outcome) failed() bool {
	return o.note != ""
}

// Detect runs every expert's detection concurrently.
func (c *Coordinator) Detect(ctx context.Context, root string) map[string]types.ExpertResult {
	list := c.registry.List()
	outcomes := c.fanOut(ctx, root, list)

	results := make(map[string]types.ExpertResult, len(list))
	for i, e := range list {
		results[e.Name()] = outcomes[i].result
	}
	return results
}

// Report runs every expert and assembles a scored report.
func (c *Coordinator) Report(ctx context.Context, root string) *types.Report {
	list := c.registry.List()
	outcomes := c.fanOut(ctx, root, list)

	report := &types.Report{
		RunID:       c.newID(),
		Root:        root,
		GeneratedAt: c.now().UTC(),
		Domains:     make([]types.DomainReport, 0, len(list)),
	}

	weighted := make([]scoring.Weighted, 0, len(list))
	for i, e := range list {
		o := outcomes[i]
		metrics := c.score(ctx, e, root, o)
		report.Domains = append(report.Domains, types.DomainReport{
			Expert:   e.Name(),
			Metrics:  metrics,
			Findings: o.result.Findings,
			Fixes:    e.SuggestFixes(o.result.Findings),
			Stats:    o.result.Stats,
			TimedOut: o.failed(),
			Duration: o.duration,
		})
		weighted = append(weighted, scoring.Weighted{Score: metrics.QualityScore, Weight: metrics.Weight})
		if o.failed() {
			report.Notes = append(report.Notes, o.note)
		}
	}

	report.Composite, report.HasComposite = scoring.Composite(weighted)

	c.logger.Infow("report complete",
		"run_id", report.RunID,
		"root", root,
		"experts", len(list),
		"issues", report.TotalIssues(),
		"composite", report.Composite)

	return report
}

// score turns an outcome into metrics without re-running detection when
// the expert supports it.
func (c *Coordinator) score(ctx context.Context, e experts.Expert, root string, o outcome) types.QualityMetrics {
	if s, ok := e.(experts.Scorer); ok {
		return s.ScoreResult(o.result)
	}
	if o.failed() {
		return types.QualityMetrics{
			Metric:          e.MetricName(),
			Weight:          e.MetricWeight(),
			Confidence:      o.result.Confidence,
			Recommendations: o.result.Recommendations,
			SeverityCounts:  map[types.Priority]int{},
		}
	}
	return e.QualityMetrics(ctx, root)
}

// fanOut runs Detect on every expert, bounded by the concurrency limit.
// Results are positional so reporting order never depends on timing.
func (c *Coordinator) fanOut(ctx context.Context, root string, list []experts.Expert) []outcome {
	outcomes := make([]outcome, len(list))
	sem := semaphore.NewWeighted(int64(c.concurrency))
	g, gctx := errgroup.WithContext(ctx)

	for i, e := range list {
		i, e := i, e
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				outcomes[i] = noEvidence(fmt.Sprintf("%s: not run: %v", e.Name(), err))
				return nil
			}
			defer sem.Release(1)
			outcomes[i] = c.runOne(gctx, e, root)
			return nil
		})
	}
	// Experts never return errors; failures are recorded per outcome.
	_ = g.Wait()
	return outcomes
}

// runOne runs a single expert under the per-expert timeout. An expert
// that overruns or panics is reported as having found no evidence.
func (c *Coordinator) runOne(ctx context.Context, e experts.Expert, root string) outcome {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := c.now()
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				c.logger.Errorw("expert panicked", "expert", e.Name(), "panic", fmt.Sprint(rec))
				done <- noEvidence(fmt.Sprintf("%s: failed: %v", e.Name(), rec))
			}
		}()
		done <- outcome{result: e.Detect(ctx, root)}
	}()

	var o outcome
	select {
	case o = <-done:
		if err := ctx.Err(); err != nil {
			o = noEvidence(c.interruptNote(e, err))
		}
	case <-ctx.Done():
		o = noEvidence(c.interruptNote(e, ctx.Err()))
	}
	o.duration = c.now().Sub(start)

	if o.failed() {
		c.logger.Warnw("expert did not complete", "expert", e.Name(), "note", o.note)
	} else {
		c.logger.Debugw("expert complete",
			"expert", e.Name(),
			"findings", len(o.result.Findings),
			"confidence", o.result.Confidence,
			"duration", o.duration)
	}
	return o
}

func (c *Coordinator) interruptNote(e experts.Expert, err error) string {
	if errors.Is(err, context.DeadlineExceeded) && c.timeout > 0 {
		return fmt.Sprintf("%s: timed out after %s; scored as no evidence", e.Name(), c.timeout)
	}
	return fmt.Sprintf("%s: interrupted (%v); scored as no evidence", e.Name(), err)
}

func noEvidence(note string) outcome {
	return outcome{
		result: types.ExpertResult{
			Findings:   []types.Finding{},
			Confidence: scoring.NoEvidenceConfidence,
		},
		note: note,
	}
}

// AssessImpact asks every expert about the change set and unions the
// answers. The overall level is the highest any expert reported.
func (c *Coordinator) AssessImpact(changes []types.Change) types.CompositeImpact {
	composite := types.CompositeImpact{
		Overall:  types.RiskLow,
		Risks:    []string{},
		Benefits: []string{},
		Reports:  []types.ImpactReport{},
	}
	seenRisk := map[string]bool{}
	seenBenefit := map[string]bool{}

	for _, e := range c.registry.List() {
		report := e.AssessImpact(changes)
		composite.Reports = append(composite.Reports, report)
		composite.Overall = types.MaxRisk(composite.Overall, report.RiskLevel)

		for _, r := range report.Risks {
			if !seenRisk[r] {
				seenRisk[r] = true
				composite.Risks = append(composite.Risks, r)
			}
		}
		for _, b := range report.Benefits {
			if !seenBenefit[b] {
				seenBenefit[b] = true
				composite.Benefits = append(composite.Benefits, b)
			}
		}
	}
	return composite
}
