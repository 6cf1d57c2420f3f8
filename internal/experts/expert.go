package experts

import (
	"context"

	"go.uber.org/zap"

	"github.com/steveyegge/clewcrew/internal/artifact"
	"github.com/steveyegge/clewcrew/internal/scoring"
	"github.com/steveyegge/clewcrew/internal/types"
)

// Expert analyzes one quality domain from artifacts a project has already
// produced. Experts never run external tools and never write to the project.
//
// None of the operations return errors: unreadable or malformed artifacts are
// logged and contribute no findings.
type Expert interface {
	// Name returns the domain identifier, e.g. "security".
	Name() string

	// MetricName returns the name of the quality metric this expert reports.
	MetricName() string

	// MetricWeight returns the weight used in the composite score.
	MetricWeight() float64

	// Detect discovers artifacts under root and runs every detection rule.
	Detect(ctx context.Context, root string) types.ExpertResult

	// SuggestFixes maps findings to remediations. Findings of kinds the
	// expert does not know are dropped.
	SuggestFixes(findings []types.Finding) []types.Fix

	// QualityMetrics runs Detect and scores the result.
	QualityMetrics(ctx context.Context, root string) types.QualityMetrics

	// AssessImpact evaluates a list of proposed changes.
	AssessImpact(changes []types.Change) types.ImpactReport
}

// Scorer is implemented by experts that can score a detection result they
// already produced, so callers need not run Detect twice.
type Scorer interface {
	ScoreResult(result types.ExpertResult) types.QualityMetrics
}

// FSFactory opens the artifact view of a project root.
type FSFactory func(root string) (artifact.FS, error)

type settings struct {
	logger *zap.SugaredLogger
	curve  *scoring.Curve
	weight float64
	openFS FSFactory
}

// Option customizes an expert.
type Option func(*settings)

// WithLogger sets the logger used for artifact failures.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCurve overrides the expert's default score curve.
func WithCurve(c scoring.Curve) Option {
	return func(s *settings) {
		s.curve = &c
	}
}

// WithWeight overrides the expert's default metric weight.
func WithWeight(w float64) Option {
	return func(s *settings) {
		if w > 0 {
			s.weight = w
		}
	}
}

// WithFS sets how project roots are opened.
func WithFS(factory FSFactory) Option {
	return func(s *settings) {
		if factory != nil {
			s.openFS = factory
		}
	}
}

func newSettings(opts []Option) settings {
	s := settings{
		logger: zap.NewNop().Sugar(),
		openFS: func(root string) (artifact.FS, error) {
			return artifact.NewOSFS(root)
		},
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Recommendations returns the expert's current advice for a project.
func Recommendations(ctx context.Context, e Expert, root string) []string {
	return e.Detect(ctx, root).Recommendations
}
