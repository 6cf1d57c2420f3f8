package experts

import (
	"context"

	"github.com/steveyegge/clewcrew/internal/artifact"
	"github.com/steveyegge/clewcrew/internal/scoring"
	"github.com/steveyegge/clewcrew/internal/types"
)

var modelConfigs = []string{"model_config.json", "model.yaml", "config.yaml", "hyperparameters.json", "model_params.json"}

var modelDirs = []string{"models", "checkpoints", "outputs", "results"}

var modelLogs = []string{"model.log", "training.log", "evaluation.log"}

// NewModelExpert creates the expert for ML model configuration and
// training/evaluation logs.
func NewModelExpert(opts ...Option) Expert {
	return newRuleExpert(profile{
		name:   Model,
		metric: "model_quality",
		weight: 1.3,
		curve:  scoring.NewCurve(92, 78, 58, 28),
		discover: func(s *scan) []string {
			return append(s.files(modelConfigs...), s.existing(modelDirs...)...)
		},
		rules: []rule{
			{name: "model_config", run: checkModelConfig},
			{name: "model_logs", run: checkLogsFor(modelLogs, types.Finding{
				Kind:        types.KindModelFailure,
				Description: "Model log contains error or failure messages",
				Priority:    types.PriorityHigh,
				Origin:      types.Origin{Tool: "model_logs", Source: types.SourceLogs},
			})},
		},
		fixes: map[types.FindingKind]fixTemplate{
			types.KindModelConfigIssue: {
				remedy: "Fix model configuration",
				source: types.SourceConfig,
			},
			types.KindModelFailure: {
				remedy: "Fix model failures",
				source: types.SourceLogs,
				detail: func(types.Finding) string { return "Review and fix the model failures identified in logs" },
			},
		},
		impact: impactProfile{
			tag:          "model_quality_assessment",
			riskTypes:    []types.ChangeType{"model_config_change", "hyperparameter_change", "architecture_change"},
			benefitTypes: []types.ChangeType{"model_improvement", "config_improvement"},
			affects:      "affect model performance",
			improves:     "model quality",
			advice: []string{
				"Review changes for model performance impact",
				"Ensure model configuration remains stable",
				"Test model changes with validation data",
				"Maintain model monitoring and evaluation",
			},
		},
		noEvidenceAdvice: []string{
			"No existing model configuration found",
			"Consider documenting model architecture and parameters",
			"Implement model versioning and tracking",
			"Set up model performance monitoring",
		},
		issueAdvice: []string{
			"Review and fix model configuration issues",
			"Address model performance issues identified in outputs",
			"Improve model documentation and versioning",
			"Consider implementing model monitoring and alerting",
		},
		cleanAdvice: []string{
			"Model configuration appears sound based on existing files",
			"Continue monitoring model performance",
			"Consider implementing advanced model strategies",
			"Add comprehensive model evaluation metrics",
		},
	}, opts)
}

func checkModelConfig(ctx context.Context, s *scan) {
	for _, rel := range s.files("model_config.json", "config.yaml") {
		data, ok := s.read(ctx, rel)
		if !ok {
			continue
		}
		if artifact.ContainsFold(data, "model") && !artifact.ContainsFold(data, "version") {
			s.add(types.Finding{
				Kind:        types.KindModelConfigIssue,
				Location:    types.Location{Path: rel},
				Description: "Model configuration missing version information",
				Priority:    types.PriorityMedium,
				Origin:      types.Origin{Tool: "model_config", Source: types.SourceConfig},
			})
		}
	}
}
