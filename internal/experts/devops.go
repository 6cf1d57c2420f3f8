package experts

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/steveyegge/clewcrew/internal/artifact"
	"github.com/steveyegge/clewcrew/internal/scoring"
	"github.com/steveyegge/clewcrew/internal/types"
)

var pipelineDirs = []string{".github", ".gitlab-ci", ".circleci", "ci", "jenkins", ".azure"}

var infraFiles = []string{
	"docker-compose.yml", "docker-compose.yaml",
	"Dockerfile", "dockerfile",
	"terraform.tf", "terraform.tfvars",
	"cloudformation.yaml", "cloudformation.yml",
	"kubernetes.yaml", "k8s.yaml",
	"helm-chart.yaml", "values.yaml",
}

var opsLogs = []string{"deployment.log", "ci.log", "build.log", "error.log", "app.log", "server.log"}

// NewDevOpsExpert creates the expert for CI pipelines, deployment manifests
// and infrastructure code.
func NewDevOpsExpert(opts ...Option) Expert {
	return newRuleExpert(profile{
		name:   DevOps,
		metric: "operational_quality",
		weight: 1.5,
		curve:  scoring.NewCurve(90, 75, 55, 25),
		discover: func(s *scan) []string {
			found := s.under(pipelineDirs, "*.yml", "*.yaml", "*.json", "*.xml")
			return append(found, s.files(infraFiles...)...)
		},
		rules: []rule{
			{name: "github_workflows", run: checkGitHubWorkflows},
			{name: "gitlab_ci", run: checkGitLabCI},
			{name: "docker_compose", run: checkCompose},
			{name: "kubernetes", run: checkKubernetes},
			{name: "terraform", run: checkTerraform},
			{name: "cloudformation", run: checkCloudFormation},
			{name: "ops_logs", run: checkLogsFor(opsLogs, types.Finding{
				Kind:        types.KindLogAnalysis,
				Description: "Log file contains error or failure messages",
				Priority:    types.PriorityMedium,
				Origin:      types.Origin{Tool: "log_analysis", Source: types.SourceLogs},
			})},
		},
		fixes: map[types.FindingKind]fixTemplate{
			types.KindCIConfigIssue: {
				remedy: "Fix CI/CD configuration",
				source: types.SourceConfig,
			},
			types.KindSecurityIssue: {
				remedy: "Address security concern",
				source: types.SourceConfig,
			},
			types.KindDeploymentIssue: {
				remedy: "Fix deployment configuration",
				source: types.SourceConfig,
			},
		},
		impact: impactProfile{
			tag:          "devops_quality_assessment",
			riskTypes:    []types.ChangeType{"ci_config_change", "deployment_change", "infrastructure_change"},
			benefitTypes: []types.ChangeType{"ci_improvement", "deployment_improvement"},
			affects:      "affect deployment stability",
			improves:     "DevOps quality",
			advice: []string{
				"Review changes for deployment pipeline impact",
				"Ensure CI/CD configuration remains stable",
				"Test infrastructure changes in staging environment",
				"Maintain deployment automation and monitoring",
			},
		},
		noEvidenceAdvice: []string{
			"No existing CI/CD configuration found",
			"Consider setting up GitHub Actions, GitLab CI, or similar",
			"Implement automated testing and deployment pipelines",
			"Set up infrastructure as code with Terraform or CloudFormation",
		},
		issueAdvice: []string{
			"Review and fix CI/CD configuration issues",
			"Ensure deployment pipelines are properly configured",
			"Validate infrastructure as code configurations",
			"Implement proper logging and monitoring",
			"Set up automated testing and quality gates",
		},
		cleanAdvice: []string{
			"DevOps configuration appears sound based on existing files",
			"Continue monitoring CI/CD pipeline performance",
			"Consider implementing advanced deployment strategies",
			"Add comprehensive monitoring and alerting",
		},
	}, opts)
}

func checkGitHubWorkflows(ctx context.Context, s *scan) {
	for _, rel := range s.under([]string{".github/workflows"}, "*.yml", "*.yaml") {
		workflow, ok := s.config(ctx, rel)
		if !ok || len(workflow) == 0 {
			continue
		}
		if _, ok := workflow["on"]; !ok {
			s.add(types.Finding{
				Kind:        types.KindCIConfigIssue,
				Location:    types.Location{Path: rel},
				Description: "Missing trigger configuration in GitHub Actions workflow",
				Priority:    types.PriorityHigh,
				Origin:      types.Origin{Tool: "github_actions", Source: types.SourceConfig},
			})
		}
		if contents, ok := artifact.Lookup(workflow, "permissions", "contents"); ok && contents == "write" {
			s.add(types.Finding{
				Kind:        types.KindSecurityIssue,
				Location:    types.Location{Path: rel},
				Description: "Workflow has write permissions to repository contents",
				Priority:    types.PriorityMedium,
				Origin:      types.Origin{Tool: "github_actions", Source: types.SourceConfig},
			})
		}
	}
}

func checkGitLabCI(ctx context.Context, s *scan) {
	const rel = ".gitlab-ci.yml"
	if len(s.files(rel)) == 0 {
		return
	}
	cfg, ok := s.config(ctx, rel)
	if !ok || len(cfg) == 0 {
		return
	}
	if _, ok := cfg["stages"]; !ok {
		s.add(types.Finding{
			Kind:        types.KindCIConfigIssue,
			Location:    types.Location{Path: rel},
			Description: "Missing stages configuration in GitLab CI",
			Priority:    types.PriorityMedium,
			Origin:      types.Origin{Tool: "gitlab_ci", Source: types.SourceConfig},
		})
	}
}

func checkCompose(ctx context.Context, s *scan) {
	for _, rel := range s.files("docker-compose.yml", "docker-compose.yaml") {
		cfg, ok := s.config(ctx, rel)
		if !ok {
			continue
		}
		services, _ := cfg["services"].(map[string]any)
		names := make([]string, 0, len(services))
		for name := range services {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			svc, _ := services[name].(map[string]any)
			if privileged, _ := svc["privileged"].(bool); privileged {
				s.add(types.Finding{
					Kind:        types.KindSecurityIssue,
					Location:    types.Location{Path: rel},
					Description: fmt.Sprintf("Service '%s' runs in privileged mode", name),
					Priority:    types.PriorityHigh,
					Origin:      types.Origin{Tool: "docker_compose", Source: types.SourceConfig},
				})
			}
		}
	}
}

func checkKubernetes(ctx context.Context, s *scan) {
	for _, rel := range s.files("kubernetes.yaml", "k8s.yaml") {
		data, ok := s.read(ctx, rel)
		if !ok {
			continue
		}
		docs, err := artifact.ParseYAMLDocuments(rel, data)
		if err != nil {
			s.ignore(rel, err)
			continue
		}
		for _, doc := range docs {
			containers, _ := lookupList(doc, "spec", "template", "spec", "containers")
			for _, c := range containers {
				container, _ := c.(map[string]any)
				if container == nil {
					continue
				}
				if _, ok := container["resources"]; ok {
					continue
				}
				name, _ := container["name"].(string)
				if name == "" {
					name = "unknown"
				}
				s.add(types.Finding{
					Kind:        types.KindDeploymentIssue,
					Location:    types.Location{Path: rel},
					Description: fmt.Sprintf("Container '%s' missing resource limits", name),
					Priority:    types.PriorityMedium,
					Origin:      types.Origin{Tool: "kubernetes", Source: types.SourceConfig},
				})
			}
		}
	}
}

func lookupList(m map[string]any, keys ...string) ([]any, bool) {
	v, ok := artifact.Lookup(m, keys...)
	if !ok {
		return nil, false
	}
	list, ok := v.([]any)
	return list, ok
}

func checkTerraform(ctx context.Context, s *scan) {
	for _, rel := range s.files("terraform.tf", "terraform.tfvars") {
		data, ok := s.read(ctx, rel)
		if !ok {
			continue
		}
		if bytes.Contains(data, []byte("provider")) && !bytes.Contains(data, []byte("region")) {
			s.add(types.Finding{
				Kind:        types.KindInfrastructureIssue,
				Location:    types.Location{Path: rel},
				Description: "Terraform configuration missing region specification",
				Priority:    types.PriorityMedium,
				Origin:      types.Origin{Tool: "terraform", Source: types.SourceConfig},
			})
		}
	}
}

func checkCloudFormation(ctx context.Context, s *scan) {
	for _, rel := range s.files("cloudformation.yaml", "cloudformation.yml") {
		cfg, ok := s.config(ctx, rel)
		if !ok || len(cfg) == 0 {
			continue
		}
		if _, ok := cfg["Resources"]; !ok {
			s.add(types.Finding{
				Kind:        types.KindInfrastructureIssue,
				Location:    types.Location{Path: rel},
				Description: "CloudFormation template missing Resources section",
				Priority:    types.PriorityHigh,
				Origin:      types.Origin{Tool: "cloudformation", Source: types.SourceConfig},
			})
		}
	}
}
