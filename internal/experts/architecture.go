package experts

import (
	"bytes"
	"context"
	"path"
	"strings"

	"golang.org/x/mod/modfile"

	"github.com/steveyegge/clewcrew/internal/artifact"
	"github.com/steveyegge/clewcrew/internal/scoring"
	"github.com/steveyegge/clewcrew/internal/types"
)

var archDocs = []string{"README.md", "ARCHITECTURE.md", "DESIGN.md"}

var archDocDirs = []string{"docs", "adr", "decisions", "architecture", "design"}

var archStructure = []string{"pyproject.toml", "setup.py", "requirements.txt", "go.mod"}

var archSourceDirs = []string{"src", "lib", "app", "core", "internal"}

// flatLayoutThreshold is the number of Python files above which a project
// without src/ is flagged.
const flatLayoutThreshold = 10

// NewArchitectureExpert creates the expert for documentation, layout and
// dependency hygiene.
func NewArchitectureExpert(opts ...Option) Expert {
	return newRuleExpert(profile{
		name:   Architecture,
		metric: "architecture_quality",
		weight: 1.0,
		curve:  scoring.NewCurve(85, 70, 50, 20),
		discover: func(s *scan) []string {
			found := s.files(archDocs...)
			found = append(found, s.under(archDocDirs, "*.md")...)
			found = append(found, s.files(archStructure...)...)
			return append(found, s.under(archSourceDirs, "*.py", "*.go")...)
		},
		rules: []rule{
			{name: "readme", run: checkReadme},
			{name: "docs_dir", run: checkDocsDir},
			{name: "package_layout", run: checkPackageLayout},
			{name: "python_pins", run: checkPythonPins},
			{name: "go_replaces", run: checkGoReplaces},
		},
		fixes: map[types.FindingKind]fixTemplate{
			types.KindDocumentationIssue: {
				remedy: "Improve architecture documentation",
				source: types.SourceDocs,
			},
			types.KindStructureIssue: {
				remedy: "Improve code structure",
				source: types.SourceStructure,
			},
			types.KindDependencyIssue: {
				remedy: "Fix dependency management",
				source: types.SourceConfig,
			},
		},
		impact: impactProfile{
			tag:          "architecture_quality_assessment",
			riskTypes:    []types.ChangeType{"arch_change", "structure_change", "dependency_change"},
			benefitTypes: []types.ChangeType{"arch_improvement", "structure_improvement"},
			affects:      "affect system architecture",
			improves:     "architecture quality",
			advice: []string{
				"Review changes for architectural impact",
				"Ensure system structure remains coherent",
				"Update architecture documentation as needed",
				"Maintain architectural principles and patterns",
			},
		},
		noEvidenceAdvice: []string{
			"No existing architecture documentation found",
			"Consider creating architecture decision records (ADRs)",
			"Document system components and their relationships",
			"Create dependency diagrams and system maps",
		},
		issueAdvice: []string{
			"Review and improve architecture documentation",
			"Address structural issues in code organization",
			"Update dependency management and versioning",
			"Consider implementing architectural patterns",
			"Document system boundaries and interfaces",
		},
		cleanAdvice: []string{
			"Architecture appears well-documented based on existing files",
			"Continue monitoring architectural decisions",
			"Consider implementing advanced architectural patterns",
			"Add performance and scalability documentation",
		},
	}, opts)
}

func checkReadme(ctx context.Context, s *scan) {
	if len(s.files("README.md")) == 0 {
		return
	}
	data, ok := s.read(ctx, "README.md")
	if !ok {
		return
	}
	if !artifact.ContainsFold(data, "architecture", "design") {
		s.add(types.Finding{
			Kind:        types.KindDocumentationIssue,
			Location:    types.Location{Path: "README.md"},
			Description: "README missing architecture/design section",
			Priority:    types.PriorityMedium,
			Origin:      types.Origin{Tool: "documentation", Source: types.SourceDocs},
		})
	}
}

func checkDocsDir(_ context.Context, s *scan) {
	if !s.fsys.IsDir("docs") {
		return
	}
	if len(s.glob("docs/**/*architecture*", "docs/**/*design*")) > 0 {
		return
	}
	s.add(types.Finding{
		Kind:        types.KindDocumentationIssue,
		Location:    types.Location{Path: "docs"},
		Description: "Docs directory missing architecture/design documentation",
		Priority:    types.PriorityMedium,
		Origin:      types.Origin{Tool: "documentation", Source: types.SourceDocs},
	})
}

func checkPackageLayout(_ context.Context, s *scan) {
	if s.fsys.IsDir("src") {
		pyFiles := s.glob("src/**/*.py")
		if len(pyFiles) == 0 {
			return
		}
		packages := map[string]bool{}
		for _, f := range pyFiles {
			packages[path.Dir(f)] = true
		}
		inits := s.glob("src/**/__init__.py")
		if len(inits) < len(packages) {
			s.add(types.Finding{
				Kind:        types.KindStructureIssue,
				Location:    types.Location{Path: "src"},
				Description: "Some Python packages missing __init__.py files",
				Priority:    types.PriorityMedium,
				Origin:      types.Origin{Tool: "code_structure", Source: types.SourceStructure},
			})
		}
		return
	}

	if len(s.glob("**/*.py")) > flatLayoutThreshold {
		s.add(types.Finding{
			Kind:        types.KindStructureIssue,
			Location:    types.Location{Path: "."},
			Description: "Consider organizing code into src/ directory structure",
			Priority:    types.PriorityLow,
			Origin:      types.Origin{Tool: "code_structure", Source: types.SourceStructure},
		})
	}
}

func checkPythonPins(ctx context.Context, s *scan) {
	for _, rel := range s.files("pyproject.toml", "requirements.txt") {
		data, ok := s.read(ctx, rel)
		if !ok {
			continue
		}
		if rel == "pyproject.toml" && !bytes.Contains(data, []byte("dependencies")) {
			continue
		}
		if bytes.Contains(data, []byte(">=")) && !bytes.Contains(data, []byte("==")) {
			s.add(types.Finding{
				Kind:        types.KindDependencyIssue,
				Location:    types.Location{Path: rel},
				Description: "Consider pinning dependency versions for reproducibility",
				Priority:    types.PriorityMedium,
				Origin:      types.Origin{Tool: "dependency_management", Source: types.SourceConfig},
			})
		}
	}
}

// checkGoReplaces flags replace directives that point at local paths,
// which only resolve on the author's machine.
func checkGoReplaces(ctx context.Context, s *scan) {
	if len(s.files("go.mod")) == 0 {
		return
	}
	data, ok := s.read(ctx, "go.mod")
	if !ok {
		return
	}
	// ParseLax drops replace directives, so it is only the fallback.
	mf, err := modfile.Parse("go.mod", data, nil)
	if err != nil {
		mf, err = modfile.ParseLax("go.mod", data, nil)
	}
	if err != nil {
		s.ignore("go.mod", artifact.Unparsable("go.mod", err))
		return
	}
	for _, r := range mf.Replace {
		if r.New.Version != "" || !isLocalPath(r.New.Path) {
			continue
		}
		line := 0
		if r.Syntax != nil {
			line = r.Syntax.Start.Line
		}
		s.add(types.Finding{
			Kind:        types.KindDependencyIssue,
			Location:    types.Location{Path: "go.mod", Line: line},
			Description: "Replace directive points " + r.Old.Path + " at local path " + r.New.Path,
			Priority:    types.PriorityMedium,
			Origin:      types.Origin{Tool: "go_modules", Source: types.SourceConfig},
		})
	}
}

func isLocalPath(p string) bool {
	return strings.HasPrefix(p, "./") || strings.HasPrefix(p, "../") || strings.HasPrefix(p, "/")
}
