package types

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ChangeType is the tag of a proposed change, e.g. "dependency_change".
type ChangeType string

// Change is a proposed modification to the project.
type Change struct {
	Type    ChangeType `json:"type" yaml:"type"`
	Content string     `json:"content,omitempty" yaml:"content,omitempty"`
	Path    string     `json:"path,omitempty" yaml:"path,omitempty"`
}

// RiskLevel is the ordinal risk of a set of changes.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// IsValid checks if the risk level value is valid
func (r RiskLevel) IsValid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

// Rank orders risk levels; unknown levels rank below low.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	case RiskCritical:
		return 4
	}
	return 0
}

// MaxRisk returns the highest of the given levels, or low when none are given.
func MaxRisk(levels ...RiskLevel) RiskLevel {
	max := RiskLow
	for _, l := range levels {
		if l.Rank() > max.Rank() {
			max = l
		}
	}
	return max
}

// ImpactReport is one expert's view of a change set.
type ImpactReport struct {
	Domain          string    `json:"domain"`
	QualityImpact   string    `json:"quality_impact"`
	RiskLevel       RiskLevel `json:"risk_level"`
	Risks           []string  `json:"risks"`
	Benefits        []string  `json:"benefits,omitempty"`
	Recommendations []string  `json:"recommendations"`
}

// CompositeImpact unions every expert's impact report.
type CompositeImpact struct {
	Overall  RiskLevel      `json:"overall_risk_level"`
	Risks    []string       `json:"risks"`
	Benefits []string       `json:"benefits"`
	Reports  []ImpactReport `json:"reports"`
}

type changeFile struct {
	Changes []Change `yaml:"changes"`
}

// ParseChanges decodes a change list. Both a bare list and a document
// with a top-level "changes" key are accepted, in YAML or JSON.
func ParseChanges(data []byte) ([]Change, error) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}

	var list []Change
	if err := yaml.Unmarshal(data, &list); err == nil {
		return validateChanges(list)
	}

	var doc changeFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing changes: %w", err)
	}
	return validateChanges(doc.Changes)
}

// LoadChanges reads a change list from a file, or from stdin when path is "-".
func LoadChanges(path string) ([]Change, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading changes file: %w", err)
	}
	return ParseChanges(data)
}

func validateChanges(changes []Change) ([]Change, error) {
	var errs []error
	for i, c := range changes {
		if strings.TrimSpace(string(c.Type)) == "" && c.Content == "" {
			errs = append(errs, fmt.Errorf("change %d: type or content is required", i))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return changes, nil
}
