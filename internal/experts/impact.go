package experts

import (
	"fmt"
	"strings"

	"github.com/steveyegge/clewcrew/internal/types"
)

// impactProfile is a domain's vocabulary for judging proposed changes.
type impactProfile struct {
	// tag is reported as the quality_impact of every assessment.
	tag string

	riskTypes    []types.ChangeType
	benefitTypes []types.ChangeType

	// affects and improves complete "Risk: X may ..." and
	// "Benefit: X improves ..." statements.
	affects  string
	improves string

	// contentChecks inspect the text of a change rather than its type.
	contentChecks []contentCheck

	advice []string
}

// contentCheck flags risky text inside a proposed change.
type contentCheck struct {
	matches   func(content string) bool
	statement string
	level     types.RiskLevel
}

func containsAnyFold(words ...string) func(string) bool {
	return func(content string) bool {
		lower := strings.ToLower(content)
		for _, w := range words {
			if strings.Contains(lower, w) {
				return true
			}
		}
		return false
	}
}

func containsType(list []types.ChangeType, t types.ChangeType) bool {
	for _, c := range list {
		if c == t {
			return true
		}
	}
	return false
}

// assess builds the impact report. A change whose type is in the risk
// vocabulary always raises the level to high; benefits never raise it.
func (ip impactProfile) assess(domain string, changes []types.Change) types.ImpactReport {
	report := types.ImpactReport{
		Domain:          domain,
		QualityImpact:   ip.tag,
		RiskLevel:       types.RiskLow,
		Risks:           []string{},
		Benefits:        []string{},
		Recommendations: append([]string(nil), ip.advice...),
	}

	typedRisk := false
	for _, c := range changes {
		switch {
		case containsType(ip.riskTypes, c.Type):
			report.Risks = append(report.Risks, fmt.Sprintf("Risk: %s may %s", c.Type, ip.affects))
			typedRisk = true
		case containsType(ip.benefitTypes, c.Type):
			report.Benefits = append(report.Benefits, fmt.Sprintf("Benefit: %s improves %s", c.Type, ip.improves))
		}

		if c.Content == "" {
			continue
		}
		for _, check := range ip.contentChecks {
			if check.matches(c.Content) {
				report.Risks = append(report.Risks, check.statement)
				report.RiskLevel = types.MaxRisk(report.RiskLevel, check.level)
			}
		}
	}

	if typedRisk {
		report.RiskLevel = types.MaxRisk(report.RiskLevel, types.RiskHigh)
	}
	return report
}
