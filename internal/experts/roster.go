package experts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/steveyegge/clewcrew/internal/scoring"
)

// Expert names. These are also the keys used in configuration files.
const (
	Security     = "security"
	CodeQuality  = "code_quality"
	Build        = "build"
	Test         = "test"
	DevOps       = "devops"
	Architecture = "architecture"
	Model        = "model"
	MCP          = "mcp"
)

// Constructor builds an expert from options.
type Constructor func(opts ...Option) Expert

var constructors = map[string]Constructor{
	Security:     NewSecurityExpert,
	CodeQuality:  NewCodeQualityExpert,
	Build:        NewBuildExpert,
	Test:         NewTestExpert,
	DevOps:       NewDevOpsExpert,
	Architecture: NewArchitectureExpert,
	Model:        NewModelExpert,
	MCP:          NewMCPExpert,
}

// rosterOrder is the fixed reporting order, heaviest domains first.
var rosterOrder = []string{Security, CodeQuality, Test, DevOps, Model, Build, MCP, Architecture}

// Names returns every expert name in roster order.
func Names() []string {
	return append([]string(nil), rosterOrder...)
}

// Roster creates every expert with the same options.
func Roster(opts ...Option) []Expert {
	out := make([]Expert, 0, len(rosterOrder))
	for _, name := range rosterOrder {
		out = append(out, constructors[name](opts...))
	}
	return out
}

// New creates a single expert by name.
func New(name string, opts ...Option) (Expert, error) {
	ctor, ok := constructors[name]
	if !ok {
		valid := Names()
		sort.Strings(valid)
		return nil, fmt.Errorf("unknown expert %q. Valid experts: %s", name, strings.Join(valid, ", "))
	}
	return ctor(opts...), nil
}

// DefaultCurve returns the built-in score curve of the named expert.
func DefaultCurve(name string) (scoring.Curve, bool) {
	ctor, ok := constructors[name]
	if !ok {
		return scoring.Curve{}, false
	}
	return ctor().(*ruleExpert).Curve(), true
}
