package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Plan is a YAML file of named request specs. One test drives the ramp; an
// optional second test performs the login that yields the session token.
type Plan struct {
	Tests map[string]PlanTest `yaml:"tests"`
}

// PlanTest describes one named request spec in a plan file.
type PlanTest struct {
	Method  string            `yaml:"method"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
	Params  map[string]string `yaml:"params"`
	Auth    bool              `yaml:"auth"`
}

// LoadPlan reads and parses a plan file.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open plan file: %w", err)
	}
	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse plan file: %w", err)
	}
	if len(plan.Tests) == 0 {
		return nil, fmt.Errorf("plan file %s defines no tests", path)
	}
	return &plan, nil
}

// Test looks up a named test. The error lists the available names so typos
// are easy to spot.
func (p *Plan) Test(name string) (PlanTest, error) {
	if test, ok := p.Tests[name]; ok {
		return test, nil
	}
	names := make([]string, 0, len(p.Tests))
	for n := range p.Tests {
		names = append(names, n)
	}
	sort.Strings(names)
	return PlanTest{}, fmt.Errorf("plan has no test %q (available: %s)", name, strings.Join(names, ", "))
}
