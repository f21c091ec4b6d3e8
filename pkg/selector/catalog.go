// Package selector holds the catalog of screen targets and their ordered
// lookup strategies. Each target names an element on one signup screen; its
// strategies are tried in order until one resolves.
package selector

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/signup-runner/pkg/driver"
	"github.com/devicelab-dev/signup-runner/pkg/jsengine"
)

// Strategy is one way to locate a target on screen.
type Strategy struct {
	Kind  string `yaml:"kind" json:"kind"`
	Query string `yaml:"query" json:"query"`
}

// UnmarshalYAML accepts either the full {kind, query} form or a bare query
// string whose kind is inferred from its shape.
func (s *Strategy) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var query string
		if err := value.Decode(&query); err != nil {
			return err
		}
		*s = Infer(query)
		return nil
	}

	type plain Strategy
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*s = Strategy(p)
	return nil
}

// Infer builds a Strategy from a raw query string. XPath queries start with
// "//", UiAutomator queries with "new UiSelector", anything else is treated
// as a class name.
func Infer(query string) Strategy {
	switch {
	case strings.HasPrefix(query, "//") || strings.HasPrefix(query, "("):
		return Strategy{Kind: driver.KindXPath, Query: query}
	case strings.HasPrefix(query, "new UiSelector"):
		return Strategy{Kind: driver.KindUIAutomator, Query: query}
	default:
		return Strategy{Kind: driver.KindClass, Query: query}
	}
}

// Catalog maps dotted target names ("email.email_field") to their ordered
// strategy lists.
type Catalog struct {
	targets map[string][]Strategy
}

// Default returns the built-in catalog for the signup flow.
func Default() *Catalog {
	return &Catalog{targets: defaultTargets()}
}

// Load reads a YAML overlay and merges it over the defaults. Targets present
// in the file replace the default strategy list wholesale.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read selector catalog: %w", err)
	}

	var overlay map[string][]Strategy
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("parse selector catalog: %w", err)
	}

	c := Default()
	for target, strategies := range overlay {
		if len(strategies) == 0 {
			return nil, fmt.Errorf("target %q has no strategies", target)
		}
		c.targets[target] = strategies
	}
	return c, nil
}

// Lookup returns the ordered strategies for a target.
func (c *Catalog) Lookup(target string) ([]Strategy, error) {
	strategies, ok := c.targets[target]
	if !ok {
		return nil, fmt.Errorf("unknown selector target %q", target)
	}
	return strategies, nil
}

// Targets returns all known target names.
func (c *Catalog) Targets() []string {
	names := make([]string, 0, len(c.targets))
	for name := range c.targets {
		names = append(names, name)
	}
	return names
}

// Expand resolves a target and expands ${...} template expressions in each
// query against the given variables.
func (c *Catalog) Expand(target string, vars map[string]interface{}) ([]Strategy, error) {
	strategies, err := c.Lookup(target)
	if err != nil {
		return nil, err
	}
	if len(vars) == 0 {
		return strategies, nil
	}

	eng := jsengine.New()
	eng.SetVariables(vars)

	expanded := make([]Strategy, len(strategies))
	for i, s := range strategies {
		query, err := eng.ExpandVariables(s.Query)
		if err != nil {
			return nil, fmt.Errorf("expand %s strategy %d: %w", target, i, err)
		}
		expanded[i] = Strategy{Kind: s.Kind, Query: query}
	}
	return expanded, nil
}
