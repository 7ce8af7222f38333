package config

import (
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"homescout/models"
)

// Project is the personal part of the configuration: where the user needs
// to travel, what a home must satisfy, and how trips are weighted.
type Project struct {
	GoogleKey     string            `yaml:"google_key"`
	Destinations  map[string]string `yaml:"destinations"`
	ConstantPairs []PairConfig      `yaml:"constant_pairs"`
	Bounds        Bounds            `yaml:"bounds"`
	Objective     []Term            `yaml:"objective"`
}

type PairConfig struct {
	Name string `yaml:"name"`
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Bounds are the hard constraints a selected home must meet.
type Bounds struct {
	MaxPrice float64 `yaml:"max_price"`
	MinBed   float64 `yaml:"min_bed"`
	MaxBed   float64 `yaml:"max_bed"`
	MinBath  float64 `yaml:"min_bath"`
	MaxBath  float64 `yaml:"max_bath"`
	MinSqFt  float64 `yaml:"min_sqft"`
	MaxSqFt  float64 `yaml:"max_sqft"`
}

// Term is one weighted component of the travel objective. With several
// columns, Aggregate picks how they collapse into one distance: "min" for
// "closest of these", "sum" (the default) for "visit all of these".
type Term struct {
	Name      string   `yaml:"name"`
	Weight    float64  `yaml:"weight"`
	Columns   []string `yaml:"columns"`
	Aggregate string   `yaml:"aggregate"`
}

// LoadProject reads and validates the YAML project file.
func LoadProject(path string) (*Project, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read project file: %w", err)
	}
	var p Project
	if err := yaml.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("config: parse project file %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// DestinationSet returns the destinations sorted by name, which is also the
// export column order.
func (p *Project) DestinationSet() []models.Destination {
	out := make([]models.Destination, 0, len(p.Destinations))
	for name, addr := range p.Destinations {
		out = append(out, models.Destination{Name: name, Address: strings.TrimSpace(addr)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Pairs resolves constant pairs to their destination addresses.
func (p *Project) Pairs() []models.ConstantPair {
	out := make([]models.ConstantPair, 0, len(p.ConstantPairs))
	for _, c := range p.ConstantPairs {
		out = append(out, models.ConstantPair{
			Name: c.Name,
			From: strings.TrimSpace(p.Destinations[c.From]),
			To:   strings.TrimSpace(p.Destinations[c.To]),
		})
	}
	return out
}

// Validate checks the parts the collect stage depends on.
func (p *Project) Validate() error {
	var errs []string

	if len(p.Destinations) == 0 {
		errs = append(errs, "destinations must have at least 1 entry")
	}
	for name, addr := range p.Destinations {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, "destinations: empty name")
		}
		if strings.TrimSpace(addr) == "" {
			errs = append(errs, fmt.Sprintf("destinations.%s: address is required", name))
		}
		if slices.Contains(models.ListingColumns, name) {
			errs = append(errs, fmt.Sprintf("destinations.%s: name clashes with a listing column", name))
		}
	}

	seen := map[string]bool{}
	for i, c := range p.ConstantPairs {
		switch {
		case strings.TrimSpace(c.Name) == "":
			errs = append(errs, fmt.Sprintf("constant_pairs[%d].name is required", i))
		case seen[c.Name]:
			errs = append(errs, fmt.Sprintf("constant_pairs[%d].name %q is repeated", i, c.Name))
		case p.hasDestination(c.Name):
			errs = append(errs, fmt.Sprintf("constant_pairs[%d].name %q clashes with a destination", i, c.Name))
		}
		seen[c.Name] = true
		if !p.hasDestination(c.From) {
			errs = append(errs, fmt.Sprintf("constant_pairs[%d].from %q is not a destination", i, c.From))
		}
		if !p.hasDestination(c.To) {
			errs = append(errs, fmt.Sprintf("constant_pairs[%d].to %q is not a destination", i, c.To))
		}
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return &ConfigError{Problems: errs}
	}
	return nil
}

func (p *Project) hasDestination(name string) bool {
	_, ok := p.Destinations[name]
	return ok
}

// ValidateSelection checks the bounds and objective used by the pick stage.
func (p *Project) ValidateSelection() error {
	var errs []string
	b := p.Bounds

	if b.MaxPrice <= 0 {
		errs = append(errs, "bounds.max_price must be > 0")
	}
	checkRange := func(name string, lo, hi float64) {
		if lo < 0 {
			errs = append(errs, fmt.Sprintf("bounds.min_%s must be >= 0", name))
		}
		if hi < lo {
			errs = append(errs, fmt.Sprintf("bounds.max_%s must be >= min_%s", name, name))
		}
	}
	checkRange("bed", b.MinBed, b.MaxBed)
	checkRange("bath", b.MinBath, b.MaxBath)
	checkRange("sqft", b.MinSqFt, b.MaxSqFt)

	if len(p.Objective) == 0 {
		errs = append(errs, "objective must have at least 1 term")
	}
	for i, t := range p.Objective {
		if strings.TrimSpace(t.Name) == "" {
			errs = append(errs, fmt.Sprintf("objective[%d].name is required", i))
		}
		if t.Weight < 0 {
			errs = append(errs, fmt.Sprintf("objective[%d].weight must be >= 0", i))
		}
		if len(t.Columns) == 0 {
			errs = append(errs, fmt.Sprintf("objective[%d].columns must have at least 1 entry", i))
		}
		switch t.Aggregate {
		case "", "sum", "min":
		default:
			errs = append(errs, fmt.Sprintf("objective[%d].aggregate must be sum or min", i))
		}
	}

	if len(errs) > 0 {
		return &ConfigError{Problems: errs}
	}
	return nil
}
