package stats

import (
	"errors"
	"fmt"
	"slices"
)

// Family groups terminal statuses by what happened to the idea.
type Family string

const (
	FamilyBuild  Family = "build"
	FamilyBeta   Family = "beta"
	FamilyLive   Family = "live"
	FamilyWontDo Family = "wont_do"
)

var knownFamilies = []Family{FamilyBuild, FamilyBeta, FamilyLive, FamilyWontDo}

// Taxonomy is the configured status vocabulary of a discovery pipeline.
// Status and health names are matched case-insensitively.
type Taxonomy struct {
	Discovery []string            `mapstructure:"discovery" json:"discovery" yaml:"discovery"`
	Terminal  map[Family][]string `mapstructure:"terminal" json:"terminal" yaml:"terminal"`
	Inactive  []string            `mapstructure:"inactive" json:"inactive" yaml:"inactive"`
	OnHold    []string            `mapstructure:"on_hold_health" json:"on_hold_health" yaml:"on_hold_health"`
	Active    []string            `mapstructure:"active" json:"active" yaml:"active"`
}

// DefaultTaxonomy returns the pipeline used when no configuration file exists.
func DefaultTaxonomy() Taxonomy {
	return Taxonomy{
		Discovery: []string{"Discovery", "Problem Definition", "Solution Exploration", "Validation"},
		Terminal: map[Family][]string{
			FamilyBuild:  {"Ready for Build", "Build", "In Delivery"},
			FamilyBeta:   {"Beta"},
			FamilyLive:   {"Live", "Released"},
			FamilyWontDo: {"Won't Do"},
		},
		Inactive: []string{"Parking Lot", "Back to Intake", "Won't Do"},
		OnHold:   []string{"On Hold"},
		Active:   []string{"Discovery", "Problem Definition", "Solution Exploration", "Validation", "Ready for Build", "Build", "In Delivery", "Beta"},
	}
}

// Validate checks that the taxonomy can drive cycle detection.
func (t Taxonomy) Validate() error {
	if len(t.Discovery) == 0 {
		return errors.New("taxonomy: at least one discovery status is required")
	}
	if len(t.Terminal) == 0 {
		return errors.New("taxonomy: at least one terminal status is required")
	}
	discovery := make(map[string]bool, len(t.Discovery))
	for _, s := range t.Discovery {
		discovery[normalize(s)] = true
	}
	seen := make(map[string]Family)
	for fam, statuses := range t.Terminal {
		if !slices.Contains(knownFamilies, fam) {
			return fmt.Errorf("taxonomy: unknown terminal family %q", fam)
		}
		for _, s := range statuses {
			key := normalize(s)
			if discovery[key] {
				return fmt.Errorf("taxonomy: status %q is both discovery and terminal", s)
			}
			if prev, ok := seen[key]; ok && prev != fam {
				return fmt.Errorf("taxonomy: status %q maps to families %s and %s", s, prev, fam)
			}
			seen[key] = fam
		}
	}
	return nil
}

// Pipeline is a validated Taxonomy with constant-time lookups.
type Pipeline struct {
	taxonomy  Taxonomy
	discovery map[string]bool
	terminal  map[string]Family
	inactive  map[string]bool
	onHold    map[string]bool
	active    map[string]bool
}

// NewPipeline validates t and builds its lookup sets.
func NewPipeline(t Taxonomy) (*Pipeline, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{
		taxonomy:  t,
		discovery: toSet(t.Discovery),
		terminal:  make(map[string]Family),
		inactive:  toSet(t.Inactive),
		onHold:    toSet(t.OnHold),
		active:    toSet(t.Active),
	}
	for fam, statuses := range t.Terminal {
		for _, s := range statuses {
			p.terminal[normalize(s)] = fam
		}
	}
	return p, nil
}

// MustPipeline is NewPipeline for taxonomies known to be valid.
func MustPipeline(t Taxonomy) *Pipeline {
	p, err := NewPipeline(t)
	if err != nil {
		panic(err)
	}
	return p
}

func toSet(values []string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[normalize(v)] = true
	}
	return m
}

// Taxonomy returns the source configuration.
func (p *Pipeline) Taxonomy() Taxonomy {
	return p.taxonomy
}

func (p *Pipeline) IsDiscovery(status string) bool {
	return p.discovery[normalize(status)]
}

func (p *Pipeline) TerminalFamily(status string) (Family, bool) {
	f, ok := p.terminal[normalize(status)]
	return f, ok
}

func (p *Pipeline) IsTerminal(status string) bool {
	_, ok := p.terminal[normalize(status)]
	return ok
}

// IsInactive is the default inactivity predicate: an inactive status or an on-hold health.
func (p *Pipeline) IsInactive(status, health string) bool {
	return p.inactive[normalize(status)] || p.onHold[normalize(health)]
}

// IsActive reports whether status counts toward a member's active workload.
func (p *Pipeline) IsActive(status string) bool {
	return p.active[normalize(status)]
}
