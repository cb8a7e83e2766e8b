// Package catalog loads action definitions from YAML.
//
// A catalog groups actions into sections that share a path, version and
// seller-id style:
//
//	sections:
//	  - name: Products
//	    path: /Products/2011-10-01
//	    version: 2011-10-01
//	    enums:
//	      ItemConditions: [New, Used, Collectible, Refurbished, Club]
//	    actions:
//	      - name: GetMatchingProduct
//	        throttle: {quota: 20, restore: 1s}
//	        params:
//	          - {name: MarketplaceId, required: true}
//	          - {name: ASINList, wire: ASINList.ASIN, kind: list, required: true}
package catalog

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/dominhhai/mws-sdk/domain/enum"
	"github.com/dominhhai/mws-sdk/domain/param"
	"github.com/dominhhai/mws-sdk/domain/request"
	"github.com/dominhhai/mws-sdk/domain/throttle"
	"gopkg.in/yaml.v3"
)

var (
	// ErrNotFound matches unknown section, action and enum lookups.
	ErrNotFound = errors.New("not found")
	// ErrInvalid matches every catalog validation failure.
	ErrInvalid = errors.New("invalid catalog")
)

// document mirrors the YAML layout.
type document struct {
	Sections []sectionDoc `yaml:"sections"`
}

type sectionDoc struct {
	Name    string              `yaml:"name"`
	Path    string              `yaml:"path"`
	Version string              `yaml:"version"`
	Legacy  bool                `yaml:"legacy"`
	Enums   map[string][]string `yaml:"enums"`
	Actions []actionDoc         `yaml:"actions"`
}

type actionDoc struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Upload      bool        `yaml:"upload"`
	Throttle    throttleDoc `yaml:"throttle"`
	Params      []paramDoc  `yaml:"params"`
}

// throttleDoc is the request quota of an action.
type throttleDoc struct {
	Quota   int           `yaml:"quota"`
	Restore time.Duration `yaml:"restore"`
}

func (t throttleDoc) build() (throttle.Config, error) {
	switch {
	case t.Quota < 0 || t.Restore < 0:
		return throttle.Config{}, errors.New("throttle quota and restore must not be negative")
	case (t.Quota == 0) != (t.Restore == 0):
		return throttle.Config{}, errors.New("throttle needs both quota and restore")
	}
	return throttle.Config{Quota: t.Quota, Restore: t.Restore}, nil
}

type paramDoc struct {
	Name     string   `yaml:"name"`
	Wire     string   `yaml:"wire"`
	Kind     string   `yaml:"kind"`
	Type     string   `yaml:"type"`
	Required bool     `yaml:"required"`
	Enum     string   `yaml:"enum"`
	Choices  []string `yaml:"choices"`
	Joined   bool     `yaml:"joined"`
}

// Catalog is an immutable set of sections.
type Catalog struct {
	sections map[string]*Section
	order    []string
}

// Section is a group of actions sharing a descriptor.
type Section struct {
	Name    string
	Path    string
	Version string
	Legacy  bool

	enums   map[string][]string
	actions map[string]*Action
	order   []string
}

// Action is one callable operation and its parameter schema.
type Action struct {
	Section     string
	Name        string
	Description string
	Descriptor  request.Descriptor
	Specs       []param.Spec
}

// Load reads a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse builds a catalog from YAML bytes.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse: %v", ErrInvalid, err)
	}

	c := &Catalog{sections: make(map[string]*Section, len(doc.Sections))}
	for i, sd := range doc.Sections {
		if sd.Name == "" {
			return nil, fmt.Errorf("%w: sections[%d]: name is required", ErrInvalid, i)
		}
		if _, dup := c.sections[sd.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate section %q", ErrInvalid, sd.Name)
		}
		s, err := buildSection(sd)
		if err != nil {
			return nil, fmt.Errorf("%w: section %s: %v", ErrInvalid, sd.Name, err)
		}
		c.sections[s.Name] = s
		c.order = append(c.order, s.Name)
	}
	return c, nil
}

func buildSection(sd sectionDoc) (*Section, error) {
	base := request.Descriptor{Path: sd.Path, Version: sd.Version, Legacy: sd.Legacy}.WithDefaults()
	s := &Section{
		Name:    sd.Name,
		Path:    base.Path,
		Version: base.Version,
		Legacy:  base.Legacy,
		enums:   make(map[string][]string, len(sd.Enums)),
		actions: make(map[string]*Action, len(sd.Actions)),
	}
	for name, choices := range sd.Enums {
		if len(choices) == 0 {
			return nil, fmt.Errorf("enum %s has no choices", name)
		}
		s.enums[name] = append([]string(nil), choices...)
	}

	for i, ad := range sd.Actions {
		if ad.Name == "" {
			return nil, fmt.Errorf("actions[%d]: name is required", i)
		}
		if _, dup := s.actions[ad.Name]; dup {
			return nil, fmt.Errorf("duplicate action %q", ad.Name)
		}

		d := base
		d.Upload = ad.Upload
		tc, err := ad.Throttle.build()
		if err != nil {
			return nil, fmt.Errorf("action %s: %w", ad.Name, err)
		}
		d.Throttle = tc
		a := &Action{Section: s.Name, Name: ad.Name, Description: ad.Description, Descriptor: d}
		for _, pd := range ad.Params {
			spec, err := s.buildSpec(pd)
			if err != nil {
				return nil, fmt.Errorf("action %s: parameter %s: %w", ad.Name, pd.Name, err)
			}
			a.Specs = append(a.Specs, spec)
		}
		// Catches empty and duplicate parameter names.
		if _, err := a.NewRequest(); err != nil {
			return nil, fmt.Errorf("action %s: %w", ad.Name, err)
		}

		s.actions[a.Name] = a
		s.order = append(s.order, a.Name)
	}
	return s, nil
}

func (s *Section) buildSpec(pd paramDoc) (param.Spec, error) {
	kindName := pd.Kind
	if kindName == "" && (pd.Enum != "" || len(pd.Choices) > 0) {
		kindName = "enum"
	}
	kind, err := param.ParseKind(kindName)
	if err != nil {
		return param.Spec{}, err
	}
	vt, err := param.ParseValueType(pd.Type)
	if err != nil {
		return param.Spec{}, err
	}

	choices := pd.Choices
	if pd.Enum != "" {
		ref, ok := s.enums[pd.Enum]
		if !ok {
			return param.Spec{}, fmt.Errorf("unknown enum %q", pd.Enum)
		}
		choices = ref
	}
	if len(choices) > 0 && kind != param.Enum {
		return param.Spec{}, fmt.Errorf("choices need kind enum, got %s", kind)
	}
	if pd.Joined && kind != param.Enum {
		return param.Spec{}, fmt.Errorf("joined needs kind enum, got %s", kind)
	}

	return param.Spec{
		Name:     pd.Name,
		Wire:     pd.Wire,
		Kind:     kind,
		Type:     vt,
		Required: pd.Required,
		Choices:  choices,
		Joined:   pd.Joined,
	}, nil
}

// Sections returns the sections in file order.
func (c *Catalog) Sections() []*Section {
	out := make([]*Section, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.sections[name])
	}
	return out
}

// Section returns a section by name.
func (c *Catalog) Section(name string) (*Section, error) {
	s, ok := c.sections[name]
	if !ok {
		return nil, fmt.Errorf("section %q: %w", name, ErrNotFound)
	}
	return s, nil
}

// Action returns an action by section and name.
func (c *Catalog) Action(section, action string) (*Action, error) {
	s, err := c.Section(section)
	if err != nil {
		return nil, err
	}
	a, ok := s.actions[action]
	if !ok {
		return nil, fmt.Errorf("action %s.%s: %w", section, action, ErrNotFound)
	}
	return a, nil
}

// Enum returns a fresh enum built from a section's choice set.
func (c *Catalog) Enum(section, name string) (*enum.Enum, error) {
	s, err := c.Section(section)
	if err != nil {
		return nil, err
	}
	choices, ok := s.enums[name]
	if !ok {
		return nil, fmt.Errorf("enum %s.%s: %w", section, name, ErrNotFound)
	}
	return enum.New(choices...), nil
}

// Len returns the total number of actions.
func (c *Catalog) Len() int {
	n := 0
	for _, s := range c.sections {
		n += len(s.actions)
	}
	return n
}

// Actions returns the section's actions in file order.
func (s *Section) Actions() []*Action {
	out := make([]*Action, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.actions[name])
	}
	return out
}

// EnumNames returns the names of the section's choice sets.
func (s *Section) EnumNames() []string {
	names := make([]string, 0, len(s.enums))
	for n := range s.enums {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewRequest returns an empty request for the action. Every call returns a
// request with its own values; the schema is shared read-only.
func (a *Action) NewRequest() (*request.Request, error) {
	return request.New(a.Name, a.Descriptor, a.Specs...)
}

// Spec returns the parameter with the given logical or wire name.
func (a *Action) Spec(name string) (param.Spec, bool) {
	for _, s := range a.Specs {
		if s.Name == name || s.WireName() == name {
			return s, true
		}
	}
	return param.Spec{}, false
}
