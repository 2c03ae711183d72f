// Package agents describes the agents served by the platform: their names,
// enterprise context prompt and the routes their graphs offer.
package agents

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tagus/enterprise-agents/pkg/chains"
	"github.com/tagus/enterprise-agents/pkg/memory"
)

//go:embed agents.yaml
var builtin []byte

// DefaultChunkSize is the chunk size of the knowledge base collections
const DefaultChunkSize = 700

// ErrUnknownAgent is returned for names not in the registry
var ErrUnknownAgent = errors.New("unknown agent")

// Profile is one agent
type Profile struct {
	Name         string   `yaml:"name"`
	Title        string   `yaml:"title"`
	Purpose      string   `yaml:"purpose"`
	Routes       []string `yaml:"routes"`
	CanDo        []string `yaml:"can_do"`
	HistoryTurns int      `yaml:"history_turns,omitempty"`
	ChunkSize    int      `yaml:"chunk_size,omitempty"`
	// Gather is asked for before the query is routed
	Gather *chains.GatherSpec `yaml:"gather,omitempty"`

	context string
}

// Path is the lower-case name used in URLs and blob paths, e.g. hragent
func (p *Profile) Path() string {
	return strings.ToLower(p.Name)
}

// Collection is the vector store class holding the agent's chunks
func (p *Profile) Collection() string {
	return fmt.Sprintf("%sCharChunkSize%d", p.Name, p.ChunkSize)
}

// EnterpriseContext is the organization and capability prompt given to every chain
func (p *Profile) EnterpriseContext() string {
	return p.context
}

// RouteSet returns the parsed routes
func (p *Profile) RouteSet() []chains.Route {
	out := make([]chains.Route, 0, len(p.Routes))
	for _, r := range p.Routes {
		if route, ok := chains.ParseRoute(r); ok {
			out = append(out, route)
		}
	}
	return out
}

// Has reports whether the agent offers route
func (p *Profile) Has(route chains.Route) bool {
	for _, r := range p.RouteSet() {
		if r == route {
			return true
		}
	}
	return false
}

type file struct {
	BaseContext string     `yaml:"base_context"`
	CannotDo    []string   `yaml:"cannot_do"`
	Agents      []*Profile `yaml:"agents"`
}

// Registry holds the agent profiles by name
type Registry struct {
	base     string
	cannotDo []string
	agents   map[string]*Profile
}

// Load returns the built-in registry
func Load() (*Registry, error) {
	return Parse(builtin)
}

// Parse reads a registry document
func Parse(data []byte) (*Registry, error) {
	r := &Registry{agents: make(map[string]*Profile)}
	if err := r.merge(data); err != nil {
		return nil, err
	}
	return r, nil
}

// LoadFile overlays the agents of a YAML file on the built-in registry.
// Agents with an existing name replace the built-in profile.
func LoadFile(path string) (*Registry, error) {
	r, err := Load()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read agents file: %w", err)
	}
	if err := r.merge(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

func (r *Registry) merge(data []byte) error {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse agents: %w", err)
	}
	if f.BaseContext != "" {
		r.base = f.BaseContext
	}
	if len(f.CannotDo) > 0 {
		r.cannotDo = f.CannotDo
	}
	for _, p := range f.Agents {
		if p.Name == "" {
			return errors.New("agent without a name")
		}
		for _, route := range p.Routes {
			if _, ok := chains.ParseRoute(route); !ok {
				return fmt.Errorf("agent %s: unknown route %q", p.Name, route)
			}
		}
		if p.Gather != nil && p.Gather.Field == "" {
			return fmt.Errorf("agent %s: gather without a field", p.Name)
		}
		if p.HistoryTurns <= 0 {
			p.HistoryTurns = memory.DefaultHistoryTurns
		}
		if p.ChunkSize <= 0 {
			p.ChunkSize = DefaultChunkSize
		}
		if p.Title == "" {
			p.Title = p.Name
		}
		r.agents[strings.ToLower(p.Name)] = p
	}
	for _, p := range r.agents {
		p.context = r.render(p)
	}
	return nil
}

func (r *Registry) render(p *Profile) string {
	var b strings.Builder
	b.WriteString(r.base)
	b.WriteString("\n\nLLM Assistant purpose and capabilities:\n\n")
	fmt.Fprintf(&b, "You are the %s, part of the AI Agent Platform. %s\n\n", p.Title, p.Purpose)
	b.WriteString("\tWhat you can do:\n")
	for _, item := range p.CanDo {
		fmt.Fprintf(&b, "\t\t- %s\n", item)
	}
	b.WriteString("\n\tWhat you cannot do:\n")
	for _, item := range r.cannotDo {
		fmt.Fprintf(&b, "\t\t- %s\n", item)
	}
	return b.String()
}

// Get looks an agent up by name or path, ignoring case
func (r *Registry) Get(name string) (*Profile, error) {
	p, ok := r.agents[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, name)
	}
	return p, nil
}

// All returns the profiles sorted by name
func (r *Registry) All() []*Profile {
	out := make([]*Profile, 0, len(r.agents))
	for _, p := range r.agents {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
