package tasks

import (
	"fmt"
	"os"

	"github.com/gosimple/slug"
	"gopkg.in/yaml.v3"

	"github.com/pvuminhtri-cloud/kiemcoinnao/shortlink"
)

// Definition is one statically configured sponsored task. Definitions are
// loaded once at boot and never mutated by the task flow.
type Definition struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Reward   int64  `yaml:"reward"`    // coins per verified completion
	MaxTurns int    `yaml:"max_turns"` // per-day cap
	Network  string `yaml:"network"`   // shortlink provider
}

// Catalog is the closed set of task definitions. Every task maps to exactly
// one known shortlink network; the mapping is checked at load time.
type Catalog struct {
	defs  map[string]Definition
	order []string
}

// LoadCatalog reads and validates the task definition file.
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task catalog: %w", err)
	}

	var file struct {
		Tasks []Definition `yaml:"tasks"`
	}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse task catalog: %w", err)
	}
	if len(file.Tasks) == 0 {
		return nil, fmt.Errorf("task catalog %s defines no tasks", path)
	}

	c := &Catalog{defs: make(map[string]Definition, len(file.Tasks))}
	for _, def := range file.Tasks {
		if def.ID == "" || def.Name == "" {
			return nil, fmt.Errorf("task catalog: task with empty id or name")
		}
		if def.ID != slug.Make(def.ID) {
			return nil, fmt.Errorf("task catalog: id %q is not in slug form (want %q)", def.ID, slug.Make(def.ID))
		}
		if def.Reward <= 0 {
			return nil, fmt.Errorf("task catalog: task %q has non-positive reward %d", def.ID, def.Reward)
		}
		if def.MaxTurns <= 0 {
			return nil, fmt.Errorf("task catalog: task %q has non-positive max_turns %d", def.ID, def.MaxTurns)
		}
		if !shortlink.Known(def.Network) {
			return nil, fmt.Errorf("task catalog: task %q uses unknown network %q", def.ID, def.Network)
		}
		if _, dup := c.defs[def.ID]; dup {
			return nil, fmt.Errorf("task catalog: duplicate task id %q", def.ID)
		}
		c.defs[def.ID] = def
		c.order = append(c.order, def.ID)
	}
	return c, nil
}

// Get looks up a task definition by id.
func (c *Catalog) Get(id string) (Definition, bool) {
	def, ok := c.defs[id]
	return def, ok
}

// All returns the definitions in file order.
func (c *Catalog) All() []Definition {
	out := make([]Definition, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.defs[id])
	}
	return out
}
