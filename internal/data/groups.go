package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Group is one permission tier. Rank is the group's position in the
// declaration order; a higher rank implies a superset of every lower
// rank's permissions.
type Group struct {
	Name string `yaml:"name"`
	Rank int    `yaml:"-"`
}

// GroupTable holds all permission groups indexed by name.
// The declaration order of the YAML file is preserved for First().
type GroupTable struct {
	groups  map[string]Group
	ordered []string
}

// Rank returns the ordinal rank of a group and whether it is configured.
func (t *GroupTable) Rank(name string) (int, bool) {
	g, ok := t.groups[name]
	return g.Rank, ok
}

// Has returns true if the group is configured.
func (t *GroupTable) Has(name string) bool {
	_, ok := t.groups[name]
	return ok
}

// First returns the first configured group name, or "user" when the
// table is empty. Used as the fallback group on character load.
func (t *GroupTable) First() string {
	if len(t.ordered) == 0 {
		return "user"
	}
	return t.ordered[0]
}

// Count returns the number of groups loaded.
func (t *GroupTable) Count() int {
	return len(t.groups)
}

type groupListFile struct {
	Groups []Group `yaml:"groups"`
}

// LoadGroupTable loads the permission group table from a YAML file.
func LoadGroupTable(path string) (*GroupTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read groups: %w", err)
	}
	var f groupListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse groups: %w", err)
	}

	t := &GroupTable{groups: make(map[string]Group, len(f.Groups))}
	for i, g := range f.Groups {
		if _, dup := t.groups[g.Name]; dup {
			return nil, fmt.Errorf("duplicate group %q", g.Name)
		}
		g.Rank = i
		t.groups[g.Name] = g
		t.ordered = append(t.ordered, g.Name)
	}
	return t, nil
}
