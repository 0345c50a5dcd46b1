package data

import "path/filepath"

// Tables bundles every static configuration table the player core needs.
// It is loaded once at boot and injected into construction and methods —
// no package reads it as ambient global state.
type Tables struct {
	Groups   *GroupTable
	Jobs     *JobTable
	Defaults *Defaults
}

// LoadTables loads all configuration tables from a data directory.
func LoadTables(dir string) (*Tables, error) {
	groups, err := LoadGroupTable(filepath.Join(dir, "groups.yaml"))
	if err != nil {
		return nil, err
	}
	jobs, err := LoadJobTable(filepath.Join(dir, "jobs.yaml"))
	if err != nil {
		return nil, err
	}
	defaults, err := LoadDefaults(filepath.Join(dir, "defaults.yaml"))
	if err != nil {
		return nil, err
	}
	return &Tables{Groups: groups, Jobs: jobs, Defaults: defaults}, nil
}
