package data

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// JobRank is one step on a job's promotion ladder.
type JobRank struct {
	Label  string  `yaml:"label"`
	Salary float64 `yaml:"salary"`
}

// Job is one employable job with its rank ladder.
type Job struct {
	Name  string    `yaml:"name"`
	Label string    `yaml:"label"`
	Ranks []JobRank `yaml:"ranks"`
}

// JobTable holds all jobs, keyed case-insensitively by name.
type JobTable struct {
	jobs map[string]*Job
}

// Get returns a job by name (case-insensitive), or nil if not configured.
func (t *JobTable) Get(name string) *Job {
	return t.jobs[strings.ToLower(name)]
}

// Count returns the number of jobs loaded.
func (t *JobTable) Count() int {
	return len(t.jobs)
}

type jobListFile struct {
	Jobs []Job `yaml:"jobs"`
}

// LoadJobTable loads the job table from a YAML file.
// Every job must declare at least one rank so rank 0 is always valid.
func LoadJobTable(path string) (*JobTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read jobs: %w", err)
	}
	var f jobListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse jobs: %w", err)
	}

	t := &JobTable{jobs: make(map[string]*Job, len(f.Jobs))}
	for i := range f.Jobs {
		job := f.Jobs[i]
		if len(job.Ranks) == 0 {
			return nil, fmt.Errorf("job %q has no ranks", job.Name)
		}
		key := strings.ToLower(job.Name)
		if _, dup := t.jobs[key]; dup {
			return nil, fmt.Errorf("duplicate job %q", job.Name)
		}
		t.jobs[key] = &job
	}
	return t, nil
}
