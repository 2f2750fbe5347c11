package scheduler

import (
	"fmt"

	"github.com/nmsplatform/tablemetrics/internal/cron"
	"github.com/nmsplatform/tablemetrics/internal/engine"
)

// Config holds the recurring collection settings
type Config struct {
	Enabled bool        `toml:"enabled"`
	Jobs    []JobConfig `toml:"jobs"`
}

// JobConfig is one recurring collection entry: a cron schedule plus the
// invocation request it submits on every firing. Each firing is a fresh
// run through the coordinator, so overlapping or retried firings are
// safe under the daily snapshot's recency rule.
type JobConfig struct {
	Name        string   `toml:"name"`
	Schedule    string   `toml:"schedule"`
	Mode        string   `toml:"mode"`
	Tables      []string `toml:"tables"`
	Exclude     []string `toml:"exclude"`
	SkipSchemas []string `toml:"skip_schemas"`
	// Approx selects the O(1) estimated count instead of the full scan
	Approx bool `toml:"approx"`
}

// DefaultConfig returns scheduler defaults: disabled, no jobs
func DefaultConfig() Config {
	return Config{Enabled: false}
}

// Validate checks job names and schedules
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	seen := make(map[string]bool)
	for _, j := range c.Jobs {
		if j.Name == "" {
			return fmt.Errorf("scheduler job name must be specified")
		}
		if seen[j.Name] {
			return fmt.Errorf("duplicate scheduler job name: %s", j.Name)
		}
		seen[j.Name] = true

		if _, err := cron.Parse(j.Schedule); err != nil {
			return fmt.Errorf("scheduler job %s: %w", j.Name, err)
		}
	}

	return nil
}

// request builds the engine invocation for one firing.
func (j JobConfig) request() engine.Request {
	exact := !j.Approx
	return engine.Request{
		Mode:        engine.Mode(j.Mode),
		Tables:      j.Tables,
		Exclude:     j.Exclude,
		SkipSchemas: j.SkipSchemas,
		Exact:       &exact,
	}
}
