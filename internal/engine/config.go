package engine

// Config holds engine settings
type Config struct {
	// Timezone is the business-day reference zone: "today" for a run
	// without an explicit snapshotDate is computed here, not in UTC.
	Timezone string `toml:"timezone"`
	// SystemSchemas are always excluded from discovery, unconditionally,
	// on top of the store's own internal schemas.
	SystemSchemas []string `toml:"system_schemas"`
	// CollectSizes enables per-table storage-size metrics when the
	// backing store supports them.
	CollectSizes bool `toml:"collect_sizes"`
}

// DefaultConfig returns engine defaults
func DefaultConfig() Config {
	return Config{
		Timezone:      "America/New_York",
		SystemSchemas: []string{},
		CollectSizes:  true,
	}
}
