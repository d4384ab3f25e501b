package vidpipe

import "time"

// RuntimeConfig is the supervisor's configuration object (§6). Field names
// carry yaml tags so a host can load one from disk with gopkg.in/yaml.v3,
// the same role BurntSushi/toml plays for dekarrin-tunaq's server config.
type RuntimeConfig struct {
	DefaultSourceIntervalSeconds float64 `yaml:"default_source_interval_seconds"`
	DefaultEdgeCapacity          int     `yaml:"default_edge_capacity"`
	AsyncEdgeCapacity            int     `yaml:"async_edge_capacity"`
	ConsecutiveFailureLimit      int     `yaml:"consecutive_failure_limit"`
	ShutdownGraceSeconds         float64 `yaml:"shutdown_grace_seconds"`
}

// DefaultRuntimeConfig returns the §6 defaults.
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		DefaultSourceIntervalSeconds: 1.0 / 30.0,
		DefaultEdgeCapacity:          defaultEdgeCapacity,
		AsyncEdgeCapacity:            asyncEdgeCapacity,
		ConsecutiveFailureLimit:      16,
		ShutdownGraceSeconds:         2.0,
	}
}

func (c RuntimeConfig) sourceInterval() time.Duration {
	if c.DefaultSourceIntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(c.DefaultSourceIntervalSeconds * float64(time.Second))
}

func (c RuntimeConfig) shutdownGrace() time.Duration {
	return time.Duration(c.ShutdownGraceSeconds * float64(time.Second))
}
