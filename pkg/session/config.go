package session

import "slices"

// Config holds the per-session execution settings. Nil fields mean the driver
// default is used.
type Config struct {
	FetchSize *int
	// QueryTimeout is in seconds.
	QueryTimeout *int
	// Tags are attached to log entries and failure notifications.
	Tags []string
}

func (c Config) clone() Config {
	out := Config{Tags: slices.Clone(c.Tags)}
	if c.FetchSize != nil {
		v := *c.FetchSize
		out.FetchSize = &v
	}
	if c.QueryTimeout != nil {
		v := *c.QueryTimeout
		out.QueryTimeout = &v
	}
	return out
}

// ConfigOption changes one field of a Config.
type ConfigOption func(*Config)

// FetchSize sets the fetch size hint for subsequent statements.
func FetchSize(size int) ConfigOption {
	return func(c *Config) { c.FetchSize = &size }
}

// NoFetchSize restores the driver default fetch size.
func NoFetchSize() ConfigOption {
	return func(c *Config) { c.FetchSize = nil }
}

// QueryTimeout sets the statement timeout in seconds.
func QueryTimeout(seconds int) ConfigOption {
	return func(c *Config) { c.QueryTimeout = &seconds }
}

// NoQueryTimeout restores the driver default timeout.
func NoQueryTimeout() ConfigOption {
	return func(c *Config) { c.QueryTimeout = nil }
}

// Tags replaces the session tags.
func Tags(tags ...string) ConfigOption {
	return func(c *Config) { c.Tags = slices.Clone(tags) }
}
