package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config represents the top-level YAML configuration.
type Config struct {
	Connection    Connection     `yaml:"connection"`
	Schemas       []string       `yaml:"schemas"`
	ExcludeTables []string       `yaml:"exclude_tables"`
	Log           Log            `yaml:"log"`
	Query         Query          `yaml:"query"`
	Models        []Model        `yaml:"models"`
	Relationships []Relationship `yaml:"relationships"`
}

// Connection holds database connection parameters.
type Connection struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	// MaxConns caps the pool size; 0 keeps the pgx default.
	MaxConns int32 `yaml:"max_conns"`
}

// Log configures the logger.
type Log struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// Query configures the composer engine and the query command.
type Query struct {
	// MaxDepth prunes domain query fields nested deeper; 0 keeps every level.
	MaxDepth int `yaml:"max_depth"`
	// Strict turns comparisons against unknown columns into errors.
	Strict bool `yaml:"strict"`
}

// Model declares a record type.
type Model struct {
	Table   string         `yaml:"table"`
	Columns []ColumnConfig `yaml:"columns"`
}

// ColumnConfig declares one column of a model. Unset properties fall back to
// the defaults of the column's type.
type ColumnConfig struct {
	Name          string `yaml:"name"`
	Type          string `yaml:"type"`
	Length        int    `yaml:"length"`
	Nullable      *bool  `yaml:"nullable"`
	Unique        bool   `yaml:"unique"`
	PrimaryKey    bool   `yaml:"primary_key"`
	AutoIncrement bool   `yaml:"auto_increment"`
	Array         bool   `yaml:"array"`
	Default       any    `yaml:"default"`
	Hidden        bool   `yaml:"hidden"`
}

// Relationship declares that Parent joins to Child. Empty Name, As and Via
// take the graph defaults.
type Relationship struct {
	Parent   string `yaml:"parent"`
	Child    string `yaml:"child"`
	Name     string `yaml:"name"`
	As       string `yaml:"as"`
	Via      string `yaml:"via"`
	Multiple bool   `yaml:"multiple"`
}

// DSN builds a PostgreSQL connection string.
func (c *Connection) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Database, c.User, c.Password, c.SSLMode,
	)
}

// Load reads and parses a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML config data, applying environment fallbacks and
// defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyEnv fills in empty Connection fields from environment variables.
// YAML values take precedence; env vars are used only as fallback.
func (c *Config) applyEnv() {
	conn := &c.Connection
	if conn.Host == "" {
		conn.Host = envOr("PGHOST", "POSTGRES_HOST")
	}
	if conn.Port == 0 {
		if s := envOr("PGPORT", "POSTGRES_PORT"); s != "" {
			if p, err := strconv.Atoi(s); err == nil {
				conn.Port = p
			}
		}
	}
	if conn.Database == "" {
		conn.Database = envOr("PGDATABASE", "POSTGRES_DB")
	}
	if conn.User == "" {
		conn.User = envOr("PGUSER", "POSTGRES_USER")
	}
	if conn.Password == "" {
		conn.Password = envOr("PGPASSWORD", "POSTGRES_PASSWORD")
	}
	if conn.SSLMode == "" {
		conn.SSLMode = envOr("PGSSLMODE")
	}
}

// envOr returns the first non-empty value from the given env var names.
func envOr(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

// validate fills defaults and checks the declarations. Connection fields are
// only checked by ValidateConnection, since ddl and dry runs never connect.
func (c *Config) validate() error {
	if c.Connection.Port == 0 {
		c.Connection.Port = 5432
	}
	if c.Connection.SSLMode == "" {
		c.Connection.SSLMode = "disable"
	}
	if len(c.Schemas) == 0 {
		c.Schemas = []string{"public"}
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Connection.MaxConns < 0 {
		return fmt.Errorf("connection.max_conns must not be negative")
	}
	if c.Query.MaxDepth < 0 {
		return fmt.Errorf("query.max_depth must not be negative")
	}

	seen := make(map[string]bool, len(c.Models))
	for i, m := range c.Models {
		if m.Table == "" {
			return fmt.Errorf("models[%d].table is required", i)
		}
		if seen[m.Table] {
			return fmt.Errorf("models[%d]: duplicate table %q", i, m.Table)
		}
		seen[m.Table] = true
		for j, col := range m.Columns {
			if col.Name == "" {
				return fmt.Errorf("models[%d].columns[%d].name is required", i, j)
			}
		}
	}
	for i, r := range c.Relationships {
		if r.Parent == "" || r.Child == "" {
			return fmt.Errorf("relationships[%d]: parent and child are required", i)
		}
	}
	return nil
}

// ValidateConnection checks the fields required to connect.
func (c *Config) ValidateConnection() error {
	if c.Connection.Host == "" {
		return fmt.Errorf("connection.host is required")
	}
	if c.Connection.Database == "" {
		return fmt.Errorf("connection.database is required")
	}
	if c.Connection.User == "" {
		return fmt.Errorf("connection.user is required")
	}
	return nil
}

// ExcludeSet returns a set of excluded table names for O(1) lookup.
func (c *Config) ExcludeSet() map[string]bool {
	set := make(map[string]bool, len(c.ExcludeTables))
	for _, t := range c.ExcludeTables {
		set[t] = true
	}
	return set
}
