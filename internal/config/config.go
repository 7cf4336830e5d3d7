package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Relation kinds a table can have relative to the source rows.
const (
	RelationPerRow      = "per_row"
	RelationPerDistinct = "per_distinct"
)

// Config represents the top-level YAML run configuration.
type Config struct {
	Connection     Connection  `yaml:"connection"`
	Schema         string      `yaml:"schema"`
	Source         Source      `yaml:"source"`
	Tables         []Table     `yaml:"tables"`
	DeclaredTables []string    `yaml:"declared_tables"`
	Load           LoadOptions `yaml:"load"`
	Reset          bool        `yaml:"reset"`
	Logging        Logging     `yaml:"logging"`
	Report         Report      `yaml:"report"`
}

// Connection holds database connection parameters.
type Connection struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int    `yaml:"max_conns"`
}

// Source describes the tabular input file.
type Source struct {
	Path       string   `yaml:"path"`
	Delimiter  string   `yaml:"delimiter"`
	NullValues []string `yaml:"null_values"`
}

// Table is one proposed table: its DDL plus the traits the proposer attached to it.
type Table struct {
	DDL           string            `yaml:"ddl"`
	DDLFile       string            `yaml:"ddl_file"`
	ColumnMapping map[string]string `yaml:"column_mapping"`
	Relation      string            `yaml:"relation"`
	SurrogateKey  string            `yaml:"surrogate_key"`
	NaturalKey    string            `yaml:"natural_key"`
}

// LoadOptions tunes the referential loader.
type LoadOptions struct {
	// MaxRetries is the number of cleaned retries per row (nil means the default of 2).
	MaxRetries     *int `yaml:"max_retries"`
	SampleLimit    int  `yaml:"sample_limit"`
	MessageLimit   int  `yaml:"message_limit"`
	TruncateLength int  `yaml:"truncate_length"`
	StopAfter      int  `yaml:"stop_after"`
}

// Logging selects log level and encoding.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Report selects where and how load statistics are written.
type Report struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format"`
}

// DSN builds a PostgreSQL connection string.
func (c *Connection) DSN() string {
	dsn := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Database, c.User, c.Password, c.SSLMode,
	)
	if c.MaxConns > 0 {
		dsn += fmt.Sprintf(" pool_max_conns=%d", c.MaxConns)
	}
	return dsn
}

// Retries returns the configured retry bound.
func (l LoadOptions) Retries() int {
	if l.MaxRetries == nil {
		return 2
	}
	return *l.MaxRetries
}

// Load reads and parses a YAML config file.
// DDL files are resolved relative to the config file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if err := cfg.readDDLFiles(filepath.Dir(path)); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML config data and applies environment fallbacks.
// It does not validate; Load does.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.applyEnv()
	return &cfg, nil
}

func (c *Config) readDDLFiles(dir string) error {
	for i := range c.Tables {
		t := &c.Tables[i]
		if t.DDLFile == "" || t.DDL != "" {
			continue
		}
		p := t.DDLFile
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("reading tables[%d].ddl_file: %w", i, err)
		}
		t.DDL = string(data)
	}
	return nil
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

// validate checks table definitions and fills defaults (sufficient for analyze).
func (c *Config) validate() error {
	if len(c.Tables) == 0 {
		return fmt.Errorf("at least one table must be specified")
	}
	for i, t := range c.Tables {
		if t.DDL == "" {
			return fmt.Errorf("tables[%d]: ddl or ddl_file is required", i)
		}
		switch t.Relation {
		case "", RelationPerRow, RelationPerDistinct:
		default:
			return fmt.Errorf("tables[%d].relation: unknown value %q (supported: %s, %s)",
				i, t.Relation, RelationPerRow, RelationPerDistinct)
		}
	}

	if c.Schema == "" {
		c.Schema = "public"
	}
	if c.Connection.Port == 0 {
		c.Connection.Port = 5432
	}
	if c.Connection.SSLMode == "" {
		c.Connection.SSLMode = "disable"
	}
	if c.Source.Delimiter == "" {
		c.Source.Delimiter = ","
	}
	if len([]rune(c.Source.Delimiter)) != 1 {
		return fmt.Errorf("source.delimiter must be a single character")
	}
	if c.Source.NullValues == nil {
		c.Source.NullValues = []string{""}
	}

	if c.Load.MaxRetries != nil && *c.Load.MaxRetries < 0 {
		return fmt.Errorf("load.max_retries must not be negative")
	}
	if c.Load.SampleLimit <= 0 {
		c.Load.SampleLimit = 5
	}
	if c.Load.MessageLimit <= 0 {
		c.Load.MessageLimit = 200
	}
	if c.Load.TruncateLength <= 0 {
		c.Load.TruncateLength = 255
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}

	switch c.Report.Format {
	case "":
		c.Report.Format = "text"
	case "text", "yaml", "json":
	default:
		return fmt.Errorf("report.format: unknown value %q (supported: text, yaml, json)", c.Report.Format)
	}
	return nil
}

// ValidateConnection checks the fields required to reach the database.
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

// ValidateForLoad checks additional fields required for loading rows.
func (c *Config) ValidateForLoad() error {
	if err := c.ValidateConnection(); err != nil {
		return err
	}
	if c.Source.Path == "" {
		return fmt.Errorf("source.path is required")
	}
	return nil
}

// NullSet returns the configured null markers for O(1) lookup.
func (c *Config) NullSet() map[string]bool {
	set := make(map[string]bool, len(c.Source.NullValues))
	for _, v := range c.Source.NullValues {
		set[v] = true
	}
	return set
}
