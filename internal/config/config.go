package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Retrieval modes.
const (
	RetrievalGet  = "get"  // C-GET: the archive streams objects back on our association
	RetrievalMove = "move" // C-MOVE: the archive pushes objects to our storescp
)

// Config holds the dicomgw configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Archive  PeerConfig     `yaml:"archive"`
	Local    PeerConfig     `yaml:"local"`
	DIMSE    DIMSEConfig    `yaml:"dimse"`
	Cache    CacheConfig    `yaml:"cache"`
	QIDO     QIDOConfig     `yaml:"qido"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings. Empty api_keys disables auth.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeoutSec  int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec int      `yaml:"write_timeout_sec"`
	ShutdownSec     int      `yaml:"shutdown_timeout_sec"`
	StaticDir       string   `yaml:"static_dir"`
	CORSOrigins     []string `yaml:"cors_origins"`
}

// DatabaseConfig holds freshness index store settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis, valkey, memory (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds key naming settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// PeerConfig describes a DICOM application entity.
type PeerConfig struct {
	AET  string `yaml:"aet"`
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DIMSEConfig holds toolkit settings.
type DIMSEConfig struct {
	BinDir      string `yaml:"bin_dir"`     // directory with findscu/getscu/movescu/echoscu/storescp; empty = $PATH
	Retrieval   string `yaml:"retrieval"`   // get | move
	IncomingDir string `yaml:"incoming_dir"` // storescp output for move mode
	Verbose     bool   `yaml:"verbose"`
}

// CacheConfig holds on-disk cache settings.
type CacheConfig struct {
	StoragePath      string `yaml:"storage_path"`
	RetentionMinutes *int   `yaml:"retention_minutes"` // negative disables TTL tracking
	ClearOnStartup   bool   `yaml:"clear_on_startup"`
	RefreshOnHit     bool   `yaml:"refresh_on_hit"`
}

// QIDOConfig holds query translation policies.
type QIDOConfig struct {
	MinChars       int  `yaml:"min_chars"`
	AppendWildcard bool `yaml:"append_wildcard"`
}

// Retention returns the configured retention in minutes.
func (c CacheConfig) Retention() int {
	if c.RetentionMinutes == nil {
		return defaultRetentionMinutes
	}
	return *c.RetentionMinutes
}

const defaultRetentionMinutes = 60

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes a YAML document, applies defaults and validates the result.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	// Metadata and frame requests wait for archive retrievals.
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 300
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "valkey"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "dicomgw:"
	}
	if c.Local.AET == "" {
		c.Local.AET = "DICOMGW"
	}
	if c.Local.Port <= 0 {
		c.Local.Port = 9999
	}
	if c.DIMSE.Retrieval == "" {
		c.DIMSE.Retrieval = RetrievalGet
	}
	if c.Cache.StoragePath == "" {
		c.Cache.StoragePath = "./data"
	}
	if c.DIMSE.IncomingDir == "" {
		c.DIMSE.IncomingDir = filepath.Join(c.Cache.StoragePath, ".incoming")
	}
	if c.QIDO.MinChars < 0 {
		c.QIDO.MinChars = 0
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "redis", "valkey":
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", c.Database.Driver)
		}
	case "memory":
	default:
		return fmt.Errorf("database.driver must be \"redis\", \"valkey\" or \"memory\", got %q", c.Database.Driver)
	}
	if c.Archive.AET == "" || c.Archive.Host == "" {
		return fmt.Errorf("archive.aet and archive.host are required")
	}
	if c.Archive.Port <= 0 || c.Archive.Port > 65535 {
		return fmt.Errorf("archive.port must be between 1 and 65535, got %d", c.Archive.Port)
	}
	if c.Local.Port > 65535 {
		return fmt.Errorf("local.port must be between 1 and 65535, got %d", c.Local.Port)
	}
	switch c.DIMSE.Retrieval {
	case RetrievalGet, RetrievalMove:
	default:
		return fmt.Errorf("dimse.retrieval must be %q or %q, got %q", RetrievalGet, RetrievalMove, c.DIMSE.Retrieval)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
