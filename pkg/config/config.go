package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/boogy/shc-warden/pkg/utils"
	"github.com/spf13/viper"
)

var (
	once              sync.Once
	instance          *Config
	fetchTimeout      = "5s"     // Bound on the issuer JWKS fetch
	maxTokenLength    = 16384    // Largest accepted card, in characters
	logLevel          = "info"   // Default log level
	serverPort        = 8080     // Default port for the local server
	cacheType         = "memory" // Default verdict cache
	schemaCheck       = true     // Validate trust directories against the schema
	directorySchemes  = []string{"s3", "http", "https", "file"}
	errNoDirectoryRef = errors.New("trust directory source cannot be empty")
)

type Cache struct {
	Type string `mapstructure:"type"` // Cache type (only "memory"; verdicts are not persisted)
}

type Server struct {
	Port int `mapstructure:"port"` // Port the local server listens on
}

type Config struct {
	FetchTimeout              time.Duration `mapstructure:"fetch_timeout"`                // FetchTimeout bounds the issuer JWKS download
	TrustDirectories          []string      `mapstructure:"trust_directories"`            // TrustDirectories are loaded in order; file paths, https:// URLs or s3://bucket/key
	TrustDirectorySchemaCheck bool          `mapstructure:"trust_directory_schema_check"` // Validate each directory document against the bundled JSON schema
	MaxTokenLength            int           `mapstructure:"max_token_length"`             // MaxTokenLength rejects oversized cards before parsing
	LogLevel                  string        `mapstructure:"log_level"`                    // LogLevel is one of debug, info, warn, error
	Cache                     *Cache        `mapstructure:"cache"`                        // Cache is the verdict cache configuration
	Server                    *Server       `mapstructure:"server"`                       // Server configures cmd/local
}

// NewConfig initializes and returns the configuration. It ensures that the config is loaded only once.
func NewConfig() (*Config, error) {
	var err error
	once.Do(func() {
		instance = &Config{}
		err = instance.LoadConfig()
	})
	return instance, err
}

// LoadConfig attempts to load configuration from a file or uses default values if not found.
func (c *Config) LoadConfig() error {
	configName := utils.GetEnv("CONFIG_NAME", "config") // Configuration file name without extension
	configPath := utils.GetEnv("CONFIG_PATH", ".")      // Configuration file path, default to current directory

	viper.SetEnvPrefix("shcw") // ex: "SHCW_FETCH_TIMEOUT"
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	viper.AddConfigPath("/etc/shc-warden/")
	viper.AddConfigPath(configPath)
	viper.SetConfigName(configName)

	viper.SetDefault("fetch_timeout", fetchTimeout)
	viper.SetDefault("trust_directory_schema_check", schemaCheck)
	viper.SetDefault("max_token_length", maxTokenLength)
	viper.SetDefault("log_level", logLevel)
	viper.SetDefault("cache.type", cacheType)
	viper.SetDefault("server.port", serverPort)

	_ = viper.BindEnv("fetch_timeout")                // SHCW_FETCH_TIMEOUT
	_ = viper.BindEnv("trust_directories")            // SHCW_TRUST_DIRECTORIES (comma separated)
	_ = viper.BindEnv("trust_directory_schema_check") // SHCW_TRUST_DIRECTORY_SCHEMA_CHECK
	_ = viper.BindEnv("max_token_length")             // SHCW_MAX_TOKEN_LENGTH
	_ = viper.BindEnv("log_level")                    // SHCW_LOG_LEVEL
	_ = viper.BindEnv("cache.type")                   // SHCW_CACHE_TYPE
	_ = viper.BindEnv("server.port")                  // SHCW_SERVER_PORT

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; rely on defaults
		} else {
			return fmt.Errorf("problem reading config file: %w", err)
		}
	}

	if err := viper.Unmarshal(c); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return c.Validate()
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.FetchTimeout <= 0 {
		return errors.New("fetch_timeout must be positive")
	}

	if c.MaxTokenLength <= 0 {
		return errors.New("max_token_length must be positive")
	}

	if c.LogLevel != "" {
		if _, err := utils.ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}

	if c.Cache == nil {
		c.Cache = &Cache{Type: cacheType}
	}
	if c.Server == nil {
		c.Server = &Server{Port: serverPort}
	}

	for _, source := range c.TrustDirectories {
		if err := validateDirectorySource(source); err != nil {
			return err
		}
	}

	return nil
}

// validateDirectorySource accepts bare file paths and URLs with a known scheme.
func validateDirectorySource(source string) error {
	if strings.TrimSpace(source) == "" {
		return errNoDirectoryRef
	}
	if !strings.Contains(source, "://") {
		return nil
	}

	u, err := url.Parse(source)
	if err != nil {
		return fmt.Errorf("invalid trust directory source '%s': %w", source, err)
	}

	for _, scheme := range directorySchemes {
		if u.Scheme == scheme {
			if scheme == "s3" && (u.Host == "" || strings.Trim(u.Path, "/") == "") {
				return fmt.Errorf("invalid trust directory source '%s': expected s3://bucket/key", source)
			}
			return nil
		}
	}

	return fmt.Errorf("invalid trust directory source '%s': unsupported scheme %q", source, u.Scheme)
}
