// Package config loads the runtime configuration from a TOML file layered
// with command line flags. Flags win over the file, the file wins over the
// built-in defaults. The file is fleetinv.conf in /etc or the working
// directory, or wherever FLEETINV_CONFIG or --config points.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"codeberg.org/mutker/fleetinv/internal/backend"
	"codeberg.org/mutker/fleetinv/internal/errors"
)

const (
	DefaultLogLevel = "info"
	DefaultRegion   = "global"

	configName = "fleetinv.conf"
	envConfig  = "FLEETINV_CONFIG"
)

var errFactory = errors.New()

// LogLevel is a configured logging verbosity.
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// IsValid reports whether the level is one of the accepted values.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
		return true
	default:
		return false
	}
}

func (l LogLevel) String() string {
	return string(l)
}

// TargetSpec is one statically configured collection target.
type TargetSpec struct {
	Address string `mapstructure:"address"`
	Kind    string `mapstructure:"kind"`
}

// CredentialSpec carries one encoded credential pair. Values are
// base64("salt:secret"); decoding is the credential store's job.
type CredentialSpec struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type BackendConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	InsecureTLS bool          `mapstructure:"insecure_tls"`
	PageSize    int           `mapstructure:"page_size"`
}

type CollectorConfig struct {
	TargetConcurrency int           `mapstructure:"target_concurrency"`
	FetchConcurrency  int           `mapstructure:"fetch_concurrency"`
	Categories        []string      `mapstructure:"categories"`
	RetryAttempts     int           `mapstructure:"retry_attempts"`
	RetryDelay        time.Duration `mapstructure:"retry_delay"`
	RetryStep         time.Duration `mapstructure:"retry_step"`
}

type CatalogConfig struct {
	URL           string        `mapstructure:"url"`
	ApplicationID string        `mapstructure:"application_id"`
	PageSize      int           `mapstructure:"page_size"`
	MaxPages      int           `mapstructure:"max_pages"`
	Timeout       time.Duration `mapstructure:"timeout"`
	InsecureTLS   bool          `mapstructure:"insecure_tls"`
	ResolveNames  bool          `mapstructure:"resolve_names"`
}

type OutputConfig struct {
	Dir           string `mapstructure:"dir"`
	Delimiter     string `mapstructure:"delimiter"`
	DBPrefix      string `mapstructure:"db_prefix"`
	SQLiteEnabled bool   `mapstructure:"sqlite_enabled"`
	SQLitePath    string `mapstructure:"sqlite_path"`
}

type Config struct {
	LogLevel string `mapstructure:"log_level"`
	LogDir   string `mapstructure:"log_dir"`
	Region   string `mapstructure:"region"`
	Debug    bool   `mapstructure:"debug"`
	Verbose  bool   `mapstructure:"verbose"`

	Targets     []TargetSpec              `mapstructure:"targets"`
	Credentials map[string]CredentialSpec `mapstructure:"credentials"`
	Backend     BackendConfig             `mapstructure:"backend"`
	Collector   CollectorConfig           `mapstructure:"collector"`
	Catalog     CatalogConfig             `mapstructure:"catalog"`
	Output      OutputConfig              `mapstructure:"output"`
}

func Load() (*Config, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	fs := pflag.NewFlagSet("fleetinv", pflag.ContinueOnError)
	configPath := fs.String("config", "", "explicit config file path")
	fs.Bool("debug", false, "enable debug logging")
	fs.Bool("verbose", false, "enable verbose logging")
	fs.String("log-level", "", "log level: debug, info, warning or error")
	fs.String("region", "", "region tag stamped into output file names")
	targetsFlag := fs.String("targets", "", "comma-separated target addresses, replaces configured targets")
	fs.String("categories", "", "comma-separated detail categories to collect")
	fs.String("output-dir", "", "directory for CSV output")
	fs.Bool("insecure", false, "skip TLS verification on console and catalog endpoints")

	if err := fs.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	// Load configuration from file
	switch {
	case *configPath != "":
		v.SetConfigFile(*configPath)
	case os.Getenv(envConfig) != "":
		v.SetConfigFile(os.Getenv(envConfig))
	default:
		v.SetConfigName(configName)
		v.SetConfigType("toml")
		v.AddConfigPath("/etc")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errFactory.WithMessage(errors.ErrReadConfig,
				"Failed to read config file: "+err.Error())
		}
	}

	// Override config file values with command line flags
	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "config", "targets":
			// handled outside the viper layering
		case "categories":
			v.Set("collector.categories", f.Value.String())
		case "output-dir":
			v.Set("output.dir", f.Value.String())
		case "insecure":
			v.Set("backend.insecure_tls", f.Value.String())
			v.Set("catalog.insecure_tls", f.Value.String())
		default:
			v.Set(strings.ReplaceAll(f.Name, "-", "_"), f.Value.String())
		}
	})

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if fs.Changed("targets") {
		cfg.Targets = cfg.Targets[:0]
		for _, addr := range strings.Split(*targetsFlag, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				cfg.Targets = append(cfg.Targets, TargetSpec{Address: addr})
			}
		}
	}

	if cfg.Debug {
		cfg.LogLevel = string(LogLevelDebug)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("region", DefaultRegion)

	v.SetDefault("backend.timeout", "30s")
	v.SetDefault("backend.page_size", 100)

	v.SetDefault("collector.target_concurrency", 4)
	v.SetDefault("collector.fetch_concurrency", 8)
	v.SetDefault("collector.retry_attempts", 3)
	v.SetDefault("collector.retry_delay", "500ms")
	v.SetDefault("collector.retry_step", "500ms")

	v.SetDefault("catalog.page_size", 100)
	v.SetDefault("catalog.max_pages", 4)
	v.SetDefault("catalog.timeout", "30s")
	v.SetDefault("catalog.resolve_names", true)

	v.SetDefault("output.dir", ".")
	v.SetDefault("output.delimiter", ",")
	v.SetDefault("output.db_prefix", "FLEET_INFO")
}

func (c *Config) Validate() error {
	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithMessage(errors.ErrInvalidLogLevel,
			fmt.Sprintf("%q is not a valid log level", c.LogLevel))
	}

	for _, target := range c.Targets {
		if strings.TrimSpace(target.Address) == "" {
			return errFactory.WithMessage(errors.ErrInvalidConfig, "target address must not be empty")
		}
		if _, err := backend.ParseKind(target.Kind); err != nil {
			return err
		}
	}

	if len([]rune(c.Output.Delimiter)) != 1 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "output delimiter must be a single character")
	}

	if c.Output.SQLiteEnabled && strings.TrimSpace(c.Output.SQLitePath) == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "sqlite output requires output.sqlite_path")
	}

	if c.Collector.TargetConcurrency < 0 || c.Collector.FetchConcurrency < 0 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "concurrency limits must not be negative")
	}

	if c.Collector.RetryAttempts < 0 || c.Collector.RetryDelay < 0 || c.Collector.RetryStep < 0 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "retry policy values must not be negative")
	}

	return nil
}
