package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/jengzang/mvtypes-go/internal/analysis"
	"github.com/jengzang/mvtypes-go/internal/spatial"
)

// EnvPrefix prefixes every environment override: MVTYPES_IN_EPSG -> in_epsg
const EnvPrefix = "MVTYPES"

// Config holds all application configuration
type Config struct {
	// Classification
	Threshold   float64 `mapstructure:"threshold"` // minutes
	InEPSG      int     `mapstructure:"in_epsg"`
	OutEPSG     int     `mapstructure:"out_epsg"`
	ClassifyNum int     `mapstructure:"classify_num"`
	Bootstrap   int     `mapstructure:"bootstrap"`
	Seed        uint64  `mapstructure:"seed"`
	Workers     int     `mapstructure:"workers"`

	// Export
	DBTable string `mapstructure:"db_table"`

	// Server
	Port           string `mapstructure:"port"`
	JWTSecret      string `mapstructure:"jwt_secret"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
	MaxRuns        int    `mapstructure:"max_concurrent_runs"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// New returns a viper instance with defaults, the optional mvtypes.yaml
// config file, a .env file and MVTYPES_* environment overrides. Callers may
// bind command-line flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()

	opts := analysis.DefaultOptions()
	v.SetDefault("threshold", opts.Threshold)
	v.SetDefault("in_epsg", opts.InEPSG)
	v.SetDefault("out_epsg", opts.OutEPSG)
	v.SetDefault("classify_num", opts.ClassifyNum)
	v.SetDefault("bootstrap", opts.Bootstrap)
	v.SetDefault("seed", opts.Seed)
	v.SetDefault("workers", opts.Workers)
	v.SetDefault("db_table", "fixes")
	v.SetDefault("port", ":8080")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("max_upload_bytes", 32<<20)
	v.SetDefault("max_concurrent_runs", 2)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")

	// Config file (optional)
	v.SetConfigName("mvtypes")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// .env is optional too; real environment variables win over it
	_ = godotenv.Load()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return v
}

// Load unmarshals and validates the configuration held by v
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that configuration values are present and sane
func (c *Config) Validate() error {
	var errs []string

	if err := c.Options().Validate(); err != nil {
		errs = append(errs, strings.Split(err.Error(), "\n")...)
	}
	if !spatial.Supported(c.InEPSG) {
		errs = append(errs, fmt.Sprintf("in_epsg %d is not a supported reference system", c.InEPSG))
	}
	if !spatial.Supported(c.OutEPSG) {
		errs = append(errs, fmt.Sprintf("out_epsg %d is not a supported reference system", c.OutEPSG))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Sprintf("workers must be > 0, got %d", c.Workers))
	}
	if c.DBTable == "" {
		errs = append(errs, "db_table is required")
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Sprintf("max_upload_bytes must be > 0, got %d", c.MaxUploadBytes))
	}
	if c.MaxRuns <= 0 {
		errs = append(errs, fmt.Sprintf("max_concurrent_runs must be > 0, got %d", c.MaxRuns))
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		errs = append(errs, fmt.Sprintf("log_format must be console or json, got %q", c.LogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Options returns the pipeline settings held by the configuration
func (c *Config) Options() analysis.Options {
	return analysis.Options{
		Threshold:   c.Threshold,
		InEPSG:      c.InEPSG,
		OutEPSG:     c.OutEPSG,
		ClassifyNum: c.ClassifyNum,
		Bootstrap:   c.Bootstrap,
		Seed:        c.Seed,
		Workers:     c.Workers,
	}
}
