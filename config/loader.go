package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kbukum/pipecat/quantity"
)

// EnvPrefix prefixes every environment variable read by LoadConfig.
const EnvPrefix = "PIPECAT"

// FileSystem abstracts the file lookups made while loading.
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
}

// RealFileSystem reads the local disk.
type RealFileSystem struct{}

func (RealFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// LoadEnv loads path into the process environment without overriding
// variables that are already set.
func (RealFileSystem) LoadEnv(path string) error {
	return godotenv.Load(path)
}

// LoaderConfig holds the loader dependencies and overrides.
type LoaderConfig struct {
	FileSystem FileSystem
	ConfigFile string
	EnvFile    string
	Flags      *pflag.FlagSet
	// Bindings maps config keys to flag names in Flags.
	Bindings map[string]string
}

// LoaderOption configures LoadConfig.
type LoaderOption func(*LoaderConfig)

// WithFileSystem replaces the disk used to find files.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithConfigFile loads path instead of searching for a config file. A
// missing explicit file is an error.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile loads path instead of searching for a .env file.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// WithFlags lets flags override every other source. Only flags the user
// actually set take effect; bindings maps config keys such as
// "limit.count" to flag names.
func WithFlags(fs *pflag.FlagSet, bindings map[string]string) LoaderOption {
	return func(lc *LoaderConfig) {
		lc.Flags = fs
		lc.Bindings = bindings
	}
}

var (
	configSearchPaths = []string{"./pipecat.yml", "./pipecat.yaml", "./config/pipecat.yml", "./config.yml"}
	envSearchPaths    = []string{"./.env.pipecat", "./.env"}
)

func firstExisting(fs FileSystem, paths []string) string {
	for _, p := range paths {
		if fs.Exists(p) {
			return p
		}
	}
	return ""
}

// LoadConfig layers defaults, config file, .env file, environment and
// flags into a Config, then applies defaults and validates the result.
func LoadConfig(opts ...LoaderOption) (*Config, error) {
	lc := LoaderConfig{FileSystem: RealFileSystem{}}
	for _, opt := range opts {
		opt(&lc)
	}

	v := viper.New()
	setDefaults(v)

	configFile := lc.ConfigFile
	if configFile == "" {
		configFile = firstExisting(lc.FileSystem, configSearchPaths)
	} else if !lc.FileSystem.Exists(configFile) {
		return nil, fmt.Errorf("config file %s not found", configFile)
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	envFile := lc.EnvFile
	if envFile == "" {
		envFile = firstExisting(lc.FileSystem, envSearchPaths)
	}
	if envFile != "" {
		if err := lc.FileSystem.LoadEnv(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if lc.Flags != nil {
		for key, name := range lc.Bindings {
			f := lc.Flags.Lookup(name)
			if f == nil {
				return nil, fmt.Errorf("no flag %q for config key %s", name, key)
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	cfg := &Config{}
	hooks := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		durationHook,
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(cfg, hooks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// durationHook decodes durations written either the Go way ("1m30s") or
// as quantities ("3 minutes").
func durationHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	return quantity.ParseDuration(reflect.ValueOf(data).String())
}

// setDefaults registers every scalar key so AutomaticEnv can fill it
// during Unmarshal.
func setDefaults(v *viper.Viper) {
	for key, value := range map[string]any{
		"name":                   "pipecat",
		"environment":            "development",
		"debug":                  false,
		"logging.level":          "",
		"logging.format":         "",
		"logging.output":         "",
		"logging.no_color":       false,
		"logging.caller":         false,
		"transform.parse":        "",
		"transform.parse_key":    "",
		"transform.delimiter":    "",
		"transform.timestamp":    false,
		"transform.keep":         "",
		"transform.duplicates":   "",
		"transform.trace":        false,
		"transform.device":       "",
		"limit.count":            0,
		"limit.duration":         "0s",
		"limit.poll":             "0s",
		"limit.timeout":          "0s",
		"limit.initial":          "0s",
		"limit.until_key":        "",
		"limit.until_value":      "",
		"limit.queue_capacity":   0,
		"output.dump":            false,
		"output.csv":             "",
		"output.gob":             "",
		"output.broadcast":       "",
		"output.topic":           "",
		"output.summary":         []string{},
		"telemetry.enabled":      false,
		"telemetry.service_name": "",
		"telemetry.version":      "",
		"telemetry.environment":  "",
		"telemetry.endpoint":     "",
		"telemetry.insecure":     false,
		"telemetry.interval":     "0s",
		"telemetry.sample_rate":  0.0,
	} {
		v.SetDefault(key, value)
	}
}
