package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// FileSystem abstracts file lookups so the loader is testable.
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
}

// RealFileSystem implements FileSystem using actual file operations.
type RealFileSystem struct{}

func (RealFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (RealFileSystem) LoadEnv(path string) error {
	return godotenv.Load(path)
}

// LoaderConfig holds dependencies and optional file overrides.
type LoaderConfig struct {
	FileSystem FileSystem
	ConfigFile string
	EnvFile    string
}

// LoaderOption is a functional option for Load.
type LoaderOption func(*LoaderConfig)

// WithFileSystem sets a custom filesystem for the loader.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// Load loads configuration for a service into cfg, then applies defaults and
// validates. It reads the YAML config file first, layers the .env file on
// top, and lets process environment variables override both.
func Load(serviceName string, cfg Config, opts ...LoaderOption) error {
	var lc LoaderConfig
	for _, opt := range opts {
		opt(&lc)
	}
	if lc.FileSystem == nil {
		lc.FileSystem = RealFileSystem{}
	}

	if lc.ConfigFile == "" {
		lc.ConfigFile = findFile(lc.FileSystem, serviceName, "config.yml")
	}
	if lc.EnvFile == "" {
		lc.EnvFile = findEnvFile(lc.FileSystem, serviceName)
	}

	if err := unmarshal(serviceName, cfg, lc); err != nil {
		return err
	}

	cfg.ApplyDefaults()
	return cfg.Validate()
}

func unmarshal(serviceName string, cfg Config, lc LoaderConfig) error {
	v := viper.New()

	if lc.ConfigFile != "" && lc.FileSystem.Exists(lc.ConfigFile) {
		v.SetConfigFile(lc.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file %s: %w", lc.ConfigFile, err)
		}
	}

	v.AutomaticEnv()
	autoBindEnvVars(v)

	if lc.EnvFile != "" && lc.FileSystem.Exists(lc.EnvFile) {
		if err := lc.FileSystem.LoadEnv(lc.EnvFile); err != nil {
			return fmt.Errorf("load env file %s: %w", lc.EnvFile, err)
		}
		// Re-bind so variables introduced by the .env file are visible.
		autoBindEnvVars(v)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unmarshal config for service %s: %w", serviceName, err)
	}
	return nil
}

func findFile(fs FileSystem, serviceName, fileName string) string {
	searchPaths := []string{
		fmt.Sprintf("./cmd/%s/%s", serviceName, fileName),
		fmt.Sprintf("../cmd/%s/%s", serviceName, fileName),
		"./config/" + fileName,
		"./" + fileName,
	}
	for _, path := range searchPaths {
		if fs.Exists(path) {
			return path
		}
	}
	return ""
}

func findEnvFile(fs FileSystem, serviceName string) string {
	for _, name := range []string{".env." + serviceName, ".env"} {
		for _, dir := range []string{".", "./cmd/" + serviceName, "./config"} {
			path := dir + "/" + name
			if fs.Exists(path) {
				return path
			}
		}
	}
	return ""
}

// autoBindEnvVars maps UPPER_SNAKE environment variables onto nested viper
// keys so REGISTRY_STALE_THRESHOLD reaches registry.stale_threshold.
func autoBindEnvVars(v *viper.Viper) {
	for _, env := range os.Environ() {
		pair := strings.SplitN(env, "=", 2)
		if len(pair) != 2 {
			continue
		}
		for _, variant := range envKeyVariants(pair[0]) {
			v.Set(variant, pair[1])
		}
	}
}

// envKeyVariants generates the nested key spellings an environment variable
// may correspond to. HEARTBEAT_BACKOFF_MAX yields heartbeat_backoff_max,
// heartbeat.backoff.max, and heartbeat.backoff_max.
func envKeyVariants(envKey string) []string {
	lowerKey := strings.ToLower(envKey)
	parts := strings.Split(lowerKey, "_")

	variants := []string{lowerKey}
	if len(parts) > 1 {
		variants = append(variants, strings.Join(parts, "."))
	}
	for i := 1; i < len(parts); i++ {
		prefix := strings.Join(parts[:i], ".")
		suffix := strings.Join(parts[i:], "_")
		variants = append(variants, prefix+"."+suffix)
	}
	return variants
}
