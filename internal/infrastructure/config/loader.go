package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const (
	// EnvPrefix namespaces every environment variable: PRODUCTS_STORE_URI -> store.uri
	EnvPrefix = "PRODUCTS_"

	configFileEnvName = EnvPrefix + "CONFIG_FILE"
	defaultConfigFile = "config.yaml"
	dotEnvFile        = ".env"
)

func defaults() map[string]any {
	return map[string]any{
		"server.host":              "0.0.0.0",
		"server.port":              8080,
		"server.readtimeout":       10 * time.Second,
		"server.writetimeout":      10 * time.Second,
		"server.idletimeout":       60 * time.Second,
		"server.readheadertimeout": 5 * time.Second,

		"store.driver":         DriverMongo,
		"store.uri":            "mongodb://localhost:27017",
		"store.database":       "product-engine",
		"store.collection":     "products",
		"store.connecttimeout": 10 * time.Second,

		"otlp.enabled":     false,
		"otlp.endpoint":    "localhost:4317",
		"otlp.servicename": "products-api",
		"otlp.environment": "development",

		"metrics.durationms": false,

		"log.level": "info",

		"resilience.enabled":             false,
		"resilience.maxattempts":         3,
		"resilience.initialbackoff":      100 * time.Millisecond,
		"resilience.consecutivefailures": 5,
		"resilience.opentimeout":         5 * time.Second,

		"shutdown.timeout": 30 * time.Second,
	}
}

// Load reads the configuration from, in increasing priority: built-in defaults,
// the YAML file, a .env file and the process environment.
// The YAML path comes from --config, then PRODUCTS_CONFIG_FILE.
func Load(args []string) (*Config, error) {
	flags := pflag.NewFlagSet("product-engine", pflag.ContinueOnError)
	configFile := flags.String("config", defaultConfigFile, "path to the YAML config file")
	if err := flags.Parse(args); err != nil {
		return nil, fmt.Errorf("error parsing flags: %w", err)
	}
	if path, ok := os.LookupEnv(configFileEnvName); ok && !flags.Changed("config") {
		*configFile = path
	}

	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	if err := k.Load(file.Provider(*configFile), yaml.Parser()); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error loading YAML config file %q: %w", *configFile, err)
		}
	}

	if envFileMap, err := godotenv.Read(dotEnvFile); err == nil {
		envMap := make(map[string]any, len(envFileMap))
		for key, value := range envFileMap {
			if !strings.HasPrefix(key, EnvPrefix) {
				continue
			}
			envMap[envKey(key)] = value
		}
		if err := k.Load(confmap.Provider(envMap, "."), nil); err != nil {
			log.Printf("WARN: error loading .env config: %v", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		log.Printf("WARN: error reading .env file: %v", err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("error loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// envKey maps PRODUCTS_STORE_URI to store.uri
func envKey(key string) string {
	key = strings.TrimPrefix(key, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(key), "_", ".")
}
