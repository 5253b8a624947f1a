package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override, e.g. BOOKGRAPH_API_URL.
const EnvPrefix = "BOOKGRAPH_"

// ConfigPathEnvVar names the YAML file to load when -config is not given.
const ConfigPathEnvVar = EnvPrefix + "CONFIG"

// DefaultConfigPaths are tried in order when no path is configured.
var DefaultConfigPaths = []string{
	"bookgraph.yaml",
	"bookgraph.yml",
}

// sliceKeys arrive from the environment as comma-separated strings.
var sliceKeys = []string{
	"recommendations.filters",
}

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"api-url":       "api.url",
	"addr":          "listen.addr",
	"user":          "user.id",
	"cache-backend": "cache.backend",
	"cache-path":    "cache.path",
	"log-level":     "log.level",
}

// Load builds the configuration from defaults, an optional YAML file,
// BOOKGRAPH_* environment variables and finally any flags set in args.
func Load(name string, args []string) (*Config, error) {
	cfg, _, err := Parse(name, args)
	return cfg, err
}

// Parse is Load for command-line tools with subcommands: it also returns the
// arguments left after the flags.
func Parse(name string, args []string) (*Config, []string, error) {
	flagSet := flag.NewFlagSet(name, flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagConfig := flagSet.String("config", "", "path to YAML config file")
	flagSet.String("api-url", "", "remote backend base URL")
	flagSet.String("addr", "", "HTTP listen address")
	flagSet.String("user", "", "user id for recommendations")
	flagSet.String("cache-backend", "", "persistent cache backend: sqlite|redis|file|memory")
	flagSet.String("cache-path", "", "SQLite file or cache directory")
	flagSet.String("log-level", "", "log level: debug|info|warn|error")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			flagSet.SetOutput(os.Stdout)
			flagSet.PrintDefaults()
		}
		return nil, nil, err
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(*flagConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	} else if *flagConfig != "" {
		return nil, nil, fmt.Errorf("config file not found: %s", *flagConfig)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	if err := splitSliceKeys(k); err != nil {
		return nil, nil, err
	}

	var flagErr error
	flagSet.Visit(func(f *flag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || flagErr != nil {
			return
		}
		flagErr = k.Set(key, f.Value.String())
	})
	if flagErr != nil {
		return nil, nil, fmt.Errorf("failed to apply flags: %w", flagErr)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, flagSet.Args(), nil
}

func findConfigFile(explicit string) string {
	candidates := DefaultConfigPaths
	if explicit != "" {
		candidates = []string{explicit}
	} else if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		candidates = append([]string{envPath}, candidates...)
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envKey maps BOOKGRAPH_SECTION_FIELD_NAME to section.field_name. Only the
// first underscore separates the section. Returning "" skips the variable.
func envKey(name string) string {
	rest := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	section, field, ok := strings.Cut(rest, "_")
	if !ok || section == "" || field == "" {
		return ""
	}
	return section + "." + field
}

func splitSliceKeys(k *koanf.Koanf) error {
	for _, key := range sliceKeys {
		raw, ok := k.Get(key).(string)
		if !ok {
			continue
		}
		parts := []string{}
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(key, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}
	return nil
}
