package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Load loads configuration from defaults, an optional config file and
// environment variables, in that order of precedence (later wins).
// prefix: Environment variable prefix (e.g. "TRACKER_")
// file: Optional path to a config file (yaml, json, toml, env); "" skips it
// target: Pointer to the config struct to load into
// defaults: Dotted keys (e.g. "db.port") to default values
func Load(prefix, file string, target interface{}, defaults map[string]interface{}) error {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// 1. Load from config file (if given)
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("failed to read config file %s: %w", file, err)
			}
		}
	}

	// 2. Load from environment variables
	// Viper's AutomaticEnv doesn't work well with Unmarshal if keys aren't known (e.g. no config file).
	// We mimic koanf's env.Provider: iterate env vars and populate viper.
	for key, value := range envOverrides(prefix, os.Environ()) {
		v.Set(key, value)
	}

	// 3. Unmarshal into struct
	if err := v.Unmarshal(target); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return nil
}

// envOverrides maps PREFIX_DB_HOST=x to db.host=x.
func envOverrides(prefix string, environ []string) map[string]string {
	prefixUpper := strings.ToUpper(prefix)
	out := make(map[string]string)
	for _, envStr := range environ {
		pair := strings.SplitN(envStr, "=", 2)
		if len(pair) != 2 {
			continue
		}
		key, value := pair[0], pair[1]
		if !strings.HasPrefix(key, prefixUpper) {
			continue
		}
		propKey := strings.TrimPrefix(key, prefixUpper)
		propKey = strings.ToLower(strings.ReplaceAll(propKey, "_", "."))
		// Remove leading dot if any (e.g. if prefix didn't include underscore but env did)
		propKey = strings.TrimPrefix(propKey, ".")
		if propKey == "" {
			continue
		}
		out[propKey] = value
	}
	return out
}
