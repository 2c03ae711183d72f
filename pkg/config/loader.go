package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads optional .env files and an optional config file, then rebuilds the
// global configuration. Variables already present in the process environment
// always win over file values.
func Load(path string, envFiles ...string) (*Config, error) {
	if err := loadDotEnv(envFiles...); err != nil {
		return nil, err
	}

	if path != "" {
		v := viper.New()
		v.SetConfigFile(path)
		v.AutomaticEnv()
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if _, err := MergeIntoEnv(v); err != nil {
			return nil, err
		}
	}

	return Reload(), nil
}

// MergeIntoEnv copies every key known to v into the process environment,
// skipping keys that are already set locally. Nested keys are flattened with
// underscores and upper-cased, so `redis: {url: x}` becomes REDIS_URL.
func MergeIntoEnv(v *viper.Viper) (merged int, err error) {
	for _, key := range v.AllKeys() {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if os.Getenv(envKey) != "" {
			continue
		}
		value := v.Get(key)
		var s string
		switch typed := value.(type) {
		case []interface{}:
			parts := make([]string, len(typed))
			for i, p := range typed {
				parts[i] = fmt.Sprint(p)
			}
			s = strings.Join(parts, ",")
		default:
			s = v.GetString(key)
		}
		if err := os.Setenv(envKey, s); err != nil {
			return merged, fmt.Errorf("failed to set %s: %w", envKey, err)
		}
		merged++
	}
	return merged, nil
}

func loadDotEnv(files ...string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		files = []string{".env"}
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("failed to load env files: %w", err)
	}
	return nil
}
