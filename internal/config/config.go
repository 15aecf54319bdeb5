// Package config loads Viper-backed configuration and builds the Zap logger
// for both the server and the benchtop agent.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// LoadServer reads server configuration from file and environment variables.
// Environment overrides use the PB_ prefix (PB_SERVER_PORT=9090).
func LoadServer(configPath string) (*viper.Viper, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.data_dir", "./data")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("database.path", "./data/partsbin.db")
	v.SetDefault("auth.access_token_ttl", "12h")
	v.SetDefault("prefs.history_retention", "720h")
	v.SetDefault("devices.stale_retention", "2160h")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("partsbin")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/partsbin")
	}

	return finish(v)
}

// LoadAgent reads benchtop agent configuration. Environment overrides use
// the PB_ prefix; the config file lives next to the agent state by default.
func LoadAgent(configPath string) (*viper.Viper, error) {
	v := viper.New()

	v.SetDefault("server.url", "http://localhost:8080")
	v.SetDefault("server.timeout", "5s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("agent.state_dir", defaultStateDir())
	v.SetDefault("agent.username", "")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("benchtop")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir := defaultStateDir(); dir != "" {
			v.AddConfigPath(dir)
		}
	}

	return finish(v)
}

func finish(v *viper.Viper) (*viper.Viper, error) {
	v.SetEnvPrefix("PB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Missing config file is fine -- defaults apply.
	}
	return v, nil
}

// defaultStateDir returns the per-user directory holding agent state.
func defaultStateDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "partsbin-benchtop")
}
