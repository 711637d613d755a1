/*
Package config loads server configuration.

PURPOSE:
  One place that knows about environment variables and defaults. Built
  on viper so the same keys work from the environment, an optional
  config file, and defaults, with environment winning.

KEYS:
  PORT          HTTP server port             (default 8080)
  DB_PATH       SQLite database path         (default fundledger.db)
  JWT_SECRET    HS256 signing secret         (required outside dev)
  CORS_ORIGINS  comma-separated origin list  (default localhost dev ports)
*/
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds everything the server needs to start.
type Config struct {
	Port        int
	DBPath      string
	JWTSecret   string
	CORSOrigins []string
}

// Load reads configuration from the environment, falling back to an
// optional fundledger.yaml in the working directory, then to defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("port", 8080)
	v.SetDefault("db_path", "fundledger.db")
	v.SetDefault("jwt_secret", "dev-secret-change-me")
	v.SetDefault("cors_origins", "http://localhost:5173,http://localhost:8080")

	v.SetConfigName("fundledger")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine; a malformed one is not.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	v.AutomaticEnv()

	return &Config{
		Port:        v.GetInt("port"),
		DBPath:      v.GetString("db_path"),
		JWTSecret:   v.GetString("jwt_secret"),
		CORSOrigins: splitOrigins(v.GetString("cors_origins")),
	}, nil
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
