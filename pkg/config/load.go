package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadEnvFiles loads .env.local then .env into the process environment.
// Variables already set in the environment are never overwritten.
// Missing files are not an error.
func LoadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}
	if err := godotenv.Load(".env.local"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env.local: %w", err)
	}
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Load reads the YAML file at path (optional, "" = environment only),
// then applies environment overrides. Defaults are not applied; call Validate.
func Load(path string) (*AppConfig, error) {
	if err := LoadEnvFiles(); err != nil {
		return nil, err
	}

	cfg := &AppConfig{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables onto cfg. lookup is os.LookupEnv in
// production and a map lookup in tests.
func ApplyEnv(cfg *AppConfig, lookup func(string) (string, bool)) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}

	str(&cfg.Database.Host, "DB_HOST", "DB_SERVER")
	str(&cfg.Database.User, "DB_USER")
	str(&cfg.Database.Password, "DB_PASSWORD")
	str(&cfg.Database.DBName, "DB_NAME", "DB_DATABASE")
	str(&cfg.Database.SSLMode, "DB_SSLMODE")
	str(&cfg.Server.Addr, "SERVER_ADDR")
	str(&cfg.LogLevel, "LOG_LEVEL")
	str(&cfg.StateDir, "STATE_DIR")

	if v, ok := lookup("DB_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DB_PORT %q: %w", v, err)
		}
		cfg.Database.Port = port
	}

	// PORT is the bare listen port used by most PaaS runtimes
	if v, ok := lookup("PORT"); ok && v != "" && cfg.Server.Addr == "" {
		if _, err := strconv.Atoi(v); err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Server.Addr = ":" + v
	}
	return nil
}
