package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/mitchellh/go-homedir"
)

// Load builds a Config from defaults, then the YAML file at path, then a
// .env file in the working directory, then LOCALCLOUD_* environment variables.
// A missing config file is not an error. An empty path means DefaultConfigPath.
func Load(path string) (Config, error) {
	cfg := Default()
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}
	path, err := homedir.Expand(path)
	if err != nil {
		return cfg, fmt.Errorf("expand config path: %w", err)
	}
	if _, statErr := os.Stat(path); statErr == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return cfg, fmt.Errorf("load config file %s: %w", path, err)
		}
	} else if explicit && errors.Is(statErr, fs.ErrNotExist) {
		return cfg, fmt.Errorf("config file %s not found", path)
	}

	if err := loadDotEnv(".env"); err != nil {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	transform := func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", transform), nil); err != nil {
		return cfg, fmt.Errorf("load env: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg.expand()
}

// loadDotEnv sets variables from a .env file without overriding ones already
// present in the process environment.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err == nil {
		return godotenv.Load(path)
	}
	return nil
}

func (c Config) expand() (Config, error) {
	for _, p := range []*string{&c.IdentityDir, &c.AgentDir, &c.JournalPath, &c.LogFile, &c.AgentLog} {
		v, err := homedir.Expand(*p)
		if err != nil {
			return c, fmt.Errorf("expand %q: %w", *p, err)
		}
		*p = v
	}
	c.APIURL = strings.TrimRight(c.APIURL, "/")
	c.ReleaseURL = strings.TrimRight(c.ReleaseURL, "/")
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.APITimeout <= 0 {
		c.APITimeout = DefaultAPITimeout
	}
	return c, nil
}
