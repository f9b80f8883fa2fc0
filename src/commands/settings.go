package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Settings is the CLI configuration, read from ~/.volunteer/config.yaml
// and overridden by VOLUNTEER_* environment variables.
type Settings struct {
	BaseURL   string `yaml:"baseUrl"`
	Token     string `yaml:"token"`
	Timezone  string `yaml:"timezone"`
	StorePath string `yaml:"storePath"`
	RedisAddr string `yaml:"redisAddr,omitempty"`
}

func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".volunteer", "config.yaml")
	}
	return filepath.Join(home, ".volunteer", "config.yaml")
}

func defaultSettings(path string) Settings {
	return Settings{
		BaseURL:   "http://localhost:8888",
		Timezone:  "Local",
		StorePath: filepath.Join(filepath.Dir(path), "state.db"),
	}
}

// LoadSettings reads path when it exists. A missing file yields defaults.
func LoadSettings(path string) (Settings, error) {
	s := defaultSettings(path)

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return s, fmt.Errorf("read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &s); err != nil {
			return s, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	_ = godotenv.Load()
	overrideFromEnv(&s)
	s.StorePath = expandHome(s.StorePath)
	return s, nil
}

func overrideFromEnv(s *Settings) {
	for env, field := range map[string]*string{
		"VOLUNTEER_BASE_URL": &s.BaseURL,
		"VOLUNTEER_TOKEN":    &s.Token,
		"VOLUNTEER_TZ":       &s.Timezone,
		"VOLUNTEER_STORE":    &s.StorePath,
		"VOLUNTEER_REDIS":    &s.RedisAddr,
	} {
		if v := os.Getenv(env); v != "" {
			*field = v
		}
	}
}

// SaveSettings writes s to path, creating its directory.
func SaveSettings(path string, s Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}
