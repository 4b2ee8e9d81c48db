package authgate

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// duration supports human-readable duration strings ("15m", "168h") in
// configuration files, following time.ParseDuration syntax. An empty
// string unmarshals to zero.
type duration time.Duration

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = duration(parsed)
	return nil
}

type fileConfig struct {
	Token struct {
		AccessSecret  string   `yaml:"access_secret"`
		RefreshSecret string   `yaml:"refresh_secret"`
		AccessTTL     duration `yaml:"access_ttl"`
		RefreshTTL    duration `yaml:"refresh_ttl"`
		Issuer        string   `yaml:"issuer"`
		Leeway        duration `yaml:"leeway"`
	} `yaml:"token"`
	Session struct {
		MaxSessionsPerUser int `yaml:"max_sessions_per_user"`
	} `yaml:"session"`
	RateLimit struct {
		Window duration `yaml:"window"`
		Max    int      `yaml:"max"`
	} `yaml:"rate_limit"`
	Audit struct {
		Enabled    *bool `yaml:"enabled"`
		BufferSize int   `yaml:"buffer_size"`
		DropIfFull *bool `yaml:"drop_if_full"`
	} `yaml:"audit"`
	Metrics struct {
		Enabled *bool `yaml:"enabled"`
	} `yaml:"metrics"`
}

// LoadConfig reads a YAML configuration file, substituting ${VAR} and
// ${VAR:-default} references from the environment before parsing.
// Unset fields keep their defaults; [Config.Validate] runs at Build time.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %s: %w", path, err)
	}
	return parseConfig(data)
}

// LoadConfigFromReader is [LoadConfig] for an io.Reader.
func LoadConfigFromReader(r io.Reader) (Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return parseConfig(data)
}

func parseConfig(data []byte) (Config, error) {
	content := substituteEnvVars(string(data))

	var fc fileConfig
	if err := yaml.Unmarshal([]byte(content), &fc); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg := defaultConfig()
	if fc.Token.AccessSecret != "" {
		cfg.Token.AccessSecret = []byte(fc.Token.AccessSecret)
	}
	if fc.Token.RefreshSecret != "" {
		cfg.Token.RefreshSecret = []byte(fc.Token.RefreshSecret)
	}
	if fc.Token.AccessTTL > 0 {
		cfg.Token.AccessTTL = time.Duration(fc.Token.AccessTTL)
	}
	if fc.Token.RefreshTTL > 0 {
		cfg.Token.RefreshTTL = time.Duration(fc.Token.RefreshTTL)
	}
	cfg.Token.Issuer = fc.Token.Issuer
	if fc.Token.Leeway > 0 {
		cfg.Token.Leeway = time.Duration(fc.Token.Leeway)
	}
	if fc.Session.MaxSessionsPerUser > 0 {
		cfg.Session.MaxSessionsPerUser = fc.Session.MaxSessionsPerUser
	}
	if fc.RateLimit.Window > 0 {
		cfg.RateLimit.Window = time.Duration(fc.RateLimit.Window)
	}
	if fc.RateLimit.Max > 0 {
		cfg.RateLimit.Max = fc.RateLimit.Max
	}
	if fc.Audit.Enabled != nil {
		cfg.Audit.Enabled = *fc.Audit.Enabled
	}
	if fc.Audit.BufferSize > 0 {
		cfg.Audit.BufferSize = fc.Audit.BufferSize
	}
	if fc.Audit.DropIfFull != nil {
		cfg.Audit.DropIfFull = *fc.Audit.DropIfFull
	}
	if fc.Metrics.Enabled != nil {
		cfg.Metrics.Enabled = *fc.Metrics.Enabled
	}

	return cfg, nil
}

// substituteEnvVars replaces ${VAR} and ${VAR:-default} with environment
// values. $$ escapes a literal dollar sign.
func substituteEnvVars(content string) string {
	const escaped = "\x00ESCAPED_DOLLAR\x00"
	content = strings.ReplaceAll(content, "$$", escaped)

	result := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		defaultValue := ""
		if len(submatches) >= 3 {
			defaultValue = submatches[2]
		}

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return defaultValue
	})

	return strings.ReplaceAll(result, escaped, "$")
}
