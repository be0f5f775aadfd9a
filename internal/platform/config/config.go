package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "MASS_"

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	Auth     AuthConfig     `koanf:"auth"`
	Audit    AuditConfig    `koanf:"audit"`
	RBAC     RBACConfig     `koanf:"rbac"`
	CORS     CORSConfig     `koanf:"cors"`
}

type AuthConfig struct {
	DevMode bool      `koanf:"devmode"`
	JWT     JWTConfig `koanf:"jwt"`

	// DevEmail and DevOrgID are the identity "Bearer dev" resolves to.
	DevEmail string `koanf:"devemail"`
	DevOrgID string `koanf:"devorgid"`
}

type JWTConfig struct {
	SigningKey         string `koanf:"signingkey"`
	Issuer             string `koanf:"issuer"`
	ExpiryHours        int    `koanf:"expiryhours"`
	RefreshExpiryHours int    `koanf:"refreshexpiryhours"`
}

type ServerConfig struct {
	Host                string `koanf:"host"`
	Port                int    `koanf:"port"`
	ShutdownTimeoutSecs int    `koanf:"shutdown_timeout_secs"`
}

type DatabaseConfig struct {
	URL            string `koanf:"url"`
	MigrationsPath string `koanf:"migrations_path"`
	MaxConns       int    `koanf:"max_conns"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// AuditConfig sizes the asynchronous audit writer.
type AuditConfig struct {
	BufferSize      int `koanf:"buffer_size"`
	BatchSize       int `koanf:"batch_size"`
	FlushIntervalMS int `koanf:"flush_interval_ms"`
}

func (c AuditConfig) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalMS) * time.Millisecond
}

type RBACConfig struct {
	// CustomRoleCacheTTLSecs caches custom role definitions in the guard.
	// Zero disables the cache.
	CustomRoleCacheTTLSecs int `koanf:"custom_role_cache_ttl_secs"`
}

func (c RBACConfig) CustomRoleCacheTTL() time.Duration {
	return time.Duration(c.CustomRoleCacheTTLSecs) * time.Second
}

type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

func Load(configPaths ...string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	_ = k.Load(confmap.Provider(map[string]any{
		"server.port":                     8080,
		"server.host":                     "0.0.0.0",
		"server.shutdown_timeout_secs":    10,
		"database.max_conns":              25,
		"database.migrations_path":        "migrations",
		"log.level":                       "info",
		"log.format":                      "json",
		"auth.devmode":                    false,
		"auth.devemail":                   "dev@localhost",
		"auth.jwt.issuer":                 "mass",
		"auth.jwt.expiryhours":            24,
		"auth.jwt.refreshexpiryhours":     168,
		"audit.buffer_size":               1000,
		"audit.batch_size":                100,
		"audit.flush_interval_ms":         500,
		"rbac.custom_role_cache_ttl_secs": 0,
		"cors.allowed_origins":            []string{"http://localhost:3000"},
	}, "."), nil)

	// YAML file (optional)
	for _, path := range configPaths {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			// Config file is optional, skip if not found
			continue
		}
	}

	// Environment variables override everything. Only the first underscore
	// after a known section becomes a dot, so multi-word keys survive:
	// MASS_SERVER_PORT -> server.port
	// MASS_AUDIT_BUFFER_SIZE -> audit.buffer_size
	_ = k.Load(env.ProviderWithValue(envPrefix, ".", envKey), nil)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// nestedSections have one more level below the section name.
var nestedSections = map[string]bool{"auth.jwt": true}

func envKey(key, value string) (string, any) {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	section, rest, ok := strings.Cut(key, "_")
	if !ok {
		return key, value
	}
	if sub, leaf, ok := strings.Cut(rest, "_"); ok && nestedSections[section+"."+sub] {
		section, rest = section+"."+sub, leaf
	}
	if section == "cors" && rest == "allowed_origins" {
		return section + "." + rest, strings.Split(value, ",")
	}
	return section + "." + rest, value
}
