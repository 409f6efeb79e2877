package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultPath = "configs/config.toml"

	UnitSourcePostgres = "postgres"
	UnitSourceUpstream = "upstream"
)

type Config struct {
	Server struct {
		Host                 string
		JWTSecret            string `toml:"jwt_secret"`
		WriteTimeout         time.Duration
		ReadTimeout          time.Duration
		ReadHeaderTimeout    time.Duration
		StrWriteTimeout      string `toml:"write_timeout"`
		StrReadTimeout       string `toml:"read_timeout"`
		StrReadHeaderTimeout string `toml:"read_header_timeout"`
		LogFile              string `toml:"log_file"`
	}
	Database struct {
		Host     string
		User     string
		Password string
		Database string
	}
	Redis struct {
		RedisAddr        string `toml:"redis_addr"`
		RedisPassword    string `toml:"redis_password"`
		RedisDB          int    `toml:"redis_db"`
		SelectionTTL     time.Duration
		StatsCacheTTL    time.Duration
		StrSelectionTTL  string `toml:"selection_ttl"`
		StrStatsCacheTTL string `toml:"stats_cache_ttl"`
	}
	Upstream struct {
		BaseURL             string `toml:"base_url"`
		CertDir             string `toml:"cert_dir"`
		RequireServerVerify bool   `toml:"require_server_verify"`
		Timeout             time.Duration
		StrTimeout          string `toml:"timeout"`
	}
	Units struct {
		Source string
		SortBy string `toml:"sort_by"`
	}
}

// GetConfig reads the TOML file named by CONFIG_PATH, or configs/config.toml.
func GetConfig(logger *slog.Logger) (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("Error read config file", slog.String("path", path), slog.String("error", err.Error()))
		return nil, err
	}

	cfg, err := Parse(string(data))
	if err != nil {
		logger.Error("Error parse config file", slog.String("path", path), slog.String("error", err.Error()))
		return nil, err
	}

	if baseURL := os.Getenv("BASE_URL"); baseURL != "" {
		cfg.Upstream.BaseURL = baseURL
	}

	logger.Info("Config is loaded", slog.String("path", path), slog.String("units_source", cfg.Units.Source))
	return cfg, nil
}

// Parse decodes a TOML document and fills in durations and defaults.
func Parse(data string) (*Config, error) {
	var cfg Config
	if _, err := toml.Decode(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	durations := []struct {
		name string
		raw  string
		def  time.Duration
		dst  *time.Duration
	}{
		{"write_timeout", cfg.Server.StrWriteTimeout, 15 * time.Second, &cfg.Server.WriteTimeout},
		{"read_timeout", cfg.Server.StrReadTimeout, 15 * time.Second, &cfg.Server.ReadTimeout},
		{"read_header_timeout", cfg.Server.StrReadHeaderTimeout, 5 * time.Second, &cfg.Server.ReadHeaderTimeout},
		{"selection_ttl", cfg.Redis.StrSelectionTTL, 24 * time.Hour, &cfg.Redis.SelectionTTL},
		{"stats_cache_ttl", cfg.Redis.StrStatsCacheTTL, 30 * time.Second, &cfg.Redis.StatsCacheTTL},
		{"timeout", cfg.Upstream.StrTimeout, 30 * time.Second, &cfg.Upstream.Timeout},
	}

	for _, d := range durations {
		if d.raw == "" {
			*d.dst = d.def
			continue
		}

		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.name, err)
		}
		*d.dst = v
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = ":8080"
	}

	if cfg.Server.LogFile == "" {
		cfg.Server.LogFile = "server.log"
	}

	if cfg.Upstream.BaseURL == "" {
		cfg.Upstream.BaseURL = "http://localhost:5000"
	}

	if cfg.Upstream.CertDir == "" {
		cfg.Upstream.CertDir = "/nginx.certs"
	}

	switch cfg.Units.Source {
	case "":
		cfg.Units.Source = UnitSourcePostgres
	case UnitSourcePostgres, UnitSourceUpstream:
	default:
		return nil, fmt.Errorf("invalid units.source %q", cfg.Units.Source)
	}

	if cfg.Units.SortBy == "" {
		cfg.Units.SortBy = "unit_name"
	}

	if cfg.Database.Host == "" && cfg.Units.Source == UnitSourcePostgres {
		return nil, errors.New("database.host is required when units are stored in postgres")
	}

	return &cfg, nil
}
