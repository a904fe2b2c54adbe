// Package config loads the server configuration from a YAML file, then
// applies environment overrides and command-line flags. Precedence is
// flags over env over file over defaults.
package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration struct.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Security SecurityConfig `yaml:"security"`
	Queue    QueueConfig    `yaml:"queue"`
	Uploads  UploadsConfig  `yaml:"uploads"`
	Mail     MailConfig     `yaml:"mail"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP and storage settings.
type ServerConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
	DBPath  string `yaml:"db_path"`
}

// SecurityConfig holds session and rate-limit settings.
type SecurityConfig struct {
	SessionKey string `yaml:"session_key"`
	BcryptCost int    `yaml:"bcrypt_cost"`
	CORS       struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
}

// QueueConfig holds the in-memory job queue and worker settings.
type QueueConfig struct {
	Capacity    int    `yaml:"capacity"`
	Workers     int    `yaml:"workers"`
	RedriveCron string `yaml:"redrive_cron"`
}

// UploadsConfig holds blob storage settings for post and profile images.
type UploadsConfig struct {
	Dir     string `yaml:"dir"`
	BaseURL string `yaml:"base_url"`
}

// MailConfig holds outbound email settings.
type MailConfig struct {
	From string `yaml:"from"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Addr returns host:port for the HTTP server.
func (c *Config) Addr() string {
	addr := c.Server.Address
	if addr == "" {
		addr = "0.0.0.0"
	}
	p := c.Server.Port
	if p == 0 {
		p = 5000
	}
	return fmt.Sprintf("%s:%d", addr, p)
}

// Load reads and parses the YAML config file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseCommandFlags defines and parses command-line flags and returns
// their values along with a map indicating which flags were set.
func ParseCommandFlags() (addr string, dbPath string, cfgPath string, setFlags map[string]bool) {
	addrPtr := flag.String("addr", ":5000", "HTTP listen address")
	dbPtr := flag.String("db", "./.database", "Pebble DB path")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	flag.Parse()
	setFlags = map[string]bool{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return *addrPtr, *dbPtr, *cfgPtr, setFlags
}

// LoadEnvOverrides applies environment overrides onto cfg and reports
// whether any env var was used.
func LoadEnvOverrides(cfg *Config) bool {
	envUsed := false
	parseList := func(v string) []string {
		if v == "" {
			return nil
		}
		parts := []string{}
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				parts = append(parts, s)
			}
		}
		return parts
	}

	if v := os.Getenv("CHIRPD_ADDR"); v != "" {
		envUsed = true
		if h, p, err := net.SplitHostPort(v); err == nil {
			cfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				cfg.Server.Port = pi
			}
		} else {
			cfg.Server.Address = v
		}
	}
	if v := os.Getenv("CHIRPD_DB_PATH"); v != "" {
		envUsed = true
		cfg.Server.DBPath = v
	}
	if v := os.Getenv("CHIRPD_SESSION_KEY"); v != "" {
		envUsed = true
		cfg.Security.SessionKey = v
	}
	if v := os.Getenv("CHIRPD_BCRYPT_COST"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Security.BcryptCost = n
		}
	}
	if v := os.Getenv("CHIRPD_CORS_ORIGINS"); v != "" {
		envUsed = true
		cfg.Security.CORS.AllowedOrigins = parseList(v)
	}
	if v := os.Getenv("CHIRPD_RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			envUsed = true
			cfg.Security.RateLimit.RPS = f
		}
	}
	if v := os.Getenv("CHIRPD_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Security.RateLimit.Burst = n
		}
	}
	if v := os.Getenv("CHIRPD_QUEUE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Queue.Capacity = n
		}
	}
	if v := os.Getenv("CHIRPD_QUEUE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Queue.Workers = n
		}
	}
	if v := os.Getenv("CHIRPD_REDRIVE_CRON"); v != "" {
		envUsed = true
		cfg.Queue.RedriveCron = v
	}
	if v := os.Getenv("CHIRPD_UPLOADS_DIR"); v != "" {
		envUsed = true
		cfg.Uploads.Dir = v
	}
	if v := os.Getenv("CHIRPD_UPLOADS_BASE_URL"); v != "" {
		envUsed = true
		cfg.Uploads.BaseURL = v
	}
	if v := os.Getenv("CHIRPD_MAIL_FROM"); v != "" {
		envUsed = true
		cfg.Mail.From = v
	}
	if v := os.Getenv("CHIRPD_LOG_LEVEL"); v != "" {
		envUsed = true
		cfg.Logging.Level = v
	}
	return envUsed
}

// LoadEffective loads config from path and applies environment
// overrides. A missing file yields defaults rather than an error.
func LoadEffective(path string) (*Config, bool, error) {
	cfg, err := Load(path)
	if err != nil {
		cfg = &Config{}
	}
	envUsed := LoadEnvOverrides(cfg)
	return cfg, envUsed, nil
}

// ResolveConfigPath decides the config file path using the flag-provided
// value and CHIRPD_CONFIG when the flag was not set.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("CHIRPD_CONFIG"); p != "" {
		return p
	}
	return flagPath
}
