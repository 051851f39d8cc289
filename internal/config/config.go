package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port          string         `yaml:"port"`
	LogMode       string         `yaml:"log_mode"`
	SessionSecret string         `yaml:"session_secret"`
	JWTSecret     string         `yaml:"jwt_secret"`
	TemplatesDir  string         `yaml:"templates_dir"`
	SiteURL       string         `yaml:"site_url"`
	AdminIDs      []string       `yaml:"admin_ids"`
	CORSOrigins   []string       `yaml:"cors_origins"`
	Database      DatabaseConfig `yaml:"database"`
	Redis         RedisConfig    `yaml:"redis"`
	Search        SearchConfig   `yaml:"search"`
	RateLimit     RateConfig     `yaml:"rate_limit"`
	Ranking       RankingConfig  `yaml:"ranking"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // postgres | sqlite
	DSN    string `yaml:"dsn"`
}

type RedisConfig struct {
	URL     string `yaml:"url"`
	Channel string `yaml:"channel"`
}

type SearchConfig struct {
	MeiliURL    string `yaml:"meili_url"`
	MeiliAPIKey string `yaml:"meili_api_key"`
}

type RateConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type RankingConfig struct {
	Cron     string `yaml:"cron"`
	Timezone string `yaml:"timezone"`
}

func Default() Config {
	return Config{
		Port:          "8080",
		LogMode:       "dev",
		SessionSecret: "secret_key_change_me",
		JWTSecret:     "jwt_secret_change_me",
		TemplatesDir:  "./web/templates",
		SiteURL:       "http://localhost:8080",
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "threadspire.db",
		},
		Redis:     RedisConfig{Channel: "threadspire:realtime"},
		RateLimit: RateConfig{RPS: 5, Burst: 10},
		Ranking:   RankingConfig{Cron: "0 3 * * *", Timezone: "UTC"},
	}
}

// Load reads .env, then the optional CONFIG_FILE yaml, then environment
// overrides, in that order.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg)
	return cfg, cfg.validate()
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Port = getenv("PORT", cfg.Port)
	cfg.LogMode = getenv("LOG_MODE", cfg.LogMode)
	cfg.SessionSecret = getenv("SESSION_SECRET", cfg.SessionSecret)
	cfg.JWTSecret = getenv("JWT_SECRET", cfg.JWTSecret)
	cfg.TemplatesDir = getenv("TEMPLATES_DIR", cfg.TemplatesDir)
	cfg.SiteURL = getenv("SITE_URL", cfg.SiteURL)
	cfg.Database.Driver = getenv("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = getenv("DATABASE_URL", cfg.Database.DSN)
	cfg.Redis.URL = getenv("REDIS_URL", cfg.Redis.URL)
	cfg.Redis.Channel = getenv("REDIS_CHANNEL", cfg.Redis.Channel)
	cfg.Search.MeiliURL = getenv("MEILI_URL", cfg.Search.MeiliURL)
	cfg.Search.MeiliAPIKey = getenv("MEILI_API_KEY", cfg.Search.MeiliAPIKey)
	cfg.RateLimit.RPS = getenvFloat("RATE_LIMIT_RPS", cfg.RateLimit.RPS)
	cfg.RateLimit.Burst = getenvInt("RATE_LIMIT_BURST", cfg.RateLimit.Burst)
	cfg.Ranking.Cron = getenv("RANKING_CRON", cfg.Ranking.Cron)
	cfg.Ranking.Timezone = getenv("RANKING_TZ", cfg.Ranking.Timezone)
	if v := strings.TrimSpace(os.Getenv("CORS_ORIGINS")); v != "" {
		cfg.CORSOrigins = splitList(v)
	}
	if v := strings.TrimSpace(os.Getenv("ADMIN_IDS")); v != "" {
		cfg.AdminIDs = splitList(v)
	}
}

func (c Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is empty")
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
