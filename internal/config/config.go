package config

import (
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env       string          `yaml:"env" env:"ENV" env-default:"local"`
	Storage   StorageConfig   `yaml:"storage"`
	HTTP      HTTPConfig      `yaml:"http"`
	Redis     RedisConfig     `yaml:"redis"`
	Tokens    TokensConfig    `yaml:"tokens"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Cleanup   CleanupConfig   `yaml:"cleanup"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	CORS      CORSConfig      `yaml:"cors"`
}

type StorageConfig struct {
	Backend string      `yaml:"backend" env-default:"sqlite"`
	Path    string      `yaml:"path"`
	Mongo   MongoConfig `yaml:"mongo"`
}

type MongoConfig struct {
	URI      string `yaml:"uri" env:"MONGO_URI"`
	Database string `yaml:"database" env-default:"budgetauth"`
}

type HTTPConfig struct {
	Port    int           `yaml:"port" env-default:"8000"`
	Timeout time.Duration `yaml:"timeout" env-default:"10s"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db"`
}

type TokensConfig struct {
	AccessSecret  string        `yaml:"access_secret" env:"JWT_SECRET_KEY" env-required:"true"`
	RefreshSecret string        `yaml:"refresh_secret" env:"JWT_REFRESH_SECRET_KEY" env-required:"true"`
	AccessTTL     time.Duration `yaml:"access_ttl" env-default:"30m"`
	RefreshTTL    time.Duration `yaml:"refresh_ttl" env-default:"168h"`
	ResetTTL      time.Duration `yaml:"reset_ttl" env-default:"15m"`
}

type RateLimitConfig struct {
	Window time.Duration `yaml:"window" env-default:"3600s"`
	Limit  int64         `yaml:"limit" env-default:"1"`
}

type CleanupConfig struct {
	Interval time.Duration `yaml:"interval" env-default:"24h"`
}

type SMTPConfig struct {
	Addr        string `yaml:"addr" env:"SMTP_ADDR"`
	From        string `yaml:"from" env:"EMAIL_FROM"`
	Password    string `yaml:"password" env:"SMTP_PASSWORD"`
	FrontendURL string `yaml:"frontend_url" env-default:"http://127.0.0.1:5500"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

func LoadConfig(path string) *Config {
	var cfg Config

	if _, err := os.Stat(path); os.IsNotExist(err) {
		panic("config file not found: " + path)
	}

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		panic("failed to read config: " + err.Error())
	}

	return &cfg
}
