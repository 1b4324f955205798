package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Model    ModelConfig    `yaml:"model"`
	Engine   EngineConfig   `yaml:"engine"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	CORSAllowOrigin string        `yaml:"cors_allow_origin"`
}

type DatabaseConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database"`
	SSLMode      string `yaml:"ssl_mode"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	StatsTTL time.Duration `yaml:"stats_ttl"`
	// WarmSchedule is a cron expression for proactive stats cache refresh.
	// Empty disables warming; the cache then fills lazily on reads.
	WarmSchedule string `yaml:"warm_schedule"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type AuthConfig struct {
	JWTSecret          string        `yaml:"jwt_secret"`
	AccessTokenExpiry  time.Duration `yaml:"access_token_expiry"`
	RefreshTokenExpiry time.Duration `yaml:"refresh_token_expiry"`
}

type ModelConfig struct {
	// Path is where the fitted model artifact lives.
	Path string `yaml:"path"`
	// Trees, SubsampleSize, Contamination, and Seed control forest
	// construction when no artifact exists yet.
	Trees         int     `yaml:"trees"`
	SubsampleSize int     `yaml:"subsample_size"`
	Contamination float64 `yaml:"contamination"`
	Seed          int64   `yaml:"seed"`
	// TrainingSamples is the provisional synthetic dataset size.
	TrainingSamples int `yaml:"training_samples"`
	// ReloadSchedule is a cron expression for periodic artifact reloads.
	// Empty disables scheduled reloads.
	ReloadSchedule string `yaml:"reload_schedule"`
}

type EngineConfig struct {
	RiskBaseline               float64 `yaml:"risk_baseline"`
	RiskMultiplier             float64 `yaml:"risk_multiplier"`
	HighTransmissionBytes      float64 `yaml:"high_transmission_bytes"`
	ExcessiveTransmissionBytes float64 `yaml:"excessive_transmission_bytes"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {

		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {

	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}

	if c.Database.Host == "" {
		c.Database.Host = "localhost"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}

	if c.Redis.Host == "" {
		c.Redis.Host = "localhost"
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.Redis.StatsTTL == 0 {
		c.Redis.StatsTTL = 30 * time.Second
	}

	if c.Auth.JWTSecret == "" {
		c.Auth.JWTSecret = "change-me-in-production"

		fmt.Println("WARNING: Using default JWT secret. Set auth.jwt_secret in production!")
	}
	if c.Auth.AccessTokenExpiry == 0 {
		c.Auth.AccessTokenExpiry = 15 * time.Minute
	}
	if c.Auth.RefreshTokenExpiry == 0 {
		c.Auth.RefreshTokenExpiry = 7 * 24 * time.Hour
	}

	if c.Model.Path == "" {
		c.Model.Path = "models/anomaly_detector.json"
	}
	if c.Model.Trees == 0 {
		c.Model.Trees = 100
	}
	if c.Model.SubsampleSize == 0 {
		c.Model.SubsampleSize = 256
	}
	if c.Model.Contamination == 0 {
		c.Model.Contamination = 0.1
	}
	if c.Model.Seed == 0 {
		c.Model.Seed = 42
	}
	if c.Model.TrainingSamples == 0 {
		c.Model.TrainingSamples = 100
	}

	if c.Engine.RiskBaseline == 0 {
		c.Engine.RiskBaseline = 50
	}
	if c.Engine.RiskMultiplier == 0 {
		c.Engine.RiskMultiplier = 10
	}
	if c.Engine.HighTransmissionBytes == 0 {
		c.Engine.HighTransmissionBytes = 500_000
	}
	if c.Engine.ExcessiveTransmissionBytes == 0 {
		c.Engine.ExcessiveTransmissionBytes = 1_000_000
	}
}
