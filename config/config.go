package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Sentry   SentryConfig   `mapstructure:"sentry"`
	Otel     OtelConfig     `mapstructure:"otel"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // postgres / sqlite
	DSN    string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

// QueueConfig 扇出队列参数（重试 / 保留策略同 BullMQ 缺省约定）
type QueueConfig struct {
	Workers          int           `mapstructure:"workers"`
	MaxAttempts      int           `mapstructure:"max_attempts"`
	BackoffBase      time.Duration `mapstructure:"backoff_base"`
	LeaseTTL         time.Duration `mapstructure:"lease_ttl"`
	CompletedMaxAge  time.Duration `mapstructure:"completed_max_age"`
	CompletedMaxSize int64         `mapstructure:"completed_max_size"`
	FailedMaxAge     time.Duration `mapstructure:"failed_max_age"`
}

type SentryConfig struct {
	DSN string `mapstructure:"dsn"`
}

type OtelConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// Load 读取 config/config.yaml 并叠加环境变量（MT_ 前缀）；文件不存在时使用默认值。
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvPrefix("MT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "host=localhost user=postgres password=postgres dbname=minitwitter port=5432 sslmode=disable")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "your-secret-key")
	v.SetDefault("jwt.ttl", "72h")
	v.SetDefault("queue.workers", 4)
	v.SetDefault("queue.max_attempts", 3)
	v.SetDefault("queue.backoff_base", "2s")
	v.SetDefault("queue.lease_ttl", "60s")
	v.SetDefault("queue.completed_max_age", "1h")
	v.SetDefault("queue.completed_max_size", 1000)
	v.SetDefault("queue.failed_max_age", "24h")
	v.SetDefault("otel.enabled", false)
	v.SetDefault("otel.endpoint", "localhost:4318")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
