package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	pkgconfig "github.com/weiawesome/wes-chat/pkg/config"
	"github.com/weiawesome/wes-chat/pkg/database"
	pkglog "github.com/weiawesome/wes-chat/pkg/log"
	"github.com/weiawesome/wes-chat/pkg/pubsub"
)

const (
	maxExpiryInterval   = 5 * time.Second
	maxDispatchInterval = 10 * time.Second
)

type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	Database  database.Config
	Chat      ChatConfig
	Scheduler SchedulerConfig
	Auth      AuthConfig
	Events    pubsub.Config
	Log       pkglog.Config
}

type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateBurst      int           `mapstructure:"rate_burst"`
}

type ChatConfig struct {
	HistoryLimit int `mapstructure:"history_limit"`
}

// SchedulerConfig holds the sweep intervals. Values above the supported
// maximum are clamped on load.
type SchedulerConfig struct {
	ExpiryInterval   time.Duration `mapstructure:"expiry_interval"`
	DispatchInterval time.Duration `mapstructure:"dispatch_interval"`
}

type AuthConfig struct {
	Enabled bool
	Secret  string
	Issuer  string
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	setDefaults(v)

	if err := pkgconfig.BindEnvs(v, map[string]string{
		"server.port":           "PORT",
		"database.driver":       "DATABASE_DRIVER",
		"database.host":         "DATABASE_HOST",
		"database.port":         "DATABASE_PORT",
		"database.user":         "DATABASE_USER",
		"database.password":     "DATABASE_PASSWORD",
		"database.dbname":       "DATABASE_NAME",
		"database.file_path":    "DATABASE_FILE_PATH",
		"auth.enabled":          "AUTH_ENABLED",
		"auth.secret":           "JWT_SECRET",
		"events.driver":         "EVENTS_DRIVER",
		"events.redis.address":  "REDIS_ADDRESS",
		"events.redis.password": "REDIS_PASSWORD",
		"events.kafka.brokers":  "KAFKA_BROKERS",
		"events.kafka.topic":    "KAFKA_TOPIC",
		"log.level":             "LOG_LEVEL",
	}); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.Server.ShutdownTimeout = parseDuration(v, "server.shutdown_timeout", 10*time.Second)
	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.Scheduler.ExpiryInterval = clamp(parseDuration(v, "scheduler.expiry_interval", maxExpiryInterval), maxExpiryInterval)
	cfg.Scheduler.DispatchInterval = clamp(parseDuration(v, "scheduler.dispatch_interval", maxDispatchInterval), maxDispatchInterval)
	cfg.Events.Redis.ReadTimeout = parseDuration(v, "events.redis.read_timeout", 3*time.Second)
	cfg.Events.Redis.WriteTimeout = parseDuration(v, "events.redis.write_timeout", 3*time.Second)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	events := pubsub.DefaultConfig()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 65536)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("websocket.rate_limit", 20)
	v.SetDefault("websocket.rate_burst", 40)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "chat")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.file_path", "chat.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("chat.history_limit", 50)
	v.SetDefault("scheduler.expiry_interval", "5s")
	v.SetDefault("scheduler.dispatch_interval", "10s")
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.issuer", "wes-chat")
	v.SetDefault("events.driver", events.Driver)
	v.SetDefault("events.redis.address", events.Redis.Address)
	v.SetDefault("events.redis.password", "")
	v.SetDefault("events.redis.db", 0)
	v.SetDefault("events.redis.pool_size", events.Redis.PoolSize)
	v.SetDefault("events.redis.read_timeout", events.Redis.ReadTimeout.String())
	v.SetDefault("events.redis.write_timeout", events.Redis.WriteTimeout.String())
	v.SetDefault("events.redis.channel_prefix", events.Redis.ChannelPrefix)
	v.SetDefault("events.kafka.brokers", events.Kafka.Brokers)
	v.SetDefault("events.kafka.topic", events.Kafka.Topic)
	v.SetDefault("events.kafka.partitions", events.Kafka.Partitions)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.service_name", "wes-chat")
}

func (c *Config) validate() error {
	if c.Auth.Enabled && c.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is required when auth is enabled")
	}
	if c.Chat.HistoryLimit <= 0 {
		return fmt.Errorf("chat.history_limit must be positive, got %d", c.Chat.HistoryLimit)
	}
	return nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := v.GetString(key)
	d, err := time.ParseDuration(str)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func clamp(d, limit time.Duration) time.Duration {
	if d > limit {
		return limit
	}
	return d
}
