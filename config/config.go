package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Snowflake SnowflakeConfig `mapstructure:"snowflake"`
	Events    EventsConfig    `mapstructure:"events"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// PostgresConfig; when Driver is "sqlite" the store is opened from SQLitePath instead.
type PostgresConfig struct {
	Driver       string `mapstructure:"driver"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbname"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	SQLitePath   string `mapstructure:"sqlite_path"`
}

type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

type KafkaConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Brokers  []string       `mapstructure:"brokers"`
	Topic    string         `mapstructure:"topic"`
	Producer ProducerConfig `mapstructure:"producer"`
}

type ProducerConfig struct {
	MaxRetries     int `mapstructure:"max_retries"`
	RetryBackoffMs int `mapstructure:"retry_backoff_ms"`
}

type JWTConfig struct {
	Secret          string `mapstructure:"secret"`
	Issuer          string `mapstructure:"issuer"`
	AccessTTLMinute int    `mapstructure:"access_ttl_minutes"`
	RefreshTTLHour  int    `mapstructure:"refresh_ttl_hours"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
	File   string `mapstructure:"file"`
}

type SnowflakeConfig struct {
	NodeID int64 `mapstructure:"node_id"`
}

// EventsConfig selects the post-commit forwarders besides the log subscriber.
type EventsConfig struct {
	RedisChannelPrefix string `mapstructure:"redis_channel_prefix"`
	ForwardToRedis     bool   `mapstructure:"forward_to_redis"`
	ForwardToKafka     bool   `mapstructure:"forward_to_kafka"`
}

// RateLimitConfig caps requests per user in fixed windows counted in Redis.
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	WindowSeconds     int  `mapstructure:"window_seconds"`
	APIPerWindow      int  `mapstructure:"api_per_window"`
	MessagesPerWindow int  `mapstructure:"messages_per_window"`
	FailOpen          bool `mapstructure:"fail_open"`
}

// setDefaults registers every key that may come only from the environment;
// AutomaticEnv does not reach keys viper has never seen.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	v.SetDefault("postgres.driver", "postgres")
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.dbname", "")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_idle_conns", 10)
	v.SetDefault("postgres.max_open_conns", 100)
	v.SetDefault("postgres.sqlite_path", "chatcore.db")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.min_idle_conns", 5)

	v.SetDefault("kafka.topic", "chat.events")
	v.SetDefault("kafka.producer.max_retries", 3)
	v.SetDefault("kafka.producer.retry_backoff_ms", 100)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "chatcore")
	v.SetDefault("jwt.access_ttl_minutes", 60)
	v.SetDefault("jwt.refresh_ttl_hours", 24*7)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("snowflake.node_id", 1)

	v.SetDefault("events.redis_channel_prefix", "chat:events")

	v.SetDefault("ratelimit.window_seconds", 60)
	v.SetDefault("ratelimit.api_per_window", 600)
	v.SetDefault("ratelimit.messages_per_window", 120)
	v.SetDefault("ratelimit.fail_open", true)
}

// LoadConfig reads the TOML file at path. Every key can be overridden from the
// environment as CHAT_<SECTION>_<KEY>, e.g. CHAT_POSTGRES_PASSWORD.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("CHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Postgres.Driver {
	case "postgres":
		if c.Postgres.Host == "" || c.Postgres.User == "" || c.Postgres.DBName == "" {
			errs = append(errs, errors.New("postgres: host, user and dbname are required"))
		}
	case "sqlite":
		if c.Postgres.SQLitePath == "" {
			errs = append(errs, errors.New("postgres: sqlite_path is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("postgres: unknown driver %q", c.Postgres.Driver))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt: secret is required"))
	}
	if c.Snowflake.NodeID < 0 || c.Snowflake.NodeID > 1023 {
		errs = append(errs, fmt.Errorf("snowflake: node_id %d out of range [0, 1023]", c.Snowflake.NodeID))
	}
	if (c.Kafka.Enabled || c.Events.ForwardToKafka) && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka: brokers are required when kafka is enabled"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
