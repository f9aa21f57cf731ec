package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StoreDriverMySQL  = "mysql"
	StoreDriverMemory = "memory"
)

// Config 全局配置结构
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Store  StoreConfig  `mapstructure:"store"`
	MySQL  MySQLConfig  `mapstructure:"mysql"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Lock   LockConfig   `mapstructure:"lock"`
	Kafka  KafkaConfig  `mapstructure:"kafka"`
	Outbox OutboxConfig `mapstructure:"outbox"`
	Auth   AuthConfig   `mapstructure:"auth"`
	Log    LogConfig    `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int `mapstructure:"port"`
	ShutdownSeconds int `mapstructure:"shutdown_seconds"`
}

// StoreConfig 选择文档存储实现：mysql 或 memory
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	LogSQL       bool   `mapstructure:"log_sql"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Enabled 没有配置 host 时使用进程内锁
func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

type LockConfig struct {
	TTLSeconds      int `mapstructure:"ttl_seconds"`
	RetryIntervalMS int `mapstructure:"retry_interval_ms"`
	MaxRetries      int `mapstructure:"max_retries"`
}

func (c LockConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

func (c LockConfig) RetryInterval() time.Duration {
	return time.Duration(c.RetryIntervalMS) * time.Millisecond
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	AccountEvents string `mapstructure:"account_events"`
}

// Enabled 没有配置 broker 时不投递事件，消息留在 outbox 里
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

type OutboxConfig struct {
	IntervalMS    int `mapstructure:"interval_ms"`
	BatchSize     int `mapstructure:"batch_size"`
	MaxRetryCount int `mapstructure:"max_retry_count"`
}

func (c OutboxConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}

// AuthConfig 身份提供方签发的 JWT 校验参数
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_seconds", 5)
	v.SetDefault("store.driver", StoreDriverMySQL)
	// 空字符串默认值也要注册，否则 AutomaticEnv 在 Unmarshal 时不会生效
	v.SetDefault("mysql.host", "")
	v.SetDefault("mysql.port", 3306)
	v.SetDefault("mysql.user", "")
	v.SetDefault("mysql.password", "")
	v.SetDefault("mysql.database", "")
	v.SetDefault("mysql.max_open_conns", 20)
	v.SetDefault("mysql.max_idle_conns", 5)
	v.SetDefault("mysql.log_sql", false)
	v.SetDefault("redis.host", "")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("lock.ttl_seconds", 10)
	v.SetDefault("lock.retry_interval_ms", 50)
	v.SetDefault("lock.max_retries", 100)
	v.SetDefault("kafka.topic.account_events", "account-events")
	v.SetDefault("outbox.interval_ms", 200)
	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.max_retry_count", 5)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// LoadConfig 加载配置文件
//
// 优先级：环境变量（FINTRACK_ 前缀，如 FINTRACK_MYSQL_PASSWORD）> 配置文件 > 默认值。
// 当前目录存在 .env 时先加载到环境变量里。
func LoadConfig(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("读取 .env 失败: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("FINTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查配置之间的依赖关系
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreDriverMySQL:
		if c.MySQL.Host == "" || c.MySQL.Database == "" {
			return errors.New("mysql.host 和 mysql.database 不能为空")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("不支持的 store.driver: %q", c.Store.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret 不能为空")
	}
	return nil
}
