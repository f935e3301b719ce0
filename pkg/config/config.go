// Package config 配置加载: .env → 配置文件 (可选) → RISKCALC_ 环境变量覆盖
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"max.com/riskcalc/pkg/logger"
)

// EnvPrefix 环境变量前缀，如 RISKCALC_HTTP_PORT 覆盖 http.port
const EnvPrefix = "RISKCALC"

// Config 服务配置
// 外部系统的地址留空即表示不接入
type Config struct {
	Service   ServiceConfig   `mapstructure:"service"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Logger    logger.Config   `mapstructure:"logger"`
	Snowflake SnowflakeConfig `mapstructure:"snowflake"`
	Risk      RiskConfig      `mapstructure:"risk"`
}

type ServiceConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"` // dev, staging, prod
}

type HTTPConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // 秒
	WriteTimeout int    `mapstructure:"write_timeout"` // 秒
}

// Addr 监听地址
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type DatabaseConfig struct {
	DSN             string `mapstructure:"dsn"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 秒
	AutoMigrate     bool   `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers      []string `mapstructure:"brokers"`
	RequestTopic string   `mapstructure:"request_topic"`
	ReportTopic  string   `mapstructure:"report_topic"`
	GroupID      string   `mapstructure:"group_id"`
}

type NATSConfig struct {
	URL             string `mapstructure:"url"`
	EvaluateSubject string `mapstructure:"evaluate_subject"`
	AlertSubject    string `mapstructure:"alert_subject"`
	Queue           string `mapstructure:"queue"`
}

type SnowflakeConfig struct {
	NodeID int64 `mapstructure:"node_id"`
}

type RiskConfig struct {
	// DataFile 一次性计算模式读取的行情文件 (.xlsx / .csv)
	DataFile string `mapstructure:"data_file"`
	// DefaultPair 请求没带 pair 也没带序列时使用
	DefaultPair string `mapstructure:"default_pair"`
	// SeriesLimit 从仓库读取的最近天数，0 表示全部
	SeriesLimit int `mapstructure:"series_limit"`
	// AlertCooldown 同一条限额规则两次触发的最小间隔（秒）
	AlertCooldown int `mapstructure:"alert_cooldown"`
}

// Load 加载配置
// configPath 为空时只用默认值和环境变量；不为空时文件必须存在
func Load(configPath string) (*Config, error) {
	// .env 不存在不算错误
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if c.Service.Name == "" {
		return fmt.Errorf("service.name is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTP.Port)
	}
	if c.Snowflake.NodeID < 0 || c.Snowflake.NodeID > 1023 {
		return fmt.Errorf("snowflake.node_id must be in [0, 1023], got %d", c.Snowflake.NodeID)
	}
	switch c.Logger.Output {
	case "stdout", "file", "both":
	default:
		return fmt.Errorf("invalid logger output: %q", c.Logger.Output)
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.RequestTopic == "" && c.Kafka.ReportTopic == "" {
		return fmt.Errorf("kafka brokers set but no topic configured")
	}
	return nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("service.name", "riskcalc")
	v.SetDefault("service.environment", "dev")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 10)
	v.SetDefault("http.write_timeout", 10)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.request_topic", "risk.requests")
	v.SetDefault("kafka.report_topic", "risk.reports")
	v.SetDefault("kafka.group_id", "riskcalc")

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.evaluate_subject", "risk.evaluate")
	v.SetDefault("nats.alert_subject", "risk.alerts")
	v.SetDefault("nats.queue", "riskcalc")

	d := logger.DefaultConfig()
	v.SetDefault("logger.level", d.Level)
	v.SetDefault("logger.format", d.Format)
	v.SetDefault("logger.output", d.Output)
	v.SetDefault("logger.file_path", d.FilePath)
	v.SetDefault("logger.max_size", d.MaxSize)
	v.SetDefault("logger.max_backups", d.MaxBackups)
	v.SetDefault("logger.max_age", d.MaxAge)
	v.SetDefault("logger.compress", d.Compress)
	v.SetDefault("logger.with_caller", d.WithCaller)

	v.SetDefault("snowflake.node_id", 1)

	v.SetDefault("risk.data_file", "var_data.xlsx")
	v.SetDefault("risk.default_pair", "")
	v.SetDefault("risk.series_limit", 0)
	v.SetDefault("risk.alert_cooldown", 300)
}
