package config

import (
	"fmt"
	"os"
	"strconv"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT配置（可选的第二路读数来源）
type MQTTConfig struct {
	Enabled  bool
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
	Topic    string // 订阅主题，如 "rescue/readings/+"
}

// Config rescue-ranger 服务配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig

	HTTP struct {
		Addr string
	}

	// 分类阈值（按部署可覆盖）
	Thresholds struct {
		HeartRateLow  int // 低于此心率判定为紧急，默认 60
		HeartRateHigh int // 高于此心率判定为紧急，默认 100
		SpO2Low       int // 低于此血氧判定为紧急，默认 95
	}

	// 通知编排配置
	Notify struct {
		CooldownSeconds int // 同一设备两次通知扇出的最小间隔（秒），默认 300
		MaxAttempts     int // 每个分支最大尝试次数，默认 3
		BaseDelayMs     int // 重试退避基础延迟（毫秒），默认 500
		MaxDelayMs      int // 重试退避延迟上限（毫秒），默认 5000
		AttemptTimeout  int // 单次尝试超时（秒），默认 10
		Workers         int // 扇出并发 worker 数，默认 4
		RatePerSec      int // 每秒发送上限（0 = 不限速）
	}

	// 通知通道配置
	SMTP struct {
		Host     string
		Port     int
		Username string
		Password string
		From     string
	}
	SMS struct {
		BaseURL    string
		AccountSID string
		AuthToken  string
		From       string
	}
	Push struct {
		BaseURL   string
		ServerKey string
	}
	Dispatch struct {
		URL string // 外部救援调度服务端点
	}

	// Redis 缓存配置
	Cache struct {
		RealtimeKeyPrefix string // 实时数据缓存键前缀，如 "rescue:device:"
		RealtimeSuffix    string // 实时数据缓存键后缀，如 ":realtime"
		EmergencySuffix   string // 活跃紧急状态缓存键后缀，如 ":emergency"
		RealtimeTTL       int    // 实时数据 TTL（秒），默认 120
		EmergencyTTL      int    // 紧急状态 TTL（秒），默认 300
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置（环境变量 + 默认值）
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "rescue_ranger")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "rescue-ranger")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = 1
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", "rescue/readings/+")

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":5000")

	cfg.Thresholds.HeartRateLow = getEnvInt("THRESHOLD_HR_LOW", 60)
	cfg.Thresholds.HeartRateHigh = getEnvInt("THRESHOLD_HR_HIGH", 100)
	cfg.Thresholds.SpO2Low = getEnvInt("THRESHOLD_SPO2_LOW", 95)

	cfg.Notify.CooldownSeconds = getEnvInt("NOTIFY_COOLDOWN_SECONDS", 300)
	cfg.Notify.MaxAttempts = getEnvInt("NOTIFY_MAX_ATTEMPTS", 3)
	cfg.Notify.BaseDelayMs = getEnvInt("NOTIFY_BASE_DELAY_MS", 500)
	cfg.Notify.MaxDelayMs = getEnvInt("NOTIFY_MAX_DELAY_MS", 5000)
	cfg.Notify.AttemptTimeout = getEnvInt("NOTIFY_ATTEMPT_TIMEOUT_SECONDS", 10)
	cfg.Notify.Workers = getEnvInt("NOTIFY_WORKERS", 4)
	cfg.Notify.RatePerSec = getEnvInt("NOTIFY_RATE_PER_SEC", 0)

	cfg.SMTP.Host = getEnv("SMTP_HOST", "localhost")
	cfg.SMTP.Port = getEnvInt("SMTP_PORT", 587)
	cfg.SMTP.Username = getEnv("SMTP_USERNAME", "")
	cfg.SMTP.Password = getEnv("SMTP_PASSWORD", "")
	cfg.SMTP.From = getEnv("SMTP_FROM", "alerts@rescue-ranger.local")

	cfg.SMS.BaseURL = getEnv("SMS_BASE_URL", "https://api.twilio.com/2010-04-01")
	cfg.SMS.AccountSID = getEnv("SMS_ACCOUNT_SID", "")
	cfg.SMS.AuthToken = getEnv("SMS_AUTH_TOKEN", "")
	cfg.SMS.From = getEnv("SMS_FROM", "")

	cfg.Push.BaseURL = getEnv("PUSH_BASE_URL", "https://fcm.googleapis.com")
	cfg.Push.ServerKey = getEnv("PUSH_SERVER_KEY", "")

	cfg.Dispatch.URL = getEnv("DISPATCH_URL", "https://emergency-services-api.com/dispatch")

	cfg.Cache.RealtimeKeyPrefix = getEnv("CACHE_REALTIME_PREFIX", "rescue:device:")
	cfg.Cache.RealtimeSuffix = ":realtime"
	cfg.Cache.EmergencySuffix = ":emergency"
	cfg.Cache.RealtimeTTL = getEnvInt("CACHE_REALTIME_TTL", 120)
	cfg.Cache.EmergencyTTL = getEnvInt("CACHE_EMERGENCY_TTL", 300)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
