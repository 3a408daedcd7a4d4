package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	Server   ServerConfig   `json:"server"`
	Storage  StorageConfig  `json:"storage"`
	Oracle   OracleConfig   `json:"oracle"`
	Response ResponseConfig `json:"response"`
	Security SecurityConfig `json:"security"`
	Logging  LoggingConfig  `json:"logging"`
}

type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
	Environment  string        `json:"environment"`
}

type StorageConfig struct {
	DataPath     string `json:"data_path"`
	MaxStorageMB int    `json:"max_storage_mb"`
}

type OracleConfig struct {
	Enabled     bool          `json:"enabled"`
	APIKey      string        `json:"api_key"`
	ModelName   string        `json:"model_name"`
	Endpoint    string        `json:"endpoint"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Timeout     time.Duration `json:"timeout"`
	MaxRetries  int           `json:"max_retries"`
	RetryDelay  time.Duration `json:"retry_delay"`
}

// ResponseConfig wires outbound call-outs for verified anomalies: an
// optional notification webhook for every anomaly type and an optional SIP
// alarm call for high-priority types.
type ResponseConfig struct {
	WebhookURL string `json:"webhook_url"`
	EnableSIP  bool   `json:"enable_sip"`
	SIPNumber  string `json:"sip_number"`
}

type SecurityConfig struct {
	APIKey         string        `json:"api_key"`
	AllowedOrigins []string      `json:"allowed_origins"`
	RateLimitRPS   int           `json:"rate_limit_rps"`
	RateLimitBurst int           `json:"rate_limit_burst"`
	MaxRequestSize int64         `json:"max_request_size"`
	RequestTimeout time.Duration `json:"request_timeout"`
}

type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

func LoadConfig() *Config {
	config := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			Environment:  getEnv("ENVIRONMENT", "development"),
		},
		Storage: StorageConfig{
			DataPath:     getEnv("DATA_PATH", "./data"),
			MaxStorageMB: getEnvAsInt("MAX_STORAGE_MB", 1024),
		},
		Oracle: OracleConfig{
			Enabled:     getEnvAsBool("ORACLE_ENABLED", false),
			APIKey:      getEnv("ORACLE_API_KEY", ""),
			ModelName:   getEnv("ORACLE_MODEL", "claude-3-haiku-20240307"),
			Endpoint:    getEnv("ORACLE_ENDPOINT", "https://api.anthropic.com/v1/messages"),
			MaxTokens:   getEnvAsInt("ORACLE_MAX_TOKENS", 4096),
			Temperature: getEnvAsFloat("ORACLE_TEMPERATURE", 0.7),
			Timeout:     getEnvAsDuration("ORACLE_TIMEOUT", 30*time.Second),
			MaxRetries:  getEnvAsInt("ORACLE_MAX_RETRIES", 2),
			RetryDelay:  getEnvAsDuration("ORACLE_RETRY_DELAY", 1*time.Second),
		},
		Response: ResponseConfig{
			WebhookURL: getEnv("RESPONSE_WEBHOOK_URL", ""),
			EnableSIP:  getEnvAsBool("RESPONSE_SIP_ENABLED", false),
			SIPNumber:  getEnv("RESPONSE_SIP_NUMBER", ""),
		},
		Security: SecurityConfig{
			APIKey:         getEnv("ADMIN_API_KEY", ""),
			AllowedOrigins: getEnvAsStringSlice("ALLOWED_ORIGINS", []string{"*"}),
			RateLimitRPS:   getEnvAsInt("RATE_LIMIT_RPS", 100),
			RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 200),
			MaxRequestSize: getEnvAsInt64("MAX_REQUEST_SIZE", 4*1024*1024), // 4MB
			RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config
}

func (c *Config) ValidateConfig(logger *zap.Logger) error {
	var errors []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, "server port must be between 1 and 65535")
	}

	if c.Storage.DataPath == "" {
		errors = append(errors, "data path is required")
	}

	if c.Oracle.Enabled && c.Oracle.APIKey == "" {
		logger.Warn("Oracle enabled without API key, falling back to rule-based reasoning")
		c.Oracle.Enabled = false
	}

	if c.Oracle.Temperature < 0 || c.Oracle.Temperature > 1 {
		errors = append(errors, "oracle temperature must be between 0 and 1")
	}

	if c.Response.EnableSIP && c.Response.SIPNumber == "" {
		logger.Warn("SIP call-outs enabled without a number, disabling")
		c.Response.EnableSIP = false
	}

	if c.Security.APIKey == "" {
		logger.Warn("Admin API key not set, admin endpoints disabled")
	}

	if c.Security.MaxRequestSize <= 0 {
		errors = append(errors, "max request size must be positive")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, ", "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
