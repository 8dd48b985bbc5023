// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"os"
	"strconv"
)

// Config はアプリケーション設定を表す。
type Config struct {
	Port               string
	DBDriver           string
	DatabaseURL        string
	PrivateKeyPath     string
	PublicKeyPath      string
	RSAKeySize         int
	KeyAutoProvision   bool
	LogLevel           string
	OtelEnabled        bool
	OtelEndpoint       string
	OtelServiceName    string
	OtelSamplingRate   float64
	RateLimitPerMinute int
}

// Load は環境変数から設定を読み込む。
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		DBDriver:           getEnv("DB_DRIVER", "sqlite"),
		DatabaseURL:        getEnv("DATABASE_URL", "hospital.db"),
		PrivateKeyPath:     getEnv("PRIVATE_KEY_PATH", "keys/private_key.pem"),
		PublicKeyPath:      getEnv("PUBLIC_KEY_PATH", "keys/public_key.pem"),
		RSAKeySize:         getEnvInt("RSA_KEY_SIZE", 4096),
		KeyAutoProvision:   getEnvBool("KEY_AUTO_PROVISION", false),
		LogLevel:           getEnv("LOG_LEVEL", "INFO"),
		OtelEnabled:        getEnvBool("OTEL_ENABLED", false),
		OtelEndpoint:       getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
		OtelServiceName:    getEnv("OTEL_SERVICE_NAME", "patient-data-service"),
		OtelSamplingRate:   getEnvFloat("OTEL_SAMPLING_RATE", 0.1),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 100),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

func getEnvFloat(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return parsed
}
