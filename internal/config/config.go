package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration for the application.
// It follows the 12-factor app methodology by prioritizing environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Bot      BotConfig
	Engine   EngineConfig
	Billing  BillingConfig
}

type ServerConfig struct {
	Port        string
	Environment string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type BotConfig struct {
	Token string
}

type EngineConfig struct {
	GlobalRateLimit int // sends per second across all chats
	WorkerCount     int
	QueueSize       int
	AliasSalt       string
}

type BillingConfig struct {
	TrialDays    int
	AdminUserIDs []int64
}

// LoadConfig loads configuration from environment variables.
// Defaults can be set here if needed.
func LoadConfig() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			Environment: getEnv("APP_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "mediahub"),
			Password: getEnv("DB_PASSWORD", "password"),
			Name:     getEnv("DB_NAME", "mediahub"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Bot: BotConfig{
			Token: getEnv("BOT_TOKEN", ""),
		},
		Engine: EngineConfig{
			GlobalRateLimit: getEnvAsInt("GLOBAL_RATE_LIMIT", 25),
			WorkerCount:     getEnvAsInt("WORKER_COUNT", 10),
			QueueSize:       getEnvAsInt("QUEUE_SIZE", 512),
			AliasSalt:       getEnv("ALIAS_SALT", "mediahub"),
		},
		Billing: BillingConfig{
			TrialDays:    getEnvAsInt("TRIAL_DAYS", 30),
			AdminUserIDs: getEnvAsInt64List("ADMIN_USER_IDS"),
		},
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsInt64List(key string) []int64 {
	strValue := getEnv(key, "")
	if strValue == "" {
		return nil
	}
	var values []int64
	for _, part := range strings.Split(strValue, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if v, err := strconv.ParseInt(part, 10, 64); err == nil {
			values = append(values, v)
		}
	}
	return values
}
