package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort    string
	MetricsPort string

	MQTTBroker string
	MQTTTopic  string

	RedisAddr string
	RedisDB   int

	StatsTTL  time.Duration
	RecentTTL time.Duration
}

// Load lee la configuración del entorno. El .env es opcional: en producción
// las variables vienen del orquestador.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		HTTPPort:    getEnv("HTTP_PORT", "3000"),
		MetricsPort: getEnv("METRICS_PORT", "9000"),
		MQTTBroker:  getEnv("MQTT_BROKER", "mqtt://test.mosquitto.org:1883"),
		MQTTTopic:   getEnv("MQTT_TOPIC", "siav/eventos/test"),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:     getEnvInt("REDIS_DB", 0),
		StatsTTL:    getEnvDuration("STATS_TTL", 10*time.Second),
		RecentTTL:   getEnvDuration("RECENT_TTL", 5*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
