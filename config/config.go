package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all app configuration. It is read once at startup and never
// re-read per request.
type Config struct {
	// Server
	Env      string
	HTTPPort string

	// Storage engine: sqlite | clickhouse | memory
	StorageEngine string
	SQLitePath    string

	ClickhouseAddr     string
	ClickhouseUsername string
	ClickhousePassword string
	ClickhouseTimeout  int // seconds

	// Cache backend: memory | redis | none
	CacheBackend  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Per-operation cache TTLs, seconds
	StatsTTLSeconds    int
	AwaitingTTLSeconds int

	// Ledger semantics
	GraceMin  int     // payout correlation tolerance, minutes
	AHCutRate float64 // default auction-house cut fraction

	// Kafka (optional ingest path)
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaTopic         string
	KafkaConsumerGroup string
	KafkaBatchSize     int
	KafkaBatchTimeout  int // milliseconds

	// App settings
	Debug bool
}

// LoadConfig loads configuration from environment variables, with optional .env file
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	return &Config{
		Env:      getEnv("ENV", "local"),
		HTTPPort: getEnv("HTTP_PORT", "8080"),

		StorageEngine: getEnv("STORAGE_ENGINE", "sqlite"),
		SQLitePath:    getEnv("SQLITE_PATH", "data/ledger.db"),

		ClickhouseAddr:     getEnv("CLICKHOUSE_ADDR", "localhost:9000"),
		ClickhouseUsername: getEnv("CLICKHOUSE_USERNAME", ""),
		ClickhousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),
		ClickhouseTimeout:  getEnvAsInt("CLICKHOUSE_TIMEOUT", 10),

		CacheBackend:  getEnv("CACHE_BACKEND", "memory"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		StatsTTLSeconds:    getEnvAsInt("STATS_TTL_SECONDS", 30),
		AwaitingTTLSeconds: getEnvAsInt("AWAITING_TTL_SECONDS", 60),

		GraceMin:  getEnvAsInt("GRACE_MIN", 120),
		AHCutRate: getEnvAsFloat("AH_CUT_RATE", 0.05),

		KafkaEnabled:       getEnvAsBool("KAFKA_ENABLED", false),
		KafkaBrokers:       getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}, ","),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "ledger-uploads"),
		KafkaConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "ahledger-group"),
		KafkaBatchSize:     getEnvAsInt("KAFKA_BATCH_SIZE", 500),
		KafkaBatchTimeout:  getEnvAsInt("KAFKA_BATCH_TIMEOUT", 3000),

		Debug: getEnvAsBool("DEBUG", false),
	}
}

// Helper functions for parsing environment variables
func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	valStr := getEnv(key, "")
	if val, err := strconv.ParseBool(valStr); err == nil {
		return val
	}
	return defaultVal
}

func getEnvAsSlice(key string, defaultVal []string, sep string) []string {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultVal
	}
	return strings.Split(valStr, sep)
}
