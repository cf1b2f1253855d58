package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/imrishuroy/go-crm-backend/internal/jobs"
	"github.com/imrishuroy/go-crm-backend/internal/store"
)

type Config struct {
	StoreBackend string
	SQLitePath   string
	Tables       store.DynamoTables
	JobRunsTable string

	EventsQueueURL string
	JobsQueueURL   string

	APIBaseURL       string
	JobTimeout       time.Duration
	JobLogPaths      jobs.LogPaths
	MetricsNamespace string

	RunLocal bool
	LocalJob string
	Port     string
}

// NeedsAWS reports whether any configured component talks to AWS.
func (c Config) NeedsAWS() bool {
	return c.StoreBackend == store.BackendDynamoDB || c.JobRunsTable != "" ||
		c.EventsQueueURL != "" || c.JobsQueueURL != "" || c.MetricsNamespace != ""
}

// StoreOptions maps the config onto store.Open options. The DynamoDB client
// is filled in by the caller.
func (c Config) StoreOptions() store.Options {
	return store.Options{
		Backend:    c.StoreBackend,
		SQLitePath: c.SQLitePath,
		Tables:     c.Tables,
	}
}

// Load reads .env when present, then the environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] .env not loaded:", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() Config {
	return Config{
		StoreBackend: getEnvOrDefault("STORE_BACKEND", store.BackendMemory),
		SQLitePath:   getEnvOrDefault("SQLITE_PATH", "crm.db"),
		Tables: store.DynamoTables{
			Customers: getEnvOrDefault("CUSTOMERS_TABLE", ""),
			Emails:    getEnvOrDefault("EMAILS_TABLE", ""),
			Products:  getEnvOrDefault("PRODUCTS_TABLE", ""),
			Orders:    getEnvOrDefault("ORDERS_TABLE", ""),
		},
		JobRunsTable:   getEnvOrDefault("JOB_RUNS_TABLE", ""),
		EventsQueueURL: getEnvOrDefault("EVENTS_QUEUE_URL", ""),
		JobsQueueURL:   getEnvOrDefault("JOBS_QUEUE_URL", ""),
		APIBaseURL:     getEnvOrDefault("API_BASE_URL", ""),
		JobTimeout:     getDurationEnv("JOB_TIMEOUT", 30*time.Second),
		JobLogPaths: jobs.LogPaths{
			Heartbeat:      getEnvOrDefault("HEARTBEAT_LOG_PATH", jobs.DefaultLogPaths.Heartbeat),
			OrderReminders: getEnvOrDefault("ORDER_REMINDERS_LOG_PATH", jobs.DefaultLogPaths.OrderReminders),
			WeeklyReport:   getEnvOrDefault("REPORT_LOG_PATH", jobs.DefaultLogPaths.WeeklyReport),
			LowStock:       getEnvOrDefault("LOW_STOCK_LOG_PATH", jobs.DefaultLogPaths.LowStock),
		},
		MetricsNamespace: getEnvOrDefault("METRICS_NAMESPACE", ""),
		RunLocal:         getBoolEnv("RUN_LOCAL", false),
		LocalJob:         getEnvOrDefault("LOCAL_JOB", jobs.NameHeartbeat),
		Port:             getEnvOrDefault("PORT", "8080"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv accepts Go durations ("45s") or a bare number of seconds.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	log.Printf("[config] invalid %s=%q, using %s", key, value, defaultValue)
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
