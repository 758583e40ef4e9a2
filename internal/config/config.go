package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Store     StoreConfig
	Invoker   InvokerConfig
	Scheduler SchedulerConfig
}

type ServerConfig struct {
	Port string
	Host string
}

type DatabaseConfig struct {
	Host      string
	Port      string
	User      string
	Password  string
	DBName    string
	SSLMode   string
	JobsTable string
}

// StoreConfig selects where job definitions are read from
type StoreConfig struct {
	Driver     string // "postgres", "sqlite" or "file"
	JobsFile   string
	WatchFile  bool
	SQLitePath string
}

// InvokerConfig configures the HTTP transport used to trigger job handlers
type InvokerConfig struct {
	ServerURL       string
	AppID           string
	MasterKey       string
	Timeout         int // seconds
	RateLimit       float64
	BreakerFailures int
	BreakerCooldown time.Duration
}

type SchedulerConfig struct {
	Schedule     string
	Concurrency  int
	CycleTimeout time.Duration
	RunOnStart   bool
}

const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverFile     = "file"
)

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Host: getEnv("HOST", "localhost"),
		},
		Database: DatabaseConfig{
			Host:      getEnv("DB_HOST", "localhost"),
			Port:      getEnv("DB_PORT", "5432"),
			User:      getEnv("DB_USER", "jobrunner"),
			Password:  getEnv("DB_PASSWORD", "jobrunner"),
			DBName:    getEnv("DB_NAME", "jobrunner"),
			SSLMode:   getEnv("DB_SSLMODE", "disable"),
			JobsTable: getEnv("JOBS_TABLE", "job_schedules"),
		},
		Store: StoreConfig{
			Driver:     strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
			JobsFile:   getEnv("JOBS_FILE", "jobs.yaml"),
			WatchFile:  getEnvAsBool("JOBS_FILE_WATCH", true),
			SQLitePath: getEnv("SQLITE_PATH", "data/jobs.db"),
		},
		Invoker: InvokerConfig{
			ServerURL:       strings.TrimRight(getEnv("JOBS_SERVER_URL", "http://localhost:1337/parse"), "/"),
			AppID:           getEnv("JOBS_APP_ID", ""),
			MasterKey:       getEnv("JOBS_MASTER_KEY", ""),
			Timeout:         getEnvAsInt("INVOKER_TIMEOUT", 30),
			RateLimit:       getEnvAsFloat("INVOKER_RATE_LIMIT", 0),
			BreakerFailures: getEnvAsInt("INVOKER_BREAKER_FAILURES", 5),
			BreakerCooldown: getEnvAsDuration("INVOKER_BREAKER_COOLDOWN", time.Minute),
		},
		Scheduler: SchedulerConfig{
			Schedule:     getEnv("SCHEDULE_SPEC", "@every 1m"),
			Concurrency:  getEnvAsInt("CYCLE_CONCURRENCY", 8),
			CycleTimeout: getEnvAsDuration("CYCLE_TIMEOUT", 10*time.Minute),
			RunOnStart:   getEnvAsBool("RUN_ON_START", true),
		},
	}
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

// getEnvAsDuration accepts Go durations ("90s") or a bare number of seconds
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func (c *Config) DatabaseURL() string {
	// If DATABASE_URL is set, use it directly
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		return databaseURL
	}

	// Otherwise, construct from individual components
	return "postgres://" + c.Database.User + ":" + c.Database.Password +
		"@" + c.Database.Host + ":" + c.Database.Port +
		"/" + c.Database.DBName + "?sslmode=" + c.Database.SSLMode
}

// InvokerTimeout returns the per-invocation HTTP timeout
func (c *Config) InvokerTimeout() time.Duration {
	return time.Duration(c.Invoker.Timeout) * time.Second
}
