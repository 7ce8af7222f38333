package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	RootURL             string
	FetchMode           string // http | browser
	ChromeBin           string
	MaxPages            int
	MaxRetries          int
	RequestTimeout      time.Duration
	RefetchPreviousPage bool

	DistanceAPIURL        string
	GoogleAPIKey          string
	MaxElementsPerRequest int
	MaxOriginsPerRequest  int
	ElementsPerMinute     int
	DistanceWorkers       int

	ProjectConfigPath string
	ExportCSVPath     string
	DistancesCSVPath  string
	SQLitePath        string

	ExportPostgres   bool
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	LogLevel string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		RootURL:             getEnv("ROOT_URL", "https://www.remax.com/homes-for-sale/ne/papillion/city/3138295"),
		FetchMode:           strings.ToLower(getEnv("FETCH_MODE", "http")),
		ChromeBin:           getEnv("CHROME_BIN", ""),
		MaxPages:            getEnvInt("MAX_PAGES", 100),
		MaxRetries:          getEnvInt("MAX_RETRIES", 3),
		RequestTimeout:      time.Duration(getEnvInt("REQUEST_TIMEOUT_SEC", 30)) * time.Second,
		RefetchPreviousPage: getEnvBool("REFETCH_PREVIOUS_PAGE", true),

		DistanceAPIURL:        getEnv("DISTANCE_API_URL", "https://maps.googleapis.com/maps/api/distancematrix/json"),
		GoogleAPIKey:          getEnv("GOOGLE_MAPS_API_KEY", ""),
		MaxElementsPerRequest: getEnvInt("MAX_ELEMENTS_PER_REQUEST", 100),
		MaxOriginsPerRequest:  getEnvInt("MAX_ORIGINS_PER_REQUEST", 25),
		ElementsPerMinute:     getEnvInt("ELEMENTS_PER_MINUTE", 60000),
		DistanceWorkers:       getEnvInt("DISTANCE_WORKERS", 1),

		ProjectConfigPath: getEnv("PROJECT_CONFIG", "project_config.yaml"),
		ExportCSVPath:     getEnv("EXPORT_CSV_PATH", "./output/homeData.csv"),
		DistancesCSVPath:  getEnv("DISTANCES_CSV_PATH", ""),
		SQLitePath:        getEnv("SQLITE_PATH", ""),

		ExportPostgres:   getEnvBool("EXPORT_POSTGRES", false),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "homescout"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "homescout"),
		PostgresDB:       getEnv("POSTGRES_DB", "homescout"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks the environment layer. Problems are collected into one
// ConfigError.
func (c *Config) Validate() error {
	var errs []string
	if strings.TrimSpace(c.RootURL) == "" {
		errs = append(errs, "ROOT_URL is required")
	}
	if c.FetchMode != "http" && c.FetchMode != "browser" {
		errs = append(errs, "FETCH_MODE must be http or browser")
	}
	if c.MaxPages < 1 {
		errs = append(errs, "MAX_PAGES must be >= 1")
	}
	if c.MaxElementsPerRequest < 1 {
		errs = append(errs, "MAX_ELEMENTS_PER_REQUEST must be >= 1")
	}
	if c.MaxOriginsPerRequest < 1 {
		errs = append(errs, "MAX_ORIGINS_PER_REQUEST must be >= 1")
	}
	if c.ElementsPerMinute > 0 && c.ElementsPerMinute <= c.MaxElementsPerRequest {
		errs = append(errs, "ELEMENTS_PER_MINUTE must exceed MAX_ELEMENTS_PER_REQUEST (or be 0 to disable)")
	}
	if c.DistanceWorkers < 1 {
		errs = append(errs, "DISTANCE_WORKERS must be >= 1")
	}
	if strings.TrimSpace(c.ExportCSVPath) == "" {
		errs = append(errs, "EXPORT_CSV_PATH is required")
	}
	if len(errs) > 0 {
		return &ConfigError{Problems: errs}
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
