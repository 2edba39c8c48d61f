package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	HTTPAddr string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CompaniesHouse CompaniesHouseConfig
	Email          EmailConfig
	Monitoring     MonitoringConfig

	BootstrapPartnerEmail    string
	BootstrapPartnerPassword string
}

type CompaniesHouseConfig struct {
	BaseURL      string
	APIKey       string
	CacheTTL     int // seconds
	RequestDelay int // milliseconds between sweep requests
}

type EmailConfig struct {
	Enabled      bool
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

// MonitoringConfig controls the optional metrics push to the firm's hosted
// monitoring endpoint.
type MonitoringConfig struct {
	Enabled   bool
	Exporter  string
	Endpoint  string
	AuthToken string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "practicehub"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),

		HTTPAddr: getenv("HTTP_ADDR", ":8080"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "practicehub"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 1800),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 300),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),

		CompaniesHouse: CompaniesHouseConfig{
			BaseURL:      getenv("COMPANIES_HOUSE_BASE_URL", "https://api.company-information.service.gov.uk"),
			APIKey:       strings.TrimSpace(getenv("COMPANIES_HOUSE_API_KEY", "")),
			CacheTTL:     getenvInt("COMPANIES_HOUSE_CACHE_TTL", 21600),
			RequestDelay: getenvInt("COMPANIES_HOUSE_REQUEST_DELAY", 600),
		},
		Email: EmailConfig{
			Enabled:      getenvBool("EMAIL_ENABLED", false),
			SMTPHost:     getenv("SMTP_HOST", "localhost"),
			SMTPPort:     getenvInt("SMTP_PORT", 587),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     getenv("SMTP_FROM", "noreply@numericalz.co.uk"),
		},
		Monitoring: MonitoringConfig{
			Enabled:   getenvBool("MONITORING_PUSH_ENABLED", false),
			Exporter:  strings.ToLower(getenv("MONITORING_PUSH_EXPORTER", "")),
			Endpoint:  strings.TrimSpace(getenv("MONITORING_PUSH_ENDPOINT", "")),
			AuthToken: strings.TrimSpace(getenv("MONITORING_PUSH_AUTH_TOKEN", "")),
		},

		BootstrapPartnerEmail:    strings.TrimSpace(getenv("BOOTSTRAP_PARTNER_EMAIL", "")),
		BootstrapPartnerPassword: getenv("BOOTSTRAP_PARTNER_PASSWORD", ""),
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
