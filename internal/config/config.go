package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddr             string
	AuthBaseURL          string
	AdminBaseURL         string
	ApprentiBaseURL      string
	JuryBaseURL          string
	ServiceToken         string
	UpstreamTimeout      time.Duration
	JWTSecret            string
	SessionTTL           time.Duration
	RedisAddr            string
	RedisPassword        string
	PlanningCacheTTL     time.Duration
	PlanningWarmEnabled  bool
	PlanningWarmInterval time.Duration
	PlanningWarmTimeout  time.Duration
	MailEnabled          bool
	SendgridAPIKey       string
	MailFrom             string
	MailFromName         string
	LogLevel             string
	LogFormat            string
}

func Load() Config {
	loadDotenv()

	v := viper.New()
	v.AutomaticEnv()

	return Config{
		HTTPAddr:             getString(v, "HTTP_ADDR", ":8080"),
		AuthBaseURL:          getString(v, "AUTH_BASE_URL", "http://127.0.0.1:8005"),
		AdminBaseURL:         getString(v, "ADMIN_BASE_URL", "http://127.0.0.1:8000"),
		ApprentiBaseURL:      getString(v, "APPRENTI_BASE_URL", "http://127.0.0.1:8001"),
		JuryBaseURL:          getString(v, "JURY_BASE_URL", "http://127.0.0.1:8010"),
		ServiceToken:         getString(v, "SERVICE_TOKEN", ""),
		UpstreamTimeout:      getDuration(v, "UPSTREAM_TIMEOUT", 10*time.Second),
		JWTSecret:            getString(v, "JWT_SECRET", "dev-secret"),
		SessionTTL:           getDuration(v, "SESSION_TTL", time.Hour),
		RedisAddr:            getString(v, "REDIS_ADDR", ""),
		RedisPassword:        getString(v, "REDIS_PASSWORD", ""),
		PlanningCacheTTL:     getDuration(v, "PLANNING_CACHE_TTL", 5*time.Minute),
		PlanningWarmEnabled:  getBool(v, "PLANNING_WARM_ENABLED", false),
		PlanningWarmInterval: getDuration(v, "PLANNING_WARM_INTERVAL", 15*time.Minute),
		PlanningWarmTimeout:  getDuration(v, "PLANNING_WARM_TIMEOUT", 30*time.Second),
		MailEnabled:          getBool(v, "MAIL_ENABLED", false),
		SendgridAPIKey:       getString(v, "SENDGRID_API_KEY", ""),
		MailFrom:             getString(v, "MAIL_FROM", "noreply@alteris.fr"),
		MailFromName:         getString(v, "MAIL_FROM_NAME", "Alteris"),
		LogLevel:             getString(v, "LOG_LEVEL", "info"),
		LogFormat:            getString(v, "LOG_FORMAT", "json"),
	}
}

func loadDotenv() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	if err := godotenv.Load(); err != nil {
		log.Printf("config: .env load error: %v", err)
	}
}

func getString(v *viper.Viper, key, fallback string) string {
	if val := v.GetString(key); val != "" {
		return val
	}
	return fallback
}

func getBool(v *viper.Viper, key string, fallback bool) bool {
	if val := v.GetString(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(v *viper.Viper, key string, fallback time.Duration) time.Duration {
	if val := v.GetString(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	if seconds := v.GetInt(key + "_SECONDS"); seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}
