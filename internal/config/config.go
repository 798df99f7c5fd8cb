package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env                 string
	Port                string
	LogLevel            string
	SessionSecret       string
	JWTSecret           string
	JWTTTL              time.Duration
	DatabaseURL         string
	RedisURL            string
	SupabaseURL         string // project URL, used for storage sign URLs and public URLs
	SupabaseSecretKey   string // must be the service_role key, not the anon key
	FrontendURLEndsWith string
	CookieDomain        string
	DevPassword         string
	AllowCrossSiteDev   bool
	HealthAdminKey      string
	BrevoAPIKey         string // BREVO_API_KEY for transactional mail; empty disables sending
	MailFrom            string
	AppBaseURL          string // base URL of the web app for invite and reset links
	InviteSecureTokens  bool
	ProfileCacheTTL     time.Duration
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("JWT_TTL", "12h")
	viper.SetDefault("PROFILE_CACHE_TTL", "5m")
	viper.SetDefault("MAIL_FROM", "noreply@objektbetreuer.de")

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	dbURL := viper.GetString("DATABASE_URL_DEV")
	if env == "production" {
		dbURL = viper.GetString("DATABASE_URL_PROD")
	} else if env == "test" {
		dbURL = viper.GetString("DATABASE_URL_TEST")
	}
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}

	return &Config{
		Env:                 env,
		Port:                viper.GetString("PORT"),
		LogLevel:            viper.GetString("LOG_LEVEL"),
		SessionSecret:       viper.GetString("SESSION_SECRET"),
		JWTSecret:           viper.GetString("JWT_SECRET"),
		JWTTTL:              viper.GetDuration("JWT_TTL"),
		DatabaseURL:         dbURL,
		RedisURL:            viper.GetString("REDIS_URL"),
		SupabaseURL:         viper.GetString("SUPABASE_URL"),
		SupabaseSecretKey:   viper.GetString("SUPABASE_SECRET_KEY"),
		FrontendURLEndsWith: viper.GetString("FRONTEND_URL_ENDS_WITH"),
		CookieDomain:        viper.GetString("COOKIE_DOMAIN"),
		DevPassword:         viper.GetString("DEV_PASSWORD"),
		AllowCrossSiteDev:   strings.EqualFold(viper.GetString("ALLOW_CROSS_SITE_DEV"), "true"),
		HealthAdminKey:      viper.GetString("HEALTH_ADMIN_KEY"),
		BrevoAPIKey:         viper.GetString("BREVO_API_KEY"),
		MailFrom:            viper.GetString("MAIL_FROM"),
		AppBaseURL:          appBaseURL(viper.GetString("APP_BASE_URL")),
		InviteSecureTokens:  viper.GetBool("INVITE_SECURE_TOKENS"),
		ProfileCacheTTL:     viper.GetDuration("PROFILE_CACHE_TTL"),
	}, nil
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func appBaseURL(s string) string {
	s = strings.TrimRight(strings.TrimSpace(s), "/")
	if s == "" {
		return "https://app.objektbetreuer.de"
	}
	return s
}
