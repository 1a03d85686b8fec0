package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	AuthProviderLocal    = "local"
	AuthProviderSupabase = "supabase"
)

type Config struct {
	Port           string
	Environment    string
	LogLevel       string
	FrontendURL    string
	AllowedOrigins []string

	// MongoDB
	MongoDBURI      string
	MongoDBPassword string
	MongoDBDatabase string

	// Redis
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Identity
	AuthProvider           string
	JWTSecret              string
	AccessTokenTTL         time.Duration
	RefreshTokenTTL        time.Duration
	GoogleClientID         string
	GoogleJWKSURL          string
	SupabaseURL            string
	SupabaseAnonKey        string
	SupabaseServiceRoleKey string

	// Cloudinary
	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string

	// Stripe hosted checkout
	StripeSecretKey string
	StripeCurrency  string

	// JazzCash redirect checkout
	JazzCashMerchantID    string
	JazzCashPassword      string
	JazzCashIntegritySalt string
	JazzCashCheckoutURL   string
	JazzCashReturnURL     string
	JazzCashCurrency      string

	// PubNub payment notifications
	PubNubSubscribeKey string
	PubNubSecretKey    string
	PubNubCipherKey    string
	PubNubChannel      string
	PubNubUserID       string

	// Mail
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string
	MailFromName string

	// Workflow
	TicketVerifyBaseURL string
	OTPTTL              time.Duration
	GatewayTimeout      time.Duration
	NotifyTimeout       time.Duration
	NotifyRetries       int
	ConfirmClaimTTL     time.Duration
	ConfirmLockTTL      time.Duration
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:           getEnvWithDefault("PORT", "8080"),
		Environment:    getEnvWithDefault("ENVIRONMENT", "development"),
		LogLevel:       getEnvWithDefault("LOG_LEVEL", "info"),
		FrontendURL:    getEnvWithDefault("FRONTEND_URL", "http://localhost:3000"),
		AllowedOrigins: getEnvAsList("CORS_ORIGINS", "http://localhost:3000"),

		MongoDBURI:      os.Getenv("MONGODB_URI"),
		MongoDBPassword: os.Getenv("MONGODB_PASSWORD"),
		MongoDBDatabase: getEnvWithDefault("MONGODB_DATABASE", "eventify"),

		RedisURL:      getEnvWithDefault("REDIS_URL", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		AuthProvider:           getEnvWithDefault("AUTH_PROVIDER", AuthProviderLocal),
		JWTSecret:              os.Getenv("JWT_SECRET"),
		AccessTokenTTL:         getEnvAsDuration("ACCESS_TOKEN_TTL", "1h"),
		RefreshTokenTTL:        getEnvAsDuration("REFRESH_TOKEN_TTL", "720h"),
		GoogleClientID:         os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleJWKSURL:          getEnvWithDefault("GOOGLE_JWKS_URL", "https://www.googleapis.com/oauth2/v3/certs"),
		SupabaseURL:            os.Getenv("SUPABASE_URL"),
		SupabaseAnonKey:        os.Getenv("SUPABASE_URL_ANON_KEY"),
		SupabaseServiceRoleKey: os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),

		CloudinaryCloudName: os.Getenv("CLOUDINARY_CLOUD_NAME"),
		CloudinaryAPIKey:    os.Getenv("CLOUDINARY_API_KEY"),
		CloudinaryAPISecret: os.Getenv("CLOUDINARY_API_SECRET"),

		StripeSecretKey: os.Getenv("STRIPE_SECRET_KEY"),
		StripeCurrency:  getEnvWithDefault("STRIPE_CURRENCY", "usd"),

		JazzCashMerchantID:    os.Getenv("JAZZCASH_MERCHANT_ID"),
		JazzCashPassword:      os.Getenv("JAZZCASH_PASSWORD"),
		JazzCashIntegritySalt: os.Getenv("JAZZCASH_INTEGRITY_SALT"),
		JazzCashCheckoutURL:   getEnvWithDefault("JAZZCASH_CHECKOUT_URL", "https://sandbox.jazzcash.com.pk/CustomerPortal/transactionmanagement/merchantform/"),
		JazzCashReturnURL:     os.Getenv("JAZZCASH_RETURN_URL"),
		JazzCashCurrency:      getEnvWithDefault("JAZZCASH_CURRENCY", "PKR"),

		PubNubSubscribeKey: os.Getenv("PUBNUB_SUBSCRIBE_KEY"),
		PubNubSecretKey:    os.Getenv("PUBNUB_SECRET_KEY"),
		PubNubCipherKey:    os.Getenv("PUBNUB_CIPHER_KEY"),
		PubNubChannel:      getEnvWithDefault("PUBNUB_CHANNEL", "jazzcash-notifications"),
		PubNubUserID:       getEnvWithDefault("PUBNUB_USER_ID", "eventify-api"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		MailFrom:     getEnvWithDefault("MAIL_FROM", "no-reply@eventify.com"),
		MailFromName: getEnvWithDefault("MAIL_FROM_NAME", "Eventify"),

		TicketVerifyBaseURL: getEnvWithDefault("TICKET_VERIFY_BASE_URL", "https://eventify.com/attendance/verify"),
		OTPTTL:              getEnvAsDuration("OTP_TTL", "10m"),
		GatewayTimeout:      getEnvAsDuration("GATEWAY_TIMEOUT", "15s"),
		NotifyTimeout:       getEnvAsDuration("NOTIFY_TIMEOUT", "10s"),
		NotifyRetries:       getEnvAsInt("NOTIFY_RETRIES", 3),
		ConfirmClaimTTL:     getEnvAsDuration("CONFIRM_CLAIM_TTL", "2m"),
		ConfirmLockTTL:      getEnvAsDuration("CONFIRM_LOCK_TTL", "30s"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields. Optional integrations stay disabled when unset.
func (c *Config) Validate() error {
	if c.MongoDBURI == "" {
		return fmt.Errorf("MONGODB_URI is required")
	}

	switch c.AuthProvider {
	case AuthProviderLocal:
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters")
		}
	case AuthProviderSupabase:
		if c.SupabaseURL == "" {
			return fmt.Errorf("SUPABASE_URL is required")
		}
		if c.SupabaseAnonKey == "" {
			return fmt.Errorf("SUPABASE_URL_ANON_KEY is required")
		}
	default:
		return fmt.Errorf("AUTH_PROVIDER must be %q or %q", AuthProviderLocal, AuthProviderSupabase)
	}

	if c.JazzCashMerchantID != "" && c.JazzCashIntegritySalt == "" {
		return fmt.Errorf("JAZZCASH_INTEGRITY_SALT is required when JAZZCASH_MERCHANT_ID is set")
	}
	if c.NotifyRetries < 1 {
		c.NotifyRetries = 1
	}
	return nil
}

func (c *Config) StripeEnabled() bool {
	return c.StripeSecretKey != ""
}

func (c *Config) JazzCashEnabled() bool {
	return c.JazzCashMerchantID != ""
}

func (c *Config) PubNubEnabled() bool {
	return c.JazzCashEnabled() && c.PubNubSubscribeKey != ""
}

func (c *Config) CloudinaryEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

func (c *Config) MailEnabled() bool {
	return c.SMTPHost != ""
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	if duration, err := time.ParseDuration(getEnvWithDefault(key, defaultValue)); err == nil {
		return duration
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

func getEnvAsList(key, defaultValue string) []string {
	var out []string
	for _, part := range strings.Split(getEnvWithDefault(key, defaultValue), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
