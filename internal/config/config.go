// Package config loads the portal configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// LoadEnv loads variables from a .env file if present.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found: %v", err)
	}
}

// GetEnv returns an environment variable or a default value.
func GetEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return defaultVal
}

// GetIntEnv returns an int environment variable or a default value.
func GetIntEnv(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// GetDurationEnv returns a duration environment variable or a default value.
func GetDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func hostname() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "portal-api"
}

// IsProduction checks if the app runs in production mode.
func IsProduction() bool {
	return GetEnv("ENV", "development") == "production"
}

type ServerConfig struct {
	Port           string
	Env            string
	CORSOrigins    string
	RequestTimeout time.Duration
	ShutdownGrace  time.Duration
}

type DBConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DSN builds a libpq keyword/value connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type SupabaseConfig struct {
	URL            string
	AnonKey        string
	ServiceRoleKey string
	JWTSecret      string
	KYBBucket      string
	COABucket      string
	LabelBucket    string
}

type AdminAuthConfig struct {
	JWTSecret     string
	RefreshSecret string
	CodeTTL       time.Duration
	MaxAttempts   int
}

type MercuryConfig struct {
	BaseURL       string
	APIKey        string
	AccountID     string
	WebhookSecret string
}

type ShipStationConfig struct {
	BaseURL    string
	APIKey     string
	APISecret  string
	ShipFrom   Address
	TestLabels bool
}

// Address is the warehouse ship-from address.
type Address struct {
	Name       string
	Company    string
	Street1    string
	Street2    string
	City       string
	State      string
	PostalCode string
	Country    string
	Phone      string
}

type ResendConfig struct {
	APIKey string
	From   string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

type OrderConfig struct {
	ShippingFeeCents int64
	IdempotencyTTL   time.Duration
}

// EventsConfig controls the notification relay.
type EventsConfig struct {
	// Consumer must stay the same across restarts of one instance so its
	// pending entries are picked up again.
	Consumer    string
	MaxAttempts int
	ClaimIdle   time.Duration
}

type LogConfig struct {
	Level string
}

// Config is the complete runtime configuration.
type Config struct {
	Server      ServerConfig
	DB          DBConfig
	Redis       RedisConfig
	Supabase    SupabaseConfig
	AdminAuth   AdminAuthConfig
	Mercury     MercuryConfig
	ShipStation ShipStationConfig
	Resend      ResendConfig
	Stripe      StripeConfig
	Orders      OrderConfig
	Events      EventsConfig
	Log         LogConfig
	SiteURL     string
}

// Load reads the environment into a Config and validates required secrets.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           GetEnv("PORT", "3000"),
			Env:            GetEnv("ENV", "development"),
			CORSOrigins:    GetEnv("CORS_ORIGINS", "http://localhost:3000"),
			RequestTimeout: GetDurationEnv("REQUEST_TIMEOUT", 30*time.Second),
			ShutdownGrace:  GetDurationEnv("SHUTDOWN_GRACE", 10*time.Second),
		},
		DB: DBConfig{
			Host:            GetEnv("DB_HOST", "localhost"),
			Port:            GetEnv("DB_PORT", "5432"),
			User:            GetEnv("DB_USER", "postgres"),
			Password:        GetEnv("DB_PASSWORD", "postgres"),
			Name:            GetEnv("DB_NAME", "portal"),
			SSLMode:         GetEnv("DB_SSLMODE", "disable"),
			MaxIdleConns:    GetIntEnv("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    GetIntEnv("DB_MAX_OPEN_CONNS", 50),
			ConnMaxLifetime: GetDurationEnv("DB_CONN_MAX_LIFETIME", time.Hour),
			ConnMaxIdleTime: GetDurationEnv("DB_CONN_MAX_IDLE_TIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Host:     GetEnv("REDIS_HOST", "localhost"),
			Port:     GetEnv("REDIS_PORT", "6379"),
			Password: GetEnv("REDIS_PASSWORD", ""),
			DB:       GetIntEnv("REDIS_DB", 0),
		},
		Supabase: SupabaseConfig{
			URL:            strings.TrimRight(GetEnv("SUPABASE_URL", ""), "/"),
			AnonKey:        GetEnv("SUPABASE_ANON_KEY", ""),
			ServiceRoleKey: GetEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
			JWTSecret:      GetEnv("SUPABASE_JWT_SECRET", ""),
			KYBBucket:      GetEnv("SUPABASE_KYB_BUCKET", "kyb-documents"),
			COABucket:      GetEnv("SUPABASE_COA_BUCKET", "coa"),
			LabelBucket:    GetEnv("SUPABASE_LABEL_BUCKET", "labels"),
		},
		AdminAuth: AdminAuthConfig{
			JWTSecret:     GetEnv("ADMIN_JWT_SECRET", ""),
			RefreshSecret: GetEnv("ADMIN_REFRESH_SECRET", ""),
			CodeTTL:       GetDurationEnv("ADMIN_CODE_TTL", 10*time.Minute),
			MaxAttempts:   GetIntEnv("ADMIN_CODE_MAX_ATTEMPTS", 5),
		},
		Mercury: MercuryConfig{
			BaseURL:       GetEnv("MERCURY_BASE_URL", "https://api.mercury.com/api/v1"),
			APIKey:        GetEnv("MERCURY_API_KEY", ""),
			AccountID:     GetEnv("MERCURY_ACCOUNT_ID", ""),
			WebhookSecret: GetEnv("MERCURY_WEBHOOK_SECRET", ""),
		},
		ShipStation: ShipStationConfig{
			BaseURL:    GetEnv("SHIPSTATION_BASE_URL", "https://ssapi.shipstation.com"),
			APIKey:     GetEnv("SHIPSTATION_API_KEY", ""),
			APISecret:  GetEnv("SHIPSTATION_API_SECRET", ""),
			TestLabels: GetEnv("SHIPSTATION_TEST_LABELS", "false") == "true",
			ShipFrom: Address{
				Name:       GetEnv("SHIP_FROM_NAME", "Fulfillment Center"),
				Company:    GetEnv("SHIP_FROM_COMPANY", ""),
				Street1:    GetEnv("SHIP_FROM_STREET1", ""),
				Street2:    GetEnv("SHIP_FROM_STREET2", ""),
				City:       GetEnv("SHIP_FROM_CITY", ""),
				State:      GetEnv("SHIP_FROM_STATE", ""),
				PostalCode: GetEnv("SHIP_FROM_POSTAL_CODE", ""),
				Country:    GetEnv("SHIP_FROM_COUNTRY", "US"),
				Phone:      GetEnv("SHIP_FROM_PHONE", ""),
			},
		},
		Resend: ResendConfig{
			APIKey: GetEnv("RESEND_API_KEY", ""),
			From:   GetEnv("RESEND_FROM", "Portal <no-reply@example.com>"),
		},
		Stripe: StripeConfig{
			SecretKey:     GetEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: GetEnv("STRIPE_WEBHOOK_SECRET", ""),
		},
		Orders: OrderConfig{
			ShippingFeeCents: int64(GetIntEnv("ORDER_SHIPPING_FEE_CENTS", 995)),
			IdempotencyTTL:   GetDurationEnv("ORDER_IDEMPOTENCY_TTL", 24*time.Hour),
		},
		Events: EventsConfig{
			Consumer:    GetEnv("RELAY_CONSUMER", hostname()),
			MaxAttempts: GetIntEnv("RELAY_MAX_ATTEMPTS", 5),
			ClaimIdle:   GetDurationEnv("RELAY_CLAIM_IDLE", time.Minute),
		},
		Log: LogConfig{
			Level: GetEnv("LOG_LEVEL", "info"),
		},
		SiteURL: strings.TrimRight(GetEnv("SITE_URL", "http://localhost:3000"), "/"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var missing []string
	if c.Supabase.URL == "" {
		missing = append(missing, "SUPABASE_URL")
	}
	if c.Supabase.JWTSecret == "" {
		missing = append(missing, "SUPABASE_JWT_SECRET")
	}
	if c.Supabase.ServiceRoleKey == "" {
		missing = append(missing, "SUPABASE_SERVICE_ROLE_KEY")
	}
	if c.AdminAuth.JWTSecret == "" {
		missing = append(missing, "ADMIN_JWT_SECRET")
	}
	if c.AdminAuth.RefreshSecret == "" {
		missing = append(missing, "ADMIN_REFRESH_SECRET")
	}
	if len(missing) > 0 {
		return errors.New("missing required configuration: " + strings.Join(missing, ", "))
	}
	if c.Orders.ShippingFeeCents < 0 {
		return errors.New("ORDER_SHIPPING_FEE_CENTS must not be negative")
	}
	return nil
}

// IsProduction reports whether this configuration targets production.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// LogFields returns the non-secret settings for the startup log line.
func (c *Config) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("env", c.Server.Env),
		zap.String("port", c.Server.Port),
		zap.String("db_host", c.DB.Host),
		zap.String("db_name", c.DB.Name),
		zap.String("redis", c.Redis.Host+":"+c.Redis.Port),
		zap.String("supabase_url", c.Supabase.URL),
		zap.String("site_url", c.SiteURL),
		zap.String("relay_consumer", c.Events.Consumer),
		zap.Bool("mercury_enabled", c.Mercury.APIKey != ""),
		zap.Bool("shipstation_enabled", c.ShipStation.APIKey != ""),
		zap.Bool("resend_enabled", c.Resend.APIKey != ""),
		zap.Bool("stripe_enabled", c.Stripe.SecretKey != ""),
	}
}
