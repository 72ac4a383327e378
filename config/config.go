package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Loyalty  LoyaltyConfig
	Order    OrderConfig
	S3       S3Config
}

type ServerConfig struct {
	Port        string
	GinMode     string
	Environment string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret             string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

// LoyaltyConfig drives accrual and expiry. Rates are configuration, not
// constants: a promo can change them without a deploy.
type LoyaltyConfig struct {
	AccrualPoints    int64         // points granted per AccrualPesos of completed-order value
	AccrualPesos     int64         // peso granularity of accrual; integer ratio keeps credits exact
	CentavosPerPoint int64         // redemption value of one point, in centavos
	ExpiryWindow     time.Duration // how long EARNED points stay redeemable
	ExpiryWarning    time.Duration // heads-up window for POINTS_EXPIRING notices
}

type OrderConfig struct {
	DeliveryFee       int64 // flat fee in centavos
	LowStockThreshold int   // LOW_STOCK notice below this quantity
	MaxRetryAttempts  int   // bounded retries on version conflicts
	RetryBaseDelay    time.Duration
}

type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	BaseURL         string // CloudFront or S3 direct URL
}

func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			GinMode:     getEnv("GIN_MODE", "debug"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "kapehan"),
			Password: getEnv("DB_PASSWORD", "kapehan"),
			DBName:   getEnv("DB_NAME", "kapehan"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:             getEnv("JWT_SECRET", "your-secret-key"),
			AccessTokenExpiry:  parseDuration(getEnv("JWT_ACCESS_TOKEN_EXPIRY", "15m"), 15*time.Minute),
			RefreshTokenExpiry: parseDuration(getEnv("JWT_REFRESH_TOKEN_EXPIRY", "168h"), 168*time.Hour),
		},
		CORS: CORSConfig{
			AllowedOrigins: parseSlice(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		},
		Loyalty: LoyaltyConfig{
			AccrualPoints:    int64(getEnvInt("LOYALTY_ACCRUAL_POINTS", 1)),
			AccrualPesos:     int64(getEnvInt("LOYALTY_ACCRUAL_PESOS", 50)),
			CentavosPerPoint: int64(getEnvInt("LOYALTY_CENTAVOS_PER_POINT", 100)),
			ExpiryWindow:     parseDuration(getEnv("LOYALTY_EXPIRY_WINDOW", "8760h"), 365*24*time.Hour),
			ExpiryWarning:    parseDuration(getEnv("LOYALTY_EXPIRY_WARNING", "168h"), 7*24*time.Hour),
		},
		Order: OrderConfig{
			DeliveryFee:       int64(getEnvInt("ORDER_DELIVERY_FEE", 5000)),
			LowStockThreshold: getEnvInt("ORDER_LOW_STOCK_THRESHOLD", 5),
			MaxRetryAttempts:  getEnvInt("ORDER_MAX_RETRY_ATTEMPTS", 3),
			RetryBaseDelay:    parseDuration(getEnv("ORDER_RETRY_BASE_DELAY", "50ms"), 50*time.Millisecond),
		},
		S3: S3Config{
			Region:          getEnv("AWS_REGION", "ap-southeast-1"),
			Bucket:          getEnv("AWS_S3_BUCKET", "kapehan-uploads"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			BaseURL:         getEnv("AWS_S3_BASE_URL", ""),
		},
	}

	return config, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid integer for %s: %s, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	duration, err := time.ParseDuration(s)
	if err != nil {
		log.Printf("Invalid duration %s, using default %s", s, fallback)
		return fallback
	}
	return duration
}

func parseSlice(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		result = append(result, strings.TrimSpace(p))
	}
	return result
}
