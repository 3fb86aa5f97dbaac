package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/joho/godotenv"
)

var loadOnce sync.Once

func loadEnv() {
	loadOnce.Do(func() {
		if err := godotenv.Load(); err != nil {
			log.Warn("Không tìm thấy file .env, dùng biến môi trường hệ thống...")
		}
	})
}

// Config returns the raw value of an environment key after .env has been loaded.
func Config(key string) string {
	loadEnv()
	return os.Getenv(key)
}

type Settings struct {
	Port string

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	RedisAddr     string
	RedisPassword string
	KafkaBrokers  []string

	JWTSecret string

	VNPayTmnCode    string
	VNPayHashSecret string
	VNPayURL        string

	StripeWebhookSecret string

	BankCode    string
	BankAccount string
	BankName    string

	OrderServiceURL   string
	AccountServiceURL string
	ServiceToken      string

	AppURL string
	APIURL string

	UserCheckTimeout   time.Duration
	OrderUpdateTimeout time.Duration
	PublishTimeout     time.Duration
	PaymentTTL         time.Duration
	ReplayWindow       time.Duration
	ReplayLimit        int
	OrderSyncAttempts  int

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

func Load() Settings {
	loadEnv()
	return Settings{
		Port:                getEnv("PORT", "8002"),
		DBHost:              getEnv("DB_HOST", "localhost"),
		DBPort:              getInt("DB_PORT", 5432),
		DBUser:              getEnv("DB_USER", "postgres"),
		DBPassword:          getEnv("DB_PASSWORD", "postgres"),
		DBName:              getEnv("DB_NAME", "paymentdb"),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		KafkaBrokers:        strings.Split(getEnv("KAFKA_BROKER", "kafka:9092"), ","),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		VNPayTmnCode:        os.Getenv("VNP_TMNCODE"),
		VNPayHashSecret:     os.Getenv("VNP_HASHSECRET"),
		VNPayURL:            getEnv("VNP_URL", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		BankCode:            getEnv("BANK_CODE", "VCB"),
		BankAccount:         os.Getenv("BANK_ACCOUNT"),
		BankName:            os.Getenv("BANK_ACCOUNT_NAME"),
		OrderServiceURL:     getEnv("ORDER_SERVICE_URL", "http://order-service:3005"),
		AccountServiceURL:   getEnv("ACCOUNT_SERVICE_URL", "http://user-service:3002"),
		ServiceToken:        os.Getenv("SERVICE_TOKEN"),
		AppURL:              getEnv("APP_URL", "http://localhost:5173"),
		APIURL:              getEnv("API_URL", "http://localhost:8002"),
		UserCheckTimeout:    getDuration("USER_CHECK_TIMEOUT", 3*time.Second),
		OrderUpdateTimeout:  getDuration("ORDER_UPDATE_TIMEOUT", 5*time.Second),
		PublishTimeout:      getDuration("PUBLISH_TIMEOUT", 2*time.Second),
		PaymentTTL:          getDuration("PAYMENT_TTL", 15*time.Minute),
		ReplayWindow:        getDuration("CALLBACK_REPLAY_WINDOW", 10*time.Minute),
		ReplayLimit:         getInt("CALLBACK_REPLAY_LIMIT", 5),
		OrderSyncAttempts:   getInt("ORDER_SYNC_MAX_ATTEMPTS", 10),
		SMTPHost:            os.Getenv("SMTP_HOST"),
		SMTPPort:            getInt("SMTP_PORT", 587),
		SMTPUsername:        os.Getenv("SMTP_USERNAME"),
		SMTPPassword:        os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:            os.Getenv("SMTP_FROM"),
	}
}

func getEnv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getInt(k string, d int) int {
	v, err := strconv.Atoi(os.Getenv(k))
	if err != nil {
		return d
	}
	return v
}

func getDuration(k string, d time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(k))
	if err != nil || v <= 0 {
		return d
	}
	return v
}
