// Package config carrega a configuração do serviço a partir de variáveis de
// ambiente.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// StockPolicy decide o que acontece quando a liquidação encontra estoque
// insuficiente
type StockPolicy string

const (
	StockPolicyAllowNegative StockPolicy = "allow_negative"
	StockPolicyFloorZero     StockPolicy = "floor_zero"
)

type Config struct {
	Port           string
	ServiceName    string
	PublicBaseURL  string
	PaymentResult  string
	StockPolicy    StockPolicy
	Database       Database
	Gateway        Gateway
	Kafka          Kafka
	Telemetry      Telemetry
	RequestTimeout time.Duration
}

type Database struct {
	User            string
	Password        string
	Host            string
	Port            string
	Name            string
	MaxConns        int
	ConnectAttempts int
}

type Gateway struct {
	BaseURL    string
	MerchantID string
	Timeout    time.Duration
}

type Kafka struct {
	Brokers []string
	Topic   string
}

type Telemetry struct {
	Enabled      bool
	OTLPEndpoint string
}

// Load lê todas as variáveis com seus defaults. Um .env no diretório
// atual é carregado se existir, sem sobrescrever o ambiente.
func Load() Config {
	_ = godotenv.Load(".env")

	return Config{
		Port:           getEnv("PORT", "8080"),
		ServiceName:    getEnv("SERVICE_NAME", "settlement-service"),
		PublicBaseURL:  strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		PaymentResult:  getEnv("PAYMENT_RESULT_URL", "http://localhost:3000/payment/result"),
		StockPolicy:    StockPolicy(getEnv("STOCK_POLICY", string(StockPolicyAllowNegative))),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		Database: Database{
			User:            getEnv("DATABASE_USER", "root"),
			Password:        getEnv("DATABASE_PASSWORD", "pass"),
			Host:            getEnv("DATABASE_HOST", "localhost"),
			Port:            getEnv("DATABASE_PORT", "5432"),
			Name:            getEnv("DATABASE_NAME", "commerce_db"),
			MaxConns:        getEnvInt("DATABASE_MAX_CONNS", 10),
			ConnectAttempts: getEnvInt("DATABASE_CONNECT_ATTEMPTS", 30),
		},
		Gateway: Gateway{
			BaseURL:    strings.TrimRight(getEnv("GATEWAY_BASE_URL", "https://sandbox.gateway.local"), "/"),
			MerchantID: getEnv("GATEWAY_MERCHANT_ID", ""),
			Timeout:    getEnvDuration("GATEWAY_TIMEOUT", 10*time.Second),
		},
		Kafka: Kafka{
			Brokers: splitList(getEnv("KAFKA_BROKERS", "")),
			Topic:   getEnv("KAFKA_TOPIC_ORDER_EVENTS", "order-events"),
		},
		Telemetry: Telemetry{
			Enabled:      getEnvBool("OTEL_ENABLED", true),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
	}
}

// AllowNegativeStock reporta se a política aceita estoque negativo
func (c Config) AllowNegativeStock() bool {
	return c.StockPolicy != StockPolicyFloorZero
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
