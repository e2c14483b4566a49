package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config конфигурация сервиса из переменных окружения
type Config struct {
	Port        string
	DatabaseURL string // пусто — in-memory хранилище
	AMQPURL     string // пусто — уведомления в журнал
	Exchange    string

	VATPercent         float64
	CartDeliveryCharge float64
	TxTimeout          time.Duration
	NotifyTimeout      time.Duration
}

func Load() Config {
	return Config{
		Port:               getenv("PORT", "9091"),
		DatabaseURL:        strings.TrimSpace(os.Getenv("DATABASE_URL")),
		AMQPURL:            strings.TrimSpace(os.Getenv("AMQP_URL")),
		Exchange:           getenv("AMQP_EXCHANGE", "order_exchange"),
		VATPercent:         getfloat("VAT_PERCENT", 15),
		CartDeliveryCharge: getfloat("CART_DELIVERY_CHARGE", 100),
		TxTimeout:          getduration("TX_TIMEOUT_MS", 5000),
		NotifyTimeout:      getduration("NOTIFY_TIMEOUT_MS", 3000),
	}
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

func getfloat(k string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getduration(k string, defMS int) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return time.Duration(defMS) * time.Millisecond
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		return time.Duration(defMS) * time.Millisecond
	}
	return time.Duration(ms) * time.Millisecond
}
