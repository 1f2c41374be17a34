package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"alice/internal/timezone"
)

type SkillServerConfig struct {
	HTTPAddr             string
	WebhookPath          string
	SkillID              string
	DBDSN                string
	MQTTBrokerURL        string
	MQTTClientID         string
	MQTTUsername         string
	MQTTPassword         string
	MQTTTopicPrefix      string
	DefaultTimezone      string
	RateLimitPerSecond   float64
	RateLimitBurst       int
	DeliveryScanInterval time.Duration
	DeliveryBatchSize    int
	PublishTimeout       time.Duration
	DeliveryMaxAttempts  int
	DeliveryRetryBackoff time.Duration
	DeliveryOnlineOnly   bool
}

func LoadSkillServerConfig() (SkillServerConfig, error) {
	cfg := SkillServerConfig{
		HTTPAddr:             getenvDefault("ALICE_HTTP_ADDR", ":9020"),
		WebhookPath:          getenvDefault("ALICE_WEBHOOK_PATH", "/v1/alice"),
		SkillID:              os.Getenv("ALICE_SKILL_ID"),
		DBDSN:                os.Getenv("DB_DSN"),
		MQTTBrokerURL:        getenvDefault("MQTT_BROKER_URL", "tcp://localhost:1883"),
		MQTTClientID:         getenvDefault("ALICE_MQTT_CLIENT_ID", "alice-skill"),
		MQTTUsername:         os.Getenv("MQTT_USERNAME"),
		MQTTPassword:         os.Getenv("MQTT_PASSWORD"),
		MQTTTopicPrefix:      strings.Trim(getenvDefault("MQTT_TOPIC_PREFIX", "alice"), "/"),
		DefaultTimezone:      getenvDefault("DEFAULT_TIMEZONE", "Europe/Moscow"),
		RateLimitPerSecond:   getenvFloatDefault("RATE_LIMIT_PER_SECOND", 5),
		RateLimitBurst:       getenvIntDefault("RATE_LIMIT_BURST", 10),
		DeliveryScanInterval: time.Duration(getenvIntDefault("DELIVERY_SCAN_INTERVAL_SECONDS", 15)) * time.Second,
		DeliveryBatchSize:    getenvIntDefault("DELIVERY_BATCH_SIZE", 50),
		PublishTimeout:       time.Duration(getenvIntDefault("MQTT_PUBLISH_TIMEOUT_SECONDS", 5)) * time.Second,
		DeliveryMaxAttempts:  getenvIntDefault("DELIVERY_MAX_ATTEMPTS", 5),
		DeliveryRetryBackoff: time.Duration(getenvIntDefault("DELIVERY_RETRY_BACKOFF_SECONDS", 30)) * time.Second,
		DeliveryOnlineOnly:   getenvBoolDefault("DELIVERY_ONLINE_ONLY", true),
	}

	if cfg.DBDSN == "" {
		return SkillServerConfig{}, fmt.Errorf("DB_DSN is required")
	}
	if !strings.HasPrefix(cfg.WebhookPath, "/") {
		return SkillServerConfig{}, fmt.Errorf("ALICE_WEBHOOK_PATH must start with /")
	}
	if cfg.MQTTTopicPrefix == "" {
		return SkillServerConfig{}, fmt.Errorf("MQTT_TOPIC_PREFIX must not be empty")
	}
	if !timezone.IsValid(cfg.DefaultTimezone) {
		return SkillServerConfig{}, fmt.Errorf("DEFAULT_TIMEZONE %q is not a known timezone", cfg.DefaultTimezone)
	}
	if cfg.DeliveryMaxAttempts <= 0 {
		return SkillServerConfig{}, fmt.Errorf("DELIVERY_MAX_ATTEMPTS must be positive")
	}
	if cfg.RateLimitPerSecond <= 0 || cfg.RateLimitBurst <= 0 {
		return SkillServerConfig{}, fmt.Errorf("RATE_LIMIT_PER_SECOND and RATE_LIMIT_BURST must be positive")
	}

	return cfg, nil
}

func getenvDefault(key, val string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return val
}

func getenvIntDefault(key string, val int) int {
	v := os.Getenv(key)
	if v == "" {
		return val
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return val
	}
	return n
}

func getenvFloatDefault(key string, val float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return val
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return val
	}
	return n
}

func getenvBoolDefault(key string, val bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return val
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return val
	}
	return b
}
