package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	StateFile             string
	TerminalID            string
	Currency              string
	TaxRate               float64
	SupervisorPIN         string
	AuthSecret            string
	AccessTokenTTLMinutes int
	CardDelayMS           int
	ProbeAddr             string
	ProbeIntervalSeconds  int
	FlashMerchantID       string
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}
	taxRate, err := strconv.ParseFloat(getEnv("TAX_RATE", "0.15"), 64)
	if err != nil || taxRate < 0 || taxRate > 1 {
		taxRate = 0.15
	}
	cardDelay, err := strconv.Atoi(getEnv("CARD_DELAY_MS", "2000"))
	if err != nil || cardDelay < 0 {
		cardDelay = 2000
	}
	probeInterval, err := strconv.Atoi(getEnv("PROBE_INTERVAL_SECONDS", "15"))
	if err != nil || probeInterval < 1 {
		probeInterval = 15
	}

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		StateFile:             getEnv("STATE_FILE", "pos-state.json"),
		TerminalID:            getEnv("TERMINAL_ID", "till-1"),
		Currency:              getEnv("CURRENCY", "ZAR"),
		TaxRate:               taxRate,
		SupervisorPIN:         strings.TrimSpace(os.Getenv("SUPERVISOR_PIN")),
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,
		CardDelayMS:           cardDelay,
		ProbeAddr:             getEnv("PROBE_ADDR", "1.1.1.1:53"),
		ProbeIntervalSeconds:  probeInterval,
		FlashMerchantID:       getEnv("FLASH_MERCHANT_ID", "27111450216"),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
