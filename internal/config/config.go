package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every environment-driven setting the scanner needs: TWS
// connection parameters and the sightings store's REST credentials.
type Config struct {
	Env    string
	TWS    TWSConfig
	Store  StoreConfig
	Enrich EnrichConfig
}

// TWSConfig is the TWS/IB Gateway connection the broker package dials.
type TWSConfig struct {
	Host     string
	Ports    []uint16
	ClientID int32
}

// StoreConfig is the sightings REST store's base URL and anon key.
type StoreConfig struct {
	URL     string
	AnonKey string
}

// EnrichConfig holds the enrichment HTTP timeout read from
// ENRICH_TIMEOUT_SECONDS. enrich.NewClient does not read it; the client
// uses its own fixed 10-second timeout.
type EnrichConfig struct {
	Timeout time.Duration
}

// LoadConfig loads .env (if present) then reads every setting from the
// environment, falling back to the scanner's stock defaults.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "local")

	twsConfig := TWSConfig{
		Host:     getEnv("TWS_HOST", "127.0.0.1"),
		Ports:    getEnvPorts("TWS_PORTS", []uint16{7500, 7497}),
		ClientID: int32(getEnvInt("TWS_CLIENT_ID", 1)),
	}

	storeConfig := StoreConfig{
		URL:     getEnv("SUPABASE_URL", ""),
		AnonKey: getEnv("SUPABASE_ANON_KEY", ""),
	}

	enrichConfig := EnrichConfig{
		Timeout: time.Duration(getEnvInt("ENRICH_TIMEOUT_SECONDS", 10)) * time.Second,
	}

	return &Config{
		Env:    env,
		TWS:    twsConfig,
		Store:  storeConfig,
		Enrich: enrichConfig,
	}, nil
}

// StoreEnabled reports whether enough configuration is present to build a
// sightings store client.
func (c *Config) StoreEnabled() bool {
	return c.Store.URL != "" && c.Store.AnonKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		v, err := strconv.Atoi(value)
		if err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvPorts(key string, defaultValue []uint16) []uint16 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var ports []uint16
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.ParseUint(part, 10, 16)
		if err != nil {
			continue
		}
		ports = append(ports, uint16(n))
	}
	if len(ports) == 0 {
		return defaultValue
	}
	return ports
}
