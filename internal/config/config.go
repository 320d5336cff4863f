package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	defaultAddr            = ":4000"
	defaultHistoryCapacity = 20
)

// Provider exposes the configuration values the rest of the application
// depends on. Handlers and services take this interface so tests can swap
// in fixed values.
type Provider interface {
	GetAddr() string
	GetHistoryCapacity() int
}

// Config holds all configuration for the application.
type Config struct {
	Addr            string
	HistoryCapacity int
}

// New loads configuration from environment variables.
func New() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		Addr:            os.Getenv("PARLEY_ADDR"),
		HistoryCapacity: defaultHistoryCapacity,
	}
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}

	if raw := os.Getenv("PARLEY_HISTORY_CAPACITY"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			log.Fatalf("PARLEY_HISTORY_CAPACITY must be a positive integer, got %q", raw)
		}
		cfg.HistoryCapacity = n
	}

	return cfg
}

// GetAddr returns the listen address for the HTTP server.
func (c *Config) GetAddr() string { return c.Addr }

// GetHistoryCapacity returns the maximum number of messages retained per
// conversation.
func (c *Config) GetHistoryCapacity() int { return c.HistoryCapacity }
