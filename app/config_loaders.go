package chathub

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type ConfigLoader interface {
	Load() (*Config, error)
}

// EnvConfigLoader loads the configuration from environment variables.
// The SECRET environment variable is expected to be a base64-encoded string;
// it is decoded into the byte slice used to verify bearer tokens. The
// ALLOWED_ORIGINS environment variable is expected to be a comma-separated
// list of origins that are allowed to connect to the server. Unset variables
// fall back to the same defaults the file-based loader applies, so either
// loader yields an equivalent baseline config.
type EnvConfigLoader struct {
}

func (l *EnvConfigLoader) Load() (*Config, error) {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		return nil, err
	}

	config := &Config{}

	config.Port = 8080
	if port, err := strconv.Atoi(getEnv("PORT")); err == nil && port > 0 {
		config.Port = port
	}

	config.Hostname = getEnv("HOSTNAME")
	if config.Hostname == "" {
		config.Hostname = "0.0.0.0"
	}

	if raw := getEnv("SECRET"); raw != "" {
		secret, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, errors.New("invalid secret value")
		}
		config.Auth.Secret = secret
	} else {
		// generate a random secret key
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate secret: %w", err)
		}
		config.Auth.Secret = secret
	}

	timeout, err := time.ParseDuration(getEnv("AUTH_TIMEOUT"))
	if err != nil {
		timeout = 10 * time.Second
	}
	config.Auth.Timeout = timeout

	config.Chat.DefaultRoom = getEnv("DEFAULT_ROOM")
	if config.Chat.DefaultRoom == "" {
		config.Chat.DefaultRoom = "lobby"
	}

	config.Filters.Escape.Enabled = true
	config.Filters.RateLimit.Enabled = true
	config.Filters.RateLimit.Burst = 3
	config.Filters.RateLimit.Interval = 10 * time.Second
	config.Filters.Spam.Enabled = true
	config.Filters.Spam.Threshold = 3

	config.AllowedOrigins = []string{"*"}
	if origins := getEnv("ALLOWED_ORIGINS"); origins != "" {
		config.AllowedOrigins = strings.Split(origins, ",")
	}

	return config, nil
}

// Utility function to get an environment variable with a default value
func getEnv(key string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return ""
	}
	return value
}
