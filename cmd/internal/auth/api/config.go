package authapi

import (
	"os"
	"strconv"
	"strings"
)

const defaultMaxBodyBytes int64 = 64 << 10

// Config controls auth API limits.
type Config struct {
	MaxBodyBytes int64
}

// LoadConfigFromEnv loads auth API config from environment variables with safe defaults.
func LoadConfigFromEnv() Config {
	return Config{
		MaxBodyBytes: envInt64("COLLAB_AUTH_MAX_BODY_BYTES", defaultMaxBodyBytes),
	}
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
