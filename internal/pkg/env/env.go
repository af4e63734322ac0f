package env

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"
)

func RequireString(key string) string {
	val, ok := os.LookupEnv(key)
	if !ok {
		panic(fmt.Sprintf("environment variable %q is required", key))
	}

	return val
}

func String(key, def string) string {
	val, ok := os.LookupEnv(key)
	if !ok {
		return def
	}

	return val
}

func Int(key string, def int) int {
	valStr, ok := os.LookupEnv(key)
	if !ok {
		return def
	}

	var val int
	_, err := fmt.Sscanf(valStr, "%d", &val)
	if err != nil {
		return def
	}

	return val
}

func Int64(key string, def int64) int64 {
	valStr, ok := os.LookupEnv(key)
	if !ok {
		return def
	}

	var val int64
	_, err := fmt.Sscanf(valStr, "%d", &val)
	if err != nil {
		return def
	}

	return val
}

func Bool(key string, def bool) bool {
	valStr, ok := os.LookupEnv(key)
	if !ok {
		return def
	}

	switch valStr {
	case "true", "1":
		return true
	case "false", "0":
		return false
	}

	return def
}

func Duration(key string, def time.Duration) time.Duration {
	valStr, ok := os.LookupEnv(key)
	if !ok {
		return def
	}

	val, err := time.ParseDuration(valStr)
	if err != nil {
		return def
	}

	return val
}

// OneOf returns the value of key if it is one of allowed, def otherwise
func OneOf(key, def string, allowed ...string) string {
	val, ok := os.LookupEnv(key)
	if !ok {
		return def
	}

	val = strings.ToLower(strings.TrimSpace(val))
	if !slices.Contains(allowed, val) {
		return def
	}

	return val
}

func LogLevel(key string, def slog.Level) slog.Level {
	valStr, ok := os.LookupEnv(key)
	if !ok {
		return def
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(valStr)); err != nil {
		return def
	}

	return lvl
}
