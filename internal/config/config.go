package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	ListenAddr string

	StoreBackend string
	BadgerPath   string
	DatabaseURL  string
	RedisURL     string
	RedisKeyTTL  time.Duration

	InitialClockSeconds float64
	TickInterval        time.Duration
	PersistQueueSize    int

	MessagesDir    string
	AllowedOrigins []string
	AllowedRooms   []string

	Log LogConfig
}

type LogConfig struct {
	Level     string
	Format    string
	ToConsole bool
	ToFile    bool
	File      string
	Caller    bool
}

var (
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required for the postgres store")
	ErrMissingRedisURL    = errors.New("REDIS_URL is required for the redis store")
	ErrUnknownBackend     = errors.New("STORE_BACKEND must be one of badger, postgres, redis, memory")
)

// Load reads .env (when present) and the process environment.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()

	cfg := &AppConfig{
		ListenAddr:          ":3000",
		StoreBackend:        "badger",
		BadgerPath:          "data/rooms",
		InitialClockSeconds: 600,
		TickInterval:        time.Second,
		PersistQueueSize:    1024,
		Log: LogConfig{
			Level:     "info",
			Format:    "legacy",
			ToConsole: true,
			ToFile:    false,
			File:      "logs/chess-room.log",
		},
	}

	if v := getenv("PORT"); v != "" {
		cfg.ListenAddr = ":" + strings.TrimPrefix(v, ":")
	}
	if v := getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}

	if v := getenv("STORE_BACKEND"); v != "" {
		cfg.StoreBackend = strings.ToLower(v)
	}
	if v := getenv("BADGER_PATH"); v != "" {
		cfg.BadgerPath = v
	}
	cfg.DatabaseURL = getenv("DATABASE_URL")
	cfg.RedisURL = getenv("REDIS_URL")
	if v := getenv("REDIS_KEY_TTL"); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("REDIS_KEY_TTL: %w", err)
		}
		cfg.RedisKeyTTL = d
	}

	if v := getenv("INITIAL_CLOCK_SECONDS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.InitialClockSeconds = f
		}
	}
	if v := getenv("TICK_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TickInterval = time.Duration(n) * time.Millisecond
		}
	}
	if v := getenv("PERSIST_QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PersistQueueSize = n
		}
	}

	cfg.MessagesDir = getenv("MESSAGES_DIR")
	cfg.AllowedOrigins = splitList(getenv("ALLOWED_ORIGINS"))
	cfg.AllowedRooms = splitList(getenv("ALLOWED_ROOMS"))

	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = strings.ToLower(v)
	}
	cfg.Log.ToConsole = getbool("LOG_TO_CONSOLE", cfg.Log.ToConsole)
	cfg.Log.ToFile = getbool("LOG_TO_FILE", cfg.Log.ToFile)
	cfg.Log.Caller = getbool("LOG_CALLER", cfg.Log.Caller)
	if v := getenv("LOG_FILE"); v != "" {
		cfg.Log.File = v
	}

	switch cfg.StoreBackend {
	case "badger", "memory":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, ErrMissingDatabaseURL
		}
	case "redis":
		if cfg.RedisURL == "" {
			return nil, ErrMissingRedisURL
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.StoreBackend)
	}

	return cfg, nil
}

func getenv(k string) string { return strings.TrimSpace(os.Getenv(k)) }

func getbool(k string, def bool) bool {
	v := getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// parseDuration accepts Go durations ("24h") or plain seconds ("3600").
func parseDuration(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative duration %q", v)
		}
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", v)
	}
	return d, nil
}
