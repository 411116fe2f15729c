package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Settings struct {
	Env  string
	Addr string

	// relay storage
	DBPath        string
	SnapshotStore string // sqlite, s3
	Bucket        string
	S3Endpoint    string

	// client
	WSURL           string
	APIURL          string
	Reconnect       bool
	ReconnectMax    int
	RefetchOnResize bool

	// relay inbound limit per connection
	RateLimit float64
	RateBurst int

	ShutdownTimeout time.Duration

	// EnvFile is true when a .env file was found and loaded.
	EnvFile bool
}

// Load reads .env (when present) and then the process environment.
func Load() (Settings, error) {
	loaded := godotenv.Load() == nil

	s := Settings{
		Env:             getenv("ENV", "dev"),
		Addr:            getenv("ADDR", ":8000"),
		DBPath:          getenv("DB_PATH", "whiteboard.db"),
		SnapshotStore:   getenv("SNAPSHOT_STORE", "sqlite"),
		Bucket:          os.Getenv("R2_BUCKET"),
		S3Endpoint:      os.Getenv("S3_ENDPOINT"),
		WSURL:           getenv("WS_URL", "ws://localhost:8000"),
		APIURL:          getenv("API_URL", "http://localhost:8000"),
		ShutdownTimeout: 10 * time.Second,
		EnvFile:         loaded,
	}

	var err error
	if s.Reconnect, err = boolEnv("RECONNECT", true); err != nil {
		return s, err
	}
	if s.ReconnectMax, err = intEnv("RECONNECT_MAX", 10); err != nil {
		return s, err
	}
	if s.RefetchOnResize, err = boolEnv("REFETCH_ON_RESIZE", false); err != nil {
		return s, err
	}
	if s.RateBurst, err = intEnv("RATE_BURST", 400); err != nil {
		return s, err
	}
	limit, err := intEnv("RATE_LIMIT", 200)
	if err != nil {
		return s, err
	}
	s.RateLimit = float64(limit)

	switch s.SnapshotStore {
	case "sqlite":
	case "s3":
		if s.Bucket == "" {
			return s, fmt.Errorf("SNAPSHOT_STORE=s3 requires R2_BUCKET")
		}
	default:
		return s, fmt.Errorf("unknown SNAPSHOT_STORE %q", s.SnapshotStore)
	}

	return s, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func boolEnv(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
