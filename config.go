package main

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// config holds the settings shared by every command. Flags override the
// environment, which is read from .env when present.
type config struct {
	Addr     string
	DataDir  string
	Registry string
	DBPath   string
	RedisURL string
	CacheTTL time.Duration
	// ChunkConcurrency is how many dataset chunks are read at once.
	ChunkConcurrency int
	PerPage          int
	Debug            bool
}

// loadDotEnv reads .env into the process environment. A missing file is fine.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// configFromEnv builds the defaults from STATBORD_* variables.
func configFromEnv() config {
	return config{
		Addr:             envString("STATBORD_ADDR", "127.0.0.1:8080"),
		DataDir:          envString("STATBORD_DATA", "./data"),
		Registry:         envString("STATBORD_REGISTRY", "analyses.yaml"),
		DBPath:           os.Getenv("STATBORD_DB"),
		RedisURL:         os.Getenv("STATBORD_REDIS_URL"),
		CacheTTL:         envDuration("STATBORD_CACHE_TTL", 5*time.Minute),
		ChunkConcurrency: envInt("STATBORD_CHUNK_CONCURRENCY", 1),
		PerPage:          envInt("STATBORD_PER_PAGE", 25),
		Debug:            os.Getenv("STATBORD_DEBUG") == "true",
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return def
}
