package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/chatthread/internal/retry"
)

// Open connects to PostgreSQL through lib/pq and pings the server, retrying
// transient failures while the database is still starting.
func Open(ctx context.Context, dbURL string) (*sql.DB, error) {
	return OpenWithRetry(ctx, dbURL, retry.StartupRetryConfig())
}

// OpenWithRetry is Open with an explicit retry policy.
func OpenWithRetry(ctx context.Context, dbURL string, cfg retry.RetryConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	result := retry.RetryWithBackoff(ctx, cfg, "database ping", db.PingContext)
	if !result.Success {
		db.Close()
		return nil, fmt.Errorf("failed to ping db after %d attempts: %w", result.Attempts, result.LastError)
	}

	return db, nil
}

// ResolveURL returns configured when set, then DATABASE_URL, then the DATABASE_URL
// entry of the nearest .env file above the working directory.
func ResolveURL(configured string) (string, error) {
	if direct := strings.TrimSpace(configured); direct != "" {
		return direct, nil
	}
	if direct := strings.TrimSpace(os.Getenv("DATABASE_URL")); direct != "" {
		return direct, nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}

	envPath, err := findEnvFile(wd)
	if err != nil {
		return "", err
	}

	return readEnvValue(envPath, "DATABASE_URL")
}

// readEnvValue looks wantKey up in envPath without exporting anything into the
// process environment.
func readEnvValue(envPath, wantKey string) (string, error) {
	vals, err := godotenv.Read(envPath)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", envPath, err)
	}

	value, ok := vals[wantKey]
	if !ok {
		return "", errors.New(wantKey + " not found in environment or .env")
	}
	if value = strings.TrimSpace(value); value == "" {
		return "", fmt.Errorf("%s is empty in %s", wantKey, envPath)
	}
	return value, nil
}

func findEnvFile(start string) (string, error) {
	dir := start
	for {
		candidate := filepath.Join(dir, ".env")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf(".env not found starting from %s", start)
}
