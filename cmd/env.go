package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/chatthread/internal/config"
	"github.com/chatthread/internal/database"
)

// ConfigCheckResult holds the result of configuration validation
type ConfigCheckResult struct {
	Missing  []string          // Required settings that are missing
	Present  map[string]string // Settings that are set (masked values)
	Warnings []string          // Non-fatal warnings
}

// EnvCommand returns the env command
func EnvCommand() *cli.Command {
	return &cli.Command{
		Name:  "env",
		Usage: "Inspect the runtime environment",
		Subcommands: []*cli.Command{
			{
				Name:  "check",
				Usage: "Check that the database and API settings are present",
				Action: func(c *cli.Context) error {
					cfg, err := appConfig(c)
					if err != nil {
						return err
					}
					result := CheckRequiredConfig(cfg)
					PrintConfigCheck(stdout(c), result)
					if len(result.Missing) > 0 {
						return fmt.Errorf("%d required settings missing", len(result.Missing))
					}
					return nil
				},
			},
		},
	}
}

// CheckRequiredConfig validates that the settings the server needs are available
func CheckRequiredConfig(cfg *config.Config) *ConfigCheckResult {
	result := &ConfigCheckResult{
		Missing:  []string{},
		Present:  make(map[string]string),
		Warnings: []string{},
	}

	if dbURL, err := database.ResolveURL(cfg.Database.URL); err != nil {
		result.Missing = append(result.Missing, "database.url / DATABASE_URL")
	} else {
		result.Present["database.url"] = maskSecret(dbURL)
	}

	if cfg.Server.JWTSecret == "" {
		result.Warnings = append(result.Warnings, "server.jwt_secret is empty, API authentication is disabled")
	} else {
		result.Present["server.jwt_secret"] = maskSecret(cfg.Server.JWTSecret)
	}

	if cfg.Server.RateLimit == 0 {
		result.Warnings = append(result.Warnings, "server.rate_limit is 0, rate limiting is disabled")
	}

	for _, kv := range os.Environ() {
		key, value, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, config.EnvPrefix) {
			result.Present[key] = maskSecret(value)
		}
	}

	return result
}

// PrintConfigCheck prints the configuration check results
func PrintConfigCheck(w io.Writer, result *ConfigCheckResult) {
	fmt.Fprintln(w, "=== Configuration Check ===")

	if len(result.Missing) > 0 {
		fmt.Fprintln(w, "❌ Missing required settings:")
		for _, v := range result.Missing {
			fmt.Fprintf(w, "   - %s\n", v)
		}
		fmt.Fprintln(w)
	}

	if len(result.Present) > 0 {
		fmt.Fprintln(w, "✓ Configured settings:")
		keys := make([]string, 0, len(result.Present))
		for k := range result.Present {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "   - %s = %s\n", k, result.Present[k])
		}
		fmt.Fprintln(w)
	}

	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "⚠ Warning: %s\n", warning)
	}

	if len(result.Missing) == 0 {
		fmt.Fprintln(w, "✓ All required configuration is present")
	}

	fmt.Fprintln(w, "============================")
}

// maskSecret masks a secret value for display, showing only first and last 2 chars
func maskSecret(value string) string {
	if len(value) <= 8 {
		return "****"
	}
	return value[:2] + "****" + value[len(value)-2:]
}
