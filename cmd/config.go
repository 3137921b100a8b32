package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/chatthread/internal/config"
)

// ConfigCommand groups the chatthread.toml helpers.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Write and check chatthread.toml",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write a sample chatthread.toml",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Where to write the sample",
						Value:   "chatthread.toml",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Replace an existing file",
					},
				},
				Action: runConfigInit,
			},
			{
				Name:  "validate",
				Usage: "Check the resolved configuration (file, then CHATTHREAD_* overrides) and print the effective settings",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "quiet",
						Aliases: []string{"q"},
						Usage:   "Only report whether the configuration is valid",
					},
				},
				Action: runConfigValidate,
			},
		},
	}
}

func runConfigInit(c *cli.Context) error {
	path := c.String("output")
	if c.Bool("force") {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("replace %s: %w", path, err)
		}
	}

	if err := config.InitConfig(path); err != nil {
		return err
	}

	w := stdout(c)
	fmt.Fprintf(w, "Wrote sample configuration to %s\n", path)
	fmt.Fprintln(w, "Set [database] url (or DATABASE_URL) before running import, api or worker.")
	return nil
}

func runConfigValidate(c *cli.Context) error {
	cfg, err := appConfig(c)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}

	w := stdout(c)
	fmt.Fprintln(w, "Configuration is valid")
	if !c.Bool("quiet") {
		printSettings(w, cfg)
	}
	return nil
}

// printSettings writes the effective values of every section, secrets masked.
func printSettings(w io.Writer, cfg *config.Config) {
	fmt.Fprintf(w, "[general]  log_level=%s log_format=%s\n", cfg.General.LogLevel, cfg.General.LogFormat)

	rate := "off"
	if cfg.Server.RateLimit > 0 {
		rate = fmt.Sprintf("%g/s burst=%d", cfg.Server.RateLimit, cfg.Server.RateBurst)
	}
	auth := "disabled"
	if cfg.Server.JWTSecret != "" {
		auth = "jwt " + maskSecret(cfg.Server.JWTSecret)
	}
	fmt.Fprintf(w, "[server]   port=%d cors_origins=%s rate_limit=%s auth=%s\n",
		cfg.Server.Port, strings.Join(cfg.Server.CORSOrigins, ","), rate, auth)

	dbURL := "unset (DATABASE_URL or .env)"
	if cfg.Database.URL != "" {
		dbURL = maskSecret(cfg.Database.URL)
	}
	fmt.Fprintf(w, "[database] url=%s\n", dbURL)

	if !cfg.Queue.Enabled {
		fmt.Fprintln(w, "[queue]    disabled")
		return
	}
	fmt.Fprintf(w, "[queue]    workers=%d retries=%d job_timeout=%s\n",
		cfg.Queue.MaxWorkers, cfg.Queue.MaxRetries, cfg.Queue.JobTimeout)
}
