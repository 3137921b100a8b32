package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/chatthread/internal/config"
	"github.com/chatthread/internal/database"
	"github.com/chatthread/internal/logging"
	"github.com/chatthread/internal/store"
)

const configMetadataKey = "config"

// Setup loads the configuration and configures logging. It runs before every
// command; the loaded config is kept in the app metadata.
func Setup(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.General.LogLevel
	if c.IsSet("log-level") {
		level = c.String("log-level")
	}
	if err := logging.Setup(logging.Options{Level: level, Format: cfg.General.LogFormat, Writer: c.App.ErrWriter}); err != nil {
		return err
	}

	if c.App.Metadata == nil {
		c.App.Metadata = map[string]interface{}{}
	}
	c.App.Metadata[configMetadataKey] = cfg
	return nil
}

func appConfig(c *cli.Context) (*config.Config, error) {
	if cfg, ok := c.App.Metadata[configMetadataKey].(*config.Config); ok {
		return cfg, nil
	}
	return config.LoadConfig(c.String("config"))
}

// openStore connects to the configured database and applies the schema.
func openStore(ctx context.Context, cfg *config.Config) (*store.Store, func(), string, error) {
	dbURL, err := database.ResolveURL(cfg.Database.URL)
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to get database URL: %w", err)
	}

	db, err := database.Open(ctx, dbURL)
	if err != nil {
		return nil, nil, "", err
	}

	s := store.New(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, "", err
	}
	return s, func() { db.Close() }, dbURL, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func inputPath(c *cli.Context) (string, error) {
	if c.NArg() < 1 {
		return "", fmt.Errorf("missing required argument: FILE (use - for stdin)")
	}
	return c.Args().Get(0), nil
}

func stdout(c *cli.Context) io.Writer {
	if c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}
