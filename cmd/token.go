package cmd

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/chatthread/internal/api/auth"
)

// TokenCommand returns the command issuing API bearer tokens
func TokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Issue an API bearer token signed with server.jwt_secret",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "subject",
				Aliases:  []string{"s"},
				Usage:    "Token subject (client name)",
				Required: true,
			},
			&cli.DurationFlag{
				Name:  "ttl",
				Usage: "Token lifetime",
				Value: 24 * time.Hour,
			},
		},
		Action: runToken,
	}
}

func runToken(c *cli.Context) error {
	cfg, err := appConfig(c)
	if err != nil {
		return err
	}
	if cfg.Server.JWTSecret == "" {
		return fmt.Errorf("server.jwt_secret is not configured")
	}

	token, expiresAt, err := auth.NewTokenService(cfg.Server.JWTSecret).Issue(c.String("subject"), c.Duration("ttl"))
	if err != nil {
		return err
	}
	return writeJSON(stdout(c), map[string]interface{}{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_at":   expiresAt.UTC(),
	})
}
