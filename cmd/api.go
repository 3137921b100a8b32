package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/chatthread/internal/api"
	"github.com/chatthread/internal/jobqueue"
)

// APICommand returns the CLI command for starting the API server
func APICommand() *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Start the chatthread API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the API server (default: server.port)",
			},
			&cli.BoolFlag{
				Name:  "stateless",
				Usage: "Serve only the tree and thread endpoints, without a database",
			},
			&cli.BoolFlag{
				Name:  "with-worker",
				Usage: "Run snapshot workers in the API process",
			},
		},
		Action: runAPI,
	}
}

func runAPI(c *cli.Context) error {
	cfg, err := appConfig(c)
	if err != nil {
		return err
	}

	opts := api.Options{
		Port:        cfg.Server.Port,
		CORSOrigins: cfg.Server.CORSOrigins,
		RateLimit:   cfg.Server.RateLimit,
		RateBurst:   cfg.Server.RateBurst,
		JWTSecret:   cfg.Server.JWTSecret,
	}
	if c.IsSet("port") {
		opts.Port = c.Int("port")
	}
	if opts.JWTSecret == "" {
		log.Warn().Msg("server.jwt_secret is not set, API authentication is disabled")
	}

	if !c.Bool("stateless") {
		ctx := c.Context
		s, closeDB, dbURL, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeDB()
		opts.Store = s

		if cfg.Queue.Enabled {
			jq, err := jobqueue.NewJobQueue(ctx, dbURL, jobqueue.FromConfig(cfg.Queue), s)
			if err != nil {
				return err
			}
			if c.Bool("with-worker") {
				if err := jq.Start(ctx); err != nil {
					return err
				}
			}
			defer jq.Stop(ctx)
			opts.Queue = jq
		}
	}

	return api.NewServer(opts).Start()
}
