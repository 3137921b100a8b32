package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/chatthread/internal/jobqueue"
	"github.com/chatthread/internal/loader"
)

// ImportCommand returns the import command
func ImportCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Store a message export as a conversation",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "name",
				Aliases: []string{"n"},
				Usage:   "Conversation name",
			},
			&cli.StringFlag{
				Name:  "id",
				Usage: "Conversation id (default: random UUID)",
			},
		},
		Action: runImport,
	}
}

func runImport(c *cli.Context) error {
	path, err := inputPath(c)
	if err != nil {
		return err
	}
	cfg, err := appConfig(c)
	if err != nil {
		return err
	}

	res, err := loader.LoadFile(path)
	if err != nil {
		return err
	}

	ctx := c.Context
	s, closeDB, dbURL, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	conv, err := s.CreateConversation(ctx, c.String("id"), c.String("name"), res.Messages)
	if err != nil {
		return fmt.Errorf("failed to import conversation: %w", err)
	}
	log.Info().Str("conversation_id", conv.ID).Int("messages", conv.MessageCount).Msg("Imported conversation")

	if cfg.Queue.Enabled {
		jq, err := jobqueue.NewJobQueue(ctx, dbURL, jobqueue.FromConfig(cfg.Queue), s)
		if err != nil {
			return err
		}
		defer jq.Stop(ctx)
		if err := jq.EnqueueSnapshot(ctx, conv.ID); err != nil {
			return err
		}
	}

	_, err = fmt.Fprintln(stdout(c), conv.ID)
	return err
}
