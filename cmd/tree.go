package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/chatthread/internal/loader"
	"github.com/chatthread/pkg/chattree"
)

// TreeCommand returns the tree command
func TreeCommand() *cli.Command {
	return &cli.Command{
		Name:      "tree",
		Usage:     "Build the conversation tree of a message export",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "stats",
				Usage: "Print only the tree shape summary",
			},
		},
		Action: runTree,
	}
}

func runTree(c *cli.Context) error {
	path, err := inputPath(c)
	if err != nil {
		return err
	}

	res, err := loader.LoadFile(path)
	if err != nil {
		return err
	}

	tree := chattree.BuildChatItemTree(res.Messages)
	stats := chattree.Stats(tree)
	if c.Bool("stats") {
		return writeJSON(stdout(c), stats)
	}

	if err := writeJSON(stdout(c), map[string]interface{}{"tree": tree, "stats": stats}); err != nil {
		return fmt.Errorf("failed to write tree: %w", err)
	}
	return nil
}
