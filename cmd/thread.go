package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/chatthread/internal/loader"
	"github.com/chatthread/pkg/chattree"
)

// ThreadCommand returns the thread command
func ThreadCommand() *cli.Command {
	return &cli.Command{
		Name:      "thread",
		Usage:     "Print the thread to display for a message export",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "target",
				Aliases: []string{"t"},
				Usage:   "Show the branch containing message `ID` (default: latest branch)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output format: text or json",
				Value:   "text",
			},
		},
		Action: runThread,
	}
}

// LastAnswerCommand returns the last-answer command
func LastAnswerCommand() *cli.Command {
	return &cli.Command{
		Name:      "last-answer",
		Usage:     "Print the id of the last valid generated answer of the displayed thread",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "target",
				Aliases: []string{"t"},
				Usage:   "Use the branch containing message `ID`",
			},
		},
		Action: runLastAnswer,
	}
}

func loadThread(c *cli.Context) ([]chattree.Message, error) {
	path, err := inputPath(c)
	if err != nil {
		return nil, err
	}

	res, err := loader.LoadFile(path)
	if err != nil {
		return nil, err
	}

	tree := chattree.BuildChatItemTree(res.Messages)
	target := c.String("target")
	if target != "" && !chattree.TargetExists(tree, target) {
		log.Warn().Str("target", target).Msg("Target message not found, showing the latest branch")
	}
	return chattree.ThreadMessages(tree, target), nil
}

func runThread(c *cli.Context) error {
	thread, err := loadThread(c)
	if err != nil {
		return err
	}

	switch c.String("output") {
	case "json":
		return writeJSON(stdout(c), thread)
	case "text":
		return printThread(stdout(c), thread)
	default:
		return fmt.Errorf("unknown output format %q", c.String("output"))
	}
}

// printThread renders one line per message with a "<i/n>" marker where the turn has
// alternatives.
func printThread(w io.Writer, thread []chattree.Message) error {
	for _, m := range thread {
		role := "user"
		if m.IsAnswer {
			role = "assistant"
		}

		branch := ""
		if m.SiblingCount > 1 {
			branch = fmt.Sprintf(" <%d/%d>", m.SiblingIndex+1, m.SiblingCount)
		}

		content := strings.ReplaceAll(m.Content, "\n", " ")
		if _, err := fmt.Fprintf(w, "%-9s %s%s: %s\n", role, m.ID, branch, content); err != nil {
			return err
		}
	}
	return nil
}

func runLastAnswer(c *cli.Context) error {
	thread, err := loadThread(c)
	if err != nil {
		return err
	}

	last, ok := chattree.LastAnswer(thread)
	if !ok {
		return fmt.Errorf("no valid generated answer in thread")
	}
	_, err = fmt.Fprintln(stdout(c), last.ID)
	return err
}
