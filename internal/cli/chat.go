package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	apperrors "voice-beyond/companion/pkg/errors"
)

const cliSessionID = "cli"

func init() {
	cmd := &cobra.Command{
		Use:   "chat [character-id]",
		Short: "Chat with a character (default: the one picked with character start)",
		Long:  "Opens an interactive chat. Type a message and press enter; /quit or end of input leaves the chat.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runChat,
	}
	RootCmd.AddCommand(cmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	characterID := ""
	if len(args) == 1 {
		characterID = args[0]
	}

	return withApp(cmd, nil, func(ctx context.Context, a *app) error {
		c := a.container
		out := cmd.OutOrStdout()

		user, err := c.Users.Current(ctx)
		if err != nil {
			return err
		}
		s, _ := c.Sessions.Get(cliSessionID)
		s.SetUser(user)

		snap, err := c.Orchestrator.SelectCharacter(ctx, s, characterID)
		if err != nil {
			return err
		}
		a.printer.SetCharacter(snap.Character.Name)
		fmt.Fprintf(out, "Chatting with %s (%s). /quit to leave.\n", snap.Character.Name, snap.Character.Relationship)
		for _, m := range snap.Transcript {
			a.printer.Message(m)
		}

		scanner := bufio.NewScanner(cmd.InOrStdin())
		for {
			fmt.Fprint(out, "> ")
			if !scanner.Scan() {
				fmt.Fprintln(out)
				return scanner.Err()
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "/quit" || line == "/exit" {
				return nil
			}
			if _, err := c.Orchestrator.Send(ctx, s, line); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				fmt.Fprintf(out, "! %s\n", apperrors.GetErrorMessage(err))
			}
		}
	})
}
