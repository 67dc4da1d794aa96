package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/qpg-app/qpg/internal/core"
	"github.com/qpg-app/qpg/internal/terminal"
)

var (
	askChatID   string
	askNoRender bool
)

func getAskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <request>",
		Short: "Send one request and exit",
		Long: `Send one request to the assistant, run the proposed command if it is
allowed, and exit.

Example:
  qpg ask "make the cursor size bigger"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAsk,
	}

	cmd.Flags().StringVar(&askChatID, "chat", "", "chat id to use (default: a new chat)")
	cmd.Flags().BoolVar(&askNoRender, "no-render", false, "disable markdown rendering")

	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	provider, err := newProvider(cfg.AI, logger)
	if err != nil {
		return err
	}

	prompter := terminal.NewPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
	a, err := newApp(provider, prompter)
	if err != nil {
		return err
	}

	chatID := askChatID
	if chatID == "" {
		chatID = uuid.New().String()
	}

	reply, err := a.engine.Process(cmd.Context(), core.Request{
		ChatID: chatID,
		Prompt: strings.Join(args, " "),
	})
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), newRenderer(cfg.Chat.RenderMarkdown && !askNoRender).Render(reply))
	return nil
}
