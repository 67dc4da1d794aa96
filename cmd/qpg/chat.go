package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qpg-app/qpg/internal/preferences"
	"github.com/qpg-app/qpg/internal/terminal"
)

var chatNoRender bool

func getChatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant",
		Long: `Start an interactive chat. Every request can change one setting; the
conversation is kept until you leave or type /new.`,
		RunE: runChat,
	}

	cmd.Flags().BoolVar(&chatNoRender, "no-render", false, "disable markdown rendering")

	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	provider, err := newProvider(cfg.AI, logger)
	if err != nil {
		return err
	}

	// One prompter reads both requests and confirmations.
	prompter := terminal.NewPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
	a, err := newApp(provider, prompter)
	if err != nil {
		return err
	}

	repl := terminal.NewREPL(a.engine, prompter, cmd.OutOrStdout())
	repl.SetRenderer(newRenderer(cfg.Chat.RenderMarkdown && !chatNoRender))
	repl.SetPreferences(func() *preferences.Set { return a.store.Filtered() })

	fmt.Fprintf(cmd.OutOrStdout(), "qpg (%s). Type /help for commands.\n", a.ident.Environment())

	if _, err := a.engine.Preferences(cmd.Context()); err != nil {
		return err
	}
	return repl.Run(cmd.Context())
}
