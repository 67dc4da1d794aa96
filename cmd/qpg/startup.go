package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/qpg-app/qpg/internal/core"
	"github.com/qpg-app/qpg/internal/core/security"
)

var startupNoApps bool

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	skipStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func getStartupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "startup",
		Short: "Apply stored preferences and start the startup applications",
		Long: `Re-apply every stored setting to the desktop, then start each
application listed in security.startup_apps.

Run it from your session's autostart.`,
		Args: cobra.NoArgs,
		RunE: runStartup,
	}

	cmd.Flags().BoolVar(&startupNoApps, "no-apps", false, "only apply preferences")

	return cmd
}

func getLaunchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "launch <app> &",
		Short: "Start one allowed startup application",
		Long: `Start an application from security.startup_apps, detached.

The command line must end with " &", for example:
  qpg launch "mousepad &"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(nil, nil)
			if err != nil {
				return err
			}
			return a.engine.Launch(strings.Join(args, " "))
		},
	}
}

func runStartup(cmd *cobra.Command, args []string) error {
	a, err := newApp(nil, nil)
	if err != nil {
		return err
	}

	applied, err := a.engine.ApplyStored(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	printApplied(out, applied)

	if startupNoApps {
		return nil
	}

	var failed int
	for _, app := range cfg.Security.StartupApps {
		if err := a.engine.Launch(app + security.DetachedMarker); err != nil {
			fmt.Fprintf(out, "%s %s: %v\n", failStyle.Render("✗"), app, err)
			failed++
			continue
		}
		fmt.Fprintf(out, "%s started %s\n", okStyle.Render("✓"), app)
	}
	if failed > 0 {
		return fmt.Errorf("%d startup application(s) failed to start", failed)
	}
	return nil
}

func printApplied(w io.Writer, applied []core.Applied) {
	if len(applied) == 0 {
		fmt.Fprintln(w, "No stored settings for this desktop")
		return
	}
	for _, item := range applied {
		switch {
		case item.Err != nil:
			fmt.Fprintf(w, "%s %s: %v\n", skipStyle.Render("-"), item.Key, item.Err)
		case !item.Result.Succeeded():
			fmt.Fprintf(w, "%s %s: exited with %d\n", failStyle.Render("✗"), item.Key, item.Result.ExitCode)
		default:
			fmt.Fprintf(w, "%s %s\n", okStyle.Render("✓"), item.CommandLine)
		}
	}
}
