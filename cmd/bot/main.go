// Command bot runs the otogi chat bot and previews its /help catalog.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "bot",
		Short: "otogi chat bot with interactive /help",
		Long: `Run the otogi chat bot on the configured Telegram and Slack drivers.

  bot                 Start the bot (same as "bot run")
  bot run             Start the bot
  bot pages           Preview every /help page in the terminal
  bot pages --page 2  Preview one /help page

Configuration is read from config/bot.json, bin/config/bot.json or the file
named by OTOGI_CONFIG_FILE. OTOGI_-prefixed variables override config keys.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBot(cmd.Context())
		},
	}
	root.AddCommand(newRunCommand(), newPagesCommand())

	return root
}

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBot(cmd.Context())
		},
	}
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "bot exited with error:", err)
		os.Exit(1)
	}
}
