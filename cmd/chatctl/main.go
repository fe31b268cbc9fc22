// Package main implements chatctl, a CLI for a running chatmatchd.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &client{}

	root := &cobra.Command{
		Use:   "chatctl",
		Short: "CLI for chatmatchd",
		Long: `chatctl talks to a chatmatchd server. It can ask questions, inspect what
the server has learned per locale, and reset a locale.`,
		Version:      version,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&c.server, "server", "http://localhost:8080", "chatmatchd server URL")
	root.PersistentFlags().StringVarP(&c.locale, "locale", "l", "en", "conversation locale")
	root.PersistentFlags().DurationVar(&c.timeout, "timeout", defaultTimeout, "request timeout")

	root.AddCommand(
		newAskCmd(c),
		newResetCmd(c),
		newLearnedCmd(c),
		newHistoryCmd(c),
		newHealthCmd(c),
	)
	return root
}
