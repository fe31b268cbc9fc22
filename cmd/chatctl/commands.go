package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"

	httpapi "github.com/fyrsmithlabs/chatmatch/internal/http"
	"github.com/spf13/cobra"
)

func newAskCmd(c *client) *cobra.Command {
	var recent []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Ask the assistant a question",
		Long: `Send a message and print the answer.

Examples:
  chatctl ask "what is your hourly rate?"
  chatctl ask --locale tr "fiyatlarınız nedir?"
  chatctl ask --context "I need a shop" "how long would it take?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp httpapi.ChatResponse
			req := httpapi.ChatRequest{
				Locale:  c.locale,
				Message: strings.Join(args, " "),
				Context: recent,
			}
			if err := c.do(cmd.Context(), http.MethodPost, "/api/v1/chat", req, &resp); err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Answer)
			fmt.Fprintf(cmd.ErrOrStderr(), "(%s, score %.2f, locale %s)\n", resp.Source, resp.Score, resp.Locale)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&recent, "context", nil, "earlier message, oldest first (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw response")
	return cmd
}

func newResetCmd(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Forget the locale's history and learned responses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.do(cmd.Context(), http.MethodDelete, c.localePath("/learned"), nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reset locale %s\n", c.locale)
			return nil
		},
	}
}

func newLearnedCmd(c *client) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "learned",
		Short: "List learned responses for the locale",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp httpapi.LearnedResponse
			if err := c.do(cmd.Context(), http.MethodGet, c.localePath("/learned"), nil, &resp); err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			if resp.Count == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No learned responses for %s\n", resp.Locale)
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "QUESTION\tUSES\tCONFIDENCE\tVARIATIONS")
			for _, r := range resp.Records {
				fmt.Fprintf(w, "%s\t%d\t%.2f\t%d\n", truncate(r.Question, 60), r.UseCount, r.Confidence, len(r.Variations))
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw response")
	return cmd
}

func newHistoryCmd(c *client) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the locale's conversation history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp httpapi.ConversationsResponse
			if err := c.do(cmd.Context(), http.MethodGet, c.localePath("/conversations"), nil, &resp); err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			if resp.Count == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No history for %s\n", resp.Locale)
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tQUESTION\tANSWER")
			for _, t := range resp.Turns {
				fmt.Fprintf(w, "%s\t%s\t%s\n", t.Timestamp.Format("2006-01-02 15:04"), truncate(t.Question, 40), truncate(t.Answer, 60))
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw response")
	return cmd
}

func newHealthCmd(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check chatmatchd health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp httpapi.HealthResponse
			if err := c.do(cmd.Context(), http.MethodGet, "/health", nil, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Status: %s\n", resp.Status)
			if resp.Version != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Version: %s\n", resp.Version)
			}
			return nil
		},
	}
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
