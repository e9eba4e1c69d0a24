package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/xiaot623/gochat/internal/domain"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage chat sessions",
	Long: `List, show, create, and delete chat sessions.

Examples:
  chat sessions                 # list sessions
  chat sessions new llama3
  chat sessions show <id>
  chat sessions delete <id>`,
	RunE: runSessionsList, // Default to list
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, most recently used first",
	Args:  cobra.NoArgs,
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a session and its messages",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

var sessionsNewCmd = &cobra.Command{
	Use:   "new <model>",
	Short: "Create a session bound to a model",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsNew,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsNewCmd, sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	sessions, err := newClient().ListSessions(cmd.Context())
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tMESSAGES\tUPDATED")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.SessionID, s.Model, s.MessageCount, s.LastUpdated.Local().Format(time.DateTime))
	}
	return w.Flush()
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	session, err := newClient().GetSession(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Session: %s\n", session.SessionID)
	fmt.Fprintf(out, "Model:   %s\n", session.Model)
	fmt.Fprintf(out, "Created: %s\n", session.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintln(out)
	for _, m := range session.Messages {
		printMessage(out, m)
	}
	return nil
}

func runSessionsNew(cmd *cobra.Command, args []string) error {
	resp, err := newClient().CreateSession(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), resp.SessionID)
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	if err := newClient().DeleteSession(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", args[0])
	return nil
}

func printMessage(w io.Writer, m domain.Message) {
	label := string(m.Role)
	if m.Error {
		label += " (error)"
	}
	fmt.Fprintf(w, "[%s] %s\n%s\n\n", label, m.Timestamp.Local().Format(time.TimeOnly), m.Content)
}
