package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xiaot623/gochat/internal/client"
	"github.com/xiaot623/gochat/internal/domain"
)

var (
	replSession string
	replModel   string
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive conversation",
	Long: `Start an interactive conversation.

Commands:
  /history   show the session transcript
  /new       start a fresh session with the same model
  /quit      exit

Ctrl+C while a reply is streaming stops the reply.`,
	Args: cobra.NoArgs,
	RunE: runRepl,
}

func init() {
	replCmd.Flags().StringVarP(&replSession, "session", "s", "", "Resume an existing session")
	replCmd.Flags().StringVarP(&replModel, "model", "m", "", "Model for a new session")
	rootCmd.AddCommand(replCmd)
}

func runRepl(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c := newClient()
	out := cmd.OutOrStdout()

	model := replModel
	sessionID := replSession
	if sessionID != "" {
		session, err := c.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		model = session.Model
	} else {
		if model == "" {
			return fmt.Errorf("either --session or --model is required")
		}
		var err error
		if sessionID, err = newSession(cmd, c, model); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "Session %s (%s)\n", sessionID, model)
	fmt.Fprintln(out, "Type a message and press Enter to send. Commands: /history /new /quit")

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case "/quit":
			fmt.Fprintln(out, "Bye!")
			return nil
		case "/new":
			id, err := newSession(cmd, c, model)
			if err != nil {
				fmt.Fprintln(out, "Error:", err)
				continue
			}
			sessionID = id
			fmt.Fprintf(out, "Session %s (%s)\n", sessionID, model)
			continue
		case "/history":
			if err := printHistory(cmd, c, sessionID, out); err != nil {
				fmt.Fprintln(out, "Error:", err)
			}
			continue
		}

		if _, err := runTurn(ctx, c, domain.TurnRequest{Message: input, SessionID: sessionID}, out); err != nil {
			fmt.Fprintln(out, "Error:", err)
		}
	}
}

func newSession(cmd *cobra.Command, c *client.Client, model string) (string, error) {
	resp, err := c.CreateSession(cmd.Context(), model)
	if err != nil {
		return "", err
	}
	return resp.SessionID, nil
}

func printHistory(cmd *cobra.Command, c *client.Client, sessionID string, out io.Writer) error {
	session, err := c.GetSession(cmd.Context(), sessionID)
	if err != nil {
		return err
	}
	for _, m := range session.Messages {
		printMessage(out, m)
	}
	return nil
}
