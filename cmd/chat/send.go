package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xiaot623/gochat/internal/domain"
)

var (
	sendSession      string
	sendModel        string
	sendSystemPrompt string
)

var sendCmd = &cobra.Command{
	Use:   "send <message>",
	Short: "Send one message and stream the reply",
	Long: `Send one message and stream the reply.

Without --session a new session is created for --model.

Examples:
  chat send -s <id> "what is a goroutine?"
  chat send -m llama3 "hello"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVarP(&sendSession, "session", "s", "", "Session id")
	sendCmd.Flags().StringVarP(&sendModel, "model", "m", "", "Model for a new session")
	sendCmd.Flags().StringVar(&sendSystemPrompt, "system", "", "System prompt for this turn")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c := newClient()

	sessionID := sendSession
	if sessionID == "" {
		if sendModel == "" {
			return fmt.Errorf("either --session or --model is required")
		}
		resp, err := c.CreateSession(ctx, sendModel)
		if err != nil {
			return err
		}
		sessionID = resp.SessionID
		fmt.Fprintf(cmd.ErrOrStderr(), "session %s\n", sessionID)
	}

	_, err := runTurn(ctx, c, domain.TurnRequest{
		Message:      strings.Join(args, " "),
		SessionID:    sessionID,
		SystemPrompt: sendSystemPrompt,
	}, cmd.OutOrStdout())
	return err
}
