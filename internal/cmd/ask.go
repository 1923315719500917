package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/multiworker/internal/model"
)

var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Answer one message and exit",
	Long: `Run a single multi-worker turn and print the answer.

The message is taken from the arguments, or from stdin when none are given
or the only argument is "-". With --session the saved conversation is used
as history and the exchange is appended to it.`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	addTurnFlags(askCmd)
	askCmd.Flags().StringP("session", "s", "", "saved session to continue and update")
}

func runAsk(cmd *cobra.Command, args []string) error {
	message, err := readMessage(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.close(context.Background()) }()

	sessionName, _ := cmd.Flags().GetString("session")
	return a.ask(cmd.Context(), sessionName, message)
}

// ask runs one turn, optionally continuing and updating a saved session.
// The returned error is the turn's when no answer was produced.
func (a *app) ask(ctx context.Context, sessionName, message string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var history []model.Message
	if sessionName != "" {
		loaded, err := a.sessions.Load(ctx, sessionName)
		if err != nil {
			return err
		}
		history = loaded
	}

	outcome := a.runTurn(ctx, history, message)
	if !outcome.OK() {
		return outcome.Err
	}

	if sessionName != "" {
		history = append(history, model.UserMessage(message), model.AssistantMessage(outcome.Answer))
		path, err := a.sessions.Save(ctx, sessionName, history)
		if err != nil {
			return err
		}
		a.printer.note(fmt.Sprintf("Saved %s", path))
	}
	return nil
}

func readMessage(in io.Reader, args []string) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("failed to read message from stdin: %w", err)
	}
	message := strings.TrimSpace(string(data))
	if message == "" {
		return "", fmt.Errorf("no message given")
	}
	return message, nil
}
