package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/multiworker/internal/config"
	"github.com/Iron-Ham/multiworker/internal/errors"
	"github.com/Iron-Ham/multiworker/internal/model"
	"github.com/Iron-Ham/multiworker/internal/session"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive multi-worker chat",
	Long: `Start an interactive chat. Every message is answered by a full
multi-worker turn. Lines starting with / are commands:

  /list              list saved sessions
  /save <name>       save the conversation
  /load <name>       replace the conversation with a saved one
  /new               start an empty conversation
  /settings          show the current settings
  /set <key> <value> change model, reasoning, verbosity, workers or transcript
  /exit              leave`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	addTurnFlags(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.close(context.Background()) }()

	if viper.ConfigFileUsed() != "" {
		config.Watch(viper.GetViper(), a.settings, func(_ *config.Config, err error) {
			if err != nil {
				a.logger.Warn("config reload rejected", "file", viper.ConfigFileUsed(), "error", err)
				return
			}
			a.logger.Info("config reloaded", "file", viper.ConfigFileUsed())
		})
	}

	c := newChat(a, cmd.InOrStdin(), cmd.OutOrStdout())
	return c.run(cmd.Context())
}

// chat is the interactive loop. It owns the conversation history; turns only
// ever see a copy of it.
type chat struct {
	app     *app
	in      *bufio.Scanner
	out     io.Writer
	history []model.Message
}

func newChat(a *app, in io.Reader, out io.Writer) *chat {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &chat{app: a, in: scanner, out: out}
}

func (c *chat) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c.app.printer.title("Multi-Worker Orchestrator")
	c.app.printer.note("commands: /list, /save <name>, /load <name>, /new, /settings, /set <key> <value>, /exit")

	done := make(chan struct{})
	defer close(done)
	lines := c.readLines(done)

	var scanErr error
loop:
	for {
		_, _ = fmt.Fprint(c.out, "\nYou: ")
		var line string
		select {
		case <-ctx.Done():
			break loop
		case l, ok := <-lines:
			if !ok {
				scanErr = c.in.Err()
				break loop
			}
			line = strings.TrimSpace(l)
		}
		// A line and the interrupt can arrive together.
		if ctx.Err() != nil {
			break
		}
		if line == "" {
			continue
		}
		if c.handle(ctx, line) {
			break
		}
	}
	c.app.printer.note("Bye.")
	return scanErr
}

// readLines scans input on its own goroutine so the loop can stop on an
// interrupt while a read is blocked. The channel is closed at end of input.
func (c *chat) readLines(done <-chan struct{}) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		for c.in.Scan() {
			select {
			case lines <- c.in.Text():
			case <-done:
				return
			}
		}
	}()
	return lines
}

// handle processes one input line and reports whether the loop should end.
func (c *chat) handle(ctx context.Context, line string) bool {
	if !strings.HasPrefix(line, "/") {
		c.ask(ctx, line)
		return false
	}

	command, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch command {
	case "/exit", "/quit":
		return true
	case "/settings":
		for _, l := range c.app.settings.Describe() {
			c.app.printer.println("  " + l)
		}
	case "/set":
		key, value, ok := strings.Cut(arg, " ")
		if !ok && key != "transcript" {
			c.app.printer.fail("Usage: /set <key> <value>")
			return false
		}
		if err := c.app.settings.Set(key, value); err != nil {
			c.app.printer.fail(err.Error())
			return false
		}
		c.app.printer.ok(fmt.Sprintf("%s updated", key))
	case "/list":
		c.list(ctx)
	case "/save":
		c.save(ctx, arg)
	case "/load":
		c.load(ctx, arg)
	case "/new":
		c.history = nil
		c.app.printer.ok("Started a new conversation.")
	default:
		c.app.printer.fail(fmt.Sprintf("Unknown command %s", command))
	}
	return false
}

func (c *chat) ask(ctx context.Context, message string) {
	outcome := c.app.runTurn(ctx, c.history, message)
	if !outcome.OK() {
		return
	}
	c.history = append(c.history, model.UserMessage(message), model.AssistantMessage(outcome.Answer))
}

func (c *chat) list(ctx context.Context) {
	names, err := c.app.sessions.List(ctx)
	if err != nil {
		c.app.printer.fail(err.Error())
		return
	}
	if len(names) == 0 {
		c.app.printer.note("No saved sessions.")
		return
	}
	c.app.printer.println(titleStyle.Render("Saved sessions:") + " " + strings.Join(names, ", "))
}

func (c *chat) save(ctx context.Context, name string) {
	if name == "" {
		c.app.printer.fail("Usage: /save <name>")
		return
	}
	path, err := c.app.sessions.Save(ctx, name, c.history)
	if err != nil {
		c.app.printer.fail(err.Error())
		return
	}
	c.app.printer.ok(fmt.Sprintf("Saved %s", path))
}

func (c *chat) load(ctx context.Context, name string) {
	if name == "" {
		c.app.printer.fail("Usage: /load <name>")
		return
	}
	history, err := c.app.sessions.Load(ctx, name)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			c.app.printer.fail("Not found.")
		} else {
			c.app.printer.fail(err.Error())
		}
		return
	}
	c.history = history
	c.app.printer.ok(fmt.Sprintf("Loaded session '%s' with %d messages.", session.Slug(name), len(history)))
}
