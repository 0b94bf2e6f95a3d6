package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ravituringworks/agency/pkg/domain"
)

// ContentRenderer transforms a reply before printing (e.g. markdown to ANSI).
type ContentRenderer func(string) (string, error)

// Console is an interactive read-eval-print loop over a Runner.
type Console struct {
	runner    *Runner
	sessionID string
	reader    *bufio.Reader
	writer    io.Writer
	renderer  ContentRenderer

	lines chan lineResult
}

type lineResult struct {
	text string
	err  error
}

// ConsoleOption configures a Console.
type ConsoleOption func(*Console)

// WithRenderer configures the reply renderer.
func WithRenderer(renderer ContentRenderer) ConsoleOption {
	return func(c *Console) {
		c.renderer = renderer
	}
}

// NewConsole creates a console for one session.
func NewConsole(r *Runner, sessionID string, in io.Reader, out io.Writer, opts ...ConsoleOption) *Console {
	c := &Console{
		runner:    r,
		sessionID: sessionID,
		reader:    bufio.NewReader(in),
		writer:    out,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// pump reads lines in the background so a pending read never blocks
// context cancellation.
func (c *Console) pump() {
	for {
		text, err := c.reader.ReadString('\n')
		if text != "" {
			c.lines <- lineResult{text: text}
		}
		if err != nil {
			c.lines <- lineResult{err: err}
			close(c.lines)
			return
		}
	}
}

func (c *Console) readLine(ctx context.Context, prompt string) (string, error) {
	if c.lines == nil {
		c.lines = make(chan lineResult)
		go c.pump()
	}
	fmt.Fprint(c.writer, prompt)

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res, ok := <-c.lines:
		if !ok {
			return "", io.EOF
		}
		if res.err != nil {
			return "", res.err
		}
		return strings.TrimSpace(res.text), nil
	}
}

// Confirm asks whether a tool call may run. Use it with ConfirmationMiddleware.
func (c *Console) Confirm(ctx context.Context, call domain.ToolCall) (bool, error) {
	fmt.Fprintf(c.writer, "\n[System] Tool Request: '%s' (ID: %s)\nArgs: %v\n", call.Name, call.ID, call.Args)
	answer, err := c.readLine(ctx, "Allow execution? [y/N] ")
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes", nil
}

// Run reads messages until EOF, "exit" or "quit", or ctx is done.
func (c *Console) Run(ctx context.Context) error {
	for {
		line, err := c.readLine(ctx, "> ")
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "help":
			c.help()
			continue
		case "clear":
			if err := c.runner.Sessions().Clear(ctx, c.sessionID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
				return err
			}
			fmt.Fprintln(c.writer, "Conversation history cleared.")
			continue
		case "tools":
			tools, err := c.runner.Tools(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.writer, "Available tools: %s\n", strings.Join(tools, ", "))
			continue
		}

		reply, err := c.runner.Chat(ctx, c.sessionID, line)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(c.writer, "Error: %v\n", err)
			continue
		}
		c.print(reply.Response)
	}
}

func (c *Console) print(text string) {
	if c.renderer != nil {
		if rendered, err := c.renderer(text); err == nil {
			text = rendered
		}
	}
	fmt.Fprintln(c.writer, strings.TrimSpace(text))
}

func (c *Console) help() {
	fmt.Fprintln(c.writer, "Commands:")
	fmt.Fprintln(c.writer, "  help   show this message")
	fmt.Fprintln(c.writer, "  tools  list available tools")
	fmt.Fprintln(c.writer, "  clear  clear conversation history")
	fmt.Fprintln(c.writer, "  exit   leave the chat")
}
