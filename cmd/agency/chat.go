package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/ravituringworks/agency"
	"github.com/ravituringworks/agency/internal/presentation/tui"
	"github.com/ravituringworks/agency/pkg/domain"
	"github.com/ravituringworks/agency/pkg/runner"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Chat with the agent",
	Long: `Starts an interactive chat session. With a message argument, or when stdin is not a
terminal, a single turn is answered and printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		confirm, _ := cmd.Flags().GetBool("confirm")
		plain, _ := cmd.Flags().GetBool("plain")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		interactive := len(args) == 0 && term.IsTerminal(int(os.Stdin.Fd()))

		// The console is created after the agent but asked for confirmations by it.
		var console *runner.Console
		var opts []agency.Option
		if confirm && interactive {
			opts = append(opts, agency.WithInterceptor(runner.ConfirmationMiddleware(
				func(ctx context.Context, call domain.ToolCall) (bool, error) {
					return console.Confirm(ctx, call)
				})))
		}

		a, err := newAgent(ctx, cmd, opts...)
		if err != nil {
			return err
		}
		defer a.Close()

		if !interactive {
			input := strings.Join(args, " ")
			if input == "" {
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
				input = string(data)
			}
			reply, err := a.Runner.Chat(ctx, sessionID, input)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply.Response)
			return nil
		}

		var consoleOpts []runner.ConsoleOption
		if !plain {
			width, _, err := term.GetSize(int(os.Stdout.Fd()))
			if err != nil || width <= 0 {
				width = 80
			}
			renderer, err := tui.NewRenderer(width)
			if err != nil {
				return err
			}
			consoleOpts = append(consoleOpts, runner.WithRenderer(renderer))
		}

		tui.PrintBanner(cmd.OutOrStdout(), strings.TrimSpace(agency.Version))
		console = runner.NewConsole(a.Runner, sessionID, os.Stdin, cmd.OutOrStdout(), consoleOpts...)
		return console.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringP("session", "s", "", "Session id to continue (default: a new session)")
	chatCmd.Flags().Bool("confirm", false, "Ask before every tool call")
	chatCmd.Flags().Bool("plain", false, "Print replies without markdown rendering")
}
