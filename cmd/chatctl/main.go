// Command chatctl is a terminal client for duochat. It signs in over the REST
// API and mirrors the live channel into a peer.Store.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"duochat/internal/pkg/logx"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	server   string
	email    string
	password string
	debug    bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "chatctl",
		Short:        "Terminal client for a duochat server",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logx.InitGlobalLogger(opts.debug)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.server, "server", envOr("DUOCHAT_SERVER", "http://localhost:5001"), "server base URL")
	flags.StringVar(&opts.email, "email", os.Getenv("DUOCHAT_EMAIL"), "account email")
	flags.StringVar(&opts.password, "password", os.Getenv("DUOCHAT_PASSWORD"), "account password")
	flags.BoolVar(&opts.debug, "debug", false, "log at debug level")

	cmd.AddCommand(
		newSignupCommand(opts),
		newContactsCommand(opts),
		newSendCommand(opts),
		newChatCommand(opts),
	)

	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
