package main

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/PabloGalante/lawless-ai/internal/adapters/cli"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat in the terminal",
	Long: `Chat in the terminal. Conversations are stored like the server does,
so point storage at the same backend to share history. With
--completion proxy the replies come from a running "lawless serve".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		a.svc.Load(ctx)
		return cli.NewChat(a.svc, os.Stdin, os.Stdout).Run(ctx)
	},
}
