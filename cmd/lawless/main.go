package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/PabloGalante/lawless-ai/internal/config"
	"github.com/PabloGalante/lawless-ai/internal/observability"
)

var (
	v   = config.New()
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "lawless",
	Short:         "Lawless AI: domain specific assistant with synced conversation history",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if path, _ := cmd.Flags().GetString("config"); path != "" {
			v.SetConfigFile(path)
		}

		var err error
		cfg, err = config.Load(v)
		if err != nil {
			return err
		}
		observability.Configure(os.Stderr, cfg.LogLevel)
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default: ./lawless.yaml or ./config/lawless.yaml)")
	flags.String("mode", "", "local or remote, picks the default backends")
	flags.String("log-level", "", "debug, info, warn or error")
	flags.String("storage", "", "remote store: postgres, firestore, memory or none")
	flags.String("completion", "", "completion backend: proxy, openai, vertex or mock")

	for key, name := range map[string]string{
		"mode":               "mode",
		"log_level":          "log-level",
		"storage.backend":    "storage",
		"completion.backend": "completion",
	} {
		cobra.CheckErr(v.BindPFlag(key, flags.Lookup(name)))
	}

	rootCmd.AddCommand(serveCmd, chatCmd, conversationsCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
