package main

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/PabloGalante/lawless-ai/internal/domain"
)

type messageOut struct {
	Role string    `yaml:"role"`
	Text string    `yaml:"text"`
	At   time.Time `yaml:"at"`
}

type conversationOut struct {
	ID        string       `yaml:"id"`
	Title     string       `yaml:"title"`
	Domain    string       `yaml:"domain"`
	Preview   string       `yaml:"preview"`
	UpdatedAt time.Time    `yaml:"updated_at"`
	Count     int          `yaml:"message_count"`
	Messages  []messageOut `yaml:"messages,omitempty"`
}

func toConversationOut(c *domain.Conversation, withMessages bool) conversationOut {
	out := conversationOut{
		ID:        string(c.ID),
		Title:     c.Title,
		Domain:    string(c.Domain),
		Preview:   c.Preview,
		UpdatedAt: c.UpdatedAt,
		Count:     len(c.Messages),
	}
	if withMessages {
		for _, m := range c.Messages {
			out.Messages = append(out.Messages, messageOut{
				Role: string(m.Role()),
				Text: m.Text,
				At:   m.CreatedAt,
			})
		}
	}
	return out
}

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "Print stored conversations as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMessages, _ := cmd.Flags().GetBool("messages")

		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		res := a.store.LoadAll(cmd.Context())
		if res.Failed() {
			return errors.Wrap(res.Err, "loading conversations")
		}

		out := make([]conversationOut, 0, len(res.Conversations))
		for _, c := range res.Conversations {
			out = append(out, toConversationOut(c, withMessages))
		}

		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(map[string]any{
			"source":        res.Outcome.String(),
			"conversations": out,
		})
	},
}

func init() {
	conversationsCmd.Flags().Bool("messages", false, "include every message")
}
