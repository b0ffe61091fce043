// Package discord posts messages to a Discord channel webhook.
package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/opencode-ai/agentcmd/internal/command"
	"github.com/opencode-ai/agentcmd/internal/plugin"
	"github.com/opencode-ai/agentcmd/pkg/types"
)

const Name = "discord"

// MaxMessageLength is the webhook content limit; longer messages are split.
const MaxMessageLength = 2000

type webhook struct {
	client   *plugin.Client
	url      string
	username string
}

// Register adds discord_send_message to reg.
func Register(reg *command.Registry, cfg *types.Config, client *plugin.Client) {
	w := &webhook{client: client}
	if cfg != nil && cfg.Plugins != nil && cfg.Plugins.Discord != nil {
		w.url = cfg.Plugins.Discord.WebhookURL
		w.username = cfg.Plugins.Discord.Username
	}
	reg.Register(command.NewPlugin(Name, "discord_send_message", "Send Discord Message",
		[]command.Arg{{Name: "message", Description: "Message text", Required: true}},
		w.send), plugin.Gate(cfg, Name, w.url != "", "DISCORD_WEBHOOK_URL"))
}

type payload struct {
	Content  string `json:"content"`
	Username string `json:"username,omitempty"`
}

func (w *webhook) send(ctx context.Context, input json.RawMessage, cctx *command.Context) (*command.Result, error) {
	var in struct {
		Message string `json:"message"`
	}
	if err := command.Decode(input, &in); err != nil {
		return nil, err
	}
	if in.Message == "" {
		return nil, fmt.Errorf("message is empty")
	}

	parts := split(in.Message, MaxMessageLength)
	for i, part := range parts {
		if err := w.client.JSON(ctx, http.MethodPost, w.url, nil, payload{Content: part, Username: w.username}, nil); err != nil {
			return nil, fmt.Errorf("failed to send message part %d/%d: %w", i+1, len(parts), err)
		}
	}
	return &command.Result{
		Title:    "discord",
		Output:   "Message sent to Discord.",
		Metadata: map[string]any{"parts": len(parts)},
	}, nil
}

func split(s string, limit int) []string {
	runes := []rune(s)
	var parts []string
	for len(runes) > limit {
		parts = append(parts, string(runes[:limit]))
		runes = runes[limit:]
	}
	return append(parts, string(runes))
}
