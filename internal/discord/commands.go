package discord

import (
	"context"
	"errors"

	"github.com/agentworkforce/scribe/internal/mailbox"
	"github.com/agentworkforce/scribe/internal/provision"
)

// Commands serves the /provision and /provision-all slash commands.
// Parameter problems come back to the invoking user as an ephemeral
// validation message; rendered stubs are posted chunked like any other
// reply.
type Commands struct {
	Rest       *Client
	Renderer   *provision.Renderer
	MaximusDir string
	ChunkLimit int
	Logger     mailbox.Logger
}

func authOptions() []CommandOption {
	return []CommandOption{
		{Type: OptionTypeBoolean, Name: "credentials", Description: "Mount agent credentials file"},
		{Type: OptionTypeBoolean, Name: "claude-oauth-token", Description: "Pass CLAUDE_CODE_OAUTH_TOKEN env var"},
		{Type: OptionTypeBoolean, Name: "anthropic-api-key", Description: "Pass ANTHROPIC_API_KEY env var"},
		{Type: OptionTypeBoolean, Name: "gh-credentials", Description: "Mount GitHub CLI credentials"},
		{Type: OptionTypeBoolean, Name: "gh-token", Description: "Pass GH_TOKEN env var"},
		{Type: OptionTypeBoolean, Name: "ssh", Description: "Mount SSH key for git push access"},
	}
}

// Definitions declares the command set to register with the
// application.
func (c *Commands) Definitions() []ApplicationCommand {
	provisionOptions := []CommandOption{
		{Type: OptionTypeString, Name: "name", Description: "Service name suffix (e.g. steward)", Required: true},
		{Type: OptionTypeChannel, Name: "channel", Description: "Channel for task routing", Required: true, ChannelTypes: []int{ChannelTypeGuildText}},
		{Type: OptionTypeString, Name: "codebase", Description: "Absolute path to project dir (empty = no mount)"},
		{Type: OptionTypeString, Name: "mounts", Description: "Comma-separated host:container[:mode] mounts"},
	}
	return []ApplicationCommand{
		{
			Name:        "provision",
			Description: "Generate a docker-compose stub for a new agent instance",
			Options:     append(provisionOptions, authOptions()...),
		},
		{
			Name:        "provision-all",
			Description: "Generate docker-compose stubs for all visible channels",
			Options:     authOptions(),
		},
	}
}

// Handle dispatches one interaction.
func (c *Commands) Handle(ctx context.Context, interaction Interaction) {
	if interaction.Type != InteractionTypeApplicationCommand {
		return
	}
	switch interaction.Data.Name {
	case "provision":
		c.provisionOne(ctx, interaction)
	case "provision-all":
		c.provisionAll(ctx, interaction)
	}
}

func (c *Commands) authParams(interaction Interaction) provision.Params {
	return provision.Params{
		MaximusDir:       c.MaximusDir,
		Credentials:      interaction.BoolOption("credentials"),
		ClaudeOAuthToken: interaction.BoolOption("claude-oauth-token"),
		AnthropicAPIKey:  interaction.BoolOption("anthropic-api-key"),
		GHCredentials:    interaction.BoolOption("gh-credentials"),
		GHToken:          interaction.BoolOption("gh-token"),
		SSH:              interaction.BoolOption("ssh"),
	}
}

func (c *Commands) provisionOne(ctx context.Context, interaction Interaction) {
	params := c.authParams(interaction)
	params.Name = interaction.StringOption("name")
	params.ChannelID = interaction.StringOption("channel")
	params.Codebase = interaction.StringOption("codebase")
	params.Mounts = provision.ParseMounts(interaction.StringOption("mounts"))

	stub, err := c.Renderer.Render(params)
	if err != nil {
		c.replyError(ctx, interaction, err)
		return
	}
	c.replyChunked(ctx, interaction, "```yaml\n"+stub+"\n```")
}

func (c *Commands) provisionAll(ctx context.Context, interaction Interaction) {
	channels, err := c.Rest.GuildChannels(ctx, interaction.GuildID)
	if err != nil {
		c.replyError(ctx, interaction, errors.New("Failed to list channels."))
		return
	}
	base := c.authParams(interaction)

	replied := false
	for _, channel := range channels {
		if channel.Type != ChannelTypeGuildText {
			continue
		}
		params := base
		params.Name = mailbox.Slug(channel.Name)
		params.ChannelID = channel.ID
		stub, err := c.Renderer.Render(params)
		if err != nil {
			if !replied {
				c.replyError(ctx, interaction, err)
				replied = true
			}
			return
		}
		reply := "```yaml\n" + stub + "\n```"
		if !replied {
			c.reply(ctx, interaction, reply, 0)
			replied = true
		} else {
			c.followUp(ctx, interaction, reply)
		}
	}
	if !replied {
		c.replyError(ctx, interaction, errors.New("No visible text channels found."))
	}
}

func (c *Commands) replyChunked(ctx context.Context, interaction Interaction, content string) {
	limit := c.ChunkLimit
	if limit <= 0 {
		limit = mailbox.DefaultChunkLimit
	}
	pieces := mailbox.Chunk(content, limit)
	c.reply(ctx, interaction, pieces[0], 0)
	for _, piece := range pieces[1:] {
		c.followUp(ctx, interaction, piece)
	}
}

func (c *Commands) replyError(ctx context.Context, interaction Interaction, err error) {
	c.reply(ctx, interaction, err.Error(), MessageFlagEphemeral)
}

func (c *Commands) reply(ctx context.Context, interaction Interaction, content string, flags int) {
	response := InteractionResponse{
		Type: InteractionResponseChannelMessageWithSource,
		Data: &InteractionResponseData{Content: content, Flags: flags},
	}
	if err := c.Rest.CreateInteractionResponse(ctx, interaction.ID, interaction.Token, response); err != nil && c.Logger != nil {
		c.Logger.Printf("failed to answer /%s: %v", interaction.Data.Name, err)
	}
}

func (c *Commands) followUp(ctx context.Context, interaction Interaction, content string) {
	if err := c.Rest.CreateFollowupMessage(ctx, interaction.ApplicationID, interaction.Token, content); err != nil && c.Logger != nil {
		c.Logger.Printf("failed to follow up /%s: %v", interaction.Data.Name, err)
	}
}
