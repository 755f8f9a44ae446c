package discord

import (
	"encoding/json"
)

// Interaction types.
const (
	InteractionTypePing               = 1
	InteractionTypeApplicationCommand = 2
)

// Interaction response types.
const (
	InteractionResponsePong                     = 1
	InteractionResponseChannelMessageWithSource = 4
)

// MessageFlagEphemeral makes an interaction reply visible only to the
// invoking user.
const MessageFlagEphemeral = 1 << 6

// Command option types.
const (
	OptionTypeString  = 3
	OptionTypeBoolean = 5
	OptionTypeChannel = 7
)

// ApplicationCommand declares one slash command.
type ApplicationCommand struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Options     []CommandOption `json:"options,omitempty"`
}

// CommandOption declares one parameter of a slash command.
type CommandOption struct {
	Type         int    `json:"type"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Required     bool   `json:"required,omitempty"`
	ChannelTypes []int  `json:"channel_types,omitempty"`
}

// Interaction is a slash-command invocation delivered by the gateway.
type Interaction struct {
	ID            string          `json:"id"`
	ApplicationID string          `json:"application_id"`
	Type          int             `json:"type"`
	Token         string          `json:"token"`
	GuildID       string          `json:"guild_id,omitempty"`
	Data          InteractionData `json:"data"`
}

// InteractionData carries the invoked command and its arguments.
type InteractionData struct {
	Name    string              `json:"name"`
	Options []InteractionOption `json:"options,omitempty"`
}

// InteractionOption is one provided argument.
type InteractionOption struct {
	Name  string          `json:"name"`
	Type  int             `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

// StringOption returns a string (or channel id) argument by name, empty
// when absent.
func (i Interaction) StringOption(name string) string {
	for _, option := range i.Data.Options {
		if option.Name != name {
			continue
		}
		var value string
		if json.Unmarshal(option.Value, &value) == nil {
			return value
		}
	}
	return ""
}

// BoolOption returns a boolean argument by name, false when absent.
func (i Interaction) BoolOption(name string) bool {
	for _, option := range i.Data.Options {
		if option.Name != name {
			continue
		}
		var value bool
		if json.Unmarshal(option.Value, &value) == nil {
			return value
		}
	}
	return false
}

// InteractionResponse answers an interaction.
type InteractionResponse struct {
	Type int                      `json:"type"`
	Data *InteractionResponseData `json:"data,omitempty"`
}

// InteractionResponseData is the message body of an interaction reply.
type InteractionResponseData struct {
	Content string `json:"content,omitempty"`
	Flags   int    `json:"flags,omitempty"`
}
