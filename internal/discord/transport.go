package discord

import (
	"context"
	"errors"
	"sync"

	"github.com/agentworkforce/scribe/internal/mailbox"
)

// Transport adapts the REST client to the capability set the mailbox
// bridge consumes. Channel lookups are cached for the life of the
// process; channels neither appear nor change parentage often enough to
// matter, and a stale entry only costs one failed send.
type Transport struct {
	rest *Client

	mu       sync.Mutex
	channels map[string]Channel
}

// NewTransport wraps a REST client.
func NewTransport(rest *Client) *Transport {
	return &Transport{rest: rest, channels: map[string]Channel{}}
}

// Send posts one piece of text. Failures map into the bridge's
// taxonomy: unknown destinations are unavailable channels, everything
// else is a transport rejection that the next poll pass retries.
func (t *Transport) Send(ctx context.Context, destinationID, text string) error {
	err := t.rest.CreateMessage(ctx, destinationID, text)
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == 404 {
		return &mailbox.ChannelUnavailableError{Destination: destinationID}
	}
	return &mailbox.TransportError{Destination: destinationID, Err: err}
}

// ResolveDestination confirms the destination exists and accepts text.
func (t *Transport) ResolveDestination(ctx context.Context, id string) error {
	channel, err := t.ChannelInfo(ctx, id)
	if err != nil {
		return &mailbox.ChannelUnavailableError{Destination: id}
	}
	if !channel.IsTextBased() {
		return &mailbox.ChannelUnavailableError{Destination: id}
	}
	return nil
}

// FetchPage returns up to limit turns older than before, newest first.
func (t *Transport) FetchPage(ctx context.Context, conversationID, before string, limit int) ([]mailbox.Turn, error) {
	messages, err := t.rest.ChannelMessages(ctx, conversationID, before, limit)
	if err != nil {
		return nil, err
	}
	turns := make([]mailbox.Turn, len(messages))
	for i, message := range messages {
		turns[i] = mailbox.Turn{
			ID:        message.ID,
			AuthorID:  message.Author.ID,
			Author:    message.Author.Username,
			Content:   message.Content,
			CreatedAt: message.Timestamp,
		}
	}
	return turns, nil
}

// ListConversations returns every text channel of every joined guild.
func (t *Transport) ListConversations(ctx context.Context) ([]mailbox.Conversation, error) {
	guilds, err := t.rest.CurrentUserGuilds(ctx)
	if err != nil {
		return nil, err
	}
	var conversations []mailbox.Conversation
	for _, guild := range guilds {
		channels, err := t.rest.GuildChannels(ctx, guild.ID)
		if err != nil {
			return nil, err
		}
		for _, channel := range channels {
			if channel.Type != ChannelTypeGuildText {
				continue
			}
			conversations = append(conversations, mailbox.Conversation{ID: channel.ID, DisplayName: channel.Name})
		}
	}
	return conversations, nil
}

// ChannelInfo fetches a channel through the cache.
func (t *Transport) ChannelInfo(ctx context.Context, id string) (Channel, error) {
	t.mu.Lock()
	cached, ok := t.channels[id]
	t.mu.Unlock()
	if ok {
		return cached, nil
	}
	channel, err := t.rest.Channel(ctx, id)
	if err != nil {
		return Channel{}, err
	}
	t.mu.Lock()
	t.channels[id] = channel
	t.mu.Unlock()
	return channel, nil
}
