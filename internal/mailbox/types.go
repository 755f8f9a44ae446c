// Package mailbox implements the bidirectional bridge between a chat
// transport and a filesystem task-queue convention. Inbound conversation
// turns become files in per-conversation inbox directories; reply files
// dropped into outbox directories are delivered back to the conversation
// and archived into sent directories. Filenames are the only state.
package mailbox

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrChannelUnavailable = errors.New("channel unavailable")
	ErrTransport          = errors.New("transport rejected send")
	ErrInvalidInput       = errors.New("invalid input")
)

// ChannelUnavailableError reports a destination that could not be resolved
// on the transport. The outbox file stays in place and is retried on the
// next poll pass.
type ChannelUnavailableError struct {
	Destination string
}

func (e *ChannelUnavailableError) Error() string {
	return fmt.Sprintf("channel %s is not text-based or not found", e.Destination)
}

func (e *ChannelUnavailableError) Is(target error) bool {
	return target == ErrChannelUnavailable
}

// TransportError reports a send call rejected by the transport. Retried on
// the next poll pass with no backoff beyond the poll interval.
type TransportError struct {
	Destination string
	Err         error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("send to %s failed: %v", e.Destination, e.Err)
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Turn is one unit of conversational content, inbound or outbound.
type Turn struct {
	ID            string
	AuthorID      string // stable transport id of the sender
	Author        string // display name of the sender
	Content       string
	QuotedContent string
	CreatedAt     time.Time
}

// InboundEvent is a live turn delivered by the transport subscription.
// When the turn arrived in a sub-thread, ConversationID names the parent
// conversation and ThreadID the sub-thread; otherwise ThreadID is empty.
type InboundEvent struct {
	ConversationID string
	ThreadID       string
	Turn           Turn
}

// Conversation is a top-level addressable chat context.
type Conversation struct {
	ID          string
	DisplayName string
}

// Transport is the capability set the bridge consumes. Implementations
// live outside this package; the Discord client is the production one.
type Transport interface {
	// Send delivers one transport-sized piece of text to a destination.
	Send(ctx context.Context, destinationID, text string) error
	// ResolveDestination checks that a destination exists and accepts
	// text. Fails with a ChannelUnavailableError otherwise.
	ResolveDestination(ctx context.Context, id string) error
	// FetchPage returns up to limit turns older than the before cursor,
	// newest first. An empty page signals the end of history.
	FetchPage(ctx context.Context, conversationID, before string, limit int) ([]Turn, error)
	// ListConversations returns every conversation visible to the bridge.
	ListConversations(ctx context.Context) ([]Conversation, error)
}

// Logger is the minimal logging surface components accept. log.Default()
// satisfies it.
type Logger interface {
	Printf(format string, args ...any)
}
