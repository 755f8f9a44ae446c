package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/agentworkforce/scribe/internal/mailbox"
)

const defaultGatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"

// Gateway intents: guilds, guild messages, direct messages, message
// content.
const defaultIntents = 1<<0 | 1<<9 | 1<<12 | 1<<15

// Gateway opcodes.
const (
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opReconnect      = 7
	opInvalidSession = 9
	opHello          = 10
	opHeartbeatACK   = 11
)

var errReconnect = errors.New("gateway requested reconnect")

type gatewayPayload struct {
	Op   int             `json:"op"`
	Data json.RawMessage `json:"d,omitempty"`
	Seq  *int64          `json:"s,omitempty"`
	Type string          `json:"t,omitempty"`
}

// MessageHandler receives live messages. mentioned reports whether the
// message carries a direct mention of the bridge user.
type MessageHandler func(ctx context.Context, ev mailbox.InboundEvent, mentioned bool)

// InteractionHandler receives slash-command invocations.
type InteractionHandler func(ctx context.Context, interaction Interaction)

// Gateway maintains the live event subscription over a websocket:
// hello/identify/heartbeat plus dispatch of MESSAGE_CREATE and
// INTERACTION_CREATE. It reconnects on any session failure until the
// context is cancelled.
type Gateway struct {
	Token    string
	URL      string // empty means the public gateway endpoint
	Intents  int    // zero means defaultIntents
	Resolver *Transport
	Logger   mailbox.Logger

	OnMessage     MessageHandler
	OnReady       func(user User)
	OnInteraction InteractionHandler

	mu     sync.Mutex
	conn   *websocket.Conn
	seq    int64
	selfID string
}

// Run connects and processes events until ctx is cancelled. Session
// failures other than cancellation are logged and followed by a
// reconnect after a short pause.
func (g *Gateway) Run(ctx context.Context) error {
	for {
		err := g.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if g.Logger != nil {
			g.Logger.Printf("gateway session ended: %v; reconnecting", err)
		}
		if err := sleepContext(ctx, 2*time.Second); err != nil {
			return err
		}
	}
}

func (g *Gateway) session(ctx context.Context) error {
	url := g.URL
	if url == "" {
		url = defaultGatewayURL
	}
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "shutting down")
	conn.SetReadLimit(1 << 22)
	g.mu.Lock()
	g.conn = conn
	g.mu.Unlock()

	var hello gatewayPayload
	if err := wsjson.Read(ctx, conn, &hello); err != nil {
		return err
	}
	if hello.Op != opHello {
		return fmt.Errorf("expected hello, got op %d", hello.Op)
	}
	var helloData struct {
		HeartbeatInterval int `json:"heartbeat_interval"`
	}
	if err := json.Unmarshal(hello.Data, &helloData); err != nil {
		return err
	}
	if err := g.identify(ctx); err != nil {
		return err
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	heartbeatErr := make(chan error, 1)
	go func() {
		heartbeatErr <- g.heartbeatLoop(sessionCtx, time.Duration(helloData.HeartbeatInterval)*time.Millisecond)
	}()

	for {
		select {
		case err := <-heartbeatErr:
			return err
		default:
		}
		var payload gatewayPayload
		if err := wsjson.Read(ctx, conn, &payload); err != nil {
			return err
		}
		if payload.Seq != nil {
			g.mu.Lock()
			g.seq = *payload.Seq
			g.mu.Unlock()
		}
		switch payload.Op {
		case opDispatch:
			g.dispatch(ctx, payload)
		case opHeartbeat:
			if err := g.sendHeartbeat(ctx); err != nil {
				return err
			}
		case opReconnect, opInvalidSession:
			return errReconnect
		case opHeartbeatACK:
		}
	}
}

func (g *Gateway) identify(ctx context.Context) error {
	intents := g.Intents
	if intents == 0 {
		intents = defaultIntents
	}
	payload := map[string]any{
		"op": opIdentify,
		"d": map[string]any{
			"token":   g.Token,
			"intents": intents,
			"properties": map[string]string{
				"os":      "linux",
				"browser": "scribe",
				"device":  "scribe",
			},
		},
	}
	return g.write(ctx, payload)
}

func (g *Gateway) heartbeatLoop(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 41250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := g.sendHeartbeat(ctx); err != nil {
				return err
			}
		}
	}
}

func (g *Gateway) sendHeartbeat(ctx context.Context) error {
	g.mu.Lock()
	seq := g.seq
	g.mu.Unlock()
	payload := map[string]any{"op": opHeartbeat, "d": seq}
	return g.write(ctx, payload)
}

func (g *Gateway) write(ctx context.Context, payload any) error {
	g.mu.Lock()
	conn := g.conn
	g.mu.Unlock()
	if conn == nil {
		return errors.New("gateway not connected")
	}
	return wsjson.Write(ctx, conn, payload)
}

func (g *Gateway) dispatch(ctx context.Context, payload gatewayPayload) {
	switch payload.Type {
	case "READY":
		var ready struct {
			User User `json:"user"`
		}
		if err := json.Unmarshal(payload.Data, &ready); err != nil {
			if g.Logger != nil {
				g.Logger.Printf("failed to decode READY: %v", err)
			}
			return
		}
		g.mu.Lock()
		g.selfID = ready.User.ID
		g.mu.Unlock()
		if g.OnReady != nil {
			g.OnReady(ready.User)
		}
	case "MESSAGE_CREATE":
		var message Message
		if err := json.Unmarshal(payload.Data, &message); err != nil {
			if g.Logger != nil {
				g.Logger.Printf("failed to decode MESSAGE_CREATE: %v", err)
			}
			return
		}
		g.handleMessage(ctx, message)
	case "INTERACTION_CREATE":
		if g.OnInteraction == nil {
			return
		}
		var interaction Interaction
		if err := json.Unmarshal(payload.Data, &interaction); err != nil {
			if g.Logger != nil {
				g.Logger.Printf("failed to decode INTERACTION_CREATE: %v", err)
			}
			return
		}
		g.OnInteraction(ctx, interaction)
	}
}

// SelfID returns the bridge user's id once READY has arrived.
func (g *Gateway) SelfID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.selfID
}

func (g *Gateway) handleMessage(ctx context.Context, message Message) {
	if g.OnMessage == nil || message.Author.Bot {
		return
	}
	if message.Type != MessageTypeDefault && message.Type != MessageTypeReply {
		return
	}

	conversationID := message.ChannelID
	threadID := ""
	if g.Resolver != nil {
		if channel, err := g.Resolver.ChannelInfo(ctx, message.ChannelID); err == nil && channel.IsThread() && channel.ParentID != "" {
			conversationID = channel.ParentID
			threadID = message.ChannelID
		}
	}

	quoted := ""
	if message.ReferencedMessage != nil {
		quoted = message.ReferencedMessage.Content
	} else if ref := message.MessageReference; ref != nil && ref.MessageID != "" && g.Resolver != nil {
		refChannel := ref.ChannelID
		if refChannel == "" {
			refChannel = message.ChannelID
		}
		referenced, err := g.Resolver.rest.ChannelMessage(ctx, refChannel, ref.MessageID)
		if err != nil {
			// The quote is context, not the payload; deliver without it.
			if g.Logger != nil {
				g.Logger.Printf("failed to fetch referenced message %s: %v", ref.MessageID, err)
			}
		} else {
			quoted = referenced.Content
		}
	}

	selfID := g.SelfID()
	mentioned := false
	for _, mention := range message.Mentions {
		if mention.ID == selfID {
			mentioned = true
			break
		}
	}

	g.OnMessage(ctx, mailbox.InboundEvent{
		ConversationID: conversationID,
		ThreadID:       threadID,
		Turn: mailbox.Turn{
			ID:            message.ID,
			AuthorID:      message.Author.ID,
			Author:        message.Author.Username,
			Content:       message.Content,
			QuotedContent: quoted,
			CreatedAt:     message.Timestamp,
		},
	}, mentioned)
}
