// Package discord implements the chat transport the mailbox bridge
// consumes: a REST client for sends and history pagination, and a
// gateway client for the live event subscription.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const defaultAPIBaseURL = "https://discord.com/api/v10"

// APIError is a non-2xx response from the REST API.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("discord api: status=%d code=%d message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("discord api: status=%d message=%s", e.StatusCode, e.Message)
}

// User is a Discord user or bot account.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Bot      bool   `json:"bot,omitempty"`
}

// Channel types the bridge cares about.
const (
	ChannelTypeGuildText          = 0
	ChannelTypeDM                 = 1
	ChannelTypeGuildAnnouncement  = 5
	ChannelTypeAnnouncementThread = 10
	ChannelTypePublicThread       = 11
	ChannelTypePrivateThread      = 12
)

// Channel is a guild channel, DM channel, or thread.
type Channel struct {
	ID       string `json:"id"`
	Type     int    `json:"type"`
	GuildID  string `json:"guild_id,omitempty"`
	Name     string `json:"name,omitempty"`
	ParentID string `json:"parent_id,omitempty"`
}

// IsThread reports whether the channel is a thread nested under a parent
// channel.
func (c Channel) IsThread() bool {
	switch c.Type {
	case ChannelTypeAnnouncementThread, ChannelTypePublicThread, ChannelTypePrivateThread:
		return true
	}
	return false
}

// IsTextBased reports whether the channel accepts plain messages.
func (c Channel) IsTextBased() bool {
	switch c.Type {
	case ChannelTypeGuildText, ChannelTypeDM, ChannelTypeGuildAnnouncement:
		return true
	}
	return c.IsThread()
}

// Guild is a server the bot has joined.
type Guild struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Message types the bridge accepts; everything else (thread starters,
// system events) is ignored.
const (
	MessageTypeDefault = 0
	MessageTypeReply   = 19
)

// MessageReference points at the message a reply quotes.
type MessageReference struct {
	MessageID string `json:"message_id,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`
}

// Message is one message as the API and gateway deliver it.
type Message struct {
	ID                string            `json:"id"`
	ChannelID         string            `json:"channel_id"`
	GuildID           string            `json:"guild_id,omitempty"`
	Author            User              `json:"author"`
	Content           string            `json:"content"`
	Timestamp         time.Time         `json:"timestamp"`
	Type              int               `json:"type"`
	Mentions          []User            `json:"mentions,omitempty"`
	MessageReference  *MessageReference `json:"message_reference,omitempty"`
	ReferencedMessage *Message          `json:"referenced_message,omitempty"`
}

// ClientOptions configures the REST client.
type ClientOptions struct {
	BaseURL    string
	HTTPClient *http.Client
	UserAgent  string
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// Client is a minimal Discord REST client covering the calls the bridge
// needs. Transient failures (429s and 5xx) are retried with exponential
// backoff, honoring Retry-After.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	userAgent  string
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// NewClient builds a REST client authenticating as a bot.
func NewClient(token string, opts ClientOptions) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	maxDelay := opts.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		token:      strings.TrimSpace(token),
		httpClient: httpClient,
		userAgent:  strings.TrimSpace(opts.UserAgent),
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
	}
}

// CurrentUser returns the bot's own account.
func (c *Client) CurrentUser(ctx context.Context) (User, error) {
	var user User
	err := c.doJSON(ctx, http.MethodGet, "/users/@me", nil, &user)
	return user, err
}

// CreateMessage posts one message to a channel or thread.
func (c *Client) CreateMessage(ctx context.Context, channelID, content string) error {
	body := map[string]string{"content": content}
	return c.doJSON(ctx, http.MethodPost, "/channels/"+channelID+"/messages", body, nil)
}

// Channel fetches one channel by id.
func (c *Client) Channel(ctx context.Context, channelID string) (Channel, error) {
	var channel Channel
	err := c.doJSON(ctx, http.MethodGet, "/channels/"+channelID, nil, &channel)
	return channel, err
}

// ChannelMessage fetches one message by id.
func (c *Client) ChannelMessage(ctx context.Context, channelID, messageID string) (Message, error) {
	var message Message
	err := c.doJSON(ctx, http.MethodGet, "/channels/"+channelID+"/messages/"+messageID, nil, &message)
	return message, err
}

// ChannelMessages fetches up to limit messages, newest first, optionally
// older than the before cursor.
func (c *Client) ChannelMessages(ctx context.Context, channelID, before string, limit int) ([]Message, error) {
	path := fmt.Sprintf("/channels/%s/messages?limit=%d", channelID, limit)
	if before != "" {
		path += "&before=" + before
	}
	var messages []Message
	err := c.doJSON(ctx, http.MethodGet, path, nil, &messages)
	return messages, err
}

// CurrentUserGuilds lists the guilds the bot has joined.
func (c *Client) CurrentUserGuilds(ctx context.Context) ([]Guild, error) {
	var guilds []Guild
	err := c.doJSON(ctx, http.MethodGet, "/users/@me/guilds", nil, &guilds)
	return guilds, err
}

// GuildChannels lists every channel of a guild.
func (c *Client) GuildChannels(ctx context.Context, guildID string) ([]Channel, error) {
	var channels []Channel
	err := c.doJSON(ctx, http.MethodGet, "/guilds/"+guildID+"/channels", nil, &channels)
	return channels, err
}

// GatewayURL asks the API where to open the websocket.
func (c *Client) GatewayURL(ctx context.Context) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/gateway/bot", nil, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

// OverwriteCommands registers the application's slash commands, replacing
// any previous set.
func (c *Client) OverwriteCommands(ctx context.Context, applicationID string, commands []ApplicationCommand) error {
	return c.doJSON(ctx, http.MethodPut, "/applications/"+applicationID+"/commands", commands, nil)
}

// CreateInteractionResponse answers an interaction within its 3-second
// window.
func (c *Client) CreateInteractionResponse(ctx context.Context, interactionID, token string, response InteractionResponse) error {
	return c.doJSON(ctx, http.MethodPost, "/interactions/"+interactionID+"/"+token+"/callback", response, nil)
}

// CreateFollowupMessage posts an additional message on an already-
// answered interaction.
func (c *Client) CreateFollowupMessage(ctx context.Context, applicationID, token, content string) error {
	body := map[string]string{"content": content}
	return c.doJSON(ctx, http.MethodPost, "/webhooks/"+applicationID+"/"+token, body, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}
	for attempt := 0; ; attempt++ {
		var bodyReader io.Reader
		if bodyBytes != nil {
			bodyReader = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bot "+c.token)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt < c.maxRetries {
				if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, "")); waitErr != nil {
					return waitErr
				}
				continue
			}
			return err
		}
		payload, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return readErr
		}

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			if out == nil || len(payload) == 0 {
				return nil
			}
			return json.Unmarshal(payload, out)
		}

		if (resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode <= 599)) && attempt < c.maxRetries {
			if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return waitErr
			}
			continue
		}

		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(payload))}
		var parsed struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(payload, &parsed) == nil {
			apiErr.Code = parsed.Code
			if strings.TrimSpace(parsed.Message) != "" {
				apiErr.Message = parsed.Message
			}
		}
		return apiErr
	}
}

func (c *Client) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	if retryAfter := parseRetryAfter(retryAfterHeader); retryAfter > 0 {
		if retryAfter > c.maxDelay {
			return c.maxDelay
		}
		return retryAfter
	}
	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.maxDelay {
			return c.maxDelay
		}
	}
	if delay > c.maxDelay {
		return c.maxDelay
	}
	return delay
}

// parseRetryAfter accepts both integral and fractional seconds; Discord
// sends fractional values on rate limits.
func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	seconds, err := strconv.ParseFloat(header, 64)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
