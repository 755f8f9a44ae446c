package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/agentworkforce/scribe/internal/discord"
	"github.com/agentworkforce/scribe/internal/mailbox"
	"github.com/agentworkforce/scribe/internal/provision"
)

func main() {
	token := flag.String("token", strings.TrimSpace(os.Getenv("DISCORD_BOT_TOKEN")), "bot token")
	taskRoot := flag.String("task-root", envOrDefault("TASK_ROOT", "/tasks"), "task mailbox root directory")
	ownerID := flag.String("owner", strings.TrimSpace(os.Getenv("OWNER_ID")), "only process messages from this user id")
	agentName := flag.String("agent-name", strings.TrimSpace(os.Getenv("AGENT_NAME")), "only process messages addressing this name")
	maximusDir := flag.String("maximus-dir", envOrDefault("MAXIMUS_DIR", "/opt/maximus"), "host deployment dir used in provision stubs")
	applicationID := flag.String("application-id", strings.TrimSpace(os.Getenv("DISCORD_APPLICATION_ID")), "application id for slash commands (empty = bot user id)")
	pollInterval := flag.Duration("poll-interval", durationEnv("POLL_INTERVAL", mailbox.DefaultPollInterval), "outbox poll interval")
	chunkLimit := flag.Int("chunk-limit", intEnv("CHUNK_LIMIT", mailbox.DefaultChunkLimit), "max characters per outbound message")
	flag.Parse()

	if strings.TrimSpace(*token) == "" {
		log.Fatalf("token is required (--token or DISCORD_BOT_TOKEN)")
	}
	if *pollInterval <= 0 {
		*pollInterval = mailbox.DefaultPollInterval
	}
	if *chunkLimit <= 0 {
		*chunkLimit = mailbox.DefaultChunkLimit
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rest := discord.NewClient(*token, discord.ClientOptions{UserAgent: "scribe"})
	self, err := rest.CurrentUser(rootCtx)
	if err != nil {
		log.Fatalf("failed to authenticate: %v", err)
	}
	log.Printf("logged in as %s", self.Username)

	transport := discord.NewTransport(rest)
	conversations, err := transport.ListConversations(rootCtx)
	if err != nil {
		log.Fatalf("failed to list channels: %v", err)
	}
	slugs := mailbox.NewSlugTable(conversations)
	layout := mailbox.Layout{Root: *taskRoot, Transport: "discord"}
	for _, slug := range slugs.Slugs() {
		for _, box := range []string{"inbox", "outbox", "sent"} {
			if err := os.MkdirAll(layout.MailboxPath(slug, "", box), 0o755); err != nil {
				log.Fatalf("failed to prepare %s for #%s: %v", box, slug, err)
			}
		}
	}
	log.Printf("watching %d channels under %s", len(slugs.Slugs()), layout.Base())

	writer := &mailbox.InboxWriter{
		Layout:    layout,
		Slugs:     slugs,
		AgentName: *agentName,
		SelfID:    self.ID,
		Logger:    log.Default(),
	}
	filter := mailbox.InboxFilter{OwnerID: *ownerID, AgentName: *agentName}
	sender := &mailbox.ReplySender{
		Layout:     layout,
		Slugs:      slugs,
		Transport:  transport,
		ChunkLimit: *chunkLimit,
		Logger:     log.Default(),
	}
	poller := &mailbox.OutboxPoller{
		Layout:   layout,
		Sender:   sender,
		Interval: *pollInterval,
		Logger:   log.Default(),
	}

	var wake <-chan struct{}
	watcher, err := mailbox.NewOutboxWatcher(layout, log.Default())
	if err != nil {
		log.Printf("outbox watcher unavailable, relying on interval polling: %v", err)
	} else {
		wake = watcher.Wake()
		go watcher.Run(rootCtx)
	}
	go poller.RunWithWake(rootCtx, wake)

	renderer, err := provision.NewRenderer()
	if err != nil {
		log.Fatalf("failed to initialize provisioner: %v", err)
	}
	commands := &discord.Commands{
		Rest:       rest,
		Renderer:   renderer,
		MaximusDir: *maximusDir,
		ChunkLimit: *chunkLimit,
		Logger:     log.Default(),
	}
	appID := *applicationID
	if appID == "" {
		appID = self.ID
	}
	if err := rest.OverwriteCommands(rootCtx, appID, commands.Definitions()); err != nil {
		log.Printf("failed to register slash commands: %v", err)
	}

	gateway := &discord.Gateway{
		Token:    *token,
		Resolver: transport,
		Logger:   log.Default(),
		OnMessage: func(ctx context.Context, ev mailbox.InboundEvent, mentioned bool) {
			if !filter.Allow(ev, mentioned) {
				return
			}
			if _, err := writer.Write(ev); err != nil {
				log.Printf("failed to write inbox file for %s: %v", ev.Turn.ID, err)
			}
		},
		OnInteraction: commands.Handle,
	}
	if err := gateway.Run(rootCtx); err != nil && rootCtx.Err() == nil {
		log.Fatalf("gateway stopped: %v", err)
	}
	log.Printf("shutting down: %v", rootCtx.Err())
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func durationEnv(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("invalid %s=%q, using fallback %s", name, raw, fallback.String())
		return fallback
	}
	return value
}

func intEnv(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("invalid %s=%q, using fallback %d", name, raw, fallback)
		return fallback
	}
	return value
}
