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

	"github.com/agentworkforce/scribe/internal/discord"
	"github.com/agentworkforce/scribe/internal/mailbox"
)

// scribe-history backfills channel history into the task mailbox tree
// and exits. It is a separate one-shot binary so a backfill never races
// the live bridge over the same files.
func main() {
	token := flag.String("token", strings.TrimSpace(os.Getenv("DISCORD_BOT_TOKEN")), "bot token")
	taskRoot := flag.String("task-root", envOrDefault("TASK_ROOT", "/tasks"), "task mailbox root directory")
	pageSize := flag.Int("page-size", intEnv("HISTORY_PAGE_SIZE", mailbox.DefaultBackfillPageSize), "messages per history page")
	flag.Parse()

	if strings.TrimSpace(*token) == "" {
		log.Fatalf("token is required (--token or DISCORD_BOT_TOKEN)")
	}
	if *pageSize <= 0 {
		*pageSize = mailbox.DefaultBackfillPageSize
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rest := discord.NewClient(*token, discord.ClientOptions{UserAgent: "scribe-history"})
	self, err := rest.CurrentUser(ctx)
	if err != nil {
		log.Fatalf("failed to authenticate: %v", err)
	}
	log.Printf("backfilling as %s", self.Username)

	backfill := &mailbox.HistoryBackfill{
		Layout:    mailbox.Layout{Root: *taskRoot, Transport: "discord"},
		Transport: discord.NewTransport(rest),
		PageSize:  *pageSize,
		Logger:    log.Default(),
	}
	if err := backfill.Run(ctx); err != nil {
		log.Fatalf("backfill failed: %v", err)
	}
	log.Printf("backfill complete")
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
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
