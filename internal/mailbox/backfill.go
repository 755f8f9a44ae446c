package mailbox

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// DefaultBackfillPageSize bounds each history fetch.
const DefaultBackfillPageSize = 100

// HistoryBackfill walks every conversation's full message history and
// writes each turn under the conversation's history directory. Runs are
// one-shot and idempotent: existing files are skipped, the pagination
// cursor is never persisted, and re-running after an interruption is
// always safe. Not meant to run concurrently with live polling on the
// same tree.
type HistoryBackfill struct {
	Layout    Layout
	Transport Transport
	// PageSize bounds each fetch. Zero means DefaultBackfillPageSize.
	PageSize int
	Logger   Logger
}

// Run discovers conversations and backfills each one to exhaustion. A
// failing conversation is logged and does not stop the others.
func (b *HistoryBackfill) Run(ctx context.Context) error {
	conversations, err := b.Transport.ListConversations(ctx)
	if err != nil {
		return err
	}
	slugs := NewSlugTable(conversations)
	for _, conversation := range conversations {
		slug, _ := slugs.SlugFor(conversation.ID)
		written, err := b.fillConversation(ctx, conversation, slug)
		if err != nil {
			if b.Logger != nil {
				b.Logger.Printf("backfill of #%s failed: %v", slug, err)
			}
			continue
		}
		if b.Logger != nil {
			b.Logger.Printf("#%s: %d messages", slug, written)
		}
	}
	return nil
}

func (b *HistoryBackfill) fillConversation(ctx context.Context, conversation Conversation, slug string) (int, error) {
	dir := b.Layout.MailboxPath(slug, "", "history")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}

	pageSize := b.PageSize
	if pageSize <= 0 {
		pageSize = DefaultBackfillPageSize
	}

	written := 0
	before := ""
	for {
		turns, err := b.Transport.FetchPage(ctx, conversation.ID, before, pageSize)
		if err != nil {
			return written, err
		}
		if len(turns) == 0 {
			return written, nil
		}
		for _, turn := range turns {
			ok, err := b.writeTurn(dir, slug, turn)
			if err != nil {
				if b.Logger != nil {
					b.Logger.Printf("backfill write failed for %s in #%s: %v", turn.ID, slug, err)
				}
				continue
			}
			if ok {
				written++
			}
		}
		// Pages arrive newest first; the oldest id fetched so far is the
		// cursor for the next page.
		before = turns[len(turns)-1].ID
	}
}

// writeTurn writes one history file, reporting false when the file
// already existed (the idempotent re-run skip).
func (b *HistoryBackfill) writeTurn(dir, slug string, turn Turn) (bool, error) {
	path := filepath.Join(dir, TurnFilename(turn.CreatedAt, turn.ID))
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	content := fmt.Sprintf("---\nauthor: %s\ndate: %s\nchannel: %s\n---\n\n%s\n",
		turn.Author, turn.CreatedAt.UTC().Format(time.RFC3339Nano), slug, turn.Content)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, err
	}
	return true, nil
}
