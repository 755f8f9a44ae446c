package mailbox

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// EmptyPlaceholder is sent in place of a blank reply so the conversation
// always receives a visible artifact.
const EmptyPlaceholder = "(empty)"

// ReplySender delivers one outbox entry to the transport, then commits it
// by renaming the file into the sent directory. Delivery is
// at-least-once: a crash after the sends but before the rename leaves the
// file in the outbox for the next pass.
type ReplySender struct {
	Layout    Layout
	Slugs     *SlugTable
	Transport Transport
	// ChunkLimit caps each transport send. Zero means DefaultChunkLimit.
	ChunkLimit int
	Logger     Logger
}

// Send reads the outbox entry named by ref, delivers its content in
// ordered chunks, and moves the file to sent. A file that vanished
// between discovery and read is treated as already handled. Resolution
// and transport failures leave the file in place for retry.
func (s *ReplySender) Send(ctx context.Context, ref OutboxRef) error {
	outbox := s.Layout.MailboxPath(ref.Conversation, ref.Thread, "outbox")
	entry := filepath.Join(outbox, ref.MessageID+entryExt)

	data, err := os.ReadFile(entry)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	content := strings.TrimSpace(string(data))
	if content == "" {
		content = EmptyPlaceholder
	}

	target := ref.Thread
	if target == "" {
		id, ok := s.Slugs.IDFor(ref.Conversation)
		if !ok {
			return &ChannelUnavailableError{Destination: ref.Conversation}
		}
		target = id
	}
	if err := s.Transport.ResolveDestination(ctx, target); err != nil {
		return err
	}

	limit := s.ChunkLimit
	if limit <= 0 {
		limit = DefaultChunkLimit
	}
	for _, section := range SplitSections(content) {
		for _, piece := range Chunk(section, limit) {
			if err := s.Transport.Send(ctx, target, piece); err != nil {
				return err
			}
		}
	}
	if s.Logger != nil {
		s.Logger.Printf("<<< sent: %s%s", ref.MessageID, entryExt)
	}

	sent := s.Layout.MailboxPath(ref.Conversation, ref.Thread, "sent")
	if err := os.MkdirAll(sent, 0o755); err != nil {
		return err
	}
	return os.Rename(entry, filepath.Join(sent, ref.MessageID+entryExt))
}
