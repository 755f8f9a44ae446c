package mailbox

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const entryExt = ".md"

// Layout maps conversation coordinates to directories under the task
// root. All paths are deterministic: distinct (conversation, thread)
// pairs always yield distinct directories.
type Layout struct {
	Root      string // task root, e.g. /tasks
	Transport string // transport segment, e.g. discord
}

// Base returns the directory holding every conversation of this
// transport.
func (l Layout) Base() string {
	return filepath.Join(l.Root, l.Transport)
}

// MailboxPath returns the inbox, outbox, sent, or history directory for a
// conversation. A non-empty threadID nests the box under the thread's
// directory inside the parent conversation.
func (l Layout) MailboxPath(conversationSlug, threadID, box string) string {
	if threadID != "" {
		return filepath.Join(l.Root, l.Transport, conversationSlug, threadID, box)
	}
	return filepath.Join(l.Root, l.Transport, conversationSlug, box)
}

// OutboxRef identifies one outbox entry recovered from its path.
type OutboxRef struct {
	Conversation string // conversation directory name (slug)
	Thread       string // sub-thread id, empty when absent
	MessageID    string // filename stem
}

// ParseOutboxPath recovers an OutboxRef from a path. It is the single
// normative definition of a valid outbox entry: the path must sit under
// the layout base at exactly conversation/outbox/file or
// conversation/thread/outbox/file depth and carry the .md extension.
// Anything else is a foreign file and reports ok=false.
func (l Layout) ParseOutboxPath(path string) (OutboxRef, bool) {
	rel, err := filepath.Rel(l.Base(), filepath.Clean(path))
	if err != nil {
		return OutboxRef{}, false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	var ref OutboxRef
	switch len(parts) {
	case 3:
		ref = OutboxRef{Conversation: parts[0], MessageID: parts[2]}
		if parts[1] != "outbox" {
			return OutboxRef{}, false
		}
	case 4:
		ref = OutboxRef{Conversation: parts[0], Thread: parts[1], MessageID: parts[3]}
		if parts[2] != "outbox" {
			return OutboxRef{}, false
		}
	default:
		return OutboxRef{}, false
	}
	for _, part := range parts {
		if part == "" || part == ".." {
			return OutboxRef{}, false
		}
	}
	if !strings.HasSuffix(ref.MessageID, entryExt) {
		return OutboxRef{}, false
	}
	ref.MessageID = strings.TrimSuffix(ref.MessageID, entryExt)
	if ref.MessageID == "" {
		return OutboxRef{}, false
	}
	return ref, true
}

// TurnStamp renders an instant as an ISO-8601 UTC timestamp with every
// non-alphanumeric separator stripped, so lexical order equals
// chronological order.
func TurnStamp(t time.Time) string {
	return strings.ReplaceAll(t.UTC().Format("20060102150405.000"), ".", "")
}

// TurnFilename encodes a turn's on-disk identity: the (timestamp,
// external id) pair, unique per turn and lexically sortable.
func TurnFilename(t time.Time, externalID string) string {
	return TurnStamp(t) + "." + externalID + entryExt
}

// Slug reduces a display name to a filesystem-safe directory name by
// deleting every character outside [A-Za-z0-9_-].
func Slug(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SlugTable is the process-scoped conversation id ↔ directory-name
// mapping, built once at connection time and passed explicitly into the
// components that need it. Two conversations whose names reduce to the
// same slug are disambiguated with a short id suffix.
type SlugTable struct {
	slugByID map[string]string
	idBySlug map[string]string
}

// NewSlugTable builds the table from the transport's conversation list.
func NewSlugTable(conversations []Conversation) *SlugTable {
	t := &SlugTable{
		slugByID: make(map[string]string, len(conversations)),
		idBySlug: make(map[string]string, len(conversations)),
	}
	for _, c := range conversations {
		slug := Slug(c.DisplayName)
		if slug == "" {
			slug = c.ID
		}
		if _, taken := t.idBySlug[slug]; taken {
			slug = slug + "-" + shortID(c.ID)
		}
		t.slugByID[c.ID] = slug
		t.idBySlug[slug] = c.ID
	}
	return t
}

// SlugFor returns the directory name for a conversation id.
func (t *SlugTable) SlugFor(id string) (string, bool) {
	slug, ok := t.slugByID[id]
	return slug, ok
}

// IDFor returns the conversation id for a directory name.
func (t *SlugTable) IDFor(slug string) (string, bool) {
	id, ok := t.idBySlug[slug]
	return id, ok
}

// Slugs returns every directory name in the table.
func (t *SlugTable) Slugs() []string {
	slugs := make([]string, 0, len(t.idBySlug))
	for slug := range t.idBySlug {
		slugs = append(slugs, slug)
	}
	return slugs
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return id
}
