package mailbox

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// InboxFilter decides which inbound events reach the inbox at all.
// A zero filter accepts every non-bot turn.
type InboxFilter struct {
	// OwnerID restricts processing to one sender id. Empty means every
	// sender is accepted.
	OwnerID string
	// AgentName requires the turn to mention this token (or carry a
	// direct transport mention). Empty means every turn is accepted.
	AgentName string
}

// Allow reports whether an inbound turn should be written. mentioned is
// the transport's own notion of "this turn mentions the bridge user",
// which counts even when AgentName does not appear verbatim.
func (f InboxFilter) Allow(ev InboundEvent, mentioned bool) bool {
	if f.OwnerID != "" && ev.Turn.AuthorID != f.OwnerID {
		return false
	}
	if f.AgentName != "" && !mentioned && !strings.Contains(ev.Turn.Content, f.AgentName) {
		return false
	}
	return true
}

// InboxWriter turns inbound events into inbox files. One file per call;
// existing files at the target path are overwritten (external ids are
// unique, so a collision means a redelivery of the same turn).
type InboxWriter struct {
	Layout Layout
	Slugs  *SlugTable
	// AgentName, when set, is stripped case-insensitively from the
	// content along with any self-addressed mention token.
	AgentName string
	// SelfID is the bridge's own transport user id, used to recognize
	// mention tokens of the form <@id> or <@!id>.
	SelfID string
	Logger Logger

	agentPattern   *regexp.Regexp
	mentionPattern *regexp.Regexp
}

// Write creates the inbox file for one inbound event and returns its
// filename.
func (w *InboxWriter) Write(ev InboundEvent) (string, error) {
	content := w.stripAgentName(ev.Turn.Content)
	if quoted := ev.Turn.QuotedContent; quoted != "" {
		lines := strings.Split(quoted, "\n")
		for i, line := range lines {
			lines[i] = "> " + line
		}
		content = strings.Join(lines, "\n") + "\n\n" + content
	}

	slug := ev.ConversationID
	if w.Slugs != nil {
		if mapped, ok := w.Slugs.SlugFor(ev.ConversationID); ok {
			slug = mapped
		}
	}
	inbox := w.Layout.MailboxPath(slug, ev.ThreadID, "inbox")
	if err := os.MkdirAll(inbox, 0o755); err != nil {
		return "", err
	}
	name := TurnFilename(ev.Turn.CreatedAt, ev.Turn.ID)
	if err := os.WriteFile(filepath.Join(inbox, name), []byte(content), 0o644); err != nil {
		return "", err
	}
	if w.Logger != nil {
		w.Logger.Printf(">>> received: %s", name)
	}
	return name, nil
}

func (w *InboxWriter) stripAgentName(content string) string {
	if w.AgentName == "" {
		return content
	}
	if w.mentionPattern == nil && w.SelfID != "" {
		w.mentionPattern = regexp.MustCompile(`<@!?` + regexp.QuoteMeta(w.SelfID) + `>`)
	}
	if w.agentPattern == nil {
		// @name and bare name both count as addressing the agent.
		w.agentPattern = regexp.MustCompile(`(?i)@?` + regexp.QuoteMeta(w.AgentName))
	}
	if w.mentionPattern != nil {
		content = w.mentionPattern.ReplaceAllString(content, "")
	}
	content = w.agentPattern.ReplaceAllString(content, "")
	return strings.TrimSpace(content)
}
