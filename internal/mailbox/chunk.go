package mailbox

import (
	"fmt"
	"strings"
)

// DefaultChunkLimit is the transport message size cap.
const DefaultChunkLimit = 2000

const sectionDelimiter = "\n---\n"

// Chunk splits text into pieces no longer than limit, preferring to split
// on the last line break inside each window. When a window contains no
// line break past its first character, the split is a hard cut at exactly
// limit. Split line breaks are consumed: joining the pieces with "\n" at
// soft splits reconstructs the input. limit must be positive.
func Chunk(text string, limit int) []string {
	if limit <= 0 {
		panic(fmt.Sprintf("mailbox: chunk limit must be positive, got %d", limit))
	}
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(text) > 0 {
		if len(text) <= limit {
			chunks = append(chunks, text)
			break
		}
		split := strings.LastIndexByte(text[:limit], '\n')
		if split <= 0 {
			chunks = append(chunks, text[:limit])
			text = text[limit:]
			continue
		}
		chunks = append(chunks, text[:split])
		text = text[split+1:]
	}
	return chunks
}

// SplitSections splits reply content on section delimiter lines (a line
// containing only "---"). Each section is sent through Chunk
// independently so delimiter lines never reach the transport.
func SplitSections(text string) []string {
	return strings.Split(text, sectionDelimiter)
}
