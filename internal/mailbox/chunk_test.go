package mailbox

import (
	"strings"
	"testing"
)

func TestChunkShortTextReturnsSinglePiece(t *testing.T) {
	pieces := Chunk("hello", 2000)
	if len(pieces) != 1 || pieces[0] != "hello" {
		t.Fatalf("unexpected pieces: %q", pieces)
	}
	pieces = Chunk("", 10)
	if len(pieces) != 1 || pieces[0] != "" {
		t.Fatalf("expected empty input to pass through, got %q", pieces)
	}
}

func TestChunkHardSplitWithoutLineBreaks(t *testing.T) {
	text := strings.Repeat("x", 5000)
	pieces := Chunk(text, 2000)
	if len(pieces) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(pieces))
	}
	for i, piece := range pieces {
		if len(piece) > 2000 {
			t.Fatalf("chunk %d exceeds limit: %d", i, len(piece))
		}
	}
	if strings.Join(pieces, "") != text {
		t.Fatalf("hard-split concatenation does not reproduce input")
	}
}

func TestChunkPrefersLineBreaks(t *testing.T) {
	text := strings.Repeat("a", 10) + "\n" + strings.Repeat("b", 10)
	pieces := Chunk(text, 15)
	if len(pieces) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %q", len(pieces), pieces)
	}
	if pieces[0] != strings.Repeat("a", 10) {
		t.Fatalf("expected split on the line break, got %q", pieces[0])
	}
	if strings.Join(pieces, "\n") != text {
		t.Fatalf("rejoining with newline does not reproduce input")
	}
}

func TestChunkLeadingNewlineDoesNotSplitAtZero(t *testing.T) {
	text := "\n" + strings.Repeat("a", 20)
	pieces := Chunk(text, 10)
	// The only line break is at index 0; a split there would loop
	// forever, so a hard split applies instead.
	if pieces[0] != text[:10] {
		t.Fatalf("expected hard split, got %q", pieces[0])
	}
	if strings.Join(pieces, "") != text {
		t.Fatalf("concatenation does not reproduce input")
	}
}

func TestChunkRoundTrip(t *testing.T) {
	lines := []string{
		"first line of the reply",
		"second line which is a bit longer than the first one",
		"third",
		strings.Repeat("z", 120),
		"last line",
	}
	text := strings.Join(lines, "\n")
	for _, limit := range []int{7, 30, 64, 100, len(text), len(text) + 1} {
		pieces := Chunk(text, limit)
		offset := 0
		for i, piece := range pieces {
			if len(piece) > limit {
				t.Fatalf("limit %d: chunk %d too long (%d)", limit, i, len(piece))
			}
			if text[offset:offset+len(piece)] != piece {
				t.Fatalf("limit %d: chunk %d diverges from input", limit, i)
			}
			offset += len(piece)
			// A split shorter than the limit was a soft split and
			// consumed exactly one line break; a full-width chunk was a
			// hard split and consumed nothing.
			if i < len(pieces)-1 && len(piece) < limit {
				if offset >= len(text) || text[offset] != '\n' {
					t.Fatalf("limit %d: soft split %d not on a line break", limit, i)
				}
				offset++
			}
		}
		if offset != len(text) {
			t.Fatalf("limit %d: chunks cover %d of %d bytes", limit, offset, len(text))
		}
	}
}

func TestChunkPanicsOnNonPositiveLimit(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for non-positive limit")
		}
	}()
	Chunk("text", 0)
}

func TestSplitSections(t *testing.T) {
	sections := SplitSections("intro\n---\ndetails\n---\nfooter")
	if len(sections) != 3 {
		t.Fatalf("expected 3 sections, got %d: %q", len(sections), sections)
	}
	if sections[0] != "intro" || sections[1] != "details" || sections[2] != "footer" {
		t.Fatalf("unexpected sections: %q", sections)
	}
	if got := SplitSections("no delimiter here"); len(got) != 1 {
		t.Fatalf("expected single section, got %q", got)
	}
}
