package mailbox

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type sentPiece struct {
	Destination string
	Text        string
}

// fakeTransport records sends and serves canned history pages.
type fakeTransport struct {
	mu            sync.Mutex
	sent          []sentPiece
	unavailable   map[string]bool
	sendErr       map[string]error
	pages         map[string][][]Turn
	pageErr       map[string]error
	pageCursor    map[string]int
	conversations []Conversation

	// sendDelay plus the active/maxActive counters let tests observe
	// whether sends from different poll passes ever overlap.
	sendDelay time.Duration
	active    atomic.Int32
	maxActive atomic.Int32
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		unavailable: map[string]bool{},
		sendErr:     map[string]error{},
		pages:       map[string][][]Turn{},
		pageCursor:  map[string]int{},
	}
}

func (f *fakeTransport) Send(ctx context.Context, destinationID, text string) error {
	now := f.active.Add(1)
	for {
		max := f.maxActive.Load()
		if now <= max || f.maxActive.CompareAndSwap(max, now) {
			break
		}
	}
	if f.sendDelay > 0 {
		time.Sleep(f.sendDelay)
	}
	defer f.active.Add(-1)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.sendErr[destinationID]; err != nil {
		return err
	}
	f.sent = append(f.sent, sentPiece{Destination: destinationID, Text: text})
	return nil
}

func (f *fakeTransport) ResolveDestination(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unavailable[id] {
		return &ChannelUnavailableError{Destination: id}
	}
	return nil
}

func (f *fakeTransport) FetchPage(ctx context.Context, conversationID, before string, limit int) ([]Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.pageErr[conversationID]; err != nil {
		return nil, err
	}
	pages := f.pages[conversationID]
	cursor := f.pageCursor[conversationID]
	if before == "" {
		cursor = 0
	}
	if cursor >= len(pages) {
		return nil, nil
	}
	f.pageCursor[conversationID] = cursor + 1
	return pages[cursor], nil
}

func (f *fakeTransport) ListConversations(ctx context.Context) ([]Conversation, error) {
	return f.conversations, nil
}

func (f *fakeTransport) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	texts := make([]string, len(f.sent))
	for i, piece := range f.sent {
		texts[i] = piece.Text
	}
	return texts
}
