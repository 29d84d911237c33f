package agentchan

import (
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// DefaultSubscriberBufferSize is the default per-subscriber buffer depth.
const DefaultSubscriberBufferSize = 256

// Receiver is what Subscribe hands back: a read-only channel plus an
// Unsubscribe to release it. Callers that stop reading must Unsubscribe —
// otherwise publish keeps taking the (cheap, non-blocking) slow path of
// finding the channel full on every send.
type Receiver struct {
	ch     chan OutputChunk
	cancel func()
}

// Chan returns the channel to range over.
func (r *Receiver) Chan() <-chan OutputChunk {
	return r.ch
}

// Unsubscribe stops delivery and releases the subscriber's slot. Safe to
// call more than once.
func (r *Receiver) Unsubscribe() {
	r.cancel()
}

type subscriberEntry struct {
	id uint64
	ch chan OutputChunk
}

// Broadcast fans a loop's output chunks out to every current subscriber.
// Unlike a single shared channel, each subscriber gets its own buffered
// channel registered at Subscribe time — so a subscriber created after a
// chunk was published never sees that chunk (no replay), and one slow
// subscriber can never block delivery to the others or to the loop: a full
// buffer has its oldest chunk replaced by a Lagged marker and the chunk
// itself is dropped, for that subscriber only.
type Broadcast struct {
	mu          sync.RWMutex
	subscribers []subscriberEntry
	nextID      uint64
	bufferSize  int

	// pubsub is watermill's in-process gochannel transport. Publish/Subscribe
	// dispatch chunks through the per-subscriber channels above directly
	// (preserving the Lagged-on-full-buffer semantics watermill's own
	// Publish/Subscribe don't model), so pubsub itself carries no traffic —
	// it's kept constructed and exposed via PubSub for callers that want
	// routing/middleware on top of the same broadcast, exactly as
	// go-opencode's own event.Bus holds a GoChannel for "potential future
	// middleware/routing" without routing ordinary events through it.
	pubsub *gochannel.GoChannel
}

// NewBroadcast creates a Broadcast whose subscriber channels have the
// given buffer capacity (DefaultSubscriberBufferSize if <= 0).
func NewBroadcast(bufferSize int) *Broadcast {
	if bufferSize <= 0 {
		bufferSize = DefaultSubscriberBufferSize
	}
	return &Broadcast{
		bufferSize: bufferSize,
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: int64(bufferSize)},
			watermill.NopLogger{},
		),
	}
}

// PubSub returns the underlying watermill GoChannel for callers that want
// to attach their own topic-based routing or middleware alongside the
// direct per-subscriber dispatch Publish/Subscribe use.
func (b *Broadcast) PubSub() *gochannel.GoChannel {
	return b.pubsub
}

// Close releases the underlying watermill transport. Safe to call once
// the Broadcast is no longer in use.
func (b *Broadcast) Close() error {
	return b.pubsub.Close()
}

// Subscribe registers a new subscriber and returns its Receiver. Only
// chunks published after this call are visible to it.
func (b *Broadcast) Subscribe() *Receiver {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	entry := subscriberEntry{id: id, ch: make(chan OutputChunk, b.bufferSize)}
	b.subscribers = append(b.subscribers, entry)

	r := &Receiver{ch: entry.ch}
	r.cancel = func() { b.unsubscribe(id) }
	return r
}

func (b *Broadcast) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, e := range b.subscribers {
		if e.id == id {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			break
		}
	}
}

// Publish delivers chunk to every current subscriber, never blocking: a
// subscriber whose buffer is full loses its oldest buffered chunk, which
// makes room for a Lagged marker sent instead of the chunk.
func (b *Broadcast) Publish(chunk OutputChunk) {
	b.mu.RLock()
	entries := make([]subscriberEntry, len(b.subscribers))
	copy(entries, b.subscribers)
	b.mu.RUnlock()

	for _, e := range entries {
		select {
		case e.ch <- chunk:
		default:
			// Full buffer: drop the oldest buffered chunk so the Lagged
			// marker has room, and drop this chunk for this subscriber.
			select {
			case <-e.ch:
			default:
			}
			select {
			case e.ch <- Lagged{}:
			default:
			}
		}
	}
}

// SubscriberCount reports the current number of subscribers, for tests and
// diagnostics.
func (b *Broadcast) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
