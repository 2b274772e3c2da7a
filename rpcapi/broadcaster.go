package rpcapi

import (
	"sync"

	"github.com/w3f/registrar-verifier/core"
)

// NotificationMessage is the wire shape broadcast to every subscriber.
type NotificationMessage struct {
	Level core.NotificationLevel `json:"level"`
	Text  string                 `json:"text"`
}

// subscriberBuffer bounds how many unread notifications a slow subscriber
// can accumulate; once it is full, further notifications to that
// subscriber are skipped rather than blocking the manager's single write
// lock.
const subscriberBuffer = 64

// Broadcaster implements core.EventSink by fanning out every Notify call
// to every currently subscribed gRPC stream. FieldStatusVerified and
// DisplayNamePersisted are not broadcast individually - the design treats
// Notification as the one human-facing event stream, with
// FieldStatusVerified and DisplayNamePersisted reserved for the durable
// event log - so this sink implements those two methods as no-ops.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[chan NotificationMessage]struct{}
}

// NewBroadcaster builds an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan NotificationMessage]struct{})}
}

// FieldStatusVerified is a no-op: see the type doc comment.
func (b *Broadcaster) FieldStatusVerified(core.NetworkAddress, core.FieldStatus) {}

// DisplayNamePersisted is a no-op: see the type doc comment.
func (b *Broadcaster) DisplayNamePersisted(core.NetworkAddress, core.DisplayName) {}

// Notify fans text out to every current subscriber. A subscriber whose
// buffer is full is skipped for this message rather than blocking the
// caller, which in practice is the manager's own mutation path.
func (b *Broadcaster) Notify(level core.NotificationLevel, text string) {
	msg := NotificationMessage{Level: level, Text: text}
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- msg:
		default:
		}
	}
}

// subscribe registers a new subscriber and returns its channel and an
// unsubscribe function. The channel is closed by the returned function,
// never independently, so callers must always defer it.
func (b *Broadcaster) subscribe() (<-chan NotificationMessage, func()) {
	ch := make(chan NotificationMessage, subscriberBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch, func() {
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
		close(ch)
	}
}

var _ core.EventSink = (*Broadcaster)(nil)
