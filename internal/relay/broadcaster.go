package relay

import (
	"go.uber.org/zap"
)

// Publisher fans envelopes out to connected sessions. The baseline contract is
// fire and forget: no acknowledgment, no durability, no replay for sessions
// that were disconnected at publish time. Callers depend on this interface so
// a durable variant could be substituted without touching them.
type Publisher interface {
	Publish(senderID string, envelope Envelope)
	PublishRoom(senderID, room string, envelope Envelope)
}

// Broadcaster delivers envelopes to every connection except the sender,
// optionally scoped to a room. Sends are non-blocking: a recipient whose
// stream buffer is full simply misses the event.
type Broadcaster struct {
	registry *Registry
	logger   *zap.Logger
}

// NewBroadcaster constructs a broadcaster over the given registry.
func NewBroadcaster(registry *Registry, logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{registry: registry, logger: logger}
}

// Publish delivers the envelope to all currently connected sessions except the
// sender. Pass an empty senderID for server-originated events that should
// reach everyone.
func (b *Broadcaster) Publish(senderID string, envelope Envelope) {
	b.deliver(senderID, "", envelope)
}

// PublishRoom restricts delivery to current members of the named room,
// excluding the sender.
func (b *Broadcaster) PublishRoom(senderID, room string, envelope Envelope) {
	b.deliver(senderID, room, envelope)
}

func (b *Broadcaster) deliver(senderID, room string, envelope Envelope) {
	if envelope.Event == "" {
		return
	}
	for _, recipient := range b.registry.others(senderID, room) {
		select {
		case recipient.stream <- envelope:
		default:
			b.logger.Warn("dropping envelope for slow consumer",
				zap.String("connection_id", recipient.ID),
				zap.String("event", envelope.Event))
		}
	}
}
