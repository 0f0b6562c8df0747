package events

import (
	"context"
	"sync/atomic"
	"time"

	pkglog "github.com/weiawesome/wes-meet/pkg/log"
	"github.com/weiawesome/wes-meet/pkg/pubsub"
)

const (
	defaultBufferSize = 1024
	publishTimeout    = 5 * time.Second
)

// Producer queues lifecycle events and publishes them from Run.
type Producer struct {
	publisher pubsub.Publisher
	prefix    string
	queue     chan *pubsub.Event
	published atomic.Int64
	dropped   atomic.Int64
}

// NewProducer creates a Producer publishing to {prefix}:room:{id}:lifecycle.
func NewProducer(publisher pubsub.Publisher, prefix string, bufferSize int) *Producer {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Producer{
		publisher: publisher,
		prefix:    prefix,
		queue:     make(chan *pubsub.Event, bufferSize),
	}
}

// Topics returns the Kafka topics lifecycle events for prefix are written to.
func Topics(prefix string) []string {
	topic, err := pubsub.TopicFor(pubsub.LifecycleChannel(prefix, "_"))
	if err != nil {
		return nil
	}
	return []string{topic}
}

// Emit enqueues an event. When the queue is full the event is dropped.
func (p *Producer) Emit(eventType, roomID string, payload interface{}) {
	ev, err := pubsub.NewEvent(eventType, roomID, payload)
	if err != nil {
		l := pkglog.L()
		l.Error().Err(err).Str("event", eventType).Msg("failed to build event")
		return
	}

	select {
	case p.queue <- ev:
	default:
		if p.dropped.Add(1)%100 == 1 {
			l := pkglog.L()
			l.Warn().Int64("dropped", p.dropped.Load()).Msg("event queue full, dropping lifecycle events")
		}
	}
}

// Run publishes queued events until ctx is cancelled, then flushes what is
// left in the queue.
func (p *Producer) Run(ctx context.Context) error {
	for {
		select {
		case ev := <-p.queue:
			p.publish(ctx, ev)
		case <-ctx.Done():
			p.flush()
			return nil
		}
	}
}

func (p *Producer) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	for {
		select {
		case ev := <-p.queue:
			p.publish(ctx, ev)
		default:
			return
		}
	}
}

func (p *Producer) publish(ctx context.Context, ev *pubsub.Event) {
	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := p.publisher.Publish(pctx, pubsub.LifecycleChannel(p.prefix, ev.RoomID), ev); err != nil {
		l := pkglog.L()
		l.Warn().Err(err).Str(pkglog.FieldRoomID, ev.RoomID).Str("event", ev.Type).Msg("failed to publish lifecycle event")
		return
	}
	p.published.Add(1)
}

// Published returns the number of events successfully handed to the bus.
func (p *Producer) Published() int64 { return p.published.Load() }

// Dropped returns the number of events discarded because the queue was full.
func (p *Producer) Dropped() int64 { return p.dropped.Load() }

func (p *Producer) RoomOpened(roomID, origin string) {
	p.Emit(pubsub.EventRoomOpened, roomID, pubsub.RoomPayload{RoomID: roomID, Origin: origin})
}

func (p *Producer) RoomClosed(roomID string) {
	p.Emit(pubsub.EventRoomClosed, roomID, pubsub.RoomPayload{RoomID: roomID})
}

func (p *Producer) ParticipantJoined(roomID, clientID, name string, isAdmin bool, memberCount int) {
	p.Emit(pubsub.EventParticipantJoined, roomID, pubsub.ParticipantPayload{
		RoomID:      roomID,
		ClientID:    clientID,
		Name:        name,
		IsAdmin:     isAdmin,
		MemberCount: memberCount,
	})
}

func (p *Producer) ParticipantLeft(roomID, clientID string, wasAdmin bool, newAdminID string, memberCount int) {
	p.Emit(pubsub.EventParticipantLeft, roomID, pubsub.ParticipantPayload{
		RoomID:      roomID,
		ClientID:    clientID,
		IsAdmin:     wasAdmin,
		MemberCount: memberCount,
		NewAdminID:  newAdminID,
	})
}

func (p *Producer) AccessDenied(roomID, clientID, address string) {
	p.Emit(pubsub.EventAccessDenied, roomID, pubsub.AccessDeniedPayload{
		RoomID:   roomID,
		ClientID: clientID,
		Address:  address,
	})
}
