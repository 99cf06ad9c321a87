// Package propagator fans out change notifications scoped to a single
// request. Subscribers get just enough to trigger a refetch (table, row id,
// operation kind), never row payloads, so a slow consumer can only ever be
// behind, not wrong.
package propagator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Op describes what happened to a row.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
)

// Event is one change notification. RequestID scopes the broadcast channel;
// Table and RowID identify the changed row.
type Event struct {
	Table     string `json:"table"`
	RowID     uint   `json:"rowId"`
	RequestID uint   `json:"requestId"`
	Op        Op     `json:"op"`
}

const subscriberBuffer = 8

type subscriber struct {
	ch     chan Event
	closed bool
}

// Broker is the in-process per-request broadcast layer. When a Redis client
// is attached every event is also published on request:updates:<id> so other
// processes can follow the same feed.
type Broker struct {
	mu    sync.Mutex
	subs  map[uint]map[*subscriber]struct{}
	redis *redis.Client
}

func NewBroker(rdb *redis.Client) *Broker {
	return &Broker{
		subs:  make(map[uint]map[*subscriber]struct{}),
		redis: rdb,
	}
}

// Subscribe registers interest in one request's changes. The returned cancel
// closes the channel; it is safe to call more than once.
func (b *Broker) Subscribe(requestID uint) (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, subscriberBuffer)}

	b.mu.Lock()
	set, ok := b.subs[requestID]
	if !ok {
		set = make(map[*subscriber]struct{})
		b.subs[requestID] = set
	}
	set[sub] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub.closed {
			return
		}
		sub.closed = true
		close(sub.ch)
		if set, ok := b.subs[requestID]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(b.subs, requestID)
			}
		}
	}
	return sub.ch, cancel
}

// Publish delivers an event to every subscriber of its request. Delivery is
// non-blocking: a subscriber whose buffer is full misses the event and will
// catch up on its next refetch.
func (b *Broker) Publish(ev Event) {
	b.mu.Lock()
	for sub := range b.subs[ev.RequestID] {
		select {
		case sub.ch <- ev:
		default:
		}
	}
	b.mu.Unlock()

	b.mirror(ev)
}

func (b *Broker) mirror(ev Event) {
	if b.redis == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("Error marshaling change event: %v", err)
		return
	}
	channel := fmt.Sprintf("request:updates:%d", ev.RequestID)
	if err := b.redis.Publish(context.Background(), channel, payload).Err(); err != nil {
		log.Printf("Error mirroring change event to redis: %v", err)
	}
}
