// Package realtime fans table change events out to subscribed clients.
// Delivery is best effort: a subscriber that falls behind loses events.
package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"storefront/internal/policy"
)

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// Event describes one committed row change.
type Event struct {
	Table           policy.Table `json:"table"`
	Type            EventType    `json:"type"`
	Record          any          `json:"record,omitempty"`
	OldRecord       any          `json:"old_record,omitempty"`
	OwnerID         string       `json:"owner_id,omitempty"`
	CommitTimestamp time.Time    `json:"commit_timestamp"`
}

// Notifier receives events after the writing transaction commits.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Event) {}

// Nop discards every event.
var Nop Notifier = nopNotifier{}

// FeedTables are the tables whose changes are broadcast.
var FeedTables = []policy.Table{policy.TableProducts, policy.TablePrices, policy.TableOrders}

func isFeedTable(t policy.Table) bool {
	for _, ft := range FeedTables {
		if ft == t {
			return true
		}
	}
	return false
}

// ParseTables splits a comma separated list. Empty input means every feed table.
func ParseTables(s string) ([]policy.Table, error) {
	if strings.TrimSpace(s) == "" {
		return append([]policy.Table(nil), FeedTables...), nil
	}
	var out []policy.Table
	for _, part := range strings.Split(s, ",") {
		t := policy.Table(strings.TrimSpace(part))
		if !isFeedTable(t) {
			return nil, fmt.Errorf("table %q is not part of the realtime feed", t)
		}
		out = append(out, t)
	}
	return out, nil
}

type Broker struct {
	pol    *policy.Policy
	log    *slog.Logger
	buffer int

	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64

	dropped atomic.Uint64
}

func NewBroker(pol *policy.Policy, buffer int, log *slog.Logger) *Broker {
	if buffer <= 0 {
		buffer = 64
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Broker{
		pol:    pol,
		log:    log,
		buffer: buffer,
		subs:   make(map[uint64]*Subscription),
	}
}

type Subscription struct {
	id        uint64
	principal policy.Principal
	tables    map[policy.Table]struct{}
	ch        chan Event
	broker    *Broker
	once      sync.Once
}

// Events is closed when the subscription is closed.
func (s *Subscription) Events() <-chan Event { return s.ch }

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.broker.mu.Lock()
		delete(s.broker.subs, s.id)
		s.broker.mu.Unlock()
		close(s.ch)
	})
}

func (b *Broker) Subscribe(p policy.Principal, tables ...policy.Table) (*Subscription, error) {
	if len(tables) == 0 {
		tables = FeedTables
	}
	set := make(map[policy.Table]struct{}, len(tables))
	for _, t := range tables {
		if !isFeedTable(t) {
			return nil, fmt.Errorf("table %q is not part of the realtime feed", t)
		}
		set[t] = struct{}{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := &Subscription{
		id:        b.nextID,
		principal: p,
		tables:    set,
		ch:        make(chan Event, b.buffer),
		broker:    b,
	}
	b.subs[sub.id] = sub
	b.log.Debug("realtime subscribe", "id", sub.id, "role", p.Role, "tables", len(set))
	return sub, nil
}

// Publish delivers ev to every subscriber allowed to see it. Publishing is
// serialized, so a subscriber sees changes to one row in commit order.
func (b *Broker) Publish(ev Event) {
	if !isFeedTable(ev.Table) {
		return
	}
	if ev.CommitTimestamp.IsZero() {
		ev.CommitTimestamp = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		if _, ok := sub.tables[ev.Table]; !ok {
			continue
		}
		if !b.pol.Visible(sub.principal, ev.Table, ev.OwnerID) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			b.dropped.Add(1)
			b.log.Warn("realtime subscriber lagging, event dropped", "id", sub.id, "table", ev.Table)
		}
	}
}

func (b *Broker) Notify(_ context.Context, ev Event) { b.Publish(ev) }

func (b *Broker) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Broker) Dropped() uint64 { return b.dropped.Load() }

// Close ends every subscription.
func (b *Broker) Close() {
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()
	for _, s := range subs {
		s.Close()
	}
}
