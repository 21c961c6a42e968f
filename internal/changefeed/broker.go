package changefeed

import (
	"sync"
)

// Broker fans change events out to subscriptions scoped by table.
// Publish never blocks: each subscription holds at most one pending event, and further
// events arriving before it is consumed are coalesced into it.
type Broker struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[*Subscription]struct{})}
}

// Subscription receives events for the tables it was created with.
type Subscription struct {
	broker *Broker
	tables map[Table]bool
	ch     chan Event
	once   sync.Once
}

// Subscribe registers interest in the given tables. With no tables, every event matches.
func (b *Broker) Subscribe(tables ...Table) *Subscription {
	s := &Subscription{
		broker: b,
		tables: make(map[Table]bool, len(tables)),
		ch:     make(chan Event, 1),
	}
	for _, t := range tables {
		s.tables[t] = true
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.once.Do(func() { close(s.ch) })
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// Publish delivers ev to every matching subscription.
func (b *Broker) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for s := range b.subs {
		if !s.matches(ev.Table) {
			continue
		}
		select {
		case s.ch <- ev:
		default:
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close releases every subscription; later subscriptions are born closed.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		delete(b.subs, s)
		s.once.Do(func() { close(s.ch) })
	}
}

func (s *Subscription) matches(t Table) bool {
	if t == TableAll || len(s.tables) == 0 {
		return true
	}
	return s.tables[t]
}

// Events is closed once the subscription is released.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Close releases the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	b := s.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, s)
	s.once.Do(func() { close(s.ch) })
}
