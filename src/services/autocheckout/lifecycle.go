package autocheckout

import "sync"

// Event is an app lifecycle transition.
type Event string

const (
	EventActive     Event = "active"
	EventBackground Event = "background"
)

// LifecycleSource delivers lifecycle events to subscribers until the
// returned function is called.
type LifecycleSource interface {
	Subscribe(fn func(Event)) (unsubscribe func())
}

// Broadcaster is a LifecycleSource fed by Emit.
type Broadcaster struct {
	mu   sync.Mutex
	next int
	subs map[int]func(Event)
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]func(Event))}
}

func (b *Broadcaster) Subscribe(fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	b.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
		})
	}
}

// Emit calls every subscriber synchronously.
func (b *Broadcaster) Emit(ev Event) {
	b.mu.Lock()
	fns := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Subscribers reports how many subscriptions are live.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
