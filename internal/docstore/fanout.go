package docstore

import "sync"

// fanout keeps the watch subscribers of each collection.
type fanout struct {
	mu   sync.Mutex
	subs map[string]map[chan Snapshot]struct{}
}

func newFanout() *fanout {
	return &fanout{subs: make(map[string]map[chan Snapshot]struct{})}
}

// subscribe registers a new subscriber that starts with initial buffered.
func (f *fanout) subscribe(initial Snapshot) chan Snapshot {
	ch := make(chan Snapshot, 1)
	ch <- initial
	f.mu.Lock()
	if f.subs[initial.Collection] == nil {
		f.subs[initial.Collection] = make(map[chan Snapshot]struct{})
	}
	f.subs[initial.Collection][ch] = struct{}{}
	f.mu.Unlock()
	return ch
}

func (f *fanout) unsubscribe(collection string, ch chan Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	subs, ok := f.subs[collection]
	if !ok {
		return
	}
	if _, exists := subs[ch]; exists {
		delete(subs, ch)
		close(ch)
	}
	if len(subs) == 0 {
		delete(f.subs, collection)
	}
}

func (f *fanout) hasSubscribers(collection string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[collection]) > 0
}

func (f *fanout) publish(snap Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs[snap.Collection] {
		offer(ch, snap)
	}
}

// closeAll closes every subscriber channel.
func (f *fanout) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for collection, subs := range f.subs {
		for ch := range subs {
			close(ch)
		}
		delete(f.subs, collection)
	}
}

// offer puts snap into a buffer-1 channel, replacing an unread value.
// Callers must be the only senders on ch.
func offer(ch chan Snapshot, snap Snapshot) {
	for {
		select {
		case ch <- snap:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
