package broker

import "sync"

// ring is a bounded buffer keeping the most recent messages of one topic.
type ring struct {
	mu   sync.Mutex
	buf  []Message
	head int
	size int
}

func newRing(capacity int) *ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &ring{buf: make([]Message, capacity)}
}

// Push appends a message, evicting the oldest when full.
// Returns true when a message was evicted.
func (r *ring) Push(m Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := false
	if r.size == len(r.buf) {
		r.head = (r.head + 1) % len(r.buf)
		r.size--
		evicted = true
	}
	r.buf[(r.head+r.size)%len(r.buf)] = m
	r.size++
	return evicted
}

// Snapshot copies the retained messages, oldest first.
func (r *ring) Snapshot() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Message, 0, r.size)
	for i := 0; i < r.size; i++ {
		out = append(out, r.buf[(r.head+i)%len(r.buf)])
	}
	return out
}

// Len returns the number of retained messages.
func (r *ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}
