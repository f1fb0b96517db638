// Package waiters implements a broadcast registry: goroutines register a
// one-shot waiter, and a notifier wakes every registered waiter at once.
package waiters

import "sync"

// Waiter is a one-shot wake-up signal.
type Waiter struct {
	ch   chan struct{}
	once sync.Once
}

// Done is closed when the waiter is notified.
func (w *Waiter) Done() <-chan struct{} {
	return w.ch
}

func (w *Waiter) fire() {
	w.once.Do(func() { close(w.ch) })
}

// Registry tracks pending waiters. The zero value is not usable; call NewRegistry.
type Registry struct {
	mu      sync.Mutex
	pending map[*Waiter]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{pending: make(map[*Waiter]struct{})}
}

// Register adds a new waiter. It must be passed to Remove once the caller
// stops waiting, whether or not it fired.
func (r *Registry) Register() *Waiter {
	w := &Waiter{ch: make(chan struct{})}
	r.mu.Lock()
	r.pending[w] = struct{}{}
	r.mu.Unlock()
	return w
}

// Remove forgets w. Removing an unknown or already notified waiter is a no-op.
func (r *Registry) Remove(w *Waiter) {
	r.mu.Lock()
	delete(r.pending, w)
	r.mu.Unlock()
}

// NotifyAll wakes and forgets every pending waiter, returning how many there were.
func (r *Registry) NotifyAll() int {
	r.mu.Lock()
	pending := r.pending
	r.pending = make(map[*Waiter]struct{})
	r.mu.Unlock()

	for w := range pending {
		w.fire()
	}
	return len(pending)
}

// Len returns the number of pending waiters.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
