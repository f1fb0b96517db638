package waiters

import (
	"sync"
	"testing"
	"time"
)

// TestRegistry_NotifyAll verifies that every registered waiter wakes.
func TestRegistry_NotifyAll(t *testing.T) {
	registry := NewRegistry()

	w1 := registry.Register()
	w2 := registry.Register()

	if got := registry.NotifyAll(); got != 2 {
		t.Errorf("NotifyAll() = %d, want 2", got)
	}

	for i, w := range []*Waiter{w1, w2} {
		select {
		case <-w.Done():
		default:
			t.Errorf("waiter %d not notified", i)
		}
	}

	if registry.Len() != 0 {
		t.Errorf("Len() = %d after NotifyAll(), want 0", registry.Len())
	}
}

// TestRegistry_Remove verifies a removed waiter is never woken.
func TestRegistry_Remove(t *testing.T) {
	registry := NewRegistry()

	w := registry.Register()
	registry.Remove(w)

	if got := registry.NotifyAll(); got != 0 {
		t.Errorf("NotifyAll() = %d after Remove(), want 0", got)
	}

	select {
	case <-w.Done():
		t.Error("removed waiter was notified")
	default:
	}
}

// TestRegistry_Remove_AfterNotify verifies Remove tolerates notified waiters.
func TestRegistry_Remove_AfterNotify(t *testing.T) {
	registry := NewRegistry()

	w := registry.Register()
	registry.NotifyAll()
	registry.Remove(w)
	registry.Remove(w)

	if registry.Len() != 0 {
		t.Errorf("Len() = %d, want 0", registry.Len())
	}
}

// TestRegistry_Concurrent exercises register/notify/remove from many goroutines.
func TestRegistry_Concurrent(t *testing.T) {
	registry := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := registry.Register()
			defer registry.Remove(w)
			select {
			case <-w.Done():
			case <-time.After(time.Second):
			}
		}()
	}

	deadline := time.Now().Add(time.Second)
	for registry.Len() < 50 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	registry.NotifyAll()
	wg.Wait()

	if registry.Len() != 0 {
		t.Errorf("Len() = %d after all waiters returned, want 0", registry.Len())
	}
}
