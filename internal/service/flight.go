package service

import "sync"

// keyedFlight guarantees at most one in-flight operation per key. Unlike
// singleflight, a duplicate caller is not queued or coalesced: TryAcquire
// fails and the caller skips its turn entirely.
type keyedFlight struct {
	mu       sync.Mutex
	inflight map[string]struct{}
}

func newKeyedFlight() *keyedFlight {
	return &keyedFlight{inflight: make(map[string]struct{})}
}

// TryAcquire claims the key, returning false if it is already held.
func (f *keyedFlight) TryAcquire(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, busy := f.inflight[key]; busy {
		return false
	}
	f.inflight[key] = struct{}{}
	return true
}

// Release frees the key for the next caller.
func (f *keyedFlight) Release(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.inflight, key)
}
