// Package counter provides process-wide named counters.
//
// Counters are created on first use and live until the process exits. They
// expose only atomic increment, decrement and read; the stored value is never
// handed out by reference.
//
//	active := counter.Get("http.active_requests")
//	active.Inc()
//	defer active.Dec()
package counter

import (
	"sort"
	"sync"

	"code.hybscloud.com/atomix"
)

// Counter is an atomic int64 counter. The zero value is ready to use.
type Counter struct {
	v atomix.Int64
}

// Inc adds one and returns the new value
func (c *Counter) Inc() int64 {
	return c.v.AddAcqRel(1)
}

// Dec subtracts one and returns the new value
func (c *Counter) Dec() int64 {
	return c.v.AddAcqRel(-1)
}

// Add adds n and returns the new value
func (c *Counter) Add(n int64) int64 {
	return c.v.AddAcqRel(n)
}

// Load returns the current value
func (c *Counter) Load() int64 {
	return c.v.LoadAcquire()
}

// Registry maps names to counters
type Registry struct {
	mu       sync.RWMutex
	counters map[string]*Counter
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{counters: make(map[string]*Counter)}
}

// Get returns the counter registered under name, creating it on first use.
// Every call with the same name returns the same *Counter.
func (r *Registry) Get(name string) *Counter {
	r.mu.RLock()
	c, ok := r.counters[name]
	r.mu.RUnlock()
	if ok {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	c = &Counter{}
	r.counters[name] = c
	return c
}

// Names returns the registered counter names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.counters))
	for name := range r.counters {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Snapshot returns the current value of every counter. Values are read one
// at a time and are not a consistent cut across counters.
func (r *Registry) Snapshot() map[string]int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]int64, len(r.counters))
	for name, c := range r.counters {
		out[name] = c.Load()
	}
	return out
}

// global is initialized at process start and never torn down
var global = NewRegistry()

// Get returns the process-wide counter registered under name
func Get(name string) *Counter {
	return global.Get(name)
}

// Snapshot returns the value of every process-wide counter
func Snapshot() map[string]int64 {
	return global.Snapshot()
}

// Names returns the names of all process-wide counters
func Names() []string {
	return global.Names()
}
