// Package correlation links short-lived hit-level readings to a later
// scoring event for the same athlete.
package correlation

import (
	"sync"
	"time"

	"github.com/okian/hogu/internal/domain/protocol"
)

// Default window parameters.
const (
	DefaultCapacity = 10
	DefaultWindow   = 5 * time.Second
)

// Enrichment summarizes the readings correlated with a scoring event.
type Enrichment struct {
	Readings []int   `json:"readings"`
	Max      int     `json:"max"`
	Average  float64 `json:"average"`
}

// Option applies a configuration option to the Window.
type Option func(*Window)

// WithCapacity sets the per-athlete ring size.
func WithCapacity(n int) Option {
	return func(w *Window) {
		if n > 0 {
			w.capacity = n
		}
	}
}

// WithWindow sets the lookback used by Enrich.
func WithWindow(d time.Duration) Option {
	return func(w *Window) {
		if d > 0 {
			w.window = d
		}
	}
}

type reading struct {
	value int
	at    time.Time
}

// ring is a fixed-capacity buffer that overwrites its oldest entry.
type ring struct {
	items []reading
	head  int
	size  int
}

func (r *ring) push(v reading) {
	cp := len(r.items)
	r.items[(r.head+r.size)%cp] = v
	if r.size < cp {
		r.size++
		return
	}
	r.head = (r.head + 1) % cp
}

// each visits readings oldest first.
func (r *ring) each(fn func(reading)) {
	for i := 0; i < r.size; i++ {
		fn(r.items[(r.head+i)%len(r.items)])
	}
}

// Window holds one ring per athlete. Safe for concurrent use.
type Window struct {
	mu       sync.Mutex
	rings    map[protocol.Athlete]*ring
	capacity int
	window   time.Duration
}

// New creates a Window with configuration options.
func New(opts ...Option) *Window {
	w := &Window{
		rings:    make(map[protocol.Athlete]*ring),
		capacity: DefaultCapacity,
		window:   DefaultWindow,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Record appends a reading, evicting the athlete's oldest when full.
func (w *Window) Record(athlete protocol.Athlete, value int, at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	r, ok := w.rings[athlete]
	if !ok {
		r = &ring{items: make([]reading, w.capacity)}
		w.rings[athlete] = r
	}
	r.push(reading{value: value, at: at})
}

// Recent returns, oldest first, readings with 0 <= now-at <= window.
// It does not consume them.
func (w *Window) Recent(athlete protocol.Athlete, now time.Time, window time.Duration) []int {
	w.mu.Lock()
	defer w.mu.Unlock()
	r, ok := w.rings[athlete]
	if !ok {
		return nil
	}
	var out []int
	r.each(func(rd reading) {
		age := now.Sub(rd.at)
		if age >= 0 && age <= window {
			out = append(out, rd.value)
		}
	})
	return out
}

// Len returns the number of buffered readings for athlete.
func (w *Window) Len(athlete protocol.Athlete) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if r, ok := w.rings[athlete]; ok {
		return r.size
	}
	return 0
}

// Enrich summarizes in-window readings. It reports false when there are none.
func (w *Window) Enrich(athlete protocol.Athlete, now time.Time) (Enrichment, bool) {
	values := w.Recent(athlete, now, w.window)
	if len(values) == 0 {
		return Enrichment{}, false
	}
	sum, maxV := 0, values[0]
	for _, v := range values {
		sum += v
		if v > maxV {
			maxV = v
		}
	}
	return Enrichment{
		Readings: values,
		Max:      maxV,
		Average:  float64(sum) / float64(len(values)),
	}, true
}

// ClearAll drops every buffered reading.
func (w *Window) ClearAll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	clear(w.rings)
}
