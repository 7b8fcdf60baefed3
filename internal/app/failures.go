package service

import (
	"sync"
	"time"

	"github.com/okian/hogu/internal/domain/model"
)

const defaultFailureHistory = 50

// failureLog keeps the newest persistence failures in a fixed ring.
type failureLog struct {
	mu   sync.Mutex
	buf  []model.PersistenceFailure
	next int
	full bool
}

func newFailureLog(size int) *failureLog {
	if size <= 0 {
		size = defaultFailureHistory
	}
	return &failureLog{buf: make([]model.PersistenceFailure, size)}
}

func (f *failureLog) record(ev model.StoredEvent, err error) {
	rec := model.PersistenceFailure{
		At:        time.Now(),
		SessionID: ev.Context.SessionID,
		Sequence:  ev.Sequence,
		Kind:      ev.Kind,
		Raw:       ev.Raw,
		Error:     err.Error(),
	}
	f.mu.Lock()
	f.buf[f.next] = rec
	f.next = (f.next + 1) % len(f.buf)
	if f.next == 0 {
		f.full = true
	}
	f.mu.Unlock()
}

// recent returns the recorded failures, newest first.
func (f *failureLog) recent() []model.PersistenceFailure {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.next
	if f.full {
		n = len(f.buf)
	}
	if n == 0 {
		return nil
	}
	out := make([]model.PersistenceFailure, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, f.buf[(f.next-i+len(f.buf))%len(f.buf)])
	}
	return out
}
