package pool

import (
	"sync"

	"github.com/google/uuid"
)

// Result is the eventual outcome of a scheduled job.
type Result struct {
	err  error
	done chan struct{}
	data []byte
	id   uuid.UUID
	once sync.Once
}

func newResult(id uuid.UUID) *Result {
	return &Result{id: id, done: make(chan struct{})}
}

// ID returns the job's unique ID.
func (r *Result) ID() uuid.UUID {
	return r.id
}

// Done is closed once the result is available.
func (r *Result) Done() <-chan struct{} {
	return r.done
}

// Then blocks until the job completes and returns its output or error.
func (r *Result) Then() ([]byte, error) {
	<-r.done
	return r.data, r.err
}

// ThenDo calls fn with the job's output or error once it completes, on its own goroutine.
func (r *Result) ThenDo(fn func(data []byte, err error)) {
	go func() {
		fn(r.Then())
	}()
}

// resolve records the outcome. Only the first call has any effect.
func (r *Result) resolve(data []byte, err error) {
	r.once.Do(func() {
		r.data = data
		r.err = err
		close(r.done)
	})
}
