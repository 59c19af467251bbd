package connect

import (
	"net/http"
	"sync"
	"sync/atomic"

	apperrors "github.com/zsiec/ingex/internal/errors"
	"github.com/zsiec/ingex/internal/metrics"
)

// worker runs decodes on its own goroutine with at most one frame in flight.
// submit marks the frame pending; wait collects its result and clears it.
type worker struct {
	name    string
	run     func([]byte) error
	jobs    chan []byte
	results chan error
	stop    chan struct{}
	done    chan struct{}
	pending atomic.Bool
	once    sync.Once
}

func newWorker(name string, run func([]byte) error) *worker {
	w := &worker{
		name:    name,
		run:     run,
		jobs:    make(chan []byte, 1),
		results: make(chan error, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *worker) loop() {
	metrics.IncrementGoroutineCreated(w.name)
	defer metrics.IncrementGoroutineDestroyed(w.name)
	defer close(w.done)

	for {
		select {
		case <-w.stop:
			return
		case data := <-w.jobs:
			select {
			case <-w.stop:
				return
			default:
			}
			w.results <- w.run(data)
		}
	}
}

func (w *worker) submit(data []byte) error {
	select {
	case <-w.stop:
		return ErrClosed
	default:
	}
	if !w.pending.CompareAndSwap(false, true) {
		return apperrors.Wrap(ErrWorkerBusy, apperrors.ErrorTypeProtocol,
			"previous frame not yet synced", http.StatusConflict)
	}
	w.jobs <- data
	return nil
}

// busy reports whether a submitted frame has not been collected by wait.
func (w *worker) busy() bool { return w.pending.Load() }

// wait blocks until the pending frame is processed. There is no timeout.
func (w *worker) wait() error {
	if !w.pending.Load() {
		return nil
	}
	select {
	case err := <-w.results:
		w.pending.Store(false)
		return err
	case <-w.done:
		w.pending.Store(false)
		return ErrClosed
	}
}

// close stops the goroutine after any in-flight decode and waits for it.
func (w *worker) close() {
	w.once.Do(func() {
		close(w.stop)
		<-w.done
	})
}
