package worker

import (
	"errors"
	"sync"

	"github.com/fiapx/fiapx-frame-extractor/internal/infra/metrics"
	"go.uber.org/zap"
)

var ErrPoolClosed = errors.New("worker pool closed")

type task struct {
	fn   func()
	done chan struct{}
}

// Pool runs submitted work on a fixed number of goroutines. Submissions
// beyond the worker count wait for a free worker.
type Pool struct {
	tasks  chan task
	logger *zap.Logger
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewPool(workerCount int, logger *zap.Logger) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}

	p := &Pool{
		tasks:  make(chan task),
		logger: logger,
	}

	logger.Info("starting worker pool", zap.Int("workers", workerCount))
	for i := 0; i < workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	log := p.logger.With(zap.Int("worker_id", id))
	log.Debug("worker started")

	for t := range p.tasks {
		metrics.ActiveWorkers.Inc()
		p.run(t, log)
		metrics.ActiveWorkers.Dec()
	}
	log.Debug("worker shutting down")
}

func (p *Pool) run(t task, log *zap.Logger) {
	defer close(t.done)
	defer func() {
		if r := recover(); r != nil {
			log.Error("task panicked", zap.Any("panic", r))
		}
	}()
	t.fn()
}

// Do blocks until fn has run to completion on one of the workers.
func (p *Pool) Do(fn func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	t := task{fn: fn, done: make(chan struct{})}
	metrics.QueuedExtractions.Inc()
	p.tasks <- t
	metrics.QueuedExtractions.Dec()
	<-t.done
	return nil
}

// Close stops accepting work and waits for running tasks to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()
	p.wg.Wait()
}
