package controller

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Task is a unit of prefetch work. ctx is cancelled when the prefetcher stops.
type Task func(ctx context.Context)

// Prefetcher runs best-effort tasks on a fixed set of workers fed by a
// bounded queue. Work that does not fit in the queue is dropped.
type Prefetcher struct {
	workers int
	queue   chan Task
	log     logrus.FieldLogger

	mu      sync.RWMutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewPrefetcher creates a stopped prefetcher.
//
// Arguments:
//   - workers: The number of worker goroutines, at least 1.
//   - queueSize: The number of tasks that may wait for a worker.
//   - log: The logger.
//
// Returns:
//   - *Prefetcher: The prefetcher. Call Start before submitting.
func NewPrefetcher(workers, queueSize int, log logrus.FieldLogger) *Prefetcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &Prefetcher{
		workers: workers,
		queue:   make(chan Task, queueSize),
		log:     log,
	}
}

// Start launches the workers. Calling Start on a running prefetcher is a
// no-op.
func (p *Prefetcher) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	p.running = true
	p.ctx, p.cancel = context.WithCancel(context.Background())

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work(p.ctx)
	}
}

func (p *Prefetcher) work(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-p.queue:
			if ctx.Err() != nil {
				return
			}
			task(ctx)
		}
	}
}

// TrySubmit queues task without blocking.
//
// Returns:
//   - bool: false when the prefetcher is stopped or the queue is full.
func (p *Prefetcher) TrySubmit(task Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.running {
		return false
	}
	select {
	case p.queue <- task:
		return true
	default:
		p.log.Debug("prefetch queue is full, dropping task")
		return false
	}
}

// Stop cancels running tasks, waits for the workers to exit and discards
// queued tasks.
func (p *Prefetcher) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()

	for {
		select {
		case <-p.queue:
		default:
			return
		}
	}
}
