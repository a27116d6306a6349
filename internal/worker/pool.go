package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

var (
	// ErrPoolSaturated is returned by Submit when the queue is full. The task
	// is dropped; callers rely on the next sync to converge.
	ErrPoolSaturated = errors.New("worker pool saturated")
	ErrPoolClosed    = errors.New("worker pool closed")
)

type poolTask struct {
	name   string
	fn     func(ctx context.Context) error
	onDone func(error)
}

// Pool runs fire-and-forget tasks on a fixed set of goroutines fed by a
// bounded queue. Tasks run with the pool's own context, not the submitter's,
// so they outlive the request that created them.
type Pool struct {
	queue  chan poolTask
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewPool starts size workers reading from a queue of queueSize slots.
func NewPool(size, queueSize int) *Pool {
	if size < 1 {
		size = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		queue:  make(chan poolTask, queueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.run(i)
	}
	log.Info().Int("workers", size).Int("queue", queueSize).Msg("worker_pool: started")
	return p
}

// Submit enqueues fn without blocking. onDone, when set, receives the task's
// result (a recovered panic is reported as an error).
func (p *Pool) Submit(name string, fn func(ctx context.Context) error, onDone func(error)) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.queue <- poolTask{name: name, fn: fn, onDone: onDone}:
		return nil
	default:
		log.Warn().Str("task", name).Msg("worker_pool: queue full, task rejected")
		return ErrPoolSaturated
	}
}

// Shutdown stops accepting tasks and waits for the queued ones to finish.
// When ctx expires first the running tasks are cancelled and ctx.Err() returned.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		log.Info().Msg("worker_pool: drained")
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

func (p *Pool) run(id int) {
	defer p.wg.Done()
	for t := range p.queue {
		err := p.exec(t)
		if err != nil {
			log.Error().Err(err).Int("worker", id).Str("task", t.name).Msg("worker_pool: task failed")
		}
		if t.onDone != nil {
			t.onDone(err)
		}
	}
}

func (p *Pool) exec(t poolTask) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", t.name, r)
		}
	}()
	return t.fn(p.ctx)
}
