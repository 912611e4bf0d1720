// Package pool provides a fixed-size worker pool that runs submitted jobs on
// long-lived goroutines and queues any overflow until a slot frees up.
package pool

import (
	"errors"
	"log"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

var (
	// ErrInvalidSize is returned by New when asked for fewer than one slot.
	ErrInvalidSize = errors.New("pool: size must be at least 1")
	// ErrPoolClosed is returned by Execute once Close has been called.
	ErrPoolClosed = errors.New("pool: closed")
)

// Pool owns a fixed number of worker goroutines. Jobs submitted while every
// worker is busy wait in an unbounded FIFO queue and are never dropped.
type Pool struct {
	size   int
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	active atomic.Int64
	wg     sync.WaitGroup
}

// New starts a pool with size workers.
func New(size int) (*Pool, error) {
	if size < 1 {
		return nil, ErrInvalidSize
	}

	p := &Pool{size: size}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(size)
	for id := 0; id < size; id++ {
		go p.worker(id)
	}
	return p, nil
}

// Size returns the number of worker slots.
func (p *Pool) Size() int {
	return p.size
}

// Execute queues job to run on the next free worker.
func (p *Pool) Execute(job func()) error {
	if job == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	p.queue = append(p.queue, job)
	p.cond.Signal()
	return nil
}

// Active reports how many jobs are running right now.
func (p *Pool) Active() int {
	return int(p.active.Load())
}

// Queued reports how many jobs are waiting for a worker.
func (p *Pool) Queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Close stops accepting jobs. Workers finish whatever is already queued and
// then exit; Close itself does not wait for them.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cond.Broadcast()
}

// Wait blocks until every worker has exited. Only meaningful after Close.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		job, ok := p.next()
		if !ok {
			return
		}
		p.run(id, job)
	}
}

// next blocks until a job is available or the pool is closed and drained.
func (p *Pool) next() (func(), bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.queue) == 0 && !p.closed {
		p.cond.Wait()
	}
	if len(p.queue) == 0 {
		return nil, false
	}

	job := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	return job, true
}

func (p *Pool) run(id int, job func()) {
	p.active.Add(1)
	defer p.active.Add(-1)

	defer func() {
		if r := recover(); r != nil {
			log.Printf("Worker %d recovered from panic in job: %v\n%s", id, r, debug.Stack())
		}
	}()

	job()
}
