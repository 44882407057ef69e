package jobs

import "sync"

// WorkerPool runs at most limit tasks concurrently. Excess submissions queue
// in FIFO order and are admitted strictly in submission order as running
// slots free up. The pool knows nothing about job semantics; tasks own their
// failures and must not panic.
type WorkerPool struct {
	mu      sync.Mutex
	limit   int
	running int
	queue   []func()
}

// NewWorkerPool creates a pool with the given concurrency bound.
// Non-positive bounds fall back to 20.
func NewWorkerPool(limit int) *WorkerPool {
	if limit <= 0 {
		limit = 20
	}
	return &WorkerPool{limit: limit}
}

// Submit schedules task without blocking the caller: it either starts
// immediately in a fresh goroutine or joins the FIFO queue.
func (p *WorkerPool) Submit(task func()) {
	if task == nil {
		return
	}
	p.mu.Lock()
	if p.running < p.limit {
		p.running++
		p.mu.Unlock()
		go p.run(task)
		return
	}
	p.queue = append(p.queue, task)
	p.mu.Unlock()
}

// run executes task and then keeps draining the queue from the same slot.
// Checking the queue and releasing the slot happen under one lock hold, so
// the running count never exceeds the limit and a slot never idles while
// work is queued.
func (p *WorkerPool) run(task func()) {
	for {
		task()

		p.mu.Lock()
		if len(p.queue) == 0 {
			p.running--
			p.mu.Unlock()
			return
		}
		task = p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()
	}
}

// Running reports the number of occupied slots.
func (p *WorkerPool) Running() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Queued reports the number of tasks waiting for a slot.
func (p *WorkerPool) Queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}
