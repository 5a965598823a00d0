package imgcache

import "sync"

// Executor delivers Retrieve completions.
type Executor interface {
	Execute(fn func())
}

// InlineExecutor runs completions on the goroutine that finished the work.
type InlineExecutor struct{}

func (InlineExecutor) Execute(fn func()) { fn() }

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(fn func())

func (f ExecutorFunc) Execute(fn func()) { f(fn) }

// SerialExecutor runs completions one at a time, in submission order, on a
// single goroutine. After Close completions run on the submitting goroutine.
type SerialExecutor struct {
	mu     sync.RWMutex
	queue  chan func()
	done   chan struct{}
	closed bool
}

func NewSerialExecutor(buffer int) *SerialExecutor {
	e := &SerialExecutor{
		queue: make(chan func(), max(buffer, 0)),
		done:  make(chan struct{}),
	}
	go e.loop()
	return e
}

func (e *SerialExecutor) Execute(fn func()) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		fn()
		return
	}
	e.queue <- fn
	e.mu.RUnlock()
}

// Close runs the queued completions and stops the delivery goroutine.
func (e *SerialExecutor) Close() error {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.queue)
	}
	e.mu.Unlock()
	<-e.done
	return nil
}

func (e *SerialExecutor) loop() {
	defer close(e.done)
	for fn := range e.queue {
		fn()
	}
}
