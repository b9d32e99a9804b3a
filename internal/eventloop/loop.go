package eventloop

import "sync"

// Loop is a cooperative task scheduler. All posted tasks run strictly one
// at a time on the goroutine that called Run, so state shared between
// tasks needs no locking as long as it is only touched from tasks.
type Loop struct {
	mu      sync.Mutex
	tasks   []func()
	wake    chan struct{}
	stopped bool
	code    int
}

// New creates a new event loop.
func New() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
	}
}

// Post enqueues fn for execution on the loop goroutine. It is safe to call
// from any goroutine. Posting after Quit is a silent no-op.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Quit stops the loop after the currently running task returns. Remaining
// queued tasks are dropped. The first call wins; later calls are ignored.
func (l *Loop) Quit(code int) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.stopped = true
	l.code = code
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Stopped reports whether Quit has been called.
func (l *Loop) Stopped() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopped
}

// Run dispatches tasks until Quit is called, then returns the exit code.
// It blocks indefinitely while the queue is empty; there are no timers
// and no timeouts.
func (l *Loop) Run() int {
	for {
		l.mu.Lock()
		if l.stopped {
			code := l.code
			l.mu.Unlock()
			return code
		}
		var task func()
		if len(l.tasks) > 0 {
			task = l.tasks[0]
			l.tasks = l.tasks[1:]
		}
		l.mu.Unlock()

		if task != nil {
			task()
			continue
		}

		<-l.wake
	}
}
