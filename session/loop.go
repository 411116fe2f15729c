package session

import "sync"

// loop runs every state mutation of a session on one goroutine.
type loop struct {
	calls chan func()
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func newLoop() *loop {
	l := &loop{
		calls: make(chan func(), 1024),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *loop) run() {
	defer close(l.done)
	for {
		select {
		case fn := <-l.calls:
			fn()
		case <-l.quit:
			return
		}
	}
}

// post queues fn. It reports false once the loop is stopping; fn may then
// never run.
func (l *loop) post(fn func()) bool {
	select {
	case <-l.quit:
		return false
	default:
	}
	select {
	case l.calls <- fn:
		return true
	case <-l.quit:
		return false
	}
}

// call runs fn on the loop and waits for it. Never call it from the loop.
func (l *loop) call(fn func()) bool {
	ran := make(chan struct{})
	if !l.post(func() { fn(); close(ran) }) {
		return false
	}
	select {
	case <-ran:
		return true
	case <-l.done:
		select {
		case <-ran:
			return true
		default:
			return false
		}
	}
}

func (l *loop) stop() {
	l.once.Do(func() { close(l.quit) })
	<-l.done
}
