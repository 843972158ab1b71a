package addon

import "sync"

// scheduler is the dedicated start/stop thread for addon lifecycle
// transitions: phases run serially on this one goroutine so they never
// race each other, while dispatch readers elsewhere proceed under the
// route registry's own snapshot discipline. Adapted from a reconciler
// work-queue pattern: a sync.Cond guarding a FIFO slice of pending
// tasks, with a clean shutdown drain.
type scheduler struct {
	mu           sync.Mutex
	cond         *sync.Cond
	tasks        []func()
	shuttingDown bool
	stopped      chan struct{}
}

func newScheduler() *scheduler {
	s := &scheduler{stopped: make(chan struct{})}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// run is the scheduler goroutine's body; callers start it with
// `go s.run()` once at construction.
func (s *scheduler) run() {
	for {
		s.mu.Lock()
		for len(s.tasks) == 0 && !s.shuttingDown {
			s.cond.Wait()
		}
		if s.shuttingDown && len(s.tasks) == 0 {
			s.mu.Unlock()
			close(s.stopped)
			return
		}
		next := s.tasks[0]
		s.tasks = s.tasks[1:]
		s.mu.Unlock()

		next()
	}
}

// submit enqueues t to run on the scheduler goroutine, FIFO. It reports
// false without enqueuing if the scheduler is shutting down.
func (s *scheduler) submit(t func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shuttingDown {
		return false
	}
	s.tasks = append(s.tasks, t)
	s.cond.Signal()
	return true
}

// submitAndWait enqueues t and blocks until it has run. It returns
// immediately, without running t, if the scheduler is shutting down.
func (s *scheduler) submitAndWait(t func()) {
	done := make(chan struct{})
	if !s.submit(func() {
		t()
		close(done)
	}) {
		return
	}
	<-done
}

// shutdown drains any queued tasks, then stops the goroutine.
func (s *scheduler) shutdown() {
	s.mu.Lock()
	s.shuttingDown = true
	s.cond.Broadcast()
	s.mu.Unlock()
	<-s.stopped
}
