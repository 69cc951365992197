package engine

import (
	"sync"

	"code.hybscloud.com/atomix"
)

// lifecycleState is the engine's run state.
type lifecycleState int32

const (
	uninitialized lifecycleState = iota
	starting
	running
	stopping
	stopped
)

// lifecycle implements the startup handshake and cooperative stop
// protocol: one mutex + one condition variable guarding the state
// machine, plus a release/acquire stop flag the worker polls without
// taking the mutex.
type lifecycle struct {
	mu    sync.Mutex
	cond  *sync.Cond
	state lifecycleState

	stopFlag atomix.Bool
	done     chan struct{}
}

func newLifecycle() *lifecycle {
	l := &lifecycle{state: uninitialized, done: make(chan struct{})}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// start is idempotent: if the engine is already running it returns
// immediately; if another goroutine is mid-start it waits for that
// goroutine to reach running. spawn is invoked once per transition out
// of uninitialized or stopped, by whichever caller wins that race, so a
// start after a completed stop spawns a fresh worker; the winner then
// waits on the same condition variable until the spawned
// worker reports running, so start never returns before the worker is
// actually up.
func (l *lifecycle) start(spawn func()) {
	l.mu.Lock()
	for {
		switch l.state {
		case running:
			l.mu.Unlock()
			return
		case starting:
			l.cond.Wait()
			continue
		case uninitialized, stopped:
			l.state = starting
			l.done = make(chan struct{})
			l.stopFlag.StoreRelease(false)
			l.mu.Unlock()
			spawn()
			l.mu.Lock()
			for l.state == starting {
				l.cond.Wait()
			}
			l.mu.Unlock()
			return
		default:
			l.mu.Unlock()
			return
		}
	}
}

// markStarted is called by the worker goroutine once binding has been
// applied and the main loop is about to begin.
func (l *lifecycle) markStarted() {
	l.mu.Lock()
	l.state = running
	l.cond.Broadcast()
	l.mu.Unlock()
}

// stop requests the worker goroutine to exit after its current pass and
// waits for it to do so. Returns a lifecycle error if the engine is
// already stopping or has stopped since its last start. A stop issued
// while the engine is still starting is not an error: it sets the stop
// flag and waits for the worker to exit like any other stop.
func (l *lifecycle) stop() error {
	l.mu.Lock()
	switch l.state {
	case uninitialized:
		l.mu.Unlock()
		return nil
	case stopping, stopped:
		l.mu.Unlock()
		return newLifecycleError("stop called more than once")
	}
	l.state = stopping
	l.mu.Unlock()

	l.stopFlag.StoreRelease(true)
	<-l.done

	l.mu.Lock()
	l.state = stopped
	l.mu.Unlock()
	return nil
}

func (l *lifecycle) shouldStop() bool {
	return l.stopFlag.LoadAcquire()
}

func (l *lifecycle) workerExited() {
	close(l.done)
}

func (l *lifecycle) isRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state == running
}
