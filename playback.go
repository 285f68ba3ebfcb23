package server

import (
	"sync"
	"time"
)

// periodicTask runs fn on a fixed interval until stopped. Stop never blocks, so
// it is safe to call from fn itself or while holding the owning room's lock;
// Done reports when the goroutine has actually exited.
type periodicTask struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func startPeriodic(interval time.Duration, fn func(task *periodicTask)) *periodicTask {
	task := &periodicTask{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go func() {
		defer close(task.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-task.stop:
				return
			case <-ticker.C:
				select {
				case <-task.stop:
					return
				default:
				}
				fn(task)
			}
		}
	}()
	return task
}

func (t *periodicTask) Stop() {
	if t == nil {
		return
	}
	t.once.Do(func() { close(t.stop) })
}

func (t *periodicTask) Done() <-chan struct{} {
	if t == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return t.done
}

func (t *periodicTask) stopped() bool {
	select {
	case <-t.stop:
		return true
	default:
		return false
	}
}
