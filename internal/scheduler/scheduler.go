// Package scheduler runs background work off the request path: index
// commits for open documents and periodic workspace rescans.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("veneer.scheduler")

type Task struct {
	Name    string
	Execute func(ctx context.Context) error
}

type Scheduler struct {
	taskQueue chan Task
	stopChan  chan struct{}

	mu      sync.RWMutex
	stopped bool

	pending sync.WaitGroup // queued tasks
	loops   sync.WaitGroup
}

// NewScheduler creates a new Scheduler with the specified queue size.
func NewScheduler(queueSize int) *Scheduler {
	return &Scheduler{
		taskQueue: make(chan Task, queueSize),
		stopChan:  make(chan struct{}),
	}
}

// RunScheduler starts the loop that executes queued tasks one at a time.
func (s *Scheduler) RunScheduler(ctx context.Context) {
	s.loops.Add(1)
	go func() {
		defer s.loops.Done()
		for {
			select {
			case task := <-s.taskQueue:
				s.execute(ctx, task)
			case <-s.stopChan:
				// drain what was queued before the stop
				for {
					select {
					case task := <-s.taskQueue:
						log.Debugf("draining %s", task.Name)
						s.execute(ctx, task)
					default:
						return
					}
				}
			}
		}
	}()
}

func (s *Scheduler) execute(ctx context.Context, task Task) {
	defer s.pending.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("task %s panicked: %v", task.Name, r)
		}
	}()
	start := time.Now()
	if err := task.Execute(ctx); err != nil {
		log.Errorf("task %s failed: %s", task.Name, err)
		return
	}
	log.Debugf("task %s done in %s", task.Name, time.Since(start))
}

// SchedulePeriodicTask queues task now and then every interval. A run is
// skipped while the previous one is still queued or the queue is full.
func (s *Scheduler) SchedulePeriodicTask(interval time.Duration, task Task) {
	var queued atomic.Bool
	wrapped := Task{Name: task.Name, Execute: func(ctx context.Context) error {
		queued.Store(false)
		return task.Execute(ctx)
	}}
	enqueue := func() {
		if !queued.CompareAndSwap(false, true) {
			log.Debugf("skipped scheduling %s: still queued", task.Name)
			return
		}
		if !s.trySchedule(wrapped) {
			queued.Store(false)
			log.Debugf("skipped scheduling %s: queue is full", task.Name)
		}
	}

	enqueue()
	if interval <= 0 {
		return
	}

	s.loops.Add(1)
	go func() {
		defer s.loops.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				enqueue()
			case <-s.stopChan:
				return
			}
		}
	}()
}

func (s *Scheduler) trySchedule(task Task) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		return false
	}
	s.pending.Add(1)
	select {
	case s.taskQueue <- task:
		return true
	default:
		s.pending.Done()
		return false
	}
}

// ScheduleHighPriorityTask queues task, waiting for room in the queue. It
// reports false once the scheduler has been stopped.
func (s *Scheduler) ScheduleHighPriorityTask(task Task) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		return false
	}
	s.pending.Add(1)
	s.taskQueue <- task
	return true
}

// Wait blocks until every task queued so far has run.
func (s *Scheduler) Wait() {
	s.pending.Wait()
}

// StopScheduler runs what is still queued and stops the loops.
func (s *Scheduler) StopScheduler() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	log.Info("stopping scheduler")
	close(s.stopChan)
	s.loops.Wait()
	log.Info("scheduler stopped")
}
