package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"veneer/internal/scheduler"

	"github.com/stretchr/testify/assert"
)

func TestTasksRunInOrder(t *testing.T) {
	s := scheduler.NewScheduler(8)
	s.RunScheduler(context.Background())
	defer s.StopScheduler()

	var mu sync.Mutex
	var order []string
	for _, name := range []string{"a", "b", "c"} {
		name := name
		assert.True(t, s.ScheduleHighPriorityTask(scheduler.Task{Name: name, Execute: func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}}))
	}
	s.Wait()
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestFailingTaskDoesNotStopTheLoop(t *testing.T) {
	s := scheduler.NewScheduler(4)
	s.RunScheduler(context.Background())
	defer s.StopScheduler()

	var ran atomic.Int32
	s.ScheduleHighPriorityTask(scheduler.Task{Name: "fail", Execute: func(context.Context) error {
		return errors.New("boom")
	}})
	s.ScheduleHighPriorityTask(scheduler.Task{Name: "panic", Execute: func(context.Context) error {
		panic("boom")
	}})
	s.ScheduleHighPriorityTask(scheduler.Task{Name: "ok", Execute: func(context.Context) error {
		ran.Add(1)
		return nil
	}})
	s.Wait()
	assert.Equal(t, int32(1), ran.Load())
}

func TestPeriodicTaskRunsOnStartAndRepeats(t *testing.T) {
	s := scheduler.NewScheduler(4)
	s.RunScheduler(context.Background())
	defer s.StopScheduler()

	var runs atomic.Int32
	s.SchedulePeriodicTask(10*time.Millisecond, scheduler.Task{Name: "rescan", Execute: func(context.Context) error {
		runs.Add(1)
		return nil
	}})
	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestStopRunsQueuedTasksAndRejectsNewOnes(t *testing.T) {
	s := scheduler.NewScheduler(4)
	var ran atomic.Int32
	task := scheduler.Task{Name: "t", Execute: func(context.Context) error {
		ran.Add(1)
		return nil
	}}
	s.ScheduleHighPriorityTask(task)
	s.ScheduleHighPriorityTask(task)
	s.RunScheduler(context.Background())
	s.StopScheduler()

	assert.Equal(t, int32(2), ran.Load())
	assert.False(t, s.ScheduleHighPriorityTask(task))
	s.StopScheduler()
}
