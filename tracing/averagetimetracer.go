package tracing

import (
	"sync"

	"github.com/kestrel-os/kestrel/kernel"
)

// AverageTimeTracer can collect the average processing time of a certain
// type of task.
type AverageTimeTracer struct {
	timeTeller    kernel.TimeTeller
	filter        TaskFilter
	lock          sync.Mutex
	averageTime   float64
	inflightTasks map[string]Task
	taskCount     uint64
}

// NewAverageTimeTracer creates a new AverageTimeTracer.
func NewAverageTimeTracer(
	timeTeller kernel.TimeTeller,
	filter TaskFilter,
) *AverageTimeTracer {
	t := &AverageTimeTracer{
		timeTeller:    timeTeller,
		filter:        filter,
		inflightTasks: make(map[string]Task),
	}
	return t
}

// AverageTime returns the average time that has been spent on one traced
// task.
func (t *AverageTimeTracer) AverageTime() float64 {
	t.lock.Lock()
	time := t.averageTime
	t.lock.Unlock()
	return time
}

// TotalCount returns the total number of tasks.
func (t *AverageTimeTracer) TotalCount() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.taskCount
}

// StartTask records the task start time.
func (t *AverageTimeTracer) StartTask(task Task) {
	task.StartTime = t.timeTeller.Uptime()

	if t.filter != nil && !t.filter(task) {
		return
	}

	t.lock.Lock()
	t.inflightTasks[task.ID] = task
	t.lock.Unlock()
}

// StepTask does nothing.
func (t *AverageTimeTracer) StepTask(_ Task) {
	// Do nothing
}

// EndTask records the end of the task.
func (t *AverageTimeTracer) EndTask(task Task) {
	task.EndTime = t.timeTeller.Uptime()

	t.lock.Lock()
	originalTask, ok := t.inflightTasks[task.ID]
	if !ok {
		t.lock.Unlock()
		return
	}

	taskTime := task.EndTime - originalTask.StartTime
	t.averageTime = (t.averageTime*float64(t.taskCount) + taskTime) /
		float64(t.taskCount+1)
	delete(t.inflightTasks, task.ID)
	t.taskCount++
	t.lock.Unlock()
}
