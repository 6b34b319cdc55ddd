package tracing

import (
	"sync"

	"github.com/kestrel-os/kestrel/kernel"
)

// TotalTimeTracer can collect the total time of executing a certain type of
// task. If the execution of two tasks overlaps, this tracer simply adds the
// two task processing times together.
type TotalTimeTracer struct {
	timeTeller    kernel.TimeTeller
	filter        TaskFilter
	lock          sync.Mutex
	totalTime     float64
	inflightTasks map[string]Task
}

// NewTotalTimeTracer creates a new TotalTimeTracer.
func NewTotalTimeTracer(
	timeTeller kernel.TimeTeller,
	filter TaskFilter,
) *TotalTimeTracer {
	t := &TotalTimeTracer{
		timeTeller:    timeTeller,
		filter:        filter,
		inflightTasks: make(map[string]Task),
	}
	return t
}

// TotalTime returns the total time that has been spent on the traced tasks.
func (t *TotalTimeTracer) TotalTime() float64 {
	t.lock.Lock()
	time := t.totalTime
	t.lock.Unlock()
	return time
}

// StartTask records the task start time.
func (t *TotalTimeTracer) StartTask(task Task) {
	task.StartTime = t.timeTeller.Uptime()

	if t.filter != nil && !t.filter(task) {
		return
	}

	t.lock.Lock()
	t.inflightTasks[task.ID] = task
	t.lock.Unlock()
}

// StepTask does nothing.
func (t *TotalTimeTracer) StepTask(_ Task) {
	// Do nothing
}

// EndTask records the end of the task.
func (t *TotalTimeTracer) EndTask(task Task) {
	task.EndTime = t.timeTeller.Uptime()

	t.lock.Lock()
	originalTask, ok := t.inflightTasks[task.ID]
	if !ok {
		t.lock.Unlock()
		return
	}

	t.totalTime += task.EndTime - originalTask.StartTime
	delete(t.inflightTasks, task.ID)
	t.lock.Unlock()
}
