package tracing

import (
	"sync"

	"github.com/tebeka/atexit"

	"github.com/kestrel-os/kestrel/kernel"
	"github.com/kestrel-os/kestrel/recording"
)

// taskTableEntry is the row shape of the trace table.
type taskTableEntry struct {
	ID        string  `json:"id" kestrel_data:"index"`
	ParentID  string  `json:"parent_id" kestrel_data:"index"`
	Kind      string  `json:"kind" kestrel_data:"index"`
	What      string  `json:"what" kestrel_data:"index"`
	Location  string  `json:"location" kestrel_data:"index"`
	StartTime float64 `json:"start_time" kestrel_data:"index"`
	EndTime   float64 `json:"end_time" kestrel_data:"index"`
}

// A DBTracer stores tasks in a recording backend. Tasks are buffered while
// they are in flight and written as one row each when they end, so the
// backend only ever sees finished tasks.
type DBTracer struct {
	mu         sync.Mutex
	timeTeller kernel.TimeTeller
	backend    recording.Recorder

	startTime, endTime float64
	tracingTasks       map[string]Task
}

// NewDBTracer creates a DBTracer that writes into the given backend. The
// trace table is created immediately and the tracer flushes the backend at
// process exit.
func NewDBTracer(
	timeTeller kernel.TimeTeller,
	backend recording.Recorder,
) *DBTracer {
	backend.CreateTable("trace", taskTableEntry{})

	t := &DBTracer{
		timeTeller:   timeTeller,
		backend:      backend,
		tracingTasks: make(map[string]Task),
	}

	atexit.Register(func() { t.Terminate() })

	return t
}

// SetTimeRange limits recording to tasks that overlap the given window.
// Tasks that start after the end of the window or end before its start are
// dropped.
func (t *DBTracer) SetTimeRange(startTime, endTime float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.startTime = startTime
	t.endTime = endTime
}

// StartTask marks the start of a task.
func (t *DBTracer) StartTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.tracingTasks == nil {
		return
	}

	t.startingTaskMustBeValid(task)

	task.StartTime = t.timeTeller.Uptime()
	if t.endTime > 0 && task.StartTime > t.endTime {
		return
	}

	t.tracingTasks[task.ID] = task
}

func (t *DBTracer) startingTaskMustBeValid(task Task) {
	if task.ID == "" {
		panic("task ID must be set")
	}

	if task.Kind == "" {
		panic("task kind must be set")
	}

	if task.What == "" {
		panic("task what must be set")
	}

	if task.Location == "" {
		panic("task location must be set")
	}
}

// StepTask does nothing. Steps are aggregated by the counting tracers, not
// stored per row.
func (t *DBTracer) StepTask(_ Task) {
	// Do nothing.
}

// EndTask marks the end of a task and writes its row.
func (t *DBTracer) EndTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.tracingTasks == nil {
		return
	}

	endTime := t.timeTeller.Uptime()
	if t.startTime > 0 && endTime < t.startTime {
		delete(t.tracingTasks, task.ID)
		return
	}

	originalTask, ok := t.tracingTasks[task.ID]
	if !ok {
		return
	}

	originalTask.EndTime = endTime
	delete(t.tracingTasks, task.ID)

	t.backend.InsertData("trace", taskTableEntry{
		ID:        originalTask.ID,
		ParentID:  originalTask.ParentID,
		Kind:      originalTask.Kind,
		What:      originalTask.What,
		Location:  originalTask.Location,
		StartTime: originalTask.StartTime,
		EndTime:   originalTask.EndTime,
	})
}

// Terminate drops the tasks still in flight and flushes the backend. The
// tracer ignores all events afterwards.
func (t *DBTracer) Terminate() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.tracingTasks == nil {
		return
	}

	t.tracingTasks = nil
	t.backend.Flush()
}
