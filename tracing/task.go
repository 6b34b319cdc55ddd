package tracing

// A TaskStep marks a milestone in the processing of a task.
type TaskStep struct {
	Time float64 `json:"time"`
	What string  `json:"what"`
}

// A Task is one piece of work that a domain performs, with a start and an
// end, such as the handling of one request or the delivery of one deferred
// call.
type Task struct {
	ID        string      `json:"id"`
	ParentID  string      `json:"parent_id"`
	Kind      string      `json:"kind"`
	What      string      `json:"what"`
	Location  string      `json:"location"`
	StartTime float64     `json:"start_time"`
	EndTime   float64     `json:"end_time"`
	Steps     []TaskStep  `json:"steps"`
	Detail    interface{} `json:"-"`
}

// TaskFilter is a function that can filter interesting tasks. If this
// function returns true, the task is considered useful.
type TaskFilter func(t Task) bool
