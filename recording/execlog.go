package recording

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

type execInfo struct {
	Property string
	Value    string
}

// An ExecLog notes when and how the program ran in the "exec_info" table of
// a Recorder. Call Start when the run begins and End right before the
// recorder closes.
type ExecLog struct {
	recorder Recorder
}

// NewExecLog creates an ExecLog over a recorder and creates its table.
func NewExecLog(recorder Recorder) *ExecLog {
	e := &ExecLog{recorder: recorder}

	recorder.CreateTable("exec_info", execInfo{})

	return e
}

// Start records the start time, the command line, and the executable path.
func (e *ExecLog) Start() {
	startTime := time.Now().Format("2006-01-02 15:04:05")
	e.recorder.InsertData("exec_info", execInfo{"StartTime", startTime})

	cmd := strings.Join(os.Args, " ")
	e.recorder.InsertData("exec_info", execInfo{"Command", cmd})

	ex, err := os.Executable()
	if err != nil {
		panic(err)
	}

	e.recorder.InsertData("exec_info", execInfo{"Path", filepath.Dir(ex)})
}

// End records the end time and flushes the recorder.
func (e *ExecLog) End() {
	endTime := time.Now().Format("2006-01-02 15:04:05")
	e.recorder.InsertData("exec_info", execInfo{"EndTime", endTime})

	e.recorder.Flush()
}
