package analysis

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/kestrel-os/kestrel/recording"
)

// PerfAnalyzerBackend is the sink that stores performance entries.
type PerfAnalyzerBackend interface {
	AddDataEntry(entry PerfAnalyzerEntry)
	Flush()
}

// CSVBackend is a PerfAnalyzerBackend that writes data entries to a CSV
// file.
type CSVBackend struct {
	dbFile    *os.File
	csvWriter *csv.Writer
}

// NewCSVPerfAnalyzerBackend creates a new CSVBackend writing to the given
// file name, without the ".csv" suffix.
func NewCSVPerfAnalyzerBackend(dbFilename string) *CSVBackend {
	if dbFilename == "" {
		panic("perf analyzer CSV backend requires a file name")
	}

	p := &CSVBackend{}

	var err error
	p.dbFile, err = os.Create(dbFilename + ".csv")
	if err != nil {
		panic(err)
	}

	p.csvWriter = csv.NewWriter(p.dbFile)

	header := []string{
		"Start", "End", "Where", "WhereDevice", "What", "EntryType",
		"Value", "Unit",
	}

	err = p.csvWriter.Write(header)
	if err != nil {
		panic(err)
	}

	return p
}

// AddDataEntry adds a data entry to the CSV file.
func (p *CSVBackend) AddDataEntry(entry PerfAnalyzerEntry) {
	err := p.csvWriter.Write([]string{
		fmt.Sprintf("%.10f", entry.Start),
		fmt.Sprintf("%.10f", entry.End),
		entry.Where,
		entry.WhereDevice,
		entry.What,
		entry.EntryType,
		fmt.Sprintf("%.10f", entry.Value),
		entry.Unit,
	})
	if err != nil {
		panic(err)
	}
}

// Flush flushes the CSV writer.
func (p *CSVBackend) Flush() {
	p.csvWriter.Flush()
}

// perfTableEntry is the row shape of the perf table. Column names avoid SQL
// keywords, so Where and End become Location and EndTime.
type perfTableEntry struct {
	StartTime float64 `json:"start_time" kestrel_data:"index"`
	EndTime   float64 `json:"end_time" kestrel_data:"index"`
	Location  string  `json:"location" kestrel_data:"index"`
	Device    string  `json:"device"`
	What      string  `json:"what" kestrel_data:"index"`
	EntryType string  `json:"entry_type" kestrel_data:"index"`
	Value     float64 `json:"value"`
	Unit      string  `json:"unit"`
}

// RecorderBackend is a PerfAnalyzerBackend that writes data entries into a
// recording backend, next to the tables the tracers fill.
type RecorderBackend struct {
	recorder recording.Recorder
}

// NewRecorderPerfAnalyzerBackend creates a RecorderBackend and its perf
// table.
func NewRecorderPerfAnalyzerBackend(r recording.Recorder) *RecorderBackend {
	r.CreateTable("perf", perfTableEntry{})

	return &RecorderBackend{recorder: r}
}

// AddDataEntry buffers one entry in the recorder.
func (p *RecorderBackend) AddDataEntry(entry PerfAnalyzerEntry) {
	p.recorder.InsertData("perf", perfTableEntry{
		StartTime: entry.Start,
		EndTime:   entry.End,
		Location:  entry.Where,
		Device:    entry.WhereDevice,
		What:      entry.What,
		EntryType: entry.EntryType,
		Value:     entry.Value,
		Unit:      entry.Unit,
	})
}

// Flush writes the buffered entries out.
func (p *RecorderBackend) Flush() {
	p.recorder.Flush()
}
