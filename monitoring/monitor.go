package monitoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"reflect"
	"runtime/pprof"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/kestrel-os/kestrel/analysis"
	"github.com/kestrel-os/kestrel/id"
	"github.com/kestrel-os/kestrel/kernel"
	"github.com/kestrel-os/kestrel/monitoring/web"
	"github.com/kestrel-os/kestrel/queueing"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
)

// Monitor can turn a running kernel into a web server and allows external
// monitoring and controlling of the kernel loop.
type Monitor struct {
	loop         *kernel.Loop
	components   []kernel.Component
	meters       []queueing.Meter
	portNumber   int
	actualPort   int
	perfAnalyzer *analysis.PerfAnalyzer

	runOnce sync.Once

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{}
}

// Port returns the port the server actually listens on. It is zero before
// StartServer.
func (m *Monitor) Port() int {
	return m.actualPort
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterLoop registers the kernel loop that drives the system.
func (m *Monitor) RegisterLoop(l *kernel.Loop) {
	m.loop = l
}

// RegisterPerfAnalyzer sets the performance analyzer to be used in the monitor.
func (m *Monitor) RegisterPerfAnalyzer(pa *analysis.PerfAnalyzer) {
	m.perfAnalyzer = pa
}

// RegisterComponent registers a component to be monitored.
func (m *Monitor) RegisterComponent(c kernel.Component) {
	m.components = append(m.components, c)

	m.registerMeters(c)
}

func (m *Monitor) registerMeters(c kernel.Component) {
	provider, ok := c.(kernel.MeterProvider)
	if !ok {
		return
	}

	m.meters = append(m.meters, provider.QueueMeters()...)
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        id.GetGenerator().Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars)-1)
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// StartServer starts the monitor as a web server with a custom port if wanted.
func (m *Monitor) StartServer() {
	r := mux.NewRouter()

	fs := web.GetAssets()
	fServer := http.FileServer(fs)
	r.HandleFunc("/api/pause", m.pauseLoop)
	r.HandleFunc("/api/continue", m.continueLoop)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/run", m.run)
	r.HandleFunc("/api/wake", m.wakeLoop)
	r.HandleFunc("/api/components", m.listComponents)
	r.HandleFunc("/api/component/{name}", m.listComponentDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/queues", m.listQueues)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.HandleFunc("/api/traffic/{name}", m.reportTraffic)
	r.PathPrefix("/").Handler(fServer)
	http.Handle("/", r)

	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	m.actualPort = listener.Addr().(*net.TCPAddr).Port

	fmt.Fprintf(
		os.Stderr,
		"Monitoring kernel with http://localhost:%d\n",
		m.actualPort)

	go func() {
		err = http.Serve(listener, nil)
		dieOnErr(err)
	}()
}

func (m *Monitor) pauseLoop(w http.ResponseWriter, _ *http.Request) {
	m.loop.Pause()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) continueLoop(w http.ResponseWriter, _ *http.Request) {
	m.loop.Continue()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprintf(w, "{\"uptime\":%.10f,\"pass_count\":%d}",
		m.loop.Uptime(), m.loop.PassCount())
}

func (m *Monitor) run(_ http.ResponseWriter, _ *http.Request) {
	m.runOnce.Do(func() {
		go func() {
			err := m.loop.Run()
			if err != nil {
				panic(err)
			}
		}()
	})
}

func (m *Monitor) wakeLoop(w http.ResponseWriter, _ *http.Request) {
	m.loop.Wake()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) listComponents(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprint(w, "[")
	for i, c := range m.components {
		if i > 0 {
			fmt.Fprint(w, ",")
		}

		fmt.Fprintf(w, "\"%s\"", c.Name())
	}
	fmt.Fprint(w, "]")
}

func (m *Monitor) listComponentDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	component := m.findComponentOr404(w, name)
	if component == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type fieldReq struct {
	CompName  string `json:"comp_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	jsonString := mux.Vars(r)["json"]
	req := fieldReq{}

	err := json.Unmarshal([]byte(jsonString), &req)
	dieOnErr(err)

	name := req.CompName
	fields := strings.Split(req.FieldName, ".")

	component := m.findComponentOr404(w, name)
	if component == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)

	err = serializer.SetEntryPoint(fields)
	dieOnErr(err)

	err = serializer.Serialize(w)
	dieOnErr(err)
}

func (m *Monitor) listQueues(w http.ResponseWriter, r *http.Request) {
	sortMethod, limit, offset, err := m.queuesParseParams(r)
	if err != nil {
		w.WriteHeader(400)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	sortedMeters := m.sortAndSelectMeters(sortMethod, limit, offset)

	fmt.Fprintf(w, "[")
	for i, meter := range sortedMeters {
		if i > 0 {
			fmt.Fprint(w, ",")
		}

		fmt.Fprintf(w, "{\"queue\":\"%s\",\"level\":%d,\"cap\":%d}",
			meter.Name(), meter.Size(), meter.Capacity())
	}

	fmt.Fprint(w, "]")
}

func (*Monitor) queuesParseParams(
	r *http.Request,
) (sort string, limit, offset int, err error) {
	sortMethod := r.URL.Query().Get("sort")
	if sortMethod == "" {
		sortMethod = "percent"
	}
	if sortMethod != "level" && sortMethod != "percent" {
		errStr := fmt.Sprintf(
			"Invalid sort method: %s. Allowed values are `level` and `percent`",
			sortMethod)
		return "", 0, 0, errors.New(errStr)
	}

	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		limitStr = "0"
	}
	limitNumber, err := strconv.Atoi(limitStr)
	if err != nil {
		return sortMethod, 0, 0, err
	}

	offsetStr := r.URL.Query().Get("offset")
	if offsetStr == "" {
		offsetStr = "0"
	}
	offsetNumber, err := strconv.Atoi(offsetStr)
	if err != nil {
		return sortMethod, limitNumber, 0, err
	}

	return sortMethod, limitNumber, offsetNumber, nil
}

func meterPercent(meter queueing.Meter) float64 {
	return float64(meter.Size()) / float64(meter.Capacity())
}

func (m *Monitor) sortAndSelectMeters(
	sortMethod string,
	limit, offset int,
) []queueing.Meter {
	sortedMeters := make([]queueing.Meter, len(m.meters))
	copy(sortedMeters, m.meters)

	if sortMethod == "level" {
		sort.Slice(sortedMeters, func(i, j int) bool {
			sizeI := sortedMeters[i].Size()
			sizeJ := sortedMeters[j].Size()
			percentI := meterPercent(sortedMeters[i])
			percentJ := meterPercent(sortedMeters[j])

			if sizeI > sizeJ {
				return true
			} else if sizeI < sizeJ {
				return false
			} else {
				return percentI > percentJ
			}
		})
	} else if sortMethod == "percent" {
		sort.Slice(sortedMeters, func(i, j int) bool {
			sizeI := sortedMeters[i].Size()
			sizeJ := sortedMeters[j].Size()
			percentI := meterPercent(sortedMeters[i])
			percentJ := meterPercent(sortedMeters[j])

			if percentI > percentJ {
				return true
			} else if percentI < percentJ {
				return false
			} else {
				return sizeI > sizeJ
			}
		})
	} else {
		panic("Invalid sort method " + sortMethod)
	}

	if offset > len(sortedMeters) {
		offset = len(sortedMeters)
	}

	end := len(sortedMeters)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	return sortedMeters[offset:end]
}

type fieldFormatError struct {
}

func (e fieldFormatError) Error() string {
	return "fieldFormatError"
}

func (m *Monitor) walkFields(
	comp interface{},
	fields string,
) (reflect.Value, error) {
	elem := reflect.ValueOf(comp)

	fieldNames := strings.Split(fields, ".")

	for len(fieldNames) > 0 {
		switch elem.Kind() {
		case reflect.Ptr, reflect.Interface:
			elem = elem.Elem()
		case reflect.Struct:
			elem = elem.FieldByName(fieldNames[0])
			fieldNames = fieldNames[1:]
		case reflect.Slice:
			index, err := strconv.Atoi(fieldNames[0])
			if err != nil {
				return elem, fieldFormatError{}
			}

			elem = elem.Index(index)
			fieldNames = fieldNames[1:]
		default:
			panic(fmt.Sprintf("kind %d not supported", elem.Kind()))
		}
	}

	if elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
	}

	return elem, nil
}

func (m *Monitor) findComponentOr404(
	w http.ResponseWriter,
	name string,
) kernel.Component {
	var component kernel.Component
	for _, c := range m.components {
		if c.Name() == name {
			component = c
		}
	}

	if component == nil {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("Component not found"))
		dieOnErr(err)
	}

	return component
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bytes, err := json.Marshal(m.progressBars)
	m.progressBarsLock.Unlock()
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	rsp := resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	}

	bytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	dieOnErr(err)

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	bytes, err := json.Marshal(prof)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) reportTraffic(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	traffic := m.perfAnalyzer.GetCurrentTraffic(name)

	_, err := w.Write([]byte(traffic))
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
