package tracing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"
)

// captureRecorder keeps inserted rows in memory for inspection.
type captureRecorder struct {
	tables  map[string][]any
	flushes int
}

func newCaptureRecorder() *captureRecorder {
	return &captureRecorder{tables: make(map[string][]any)}
}

func (r *captureRecorder) CreateTable(tableName string, _ any) {
	r.tables[tableName] = []any{}
}

func (r *captureRecorder) InsertData(tableName string, entry any) {
	r.tables[tableName] = append(r.tables[tableName], entry)
}

func (r *captureRecorder) ListTables() []string {
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}

	return names
}

func (r *captureRecorder) Flush() {
	r.flushes++
}

func (r *captureRecorder) Close() error {
	return nil
}

var _ = Describe("DBTracer", func() {
	var (
		mockCtrl   *gomock.Controller
		timeTeller *MockTimeTeller
		backend    *captureRecorder
		t          *DBTracer
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		timeTeller = NewMockTimeTeller(mockCtrl)
		backend = newCaptureRecorder()

		t = NewDBTracer(timeTeller, backend)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should create the trace table", func() {
		Expect(backend.tables).To(HaveKey("trace"))
	})

	It("should record a finished task", func() {
		timeTeller.EXPECT().Uptime().Return(1.0)
		t.StartTask(Task{
			ID:       "1",
			Kind:     "request",
			What:     "write",
			Location: "Mux",
		})

		timeTeller.EXPECT().Uptime().Return(2.0)
		t.EndTask(Task{ID: "1"})

		Expect(backend.tables["trace"]).To(HaveLen(1))

		entry := backend.tables["trace"][0].(taskTableEntry)
		Expect(entry.ID).To(Equal("1"))
		Expect(entry.Kind).To(Equal("request"))
		Expect(entry.What).To(Equal("write"))
		Expect(entry.Location).To(Equal("Mux"))
		Expect(entry.StartTime).To(Equal(1.0))
		Expect(entry.EndTime).To(Equal(2.0))
	})

	It("should ignore the end of an unseen task", func() {
		timeTeller.EXPECT().Uptime().Return(2.0)
		t.EndTask(Task{ID: "1"})

		Expect(backend.tables["trace"]).To(BeEmpty())
	})

	It("should drop tasks that start after the time range", func() {
		t.SetTimeRange(0.0, 1.0)

		timeTeller.EXPECT().Uptime().Return(2.0)
		t.StartTask(Task{
			ID:       "1",
			Kind:     "request",
			What:     "write",
			Location: "Mux",
		})

		timeTeller.EXPECT().Uptime().Return(3.0)
		t.EndTask(Task{ID: "1"})

		Expect(backend.tables["trace"]).To(BeEmpty())
	})

	It("should drop tasks that end before the time range", func() {
		t.SetTimeRange(2.0, 3.0)

		timeTeller.EXPECT().Uptime().Return(0.5)
		t.StartTask(Task{
			ID:       "1",
			Kind:     "request",
			What:     "write",
			Location: "Mux",
		})

		timeTeller.EXPECT().Uptime().Return(1.0)
		t.EndTask(Task{ID: "1"})

		Expect(backend.tables["trace"]).To(BeEmpty())
	})

	It("should flush on terminate and ignore later events", func() {
		t.Terminate()

		Expect(backend.flushes).To(Equal(1))

		t.StartTask(Task{
			ID:       "1",
			Kind:     "request",
			What:     "write",
			Location: "Mux",
		})
		t.EndTask(Task{ID: "1"})

		Expect(backend.tables["trace"]).To(BeEmpty())
		Expect(backend.flushes).To(Equal(1))
	})

	It("should reject tasks without an ID", func() {
		Expect(func() {
			t.StartTask(Task{Kind: "request", What: "write", Location: "Mux"})
		}).To(Panic())
	})
})
