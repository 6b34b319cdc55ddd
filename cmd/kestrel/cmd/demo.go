package cmd

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/kestrel-os/kestrel/adapters/echo"
	"github.com/kestrel-os/kestrel/adapters/latency"
	"github.com/kestrel-os/kestrel/hil"
	"github.com/kestrel-os/kestrel/kernel"
	"github.com/kestrel-os/kestrel/monitoring"
	"github.com/kestrel-os/kestrel/naming"
	"github.com/kestrel-os/kestrel/system"
	"github.com/kestrel-os/kestrel/vmux"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the demo workload.",
	Long: "`demo` shares a software loopback and an emulated timer device " +
		"among several clients, each chaining split-phase transfers " +
		"through its own virtual device.",
	Run: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)

	demoCmd.Flags().Int("clients", 3, "Number of clients per device")
	demoCmd.Flags().Int("ops", 64, "Operations each client performs")
	demoCmd.Flags().Int("size", 64, "Bytes per operation")
	demoCmd.Flags().Duration("latency", 2*time.Millisecond,
		"Emulated completion latency of the timer device")
	demoCmd.Flags().Int("port", 0, "Monitor port (0 picks a free one)")
	demoCmd.Flags().String("output", "", "Recorder file name, without suffix")
	demoCmd.Flags().Bool("no-monitor", false, "Run without the monitor")
	demoCmd.Flags().Bool("open", false, "Open the monitor dashboard")
	demoCmd.Flags().Duration("linger", 0,
		"Keep the monitor up this long after the run")
}

func runDemo(cmd *cobra.Command, _ []string) {
	numClients := intSetting(cmd, "clients", "KESTREL_DEMO_CLIENTS")
	numOps := intSetting(cmd, "ops", "KESTREL_DEMO_OPS")
	opSize := intSetting(cmd, "size", "KESTREL_DEMO_SIZE")
	opLatency := durationSetting(cmd, "latency", "KESTREL_DEMO_LATENCY")
	port := intSetting(cmd, "port", "KESTREL_MONITOR_PORT")
	output := stringSetting(cmd, "output", "KESTREL_OUTPUT")
	noMonitor, _ := cmd.Flags().GetBool("no-monitor")
	open, _ := cmd.Flags().GetBool("open")
	linger, _ := cmd.Flags().GetDuration("linger")

	builder := system.MakeBuilder()
	if noMonitor {
		builder = builder.WithoutMonitoring()
	}
	if port > 0 {
		builder = builder.WithMonitorPort(port)
	}
	if output != "" {
		builder = builder.WithOutputFileName(output)
	}

	s := builder.Build()
	loop := s.GetLoop()

	echoMux := buildEchoMux(s)
	timerMux := buildTimerMux(s, opLatency)

	var bar *monitoring.ProgressBar
	if s.GetMonitor() != nil {
		bar = s.GetMonitor().CreateProgressBar(
			"Demo transfers", uint64(numClients*numOps))
	}

	live := int32(numClients)
	finished := func() {
		if atomic.AddInt32(&live, -1) == 0 {
			loop.Stop()
		}
	}

	clients := make([]*demoClient, numClients)
	for i := range clients {
		devices := []*vmux.Device{
			echoMux.Attach(
				naming.BuildNameWithIndex(echoMux.Name(), "Device", i), 0),
			timerMux.Attach(
				naming.BuildNameWithIndex(timerMux.Name(), "Device", i), 0),
		}

		clients[i] = newDemoClient(devices, opSize, numOps, bar, finished)
	}

	if open && s.GetMonitor() != nil {
		url := "http://localhost:" + strconv.Itoa(s.GetMonitor().Port())
		if err := browser.OpenURL(url); err != nil {
			fmt.Fprintf(os.Stderr, "Cannot open %s: %s\n", url, err)
		}
	}

	start := time.Now()

	for _, c := range clients {
		client := c
		loop.PostInterrupt(kernel.Interrupt{
			Source:  "demo",
			Service: client.Kick,
		})
	}

	if err := loop.Run(); err != nil {
		log.Fatalf("Error running the kernel loop: %v", err)
	}

	elapsed := time.Since(start)
	reportDemo(s, numClients, numOps, elapsed)

	if bar != nil {
		s.GetMonitor().CompleteProgressBar(bar)
	}

	if linger > 0 && s.GetMonitor() != nil {
		fmt.Fprintf(os.Stderr, "Keeping the monitor up for %s.\n", linger)
		time.Sleep(linger)
	}

	s.Terminate()
	atexit.Exit(0)
}

func buildEchoMux(s *system.System) *vmux.Mux {
	adapter := echo.MakeBuilder().
		WithScheduler(s.GetScheduler()).
		Build("Echo")

	m := vmux.MakeBuilder().
		WithAdapter(adapter).
		WithScheduler(s.GetScheduler()).
		Build("EchoMux")
	s.RegisterMux(m)

	return m
}

func buildTimerMux(s *system.System, opLatency time.Duration) *vmux.Mux {
	adapter := latency.MakeBuilder().
		WithLoop(s.GetLoop()).
		WithLatency(opLatency).
		Build("Timer")

	m := vmux.MakeBuilder().
		WithAdapter(adapter).
		WithScheduler(s.GetScheduler()).
		Build("TimerMux")
	s.RegisterMux(m)

	return m
}

func reportDemo(s *system.System, numClients, numOps int, elapsed time.Duration) {
	fmt.Printf("Demo finished: %d clients, %d operations each, %.3f s.\n",
		numClients, numOps, elapsed.Seconds())
	fmt.Printf("EchoMux traffic: %s\n",
		s.GetPerfAnalyzer().GetCurrentTraffic("EchoMux"))
	fmt.Printf("TimerMux traffic: %s\n",
		s.GetPerfAnalyzer().GetCurrentTraffic("TimerMux"))
}

// A demoClient chains split-phase transfers: it owns one buffer, lends it
// out on each Transmit, and submits the next operation from the completion
// callback, alternating between its devices.
type demoClient struct {
	bar       *monitoring.ProgressBar
	devices   []*vmux.Device
	cell      hil.TakeCell[*hil.Buffer]
	size      int
	remaining int
	next      int
	finished  func()
}

func newDemoClient(
	devices []*vmux.Device,
	size, ops int,
	bar *monitoring.ProgressBar,
	finished func(),
) *demoClient {
	c := &demoClient{
		bar:       bar,
		devices:   devices,
		size:      size,
		remaining: ops,
		finished:  finished,
	}

	c.cell.Put(hil.NewBuffer(size))

	for _, d := range devices {
		d.SetTransmitClient(c)
	}

	return c
}

// Kick submits the first operation. It must run on the kernel goroutine.
func (c *demoClient) Kick() {
	c.submitNext()
}

func (c *demoClient) submitNext() {
	buf, ok := c.cell.Take()
	if !ok {
		panic("demo client buffer is lent out")
	}

	dev := c.devices[c.next%len(c.devices)]
	c.next++

	if c.bar != nil {
		c.bar.IncrementInProgress(1)
	}

	if serr := dev.Transmit(buf, c.size); serr != nil {
		log.Fatalf("Demo transmit refused: %v", serr.Code)
	}
}

func (c *demoClient) TransmitDone(req *hil.Request, _ int, code hil.ErrorCode) {
	if code != hil.OK {
		log.Fatalf("Demo transmit failed: %v", code)
	}

	c.cell.Put(req.Buf)

	if c.bar != nil {
		c.bar.MoveInProgressToFinished(1)
	}

	c.remaining--
	if c.remaining > 0 {
		c.submitNext()
		return
	}

	c.finished()
}

func intSetting(cmd *cobra.Command, flag, env string) int {
	if cmd.Flags().Changed(flag) || os.Getenv(env) == "" {
		v, _ := cmd.Flags().GetInt(flag)
		return v
	}

	v, err := strconv.Atoi(os.Getenv(env))
	if err != nil {
		log.Fatalf("Error: %s must be an integer: %v", env, err)
	}

	return v
}

func durationSetting(cmd *cobra.Command, flag, env string) time.Duration {
	if cmd.Flags().Changed(flag) || os.Getenv(env) == "" {
		v, _ := cmd.Flags().GetDuration(flag)
		return v
	}

	v, err := time.ParseDuration(os.Getenv(env))
	if err != nil {
		log.Fatalf("Error: %s must be a duration: %v", env, err)
	}

	return v
}

func stringSetting(cmd *cobra.Command, flag, env string) string {
	if cmd.Flags().Changed(flag) || os.Getenv(env) == "" {
		v, _ := cmd.Flags().GetString(flag)
		return v
	}

	return os.Getenv(env)
}
