// Package conformance probes implementations of the split phase contracts.
// A Test watches any number of Clients drive transmitters and receivers and
// checks, call by call, that completions arrive exactly once, after the call
// that started them, carrying the right buffer. A ScriptedAdapter plays the
// part of the resource underneath, conformant or deliberately not.
package conformance

import (
	"log"
	"sync"

	"github.com/kestrel-os/kestrel/hil"
)

// HolderCore names the layer under test in the custody ledger.
const HolderCore = "core"

// Test is one conformance run. Clients report every call they issue and
// every completion they receive; the Test cross-checks them against the
// custody ledger and panics on the first breach it can prove.
type Test struct {
	mu       sync.Mutex
	clients  []*Client
	ledger   *Ledger
	inFlight map[*hil.Buffer]*Client
	order    []string
}

// NewTest creates a new Test.
func NewTest() *Test {
	return &Test{
		ledger:   NewLedger(),
		inFlight: make(map[*hil.Buffer]*Client),
	}
}

// RegisterClient adds a client to the Test and admits its buffer to the
// custody ledger.
func (t *Test) RegisterClient(c *Client) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.clients = append(t.clients, c)
	t.ledger.Admit(c.buffer, c.name)
}

// Ledger returns the custody ledger of the run.
func (t *Test) Ledger() *Ledger {
	return t.ledger
}

// DeliveryOrder returns the client names in the order their completions
// arrived.
func (t *Test) DeliveryOrder() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	order := make([]string, len(t.order))
	copy(order, t.order)

	return order
}

// OutstandingCalls counts the accepted calls that have not completed yet.
func (t *Test) OutstandingCalls() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.inFlight)
}

// MustHaveSettledAllCalls asserts that every accepted call has completed
// and every client holds its buffer again.
func (t *Test) MustHaveSettledAllCalls() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.inFlight) == 0 {
		return
	}

	for buf, c := range t.inFlight {
		log.Printf("call by %s with buffer %s never completed\n",
			c.Name(), buf.String())
	}

	panic("some accepted calls never completed")
}

// callIssued records the optimistic hand-off that precedes a call.
func (t *Test) callIssued(c *Client, buf *hil.Buffer) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ledger.Move(buf, c.name, HolderCore)
	t.inFlight[buf] = c
}

// callRefused rolls the hand-off back after a synchronous refusal.
func (t *Test) callRefused(c *Client, buf *hil.Buffer) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ledger.Move(buf, HolderCore, c.name)
	delete(t.inFlight, buf)
}

// completionDelivered settles the call that owns buf.
func (t *Test) completionDelivered(c *Client, buf *hil.Buffer) {
	t.mu.Lock()
	defer t.mu.Unlock()

	owner, found := t.inFlight[buf]
	if !found {
		panic("operation completed more than once")
	}

	if owner != c {
		panic("completion delivered to the wrong client")
	}

	t.ledger.Move(buf, HolderCore, c.name)
	delete(t.inFlight, buf)
	t.order = append(t.order, c.name)
}
