package conformance

import (
	"github.com/kestrel-os/kestrel/hil"
	"github.com/kestrel-os/kestrel/naming"
)

// State is where a client stands in its operation cycle.
type State int

const (
	// StateIdle means no operation is outstanding.
	StateIdle State = iota
	// StateWaiting means a call was accepted and its completion is due.
	StateWaiting
	// StateError means the last completion reported a failure.
	StateError
)

// String returns the name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaiting:
		return "waiting"
	case StateError:
		return "error"
	}

	return "unknown"
}

// A Client drives one transmitter or receiver and checks the split phase
// contract from the consumer side. It moves to the waiting state and signs
// its buffer over before it makes the call, so that a completion arriving
// during the call, a completion arriving twice, or a buffer coming back to
// the wrong place is caught the moment it happens.
//
// A Client carries one buffer and has at most one operation outstanding.
// All methods belong to the kernel goroutine.
type Client struct {
	name string
	test *Test
	tx   hil.Transmitter
	rx   hil.Receiver

	buffer *hil.Buffer
	cell   hil.TakeCell[*hil.Buffer]

	state       State
	inCall      bool
	issuedKind  hil.OpKind
	completions int
	lastN       int
	lastCode    hil.ErrorCode
}

// NewClient creates a client with a fresh buffer of bufLen bytes.
func NewClient(test *Test, name string, bufLen int) *Client {
	naming.MustBeValid(name)

	c := &Client{
		name:   name,
		test:   test,
		buffer: hil.NewBuffer(bufLen),
	}
	c.cell.Put(c.buffer)

	return c
}

// Name returns the name of the client.
func (c *Client) Name() string {
	return c.name
}

// UseTransmitter wires the client to a transmitter and registers it as
// the transmit client.
func (c *Client) UseTransmitter(tx hil.Transmitter) {
	c.tx = tx
	tx.SetTransmitClient(c)
}

// UseReceiver wires the client to a receiver and registers it as the
// receive client.
func (c *Client) UseReceiver(rx hil.Receiver) {
	c.rx = rx
	rx.SetReceiveClient(c)
}

// State returns the current state.
func (c *Client) State() State {
	return c.state
}

// Completions counts the completions delivered so far.
func (c *Client) Completions() int {
	return c.completions
}

// LastN returns the count of the last completion.
func (c *Client) LastN() int {
	return c.lastN
}

// LastCode returns the code of the last completion or refusal.
func (c *Client) LastCode() hil.ErrorCode {
	return c.lastCode
}

// HoldsBuffer reports whether the buffer is home.
func (c *Client) HoldsBuffer() bool {
	return c.cell.Occupied()
}

// Bytes exposes the buffer content for result checks.
func (c *Client) Bytes() []byte {
	return c.buffer.Bytes
}

// Transmit starts a transmit of n bytes from the client's buffer.
func (c *Client) Transmit(n int) *hil.StartError {
	c.txMustBeWired()
	return c.issue(hil.OpTransmit, n)
}

// Receive starts a receive of n bytes into the client's buffer.
func (c *Client) Receive(n int) *hil.StartError {
	c.rxMustBeWired()
	return c.issue(hil.OpReceive, n)
}

// TransmitDone is the transmit completion callback.
func (c *Client) TransmitDone(req *hil.Request, n int, code hil.ErrorCode) {
	c.deliver(hil.OpTransmit, req, n, code)
}

// ReceiveDone is the receive completion callback.
func (c *Client) ReceiveDone(req *hil.Request, n int, code hil.ErrorCode) {
	c.deliver(hil.OpReceive, req, n, code)
}

// issue makes one split phase call. The waiting state and the custody
// hand-off are recorded before the call so that an early completion is
// provably early.
func (c *Client) issue(kind hil.OpKind, n int) *hil.StartError {
	buf, ok := c.cell.Take()
	if !ok {
		panic("client issued a call without holding its buffer")
	}

	c.state = StateWaiting
	c.issuedKind = kind
	c.test.callIssued(c, buf)
	c.inCall = true

	var serr *hil.StartError
	switch kind {
	case hil.OpTransmit:
		serr = c.tx.Transmit(buf, n)
	case hil.OpReceive:
		serr = c.rx.Receive(buf, n)
	}

	c.inCall = false

	if serr == nil {
		return nil
	}

	c.settleRefusal(buf, serr)

	return serr
}

// settleRefusal rolls the optimistic transition back after a synchronous
// refusal and checks that the buffer came back with it.
func (c *Client) settleRefusal(buf *hil.Buffer, serr *hil.StartError) {
	if c.state != StateWaiting {
		panic("call refused after its completion was already delivered")
	}

	if serr.Code == hil.ErrBusy {
		if serr.Buf != nil {
			panic("busy refusal must not carry a buffer")
		}
	} else if serr.Buf != buf {
		panic("refused call did not hand the buffer back")
	}

	c.test.callRefused(c, buf)
	c.cell.Put(buf)
	c.state = StateIdle
	c.lastCode = serr.Code
}

// deliver is the common completion path.
func (c *Client) deliver(
	kind hil.OpKind,
	req *hil.Request,
	n int,
	code hil.ErrorCode,
) {
	if c.inCall {
		panic("completion delivered inside the call that issued it")
	}

	if c.state != StateWaiting {
		panic("completion delivered with no operation waiting")
	}

	if req.Kind != kind || kind != c.issuedKind {
		panic("completion arrived through the wrong callback")
	}

	if req.Buf != c.buffer {
		panic("completion returned a buffer the client does not own")
	}

	c.test.completionDelivered(c, req.Buf)
	c.cell.Put(req.Buf)

	c.completions++
	c.lastN = n
	c.lastCode = code

	if code == hil.OK {
		c.state = StateIdle
	} else {
		c.state = StateError
	}
}

func (c *Client) txMustBeWired() {
	if c.tx == nil {
		panic("client has no transmitter")
	}
}

func (c *Client) rxMustBeWired() {
	if c.rx == nil {
		panic("client has no receiver")
	}
}
