package vmux

import (
	"github.com/kestrel-os/kestrel/hil"
)

// A Device is one virtual copy of the multiplexed resource. Each device has
// at most one operation in flight or queued per submitted request, its own
// completion clients, and an address stamped on its requests.
//
// A Device implements hil.Transmitter and hil.Receiver.
type Device struct {
	name string
	mux  *Mux
	addr uint64

	txClient hil.TransmitClient
	rxClient hil.ReceiveClient
}

// Name returns the name of the device.
func (d *Device) Name() string {
	return d.name
}

// Addr returns the address the device stamps on its requests.
func (d *Device) Addr() uint64 {
	return d.addr
}

// SetTransmitClient registers the transmit completion target.
func (d *Device) SetTransmitClient(c hil.TransmitClient) {
	d.txClient = c
}

// SetReceiveClient registers the receive completion target.
func (d *Device) SetReceiveClient(c hil.ReceiveClient) {
	d.rxClient = c
}

// Transmit starts a split-phase transmit of n bytes from buf. On a nil
// return the buffer belongs to the multiplexer until TransmitDone hands it
// back. Terminal failures return the buffer in the same call.
func (d *Device) Transmit(buf *hil.Buffer, n int) *hil.StartError {
	d.txClientMustBeSet()

	if serr := validateSpan(buf, n); serr != nil {
		return serr
	}

	req := hil.MakeRequestBuilder().
		WithKind(hil.OpTransmit).
		WithAddr(d.addr).
		WithLength(n).
		WithBuffer(buf).
		Build()

	return d.mux.submit(&txn{req: req, dev: d})
}

// Receive starts a split-phase receive of up to n bytes into buf, with the
// same ownership rules as Transmit.
func (d *Device) Receive(buf *hil.Buffer, n int) *hil.StartError {
	d.rxClientMustBeSet()

	if serr := validateSpan(buf, n); serr != nil {
		return serr
	}

	req := hil.MakeRequestBuilder().
		WithKind(hil.OpReceive).
		WithAddr(d.addr).
		WithLength(n).
		WithBuffer(buf).
		Build()

	return d.mux.submit(&txn{req: req, dev: d})
}

// Abort asks for cancellation of this device's in-flight operation. OK
// means the cancellation is accepted and the operation still completes,
// usually with ErrCancelled. ErrBusy means another device owns the in-flight
// operation. ErrInvalid means nothing is in flight. ErrFail means the
// adapter cannot interrupt a transfer.
func (d *Device) Abort() hil.ErrorCode {
	return d.mux.abort(d)
}

// Withdraw removes this device's queued requests and returns them,
// buffers included, in queue order. Withdrawn requests never complete.
func (d *Device) Withdraw() []*hil.Request {
	return d.mux.withdraw(d)
}

// Configure forwards control settings to the adapter behind the
// multiplexer. The settings are shared by all devices. ErrFail if the
// adapter is not configurable.
func (d *Device) Configure(p hil.Params) hil.ErrorCode {
	return d.mux.Configure(p)
}

func (d *Device) txClientMustBeSet() {
	if d.txClient == nil {
		panic("transmit client must be registered before transmit")
	}
}

func (d *Device) rxClientMustBeSet() {
	if d.rxClient == nil {
		panic("receive client must be registered before receive")
	}
}

func validateSpan(buf *hil.Buffer, n int) *hil.StartError {
	if buf == nil || n <= 0 {
		return hil.NewStartError(hil.ErrInvalid, buf)
	}

	if n > buf.Len() {
		return hil.NewStartError(hil.ErrSize, buf)
	}

	return nil
}
