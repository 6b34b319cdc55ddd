package hil

import "github.com/kestrel-os/kestrel/naming"

// Params carries the control-path settings of a resource. Which fields an
// adapter honors is adapter specific. Adapters reject settings they cannot
// apply with ErrInvalid or ErrSize.
type Params struct {
	ClockHz  uint32
	Mode     uint8
	WordBits uint8
}

// A TransmitClient receives transmit completions. TransmitDone is called
// exactly once per accepted transmit, never from inside the Transmit call,
// and n reports how many bytes actually moved. The buffer inside req returns
// to the client with the callback.
type TransmitClient interface {
	TransmitDone(req *Request, n int, code ErrorCode)
}

// A ReceiveClient receives receive completions, with the same calling rules
// as TransmitClient.
type ReceiveClient interface {
	ReceiveDone(req *Request, n int, code ErrorCode)
}

// A Transmitter accepts split-phase transmit operations.
type Transmitter interface {
	// SetTransmitClient registers the completion target. Must be called
	// before Transmit.
	SetTransmitClient(c TransmitClient)

	// Transmit moves n bytes out of buf. On nil return the operation is
	// pending and buf now belongs to the transmitter until TransmitDone.
	Transmit(buf *Buffer, n int) *StartError
}

// A Receiver accepts split-phase receive operations.
type Receiver interface {
	// SetReceiveClient registers the completion target. Must be called
	// before Receive.
	SetReceiveClient(c ReceiveClient)

	// Receive fills up to n bytes into buf. On nil return the operation is
	// pending and buf now belongs to the receiver until ReceiveDone.
	Receive(buf *Buffer, n int) *StartError
}

// A Configurer applies control-path settings. Configure is synchronous and
// takes effect immediately.
type Configurer interface {
	Configure(p Params) ErrorCode
}

// A PowerController turns a resource on and off. Both calls are synchronous.
type PowerController interface {
	Enable() ErrorCode
	Disable() ErrorCode
}

// An Aborter can cancel an in-flight operation. Abort returning OK means the
// cancellation is accepted and the operation still completes, usually with
// ErrCancelled. Adapters that cannot interrupt a transfer return ErrFail.
type Aborter interface {
	Abort() ErrorCode
}

// A CompletionSink is where an adapter reports the end of an operation it
// accepted. Adapters may call Complete from any goroutine, including timer
// and interrupt service goroutines.
type CompletionSink interface {
	Complete(req *Request, n int, code ErrorCode)
}

// An Adapter is the single-user boundary in front of one physical resource.
// An adapter holds at most one operation in flight. Start either accepts the
// request and later reports it through the sink, or refuses it
// synchronously with a StartError that hands the buffer back for terminal
// codes.
//
// Adapters may additionally implement Configurer, PowerController, and
// Aborter.
type Adapter interface {
	naming.Named

	// SetSink registers the completion sink. Must be called before Start.
	SetSink(s CompletionSink)

	// Start begins the transfer described by req.
	Start(req *Request) *StartError
}
