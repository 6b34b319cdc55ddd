package hil

import (
	"fmt"

	"github.com/kestrel-os/kestrel/id"
)

// OpKind tells which direction a request moves data.
type OpKind int

// Data-path operation kinds.
const (
	OpTransmit OpKind = iota
	OpReceive
)

func (k OpKind) String() string {
	switch k {
	case OpTransmit:
		return "transmit"
	case OpReceive:
		return "receive"
	}
	return "unknown"
}

// A Request is one split-phase data-path operation. The pointer identity of
// a Request is its identity for queueing, completion matching, and
// cancellation. While the request is queued or in flight it owns Buf.
type Request struct {
	ID   string
	Kind OpKind
	Addr uint64
	N    int
	Buf  *Buffer
}

func (r *Request) String() string {
	return fmt.Sprintf("req %s %s n=%d", r.ID, r.Kind, r.N)
}

// RequestBuilder can build requests.
type RequestBuilder struct {
	kind OpKind
	addr uint64
	n    int
	buf  *Buffer
}

// MakeRequestBuilder returns a new RequestBuilder.
func MakeRequestBuilder() RequestBuilder {
	return RequestBuilder{}
}

// WithKind sets the operation kind.
func (b RequestBuilder) WithKind(kind OpKind) RequestBuilder {
	b.kind = kind
	return b
}

// WithAddr sets the per-device address the request targets.
func (b RequestBuilder) WithAddr(addr uint64) RequestBuilder {
	b.addr = addr
	return b
}

// WithLength sets the number of bytes to transfer.
func (b RequestBuilder) WithLength(n int) RequestBuilder {
	b.n = n
	return b
}

// WithBuffer hands the buffer to the request being built.
func (b RequestBuilder) WithBuffer(buf *Buffer) RequestBuilder {
	b.buf = buf
	return b
}

// Build creates the request and assigns its ID.
func (b RequestBuilder) Build() *Request {
	r := &Request{
		ID:   id.GetGenerator().Generate(),
		Kind: b.kind,
		Addr: b.addr,
		N:    b.n,
		Buf:  b.buf,
	}

	return r
}
