package hil

import "fmt"

// A Buffer is a byte region with exclusive ownership. At any instant exactly
// one party may hold a Buffer: the client that allocated it, a queued
// request, or the adapter driving the transfer. Ownership moves with the
// split-phase protocol and the pointer identity is the ownership token.
//
// A Buffer is never copied on transfer and never silently dropped. Every
// path that accepts a Buffer either keeps it until completion or hands it
// back in the same call stack.
type Buffer struct {
	Bytes []byte
}

// NewBuffer allocates a buffer of the given size.
func NewBuffer(size int) *Buffer {
	return &Buffer{Bytes: make([]byte, size)}
}

// WrapBuffer takes ownership of an existing byte slice.
func WrapBuffer(data []byte) *Buffer {
	return &Buffer{Bytes: data}
}

// Len returns the buffer capacity in bytes.
func (b *Buffer) Len() int {
	return len(b.Bytes)
}

func (b *Buffer) String() string {
	return fmt.Sprintf("Buffer(%d bytes)", len(b.Bytes))
}
