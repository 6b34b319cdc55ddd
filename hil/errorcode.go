// Package hil defines the capability contracts between resource users,
// virtualizing multiplexers, and resource adapters. All data-path operations
// are split-phase. A call either fails synchronously or returns with the
// operation pending, and a pending operation finishes with exactly one
// completion callback that is never invoked from inside the triggering call.
package hil

// ErrorCode is the result taxonomy shared by all capability contracts.
type ErrorCode uint8

// Result codes. OK is the zero value.
const (
	OK ErrorCode = iota
	ErrBusy
	ErrOff
	ErrNotConfigured
	ErrInvalid
	ErrSize
	ErrCancelled
	ErrFail
)

func (c ErrorCode) String() string {
	switch c {
	case OK:
		return "ok"
	case ErrBusy:
		return "busy"
	case ErrOff:
		return "off"
	case ErrNotConfigured:
		return "not configured"
	case ErrInvalid:
		return "invalid"
	case ErrSize:
		return "size"
	case ErrCancelled:
		return "cancelled"
	case ErrFail:
		return "fail"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the code reports an operation that will never
// produce a completion callback. ErrBusy is not terminal. It promises that a
// previously accepted operation is still in flight and will complete.
func (c ErrorCode) IsTerminal() bool {
	return c != OK && c != ErrBusy
}
