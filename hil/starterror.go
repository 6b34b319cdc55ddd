package hil

// StartError is the synchronous failure of a split-phase call. A nil
// *StartError means the operation is accepted and pending.
//
// Buf carries the caller's buffer back for terminal failures, so that
// ownership returns in the same call stack. For ErrBusy, Buf is nil and the
// caller never lost ownership.
type StartError struct {
	Code ErrorCode
	Buf  *Buffer
}

// NewStartError creates a StartError that hands the buffer back.
func NewStartError(code ErrorCode, buf *Buffer) *StartError {
	return &StartError{Code: code, Buf: buf}
}

// NewBusyError creates the ErrBusy refusal. The caller keeps its buffer.
func NewBusyError() *StartError {
	return &StartError{Code: ErrBusy}
}

func (e *StartError) String() string {
	return "start failed: " + e.Code.String()
}
