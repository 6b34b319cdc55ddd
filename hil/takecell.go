package hil

// A TakeCell holds a value that can be taken out and put back, making the
// have-or-lent state of a long-lived resource explicit. Clients stash their
// buffer in a TakeCell, take it out to start an operation, and put it back
// when the completion callback returns it.
//
// A TakeCell is not safe for concurrent use. Callers serialize access
// through the kernel loop.
type TakeCell[T any] struct {
	value    T
	occupied bool
}

// Put stores a value, replacing any value already held.
func (c *TakeCell[T]) Put(v T) {
	c.value = v
	c.occupied = true
}

// Take removes and returns the held value. The second return value is false
// if the cell is empty.
func (c *TakeCell[T]) Take() (T, bool) {
	if !c.occupied {
		var zero T
		return zero, false
	}

	v := c.value
	var zero T
	c.value = zero
	c.occupied = false

	return v, true
}

// Occupied returns true if the cell currently holds a value.
func (c *TakeCell[T]) Occupied() bool {
	return c.occupied
}
