package conformance

import (
	"log"
	"sync"

	"github.com/kestrel-os/kestrel/hil"
)

// Ledger tracks buffer custody. Every admitted buffer has exactly one
// holder at any time. A move that disagrees with the ledger panics, which
// turns a lost or doubly-owned buffer into a loud failure at the exact
// hand-off that caused it.
type Ledger struct {
	mu      sync.Mutex
	holders map[*hil.Buffer]string
	moves   int
}

// NewLedger creates a new Ledger.
func NewLedger() *Ledger {
	return &Ledger{
		holders: make(map[*hil.Buffer]string),
	}
}

// Admit starts tracking a buffer with the given holder.
func (l *Ledger) Admit(buf *hil.Buffer, holder string) {
	l.bufMustNotBeNil(buf)

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, found := l.holders[buf]; found {
		panic("buffer admitted to the ledger twice")
	}

	l.holders[buf] = holder
}

// Move records a custody hand-off from one holder to another.
func (l *Ledger) Move(buf *hil.Buffer, from, to string) {
	l.bufMustNotBeNil(buf)

	l.mu.Lock()
	defer l.mu.Unlock()

	holder, found := l.holders[buf]
	if !found {
		panic("buffer is not tracked by the ledger")
	}

	if holder != from {
		panic("buffer handed off by a party that does not hold it")
	}

	l.holders[buf] = to
	l.moves++
}

// Holder returns who holds the buffer now.
func (l *Ledger) Holder(buf *hil.Buffer) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	holder, found := l.holders[buf]
	if !found {
		panic("buffer is not tracked by the ledger")
	}

	return holder
}

// Moves counts the hand-offs recorded so far.
func (l *Ledger) Moves() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.moves
}

// MustHaveNoBufferWith asserts that no tracked buffer is currently with
// the given holder. Checking the core at the end of a run proves every
// buffer made it back out.
func (l *Ledger) MustHaveNoBufferWith(holder string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	strays := 0
	for buf, h := range l.holders {
		if h == holder {
			log.Printf("buffer %s is still with %s\n", buf, h)
			strays++
		}
	}

	if strays > 0 {
		panic("some buffers never came back")
	}
}

func (l *Ledger) bufMustNotBeNil(buf *hil.Buffer) {
	if buf == nil {
		panic("ledger cannot track a nil buffer")
	}
}
