// Package affinity enforces the single-goroutine discipline of a pipeline's
// serialization loop. Every stage method must run on the loop goroutine;
// running one anywhere else is a programming error, not a recoverable
// condition, so Check fails hard.
package affinity

import (
	"bytes"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
)

// Gate records the goroutine a loop is bound to and asserts callers are on
// it. The zero value is unbound; Check on an unbound gate fails.
type Gate struct {
	gid atomic.Uint64
}

// Bind ties the gate to the calling goroutine. Called once, by the loop
// itself, before it processes any task.
func (g *Gate) Bind() {
	g.gid.Store(goroutineID())
}

// Release unbinds the gate when the loop exits.
func (g *Gate) Release() {
	g.gid.Store(0)
}

// Bound reports whether the gate is currently bound to any goroutine.
func (g *Gate) Bound() bool {
	return g.gid.Load() != 0
}

// Held reports whether the calling goroutine is the bound loop goroutine.
func (g *Gate) Held() bool {
	bound := g.gid.Load()

	return bound != 0 && goroutineID() == bound
}

// Check panics if the calling goroutine is not the bound loop goroutine.
func (g *Gate) Check() {
	bound := g.gid.Load()
	if bound == 0 {
		panic("affinity: gate is not bound to a loop goroutine")
	}
	if cur := goroutineID(); cur != bound {
		panic(fmt.Sprintf("affinity: called from goroutine %d, bound to %d", cur, bound))
	}
}

var stackPrefix = []byte("goroutine ")

// goroutineID parses the current goroutine's id out of its stack header.
// This is the only portable way to identify a goroutine; the runtime
// deliberately does not expose one.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	frame := bytes.TrimPrefix(buf[:n], stackPrefix)
	if idx := bytes.IndexByte(frame, ' '); idx > 0 {
		frame = frame[:idx]
	}
	id, err := strconv.ParseUint(string(frame), 10, 64)
	if err != nil {
		panic(fmt.Sprintf("affinity: unparsable stack header %q", buf[:n]))
	}

	return id
}
