package frame

import (
	"fmt"

	"go.uber.org/atomic"
)

// refCount tracks the holders of a table's storage. The storage is freed
// when the count drops to zero.
type refCount struct {
	count atomic.Int32
}

func newRefCount() *refCount {
	r := &refCount{}
	r.count.Store(1)
	return r
}

func (r *refCount) Inc() { r.count.Inc() }

// Dec reports whether the count reached zero. Decrementing a released count
// does nothing.
func (r *refCount) Dec() bool {
	for {
		cur := r.count.Load()
		if cur <= 0 {
			return false
		}
		if r.count.CompareAndSwap(cur, cur-1) {
			return cur == 1
		}
	}
}

func (r *refCount) Get() int32 { return r.count.Load() }

func (r *refCount) String() string {
	return fmt.Sprintf("refs: %d", r.Get())
}
