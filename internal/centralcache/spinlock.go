package centralcache

import (
	"runtime"
	"sync/atomic"
)

// spinlock is a test-and-set lock with yield-on-contention, spec.md
// §5's "atomic flag with acquire on take, release on release, and
// thread-yield while spinning". It is padded to a full cache line so
// two classes' locks never share one, matching the false-sharing
// guard the teacher module's own hot structures use.
type spinlock struct {
	flag uint32
	_    [60]byte
}

func (s *spinlock) Lock() {
	for !atomic.CompareAndSwapUint32(&s.flag, 0, 1) {
		runtime.Gosched()
	}
}

func (s *spinlock) Unlock() {
	atomic.StoreUint32(&s.flag, 0)
}
