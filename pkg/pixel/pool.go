package pixel

import (
	"math/bits"
	"sync"
)

// Buckets hold power-of-two capacities up to 1<<maxBucket bytes; larger
// frames bypass the pool.
const maxBucket = 30

var pools [maxBucket + 1]sync.Pool

func bucket(n int) int {
	return bits.Len(uint(n - 1))
}

// Alloc returns a byte slice of length n, reusing released frame memory
// when a slice of the right size class is available.
func Alloc(n int) []byte {
	if n <= 0 {
		return []byte{}
	}
	b := bucket(n)
	if b > maxBucket {
		return make([]byte, n)
	}
	if p, ok := pools[b].Get().(*[]byte); ok {
		return (*p)[:n]
	}
	return make([]byte, n, 1<<b)
}

// Free returns memory obtained from Alloc to its size class
func Free(buf []byte) {
	c := cap(buf)
	if c == 0 || c&(c-1) != 0 {
		return
	}
	b := bucket(c)
	if b > maxBucket {
		return
	}
	buf = buf[:0]
	pools[b].Put(&buf)
}
