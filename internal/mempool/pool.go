// Package mempool holds sized sync.Pool buckets for the scratch slices
// used on the estimation hot path.
package mempool

import "sync"

// step is the bucket granularity. Correspondence sets are usually a few
// hundred entries, so buckets stay small.
const step = 256

var (
	float64Pools sync.Map // key: size class (int), value: *sync.Pool
	boolPools    sync.Map // key: size class (int), value: *sync.Pool
)

// sizeClass rounds n up to the next multiple of step.
func sizeClass(n int) int {
	if n <= step {
		return step
	}
	return (n + step - 1) / step * step
}

func poolFor[T any](pools *sync.Map, cls int) *sync.Pool {
	if p, ok := pools.Load(cls); ok {
		return p.(*sync.Pool) //nolint:forcetypeassert // only *sync.Pool is stored
	}
	p, _ := pools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]T, cls) }})
	return p.(*sync.Pool) //nolint:forcetypeassert // only *sync.Pool is stored
}

func get[T any](pools *sync.Map, n int) []T {
	cls := sizeClass(n)
	buf, ok := poolFor[T](pools, cls).Get().([]T)
	if !ok || cap(buf) < cls {
		buf = make([]T, cls)
	}
	return buf[:n]
}

func put[T any](pools *sync.Map, buf []T) {
	if buf == nil {
		return
	}
	cls := sizeClass(cap(buf))
	if cls != cap(buf) {
		// Foreign slice whose capacity is not a bucket size.
		return
	}
	poolFor[T](pools, cls).Put(buf[:cap(buf)]) //nolint:staticcheck // slices are fine here
}

// GetFloat64 returns a []float64 of length n. Contents are not zeroed.
// Return it with PutFloat64.
func GetFloat64(n int) []float64 {
	return get[float64](&float64Pools, n)
}

// PutFloat64 returns a buffer to its pool. Nil is ignored.
func PutFloat64(buf []float64) {
	put(&float64Pools, buf)
}

// GetBool returns a zeroed []bool of length n. Return it with PutBool.
func GetBool(n int) []bool {
	buf := get[bool](&boolPools, n)
	clear(buf)
	return buf
}

// PutBool returns a buffer to its pool. Nil is ignored.
func PutBool(buf []bool) {
	put(&boolPools, buf)
}
