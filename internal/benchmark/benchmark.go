// Package benchmark measures estimator throughput.
package benchmark

import (
	"fmt"
	"runtime"
	"time"
)

// Measurement is the outcome of timing a function over several runs.
type Measurement struct {
	Name    string
	Runs    int // runs completed before the first error
	Elapsed time.Duration
	Bytes   uint64 // heap bytes allocated across all runs
	Mallocs uint64 // heap objects allocated across all runs
	Err     error
}

// Measure calls fn runs times, stopping at the first error, and records
// wall time and heap allocation.
func Measure(name string, runs int, fn func() error) Measurement {
	runtime.GC()
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)

	m := Measurement{Name: name}
	start := time.Now()
	for range runs {
		if err := fn(); err != nil {
			m.Err = err
			break
		}
		m.Runs++
	}
	m.Elapsed = time.Since(start)

	runtime.ReadMemStats(&after)
	m.Bytes = after.TotalAlloc - before.TotalAlloc
	m.Mallocs = after.Mallocs - before.Mallocs
	return m
}

// PerRun returns the mean wall time of a completed run.
func (m Measurement) PerRun() time.Duration {
	if m.Runs <= 0 {
		return 0
	}
	return m.Elapsed / time.Duration(m.Runs)
}

// AllocsPerRun returns the mean number of heap objects per completed run.
func (m Measurement) AllocsPerRun() uint64 {
	if m.Runs <= 0 {
		return 0
	}
	return m.Mallocs / uint64(m.Runs)
}

// KB returns the total allocation in kilobytes.
func (m Measurement) KB() uint64 {
	return m.Bytes / 1024
}

func (m Measurement) String() string {
	if m.Err != nil {
		return fmt.Sprintf("%s: failed after %d runs: %v", m.Name, m.Runs, m.Err)
	}
	return fmt.Sprintf("%s: %d runs, %v/run, %d allocs/run, %d KB total",
		m.Name, m.Runs, m.PerRun(), m.AllocsPerRun(), m.KB())
}
