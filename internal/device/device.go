// Package device provides the execution context for tensor operations.
//
// A Device owns the process-level worker pool. It has two modes:
//   - SingleThreaded: all work runs on the calling goroutine
//   - ThreadPool: work is split across n worker goroutines
//
// Every tensor primitive takes the device as an explicit parameter; there is
// no hidden global or thread-local execution state.
package device

import (
	"runtime"
	"sync"
)

// Mode selects how a Device schedules tensor work.
type Mode int

const (
	// SingleThreaded runs every primitive sequentially on the caller.
	SingleThreaded Mode = iota
	// ThreadPool splits primitives across a fixed number of workers.
	ThreadPool
)

// Device is the execution context passed to every tensor operation.
//
// The device outlives all networks that use it. It is safe for concurrent
// use: the worker pool is stateless between calls.
type Device struct {
	mode    Mode
	workers int
	// Minimum items per worker before a primitive is split. Splitting tiny
	// loops costs more in scheduling than it saves.
	minChunk int
}

// New creates a device in the given mode. For ThreadPool, workers defaults
// to runtime.NumCPU() when n <= 0.
func New(mode Mode, n int) *Device {
	if mode == SingleThreaded {
		return &Device{mode: SingleThreaded, workers: 1, minChunk: 64}
	}
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return &Device{mode: ThreadPool, workers: n, minChunk: 64}
}

// Default returns a thread-pool device sized to the available hardware
// parallelism.
func Default() *Device {
	return New(ThreadPool, 0)
}

// Mode returns the scheduling mode.
func (d *Device) Mode() Mode { return d.mode }

// Workers returns the number of worker goroutines used by ThreadPool mode.
func (d *Device) Workers() int { return d.workers }

// For executes f(i) for i in [0, n), splitting the range across the worker
// pool when the device is in ThreadPool mode and n is large enough to be
// worth it. The call returns once every f(i) has completed.
func (d *Device) For(n int, f func(i int)) {
	if d == nil || d.mode == SingleThreaded || n < d.minChunk {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	chunk := (n + d.workers - 1) / d.workers
	if chunk < d.minChunk {
		chunk = d.minChunk
	}

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// ForBatch executes f(b, c) over a batch*channels index space. Common in
// convolution and pooling kernels.
func (d *Device) ForBatch(batch, channels int, f func(b, c int)) {
	d.For(batch*channels, func(k int) {
		f(k/channels, k%channels)
	})
}
