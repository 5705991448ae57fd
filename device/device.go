// Copyright 2026 TabNet ML Framework. All rights reserved.
// Use of this source code is governed by an MIT license
// that can be found in the LICENSE file.

// Package device provides the public API for compute devices.
//
// A Device decides how the tensor primitives split their work: either on
// the calling goroutine or across a pool of workers.
//
// Example:
//
//	dev := device.Default()
//	outputs := network.Outputs(dev, inputs)
package device

import (
	"github.com/tabnet-ml/tabnet/internal/device"
)

// Mode selects between single-threaded and pooled execution.
type Mode = device.Mode

// Execution modes.
const (
	SingleThreaded Mode = device.SingleThreaded
	ThreadPool     Mode = device.ThreadPool
)

// Device executes data-parallel loops for the tensor primitives.
type Device = device.Device

// New creates a device. With ThreadPool, workers <= 0 uses GOMAXPROCS.
func New(mode Mode, workers int) *Device {
	return device.New(mode, workers)
}

// Default returns a thread-pool device sized to the machine.
func Default() *Device {
	return device.Default()
}
