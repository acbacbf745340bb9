package tensor

import (
	"fmt"
)

// Device is a compute placement: a backend type and, for GPUs, an ordinal.
type Device struct {
	Type  DeviceType
	Index int
}

func (d Device) String() string {
	if d.Type == GPU {
		return fmt.Sprintf("cuda:%d", d.Index)
	}
	return "cpu"
}

// CPUDevice is the host device.
var CPUDevice = Device{Type: CPU}

// gpuCount reports the number of usable GPU devices. Only the CPU backend is
// compiled in.
var gpuCount = func() int { return 0 }

// IsGPUAvailable reports whether any GPU device can be used.
func IsGPUAvailable() bool {
	return gpuCount() > 0
}

// SelectDevice resolves the requested GPU ordinal. When no GPU is requested or
// the requested one is unavailable the CPU is returned together with
// fellBack=true for the latter case so callers can log the fallback.
func SelectDevice(gpuNumber *int) (device Device, fellBack bool) {
	if gpuNumber == nil {
		return CPUDevice, false
	}
	if *gpuNumber >= 0 && *gpuNumber < gpuCount() {
		return Device{Type: GPU, Index: *gpuNumber}, false
	}
	return CPUDevice, true
}
