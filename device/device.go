// Package device selects the compute device a model is bound to.
package device

import "fmt"
import "runtime"
import "strings"

import "github.com/klauspost/cpuid/v2"

// Kind is a compute backend
type Kind int

const (
	Auto Kind = iota
	CPU
	AVX512
	CUDA
)

func (k Kind) String() string {
	switch k {
	case Auto:
		return "auto"
	case CPU:
		return "cpu"
	case AVX512:
		return "avx512"
	case CUDA:
		return "cuda"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Device is a probed, usable compute device
type Device struct {
	Kind    Kind
	Name    string
	Threads int // worker goroutines a model may use on this device
	Memory  uint64
}

func (d Device) String() string {
	return fmt.Sprintf("%s (%s, %d threads)", d.Kind, d.Name, d.Threads)
}

// Error reports that a compute device is unavailable or failed mid-run. It is fatal, never retried.
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string {
	return "device " + e.Kind.String() + ": " + e.Reason
}

// Parse parses a device name
func Parse(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return Auto, nil
	case "cpu":
		return CPU, nil
	case "avx512":
		return AVX512, nil
	case "cuda", "gpu":
		return CUDA, nil
	}
	return Auto, fmt.Errorf("unknown device %q", name)
}

// Probe checks that the requested device can be used and describes it.
// Auto resolves to the best CPU variant; CUDA must be asked for explicitly.
func Probe(kind Kind) (Device, error) {
	switch kind {
	case Auto:
		if hasAVX512() {
			return probeCPU(AVX512), nil
		}
		return probeCPU(CPU), nil
	case CPU:
		return probeCPU(CPU), nil
	case AVX512:
		if !hasAVX512() {
			return Device{}, &Error{Kind: AVX512, Reason: "cpu " + cpuid.CPU.BrandName + " lacks AVX512F/AVX512DQ"}
		}
		return probeCPU(AVX512), nil
	case CUDA:
		return probeCUDA()
	}
	return Device{}, &Error{Kind: kind, Reason: "unsupported"}
}

func hasAVX512() bool {
	return cpuid.CPU.Supports(cpuid.AVX512F, cpuid.AVX512DQ)
}

func probeCPU(kind Kind) Device {
	threads := cpuid.CPU.LogicalCores
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	name := cpuid.CPU.BrandName
	if name == "" {
		name = runtime.GOARCH
	}
	return Device{
		Kind:    kind,
		Name:    name,
		Threads: threads,
	}
}
