//go:build cuda

package device

import "gorgonia.org/cu"

func probeCUDA() (Device, error) {
	count, err := cu.NumDevices()
	if err != nil {
		return Device{}, &Error{Kind: CUDA, Reason: err.Error()}
	}
	if count == 0 {
		return Device{}, &Error{Kind: CUDA, Reason: "no devices"}
	}
	name, err := cu.Device(0).Name()
	if err != nil {
		return Device{}, &Error{Kind: CUDA, Reason: err.Error()}
	}
	memory, err := cu.Device(0).TotalMem()
	if err != nil {
		return Device{}, &Error{Kind: CUDA, Reason: err.Error()}
	}
	return Device{
		Kind:    CUDA,
		Name:    name,
		Threads: 1,
		Memory:  uint64(memory),
	}, nil
}
