//go:build !cuda

package device

func probeCUDA() (Device, error) {
	return Device{}, &Error{Kind: CUDA, Reason: "binary built without the cuda tag"}
}
