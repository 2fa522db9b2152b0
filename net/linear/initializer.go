package linear

import "github.com/neurlang/finetune/device"
import "github.com/neurlang/finetune/random"
import "github.com/neurlang/finetune/trainer"

// Initializer builds a fresh device-bound model for every run
type Initializer struct {
	Options Options
	Device  device.Device
}

// NewModel implements trainer.Initializer
func (i Initializer) NewModel(run int, rng *random.Source) (trainer.Model, error) {
	m, err := New(i.Options, rng)
	if err != nil {
		return nil, err
	}
	bound, err := m.ToDevice(i.Device)
	if err != nil {
		return nil, err
	}
	return bound, nil
}
