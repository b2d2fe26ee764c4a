package armlink

import (
	"go.bug.st/serial"
)

// NewSerialArmMux creates an ArmMux backed by a real serial driver link at
// the given path using the provided options.
func NewSerialArmMux(path string, opts LinkOptions) (*ArmMux[serial.Port], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}

	return NewArmMux[serial.Port](port), nil
}
