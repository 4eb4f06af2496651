package auth

import (
	"runtime"

	"github.com/google/uuid"

	"github.com/dasien/bwcli/pkg/state"
)

// DeviceType codes for the CLI, one per platform, as the service defines
// them.
const (
	deviceTypeWindowsCLI = 23
	deviceTypeMacOsCLI   = 24
	deviceTypeLinuxCLI   = 25
)

// Device identifies this installation to the identity service.
type Device struct {
	// Type is the service's device-type code for this platform's CLI.
	Type int
	// Name is a short human-readable platform name.
	Name string
	// Identifier is a UUID generated once and persisted plaintext.
	Identifier string
}

// EnsureDevice loads the persisted device identity, generating and
// persisting a fresh identifier on first use.
func EnsureDevice(store *state.Store) (*Device, error) {
	device := &Device{Name: runtime.GOOS}

	switch runtime.GOOS {
	case "windows":
		device.Type = deviceTypeWindowsCLI
	case "darwin":
		device.Type = deviceTypeMacOsCLI
	default:
		device.Type = deviceTypeLinuxCLI
	}

	found, err := store.Get(recordDeviceID, &device.Identifier)
	if err != nil {
		return nil, err
	}
	if !found {
		device.Identifier = uuid.NewString()
		if err := store.Set(recordDeviceID, device.Identifier); err != nil {
			return nil, err
		}
	}
	return device, nil
}
