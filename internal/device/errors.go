package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when creating a device with an ID that already exists.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrInvalidDevice is returned when device validation fails.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidName is returned when a device name is empty or too long.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrInvalidSlug is returned when a slug format is invalid.
	ErrInvalidSlug = errors.New("device: invalid slug")

	// ErrInvalidSKU is returned when the SKU is missing or too long.
	ErrInvalidSKU = errors.New("device: invalid sku")

	// ErrInvalidCapability is returned when a capability is not recognised.
	ErrInvalidCapability = errors.New("device: invalid capability")

	// ErrInvalidLANAddress is returned when a LAN address does not parse as an IP.
	ErrInvalidLANAddress = errors.New("device: invalid lan address")

	// ErrInvalidState is returned when state validation fails.
	ErrInvalidState = errors.New("device: invalid state")
)
