package device

import (
	"fmt"
	"net"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxNameLength = 100
	maxSlugLength = 50
	maxSKULength  = 20
	slugPattern   = `^[a-z0-9]+(?:-[a-z0-9]+)*$`

	// Size limits for JSON fields to prevent memory exhaustion from
	// oversized registration payloads.
	maxStateKeys      = 20
	maxCapabilities   = 10
	maxStringValueLen = 256
)

var slugRegex = regexp.MustCompile(slugPattern)

// Pre-computed validation sets for O(1) lookups.
var (
	validCapabilities map[Capability]struct{}
	validHealthStatus map[HealthStatus]struct{}
)

func init() {
	validCapabilities = make(map[Capability]struct{}, len(AllCapabilities()))
	for _, c := range AllCapabilities() {
		validCapabilities[c] = struct{}{}
	}

	validHealthStatus = make(map[HealthStatus]struct{}, len(AllHealthStatuses()))
	for _, s := range AllHealthStatuses() {
		validHealthStatus[s] = struct{}{}
	}
}

// ValidateDevice performs comprehensive validation on a device.
// Returns an error describing the first validation failure found.
func ValidateDevice(d *Device) error {
	if d == nil {
		return ErrInvalidDevice
	}

	if err := ValidateName(d.Name); err != nil {
		return err
	}

	// Validate slug if provided (empty slug will be generated)
	if d.Slug != "" {
		if err := ValidateSlug(d.Slug); err != nil {
			return err
		}
	}

	if err := ValidateSKU(d.SKU); err != nil {
		return err
	}

	if d.LANAddress != nil {
		if err := ValidateLANAddress(*d.LANAddress); err != nil {
			return err
		}
	}

	if len(d.Capabilities) == 0 {
		return fmt.Errorf("%w: at least one capability is required", ErrInvalidCapability)
	}
	if len(d.Capabilities) > maxCapabilities {
		return fmt.Errorf("%w: exceeds max capabilities (%d)", ErrInvalidCapability, maxCapabilities)
	}
	seen := make(map[Capability]struct{}, len(d.Capabilities))
	for _, c := range d.Capabilities {
		if _, ok := validCapabilities[c]; !ok {
			return fmt.Errorf("%w: %q", ErrInvalidCapability, c)
		}
		if _, dup := seen[c]; dup {
			return fmt.Errorf("%w: duplicate %q", ErrInvalidCapability, c)
		}
		seen[c] = struct{}{}
	}

	if len(d.State) > maxStateKeys {
		return fmt.Errorf("%w: state exceeds max keys (%d)", ErrInvalidState, maxStateKeys)
	}
	for k, v := range d.State {
		if len(k) > maxStringValueLen {
			return fmt.Errorf("%w: state key too long", ErrInvalidState)
		}
		if s, ok := v.(string); ok && len(s) > maxStringValueLen {
			return fmt.Errorf("%w: state value for %q too long", ErrInvalidState, k)
		}
	}

	if d.HealthStatus != "" {
		if _, ok := validHealthStatus[d.HealthStatus]; !ok {
			return fmt.Errorf("%w: invalid health status %q", ErrInvalidDevice, d.HealthStatus)
		}
	}

	return nil
}

// ValidateName checks that a device name is non-empty and within limits.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidateSlug checks that a slug is lowercase alphanumeric with hyphens.
func ValidateSlug(slug string) error {
	if slug == "" {
		return fmt.Errorf("%w: slug is required", ErrInvalidSlug)
	}
	if len(slug) > maxSlugLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidSlug, maxSlugLength)
	}
	if !slugRegex.MatchString(slug) {
		return fmt.Errorf("%w: %q must be lowercase alphanumeric with hyphens", ErrInvalidSlug, slug)
	}
	return nil
}

// ValidateSKU checks that the vendor SKU is present and within limits.
func ValidateSKU(sku string) error {
	if strings.TrimSpace(sku) == "" {
		return fmt.Errorf("%w: sku is required", ErrInvalidSKU)
	}
	if len(sku) > maxSKULength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidSKU, maxSKULength)
	}
	return nil
}

// ValidateLANAddress checks that a LAN address parses as an IP address.
func ValidateLANAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("%w: empty address", ErrInvalidLANAddress)
	}
	if net.ParseIP(addr) == nil {
		return fmt.Errorf("%w: %q is not a valid IP address", ErrInvalidLANAddress, addr)
	}
	return nil
}

// GenerateID returns a new unique device identifier.
// Used for manually registered devices that lack a vendor identifier.
func GenerateID() string {
	return uuid.New().String()
}

// GenerateSlug derives a URL-safe slug from a device name.
//
// "Living Room Strip" -> "living-room-strip"
func GenerateSlug(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))

	// Replace runs of non-alphanumeric characters with single hyphens.
	var b strings.Builder
	lastHyphen := true // Avoid leading hyphen
	for _, r := range slug {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	result := strings.TrimSuffix(b.String(), "-")
	if len(result) > maxSlugLength {
		result = strings.TrimSuffix(result[:maxSlugLength], "-")
	}
	if result == "" {
		// Name was entirely non-alphanumeric; fall back to a short UUID.
		result = "device-" + uuid.New().String()[:8]
	}
	return result
}
