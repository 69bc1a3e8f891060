package device

import (
	"errors"
	"strings"
	"testing"
)

func validTestDevice() *Device {
	addr := "192.168.1.50"
	return &Device{
		ID:         GenerateID(),
		Name:       "Test Light",
		Slug:       "test-light",
		SKU:        "H6159",
		LANAddress: &addr,
		Capabilities: []Capability{
			CapabilityPower,
			CapabilityBrightness,
		},
	}
}

func TestValidateDevice(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Device)
		wantErr error
	}{
		{
			name:   "valid device",
			modify: func(d *Device) {},
		},
		{
			name:    "empty name",
			modify:  func(d *Device) { d.Name = "" },
			wantErr: ErrInvalidName,
		},
		{
			name:    "name too long",
			modify:  func(d *Device) { d.Name = strings.Repeat("x", maxNameLength+1) },
			wantErr: ErrInvalidName,
		},
		{
			name:    "uppercase slug",
			modify:  func(d *Device) { d.Slug = "Test-Light" },
			wantErr: ErrInvalidSlug,
		},
		{
			name:    "slug with spaces",
			modify:  func(d *Device) { d.Slug = "test light" },
			wantErr: ErrInvalidSlug,
		},
		{
			name:   "empty slug is allowed",
			modify: func(d *Device) { d.Slug = "" },
		},
		{
			name:    "missing sku",
			modify:  func(d *Device) { d.SKU = "" },
			wantErr: ErrInvalidSKU,
		},
		{
			name:    "sku too long",
			modify:  func(d *Device) { d.SKU = strings.Repeat("H", maxSKULength+1) },
			wantErr: ErrInvalidSKU,
		},
		{
			name: "bad lan address",
			modify: func(d *Device) {
				bad := "not-an-ip"
				d.LANAddress = &bad
			},
			wantErr: ErrInvalidLANAddress,
		},
		{
			name:   "nil lan address is allowed",
			modify: func(d *Device) { d.LANAddress = nil },
		},
		{
			name: "ipv6 lan address",
			modify: func(d *Device) {
				v6 := "fe80::1"
				d.LANAddress = &v6
			},
		},
		{
			name:    "no capabilities",
			modify:  func(d *Device) { d.Capabilities = nil },
			wantErr: ErrInvalidCapability,
		},
		{
			name:    "unknown capability",
			modify:  func(d *Device) { d.Capabilities = []Capability{"teleport"} },
			wantErr: ErrInvalidCapability,
		},
		{
			name: "duplicate capability",
			modify: func(d *Device) {
				d.Capabilities = []Capability{CapabilityPower, CapabilityPower}
			},
			wantErr: ErrInvalidCapability,
		},
		{
			name:    "unknown health status",
			modify:  func(d *Device) { d.HealthStatus = "zombie" },
			wantErr: ErrInvalidDevice,
		},
		{
			name: "too many state keys",
			modify: func(d *Device) {
				d.State = make(State)
				for i := 0; i < maxStateKeys+1; i++ {
					d.State[strings.Repeat("k", i+1)] = i
				}
			},
			wantErr: ErrInvalidState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validTestDevice()
			tt.modify(d)

			err := ValidateDevice(d)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateDeviceNil(t *testing.T) {
	if err := ValidateDevice(nil); !errors.Is(err, ErrInvalidDevice) {
		t.Errorf("expected ErrInvalidDevice, got %v", err)
	}
}

func TestGenerateSlug(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "Living Room Strip", "living-room-strip"},
		{"punctuation", "Dave's Lamp!", "dave-s-lamp"},
		{"multiple spaces", "Hall   Light", "hall-light"},
		{"leading and trailing", "  Kitchen  ", "kitchen"},
		{"already a slug", "desk-lamp", "desk-lamp"},
		{"numbers", "Strip 2", "strip-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GenerateSlug(tt.in); got != tt.want {
				t.Errorf("GenerateSlug(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestGenerateSlugNonAlphanumeric(t *testing.T) {
	got := GenerateSlug("!!!")
	if !strings.HasPrefix(got, "device-") {
		t.Errorf("expected fallback slug, got %q", got)
	}
	if err := ValidateSlug(got); err != nil {
		t.Errorf("fallback slug failed validation: %v", err)
	}
}

func TestGenerateSlugLength(t *testing.T) {
	got := GenerateSlug(strings.Repeat("very long name ", 10))
	if len(got) > maxSlugLength {
		t.Errorf("slug exceeds max length: %d", len(got))
	}
	if err := ValidateSlug(got); err != nil {
		t.Errorf("truncated slug failed validation: %v", err)
	}
}

func TestGenerateIDUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := GenerateID()
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id generated: %s", id)
		}
		seen[id] = struct{}{}
	}
}
