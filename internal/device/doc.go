// Package device provides the device registry for Lumen Core.
//
// The registry is the catalogue of all managed lights. It manages device
// lifecycle, the last verified state snapshot, and provides query
// operations for the REST API and the command dispatcher.
//
// # Key Types
//
//   - Device: The core entity representing a managed light
//   - Capability: What a device can do (power, brightness, color_rgb, etc.)
//   - HealthStatus: Liveness derived from transport results
//   - CommandLogEntry: Audit record of a dispatched command and its verdict
//
// # Usage
//
//	// Create repository and registry
//	repo := device.NewSQLiteRepository(db)
//	registry := device.NewRegistry(repo)
//	registry.SetLogger(log)
//
//	// Load devices into cache on startup
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	// Create a new device
//	addr := "192.168.1.50"
//	dev := &device.Device{
//	    Name:       "Living Room Strip",
//	    SKU:        "H6159",
//	    LANAddress: &addr,
//	    Capabilities: []device.Capability{
//	        device.CapabilityPower,
//	        device.CapabilityBrightness,
//	        device.CapabilityColorRGB,
//	    },
//	}
//	if err := registry.CreateDevice(ctx, dev); err != nil {
//	    return err
//	}
//
//	// Update state (from command verification)
//	registry.SetDeviceState(ctx, dev.ID, device.State{"onOff": 1, "brightness": 75})
//
// # Thread Safety
//
// The Registry is safe for concurrent use. All operations are protected by
// a read-write mutex. The Repository implementation must also be thread-safe.
package device
