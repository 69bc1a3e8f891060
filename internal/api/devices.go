package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/lumen-core/internal/device"
)

// handleListDevices returns all devices, with optional query filters.
//
// Query parameters:
//   - sku: filter by device model SKU
//   - capability: filter by capability (power, brightness, color_rgb, ...)
//   - health: filter by health status (online, offline, degraded, unknown)
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if sku := r.URL.Query().Get("sku"); sku != "" {
		devices, err := s.registry.GetDevicesBySKU(ctx, sku)
		if err != nil {
			writeInternalError(w, "failed to list devices")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
		return
	}

	if capStr := r.URL.Query().Get("capability"); capStr != "" {
		devices, err := s.registry.GetDevicesByCapability(ctx, device.Capability(capStr))
		if err != nil {
			writeInternalError(w, "failed to list devices")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
		return
	}

	if healthStr := r.URL.Query().Get("health"); healthStr != "" {
		devices, err := s.registry.GetDevicesByHealthStatus(ctx, device.HealthStatus(healthStr))
		if err != nil {
			writeInternalError(w, "failed to list devices")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
		return
	}

	devices, err := s.registry.ListDevices(ctx)
	if err != nil {
		writeInternalError(w, "failed to list devices")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device by ID, falling back to a
// slug lookup so callers can address devices by readable name.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	dev, err := s.registry.GetDevice(ctx, id)
	if errors.Is(err, device.ErrDeviceNotFound) {
		dev, err = s.registry.GetDeviceBySlug(ctx, id)
	}
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// handleCreateDevice creates a new device.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var dev device.Device
	if err := json.NewDecoder(r.Body).Decode(&dev); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.registry.CreateDevice(r.Context(), &dev); err != nil {
		switch {
		case errors.Is(err, device.ErrDeviceExists):
			writeConflict(w, "device already exists")
		case errors.Is(err, device.ErrInvalidDevice),
			errors.Is(err, device.ErrInvalidName),
			errors.Is(err, device.ErrInvalidSKU),
			errors.Is(err, device.ErrInvalidCapability),
			errors.Is(err, device.ErrInvalidLANAddress):
			writeBadRequest(w, err.Error())
		default:
			writeInternalError(w, "failed to create device")
		}
		return
	}

	writeJSON(w, http.StatusCreated, dev)
}

// devicePatch carries the mutable fields of a device update request.
// Absent fields are left unchanged.
type devicePatch struct {
	Name         *string              `json:"name"`
	SKU          *string              `json:"sku"`
	LANAddress   *string              `json:"lan_address"`
	Capabilities *[]device.Capability `json:"capabilities"`
}

// handleUpdateDevice applies a partial update to a device.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	dev, err := s.registry.GetDevice(ctx, id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	var patch devicePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if patch.Name != nil {
		dev.Name = *patch.Name
	}
	if patch.SKU != nil {
		dev.SKU = *patch.SKU
	}
	if patch.LANAddress != nil {
		// An empty string clears the address, disabling the LAN path.
		if *patch.LANAddress == "" {
			dev.LANAddress = nil
		} else {
			dev.LANAddress = patch.LANAddress
		}
	}
	if patch.Capabilities != nil {
		dev.Capabilities = *patch.Capabilities
	}

	if err := s.registry.UpdateDevice(ctx, dev); err != nil {
		switch {
		case errors.Is(err, device.ErrInvalidDevice),
			errors.Is(err, device.ErrInvalidName),
			errors.Is(err, device.ErrInvalidSKU),
			errors.Is(err, device.ErrInvalidCapability),
			errors.Is(err, device.ErrInvalidLANAddress):
			writeBadRequest(w, err.Error())
		default:
			writeInternalError(w, "failed to update device")
		}
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// handleDeleteDevice removes a device from the registry.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.registry.DeleteDevice(r.Context(), id); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to delete device")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleDeviceStats returns aggregate registry statistics.
func (s *Server) handleDeviceStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.GetStats())
}
