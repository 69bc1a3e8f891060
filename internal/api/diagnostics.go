package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/lumen-core/internal/device"
	"github.com/nerrad567/lumen-core/internal/transport"
)

// stabilityRequest selects which cloud endpoint to probe for drift.
type stabilityRequest struct {
	// Target is one of: devices, scenes, diy-scenes.
	Target string `json:"target"`

	// DeviceID selects the device for the scene targets. Ignored for
	// the devices target.
	DeviceID string `json:"device_id"`
}

// handleCloudStability runs an on-demand drift check against the cloud
// API: N identical fetches of the chosen endpoint, compared as sets.
// This is a slow endpoint; each run performs several real cloud calls
// with delays between them.
func (s *Server) handleCloudStability(w http.ResponseWriter, r *http.Request) {
	if s.stability == nil {
		writeUnavailable(w, "cloud diagnostics not enabled")
		return
	}

	var req stabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	ctx := r.Context()

	if req.Target == "devices" {
		report, err := s.stability.CheckDevices(ctx)
		if err != nil {
			s.writeStabilityError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
		return
	}

	if req.Target != "scenes" && req.Target != "diy-scenes" {
		writeBadRequest(w, "target must be one of: devices, scenes, diy-scenes")
		return
	}

	if req.DeviceID == "" {
		writeBadRequest(w, "device_id is required for scene targets")
		return
	}

	dev, err := s.registry.GetDevice(ctx, req.DeviceID)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	var report any
	if req.Target == "scenes" {
		report, err = s.stability.CheckScenes(ctx, dev)
	} else {
		report, err = s.stability.CheckDIYScenes(ctx, dev)
	}
	if err != nil {
		s.writeStabilityError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// writeStabilityError maps checker failures onto HTTP statuses. A
// rejected fetch (for example diy-scenes on a device without them) is
// the caller's problem; an unreachable cloud is upstream's.
func (s *Server) writeStabilityError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, transport.ErrRejected):
		writeBadRequest(w, err.Error())
	case errors.Is(err, transport.ErrUnreachable):
		writeError(w, http.StatusBadGateway, ErrCodeUnavailable, "cloud API unreachable")
	default:
		writeInternalError(w, "stability check failed")
	}
}
